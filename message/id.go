package message

import "strconv"

// ID 标识一条邮箱元素在同步请求/响应中的角色。
//
// 位布局：第 63 位为响应标记，第 62 位为已应答标记，低 62 位是请求编号。
// 零值表示普通的异步消息。
type ID uint64

const (
	responseFlag ID = 1 << 63
	answeredFlag ID = 1 << 62
	requestMask  ID = answeredFlag - 1
)

// NewRequestID 以请求编号 n 构造一个请求 ID，n 只保留低 62 位。
func NewRequestID(n uint64) ID { return ID(n) & requestMask }

// FromIntegerValue 从线上的整数还原 ID。
func FromIntegerValue(v uint64) ID { return ID(v) }

// IntegerValue 返回 ID 的线上整数形式。
func (id ID) IntegerValue() uint64 { return uint64(id) }

// Valid 报告 ID 是否携带请求编号。
func (id ID) Valid() bool { return id&requestMask != 0 }

// IsRequest 报告 ID 是否为一次同步请求。
func (id ID) IsRequest() bool { return id.Valid() && !id.IsResponse() }

// IsResponse 报告 ID 是否为一次同步响应。
func (id ID) IsResponse() bool { return id&responseFlag != 0 }

// IsAnswered 报告请求是否已被应答。
func (id ID) IsAnswered() bool { return id&answeredFlag != 0 }

// MarkAsAnswered 返回打上已应答标记的 ID。
func (id ID) MarkAsAnswered() ID { return id | answeredFlag }

// ResponseID 返回与该请求对应的响应 ID；对无效 ID 返回零值。
func (id ID) ResponseID() ID {
	if !id.Valid() {
		return 0
	}
	return id&requestMask | responseFlag
}

// RequestID 去掉响应与已应答标记，得到原始请求 ID。
func (id ID) RequestID() ID { return id & requestMask }

func (id ID) String() string {
	if !id.Valid() {
		return "async"
	}
	s := strconv.FormatUint(uint64(id&requestMask), 10)
	if id.IsResponse() {
		s = "response#" + s
	} else {
		s = "request#" + s
	}
	if id.IsAnswered() {
		s += "(answered)"
	}
	return s
}
