package actor

import (
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"uniactor/mailbox"
	"uniactor/message"
)

// ResponsePromise 是对一个请求的回复义务，可以在处理函数返回之后、在任意 goroutine 中兑现。
// 每个承诺只能兑现一次，之后的 Deliver 调用返回 false。
type ResponsePromise struct {
	sys  *System
	from string
	to   string
	// id 为响应 ID；异步消息的承诺 id 无效，回复作为普通消息发回
	id        message.ID
	delivered *atomic.Bool
}

func newPromise(sys *System, from, to string, id message.ID) *ResponsePromise {
	return &ResponsePromise{sys: sys, from: from, to: to, id: id, delivered: atomic.NewBool(false)}
}

// Valid 报告承诺是否指向一个接收者。
func (p *ResponsePromise) Valid() bool { return p != nil && p.to != "" }

// Delivered 报告承诺是否已经兑现。
func (p *ResponsePromise) Delivered() bool { return p.Valid() && p.delivered.Load() }

// ID 返回回复将携带的消息 ID。
func (p *ResponsePromise) ID() message.ID { return p.id }

// Deliver 把 m 作为回复发出。承诺无效或已兑现时返回 false。
func (p *ResponsePromise) Deliver(m message.Message) bool {
	if !p.Valid() || !p.delivered.CompareAndSwap(false, true) {
		return false
	}
	pri := PriorityNormal
	if p.id.Valid() {
		pri = PriorityUrgent
	}
	err := p.sys.deliver(p.to, mailbox.Element{
		Priority: uint8(pri),
		SenderID: p.from,
		MID:      p.id,
		Msg:      m,
	})
	if err != nil {
		log.Warn("deliver response failed",
			zap.String("from", p.from), zap.String("to", p.to),
			zap.Stringer("mid", p.id), zap.Error(err))
	}
	return true
}

// DeliverValues 同 Deliver，回复由给定的值构造。
func (p *ResponsePromise) DeliverValues(vals ...any) (bool, error) {
	m, err := message.Make(vals...)
	if err != nil {
		return false, err
	}
	defer m.Release()
	return p.Deliver(m), nil
}
