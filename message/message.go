// Package message 实现类型擦除、引用计数、写时复制的消息元组。
package message

import (
	"strings"

	"go.uber.org/atomic"

	"uniactor/codec/textcodec"
	"uniactor/uniform"
)

// element 是元组中的一个槽位：描述符加指向值的指针（*T）。
type element struct {
	ti  uniform.TypeInfo
	ptr any
}

// tuple 是多个 Message 句柄共享的底层存储。
type tuple struct {
	refs  *atomic.Int32
	elems []element
}

func newTuple(elems []element) *tuple {
	return &tuple{refs: atomic.NewInt32(1), elems: elems}
}

// Message 是一组定长、异构的值，每个值带着自己的描述符。
//
// 多个句柄可以共享同一份存储：Copy 增加引用计数并返回一个新句柄，Release 归还该句柄的引用。
// 只读访问从不复制；MutableAt 在存储被共享时先复制出私有副本再返回。
// 直接用 = 赋值得到的是同一个句柄的别名：别名之间共享同一个引用，
// 其中任何一个归还了引用（Release 或脱离共享）之后，其余别名在修改前总会先复制。
type Message struct {
	t *tuple
	// owns 标记该句柄是否仍持有 t 上的一个引用，同一句柄的别名共享这个标记
	owns *atomic.Bool
}

func wrap(t *tuple) Message {
	return Message{t: t, owns: atomic.NewBool(true)}
}

// Empty 返回一个不含元素的消息。
func Empty() Message { return Message{} }

// Copy 返回共享同一存储的新句柄，新句柄持有自己的引用。
func (m Message) Copy() Message {
	if m.t == nil {
		return Message{}
	}
	m.t.refs.Inc()
	return wrap(m.t)
}

// Release 放弃句柄对存储的引用，之后 m 变为空消息。同一引用只会被归还一次。
func (m *Message) Release() {
	m.disown()
	m.t = nil
	m.owns = nil
}

func (m *Message) disown() {
	if m.t != nil && m.owns != nil && m.owns.CompareAndSwap(true, false) {
		m.t.refs.Dec()
	}
}

// Shared 报告修改前是否需要复制：存储被多个引用共享，或该句柄已不再持有引用。
func (m Message) Shared() bool {
	return m.t != nil && (m.owns == nil || !m.owns.Load() || m.t.refs.Load() > 1)
}

// Size 返回元素个数。
func (m Message) Size() int {
	if m.t == nil {
		return 0
	}
	return len(m.t.elems)
}

// Empty 报告消息是否不含元素。
func (m Message) Empty() bool { return m.Size() == 0 }

// At 返回第 i 个元素的只读指针（*T），调用方不得通过它修改值。
func (m Message) At(i int) any {
	if i < 0 || i >= m.Size() {
		return nil
	}
	return m.t.elems[i].ptr
}

// TypeAt 返回第 i 个元素的描述符，越界时返回 nil。
func (m Message) TypeAt(i int) uniform.TypeInfo {
	if i < 0 || i >= m.Size() {
		return nil
	}
	return m.t.elems[i].ti
}

// Types 返回全部元素的描述符。
func (m Message) Types() []uniform.TypeInfo {
	out := make([]uniform.TypeInfo, m.Size())
	for i := range out {
		out[i] = m.t.elems[i].ti
	}
	return out
}

// Match 报告元素描述符序列是否恰好等于 types（按指针身份比较）。
func (m Message) Match(types ...uniform.TypeInfo) bool {
	if m.Size() != len(types) {
		return false
	}
	for i, ti := range types {
		if m.t.elems[i].ti != ti {
			return false
		}
	}
	return true
}

// detach 在需要时复制出私有副本，并归还对旧存储的引用。
func (m *Message) detach() {
	if !m.Shared() {
		return
	}
	elems := make([]element, len(m.t.elems))
	for i, e := range m.t.elems {
		elems[i] = element{ti: e.ti, ptr: e.ti.Clone(e.ptr)}
	}
	m.disown()
	*m = wrap(newTuple(elems))
}

// MutableAt 返回第 i 个元素的可写指针，必要时先脱离共享存储。
func (m *Message) MutableAt(i int) any {
	if i < 0 || i >= m.Size() {
		return nil
	}
	m.detach()
	return m.t.elems[i].ptr
}

func (m Message) check(i int, ti uniform.TypeInfo) error {
	if i < 0 || i >= m.Size() {
		return ErrIndexOutOfRange.GenWithStackByArgs(i, m.Size())
	}
	if actual := m.t.elems[i].ti; actual != ti {
		return ErrTypeMismatch.GenWithStackByArgs(i, ti.Name(), actual.Name())
	}
	return nil
}

// Get 以类型 T 读取第 i 个元素的值。
func Get[T any](m Message, i int) (T, error) {
	var zero T
	ti, err := uniform.Lookup[T]()
	if err != nil {
		return zero, err
	}
	if err := m.check(i, ti); err != nil {
		return zero, err
	}
	return *m.t.elems[i].ptr.(*T), nil
}

// MustGet 同 Get，失败时 panic，用于已经匹配过类型的处理函数内部。
func MustGet[T any](m Message, i int) T {
	v, err := Get[T](m, i)
	if err != nil {
		panic(err)
	}
	return v
}

// Mutable 以类型 T 返回第 i 个元素的可写指针，必要时先脱离共享存储。
func Mutable[T any](m *Message, i int) (*T, error) {
	ti, err := uniform.Lookup[T]()
	if err != nil {
		return nil, err
	}
	if err := m.check(i, ti); err != nil {
		return nil, err
	}
	return m.MutableAt(i).(*T), nil
}

// Equal 先比较长度，再逐个槽位比较描述符身份与值。
func (m Message) Equal(o Message) bool {
	if m.Size() != o.Size() {
		return false
	}
	if m.Size() == 0 {
		return true
	}
	for i, e := range m.t.elems {
		oe := o.t.elems[i]
		if e.ti != oe.ti || !e.ti.Equal(e.ptr, oe.ptr) {
			return false
		}
	}
	return true
}

// String 以文本格式输出消息。
func (m Message) String() string {
	s, err := textcodec.ToString(descriptor, &m)
	if err != nil {
		var sb strings.Builder
		sb.WriteString("@<> <")
		sb.WriteString(err.Error())
		sb.WriteString(">")
		return sb.String()
	}
	return s
}
