package message

import (
	"reflect"

	"uniactor/uniform"
)

// Builder 逐个收集异构值，最后生成不可变长度的 Message。
//
// 追加时按固定的转换表把环境类型换成规范的线上类型：
// int 变为 int64，uint 变为 uint64，[]rune 变为 U32String，[]uint16 变为 U16String。
// nil、指针、函数与通道一律拒绝。
type Builder struct {
	elems []element
	err   error
}

// NewBuilder 创建一个空的 Builder。
func NewBuilder() *Builder { return &Builder{} }

func convert(v any) (any, error) {
	if v == nil {
		return nil, ErrUnsupportedValue.GenWithStackByArgs("nil")
	}
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case uint:
		return uint64(x), nil
	case []rune:
		return uniform.U32String(x), nil
	case []uint16:
		return uniform.U16String(x), nil
	}
	switch k := reflect.TypeOf(v).Kind(); k {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Func, reflect.Chan:
		return nil, ErrUnsupportedValue.GenWithStackByArgs(k.String())
	}
	return v, nil
}

// Append 追加一个按值传入的元素。第一个错误会被记住，由 ToMessage 返回。
func (b *Builder) Append(v any) *Builder {
	if b.err != nil {
		return b
	}
	v, err := convert(v)
	if err != nil {
		b.err = err
		return b
	}
	ti, err := uniform.ByType(reflect.TypeOf(v))
	if err != nil {
		b.err = err
		return b
	}
	b.elems = append(b.elems, element{ti: ti, ptr: ti.Clone(v)})
	return b
}

// AppendRange 追加一段同类元素，整段共用同一个描述符。
func AppendRange[T any](b *Builder, vs []T) *Builder {
	if b.err != nil {
		return b
	}
	ti, err := uniform.Lookup[T]()
	if err != nil {
		// 需要走转换表的类型（如 int）逐个追加
		for _, v := range vs {
			b.Append(v)
		}
		return b
	}
	for i := range vs {
		b.elems = append(b.elems, element{ti: ti, ptr: ti.Clone(&vs[i])})
	}
	return b
}

// Len 返回已收集的元素个数。
func (b *Builder) Len() int { return len(b.elems) }

// Reset 清空 Builder 以便复用。
func (b *Builder) Reset() {
	b.elems = nil
	b.err = nil
}

// ToMessage 生成消息。Builder 之后会被清空。
func (b *Builder) ToMessage() (Message, error) {
	if b.err != nil {
		err := b.err
		b.Reset()
		return Message{}, err
	}
	if len(b.elems) == 0 {
		return Message{}, nil
	}
	m := wrap(newTuple(b.elems))
	b.elems = nil
	return m, nil
}

// Make 用给定的值构造消息。
func Make(vals ...any) (Message, error) {
	b := NewBuilder()
	for _, v := range vals {
		b.Append(v)
	}
	return b.ToMessage()
}

// MustMake 同 Make，出错时 panic。
func MustMake(vals ...any) Message {
	m, err := Make(vals...)
	if err != nil {
		panic(err)
	}
	return m
}

func slot[T any](v T) element {
	ti := uniform.TypeID[T]()
	return element{ti: ti, ptr: ti.Clone(&v)}
}

// Of1 用静态类型包装一个值，T 必须已注册。
func Of1[A any](a A) Message {
	return wrap(newTuple([]element{slot(a)}))
}

// Of2 用静态类型包装两个值。
func Of2[A, B any](a A, b B) Message {
	return wrap(newTuple([]element{slot(a), slot(b)}))
}

// Of3 用静态类型包装三个值。
func Of3[A, B, C any](a A, b B, c C) Message {
	return wrap(newTuple([]element{slot(a), slot(b), slot(c)}))
}
