package uniform

import (
	"reflect"

	"github.com/pingcap/errors"
)

// Serializer 是序列化后端需要实现的写入端。
//
// 调用顺序是成对的：BeginObject/EndObject 包住一个对象，
// BeginSequence/EndSequence 包住 n 个同构元素。每个 Begin 都必须有对应的 End，
// 出错路径也不例外，优先使用 WithObject / WithSequence。
type Serializer interface {
	BeginObject(ti TypeInfo) error
	EndObject() error
	BeginSequence(n int) error
	EndSequence() error
	WriteValue(v Primitive) error
	// WriteTuple 一次写出定长的原始值数组，例如一对原始值组成的 pair。
	WriteTuple(vs []Primitive) error
}

// Deserializer 是反序列化后端需要实现的读取端。
//
// SeekObject 读出并消费下一个对象的类型名，PeekObject 只读不消费。
// BeginObject(ti) 消费类型名，并在它不等于 ti.Name() 时返回 ErrTypeNameMismatch。
type Deserializer interface {
	SeekObject() (string, error)
	PeekObject() (string, error)
	BeginObject(ti TypeInfo) error
	EndObject() error
	BeginSequence() (int, error)
	EndSequence() error
	ReadValue(tag Tag) (Primitive, error)
	ReadTuple(tags []Tag) ([]Primitive, error)
}

// WithObject 写出一个以 ti 命名的对象，保证在任何路径上都调用 EndObject。
func WithObject(sink Serializer, ti TypeInfo, fn func() error) (err error) {
	if err = sink.BeginObject(ti); err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if e := sink.EndObject(); err == nil && e != nil {
			err = errors.Trace(e)
		}
	}()
	return fn()
}

// WithSequence 写出 n 个元素的序列，保证在任何路径上都调用 EndSequence。
func WithSequence(sink Serializer, n int, fn func() error) (err error) {
	if err = sink.BeginSequence(n); err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if e := sink.EndSequence(); err == nil && e != nil {
			err = errors.Trace(e)
		}
	}()
	return fn()
}

// ReadObject 读取一个以 ti 命名的对象，保证在任何路径上都调用 EndObject。
func ReadObject(source Deserializer, ti TypeInfo, fn func() error) (err error) {
	if err = source.BeginObject(ti); err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if e := source.EndObject(); err == nil && e != nil {
			err = errors.Trace(e)
		}
	}()
	return fn()
}

// maxPrealloc 限制按线上声明的长度预先分配的元素个数，超出部分按需增长。
const maxPrealloc = 1024

// PreallocHint 返回按声明长度 n 预分配时使用的容量。声明的长度来自输入，不可信。
func PreallocHint(n int) int { return min(max(n, 0), maxPrealloc) }

// ReadSequence 读取一个序列，fn 收到元素个数。
func ReadSequence(source Deserializer, fn func(n int) error) (err error) {
	n, err := source.BeginSequence()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if e := source.EndSequence(); err == nil && e != nil {
			err = errors.Trace(e)
		}
	}()
	return fn(n)
}

// Object 是一个自描述的值：描述符加指向值的指针（*T）。
type Object struct {
	Type  TypeInfo
	Value any
}

// Empty 报告 Object 是否未携带值。
func (o Object) Empty() bool { return o.Type == nil || o.Value == nil }

// Equal 按描述符比较两个 Object。
func (o Object) Equal(other Object) bool {
	if o.Type != other.Type {
		return false
	}
	if o.Empty() {
		return other.Empty()
	}
	return o.Type.Equal(o.Value, other.Value)
}

// ObjectOf 把一个按值传入的 v 包装成 Object，v 的类型必须已注册。
func ObjectOf(v any) (Object, error) {
	if v == nil {
		return Object{}, ErrUnsupportedType.GenWithStackByArgs("nil")
	}
	rv := reflect.ValueOf(v)
	ti, err := ByType(rv.Type())
	if err != nil {
		return Object{}, err
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return Object{Type: ti, Value: ptr.Interface()}, nil
}

// WriteObject 通过 o 的描述符序列化其值。
func WriteObject(sink Serializer, o Object) error {
	if o.Empty() {
		return ErrUnsupportedType.GenWithStackByArgs("empty object")
	}
	return o.Type.Serialize(o.Value, sink)
}

// ReadAny 先窥视类型名，再经注册表找到描述符完成反序列化。
func ReadAny(source Deserializer) (Object, error) {
	name, err := source.PeekObject()
	if err != nil {
		return Object{}, errors.Trace(err)
	}
	ti, err := ByName(name)
	if err != nil {
		return Object{}, err
	}
	ptr := ti.New()
	if err := ti.Deserialize(ptr, source); err != nil {
		return Object{}, err
	}
	return Object{Type: ti, Value: ptr}, nil
}
