package uniform

import (
	"reflect"

	"github.com/pingcap/errors"
)

// TypeInfo 是一个具体类型的反射/比较/序列化契约，每个已注册类型只有一个实例。
//
// 所有以 any 传递的值都是指向该类型的指针（*T）。
// 描述符之间只按指针身份比较，两个描述符相等当且仅当它们是同一个对象。
type TypeInfo interface {
	// Name 返回跨进程稳定的规范类型名。
	Name() string
	// Type 返回对应的 Go 类型，equals(native) 即 ti.Type() == t。
	Type() reflect.Type
	// Equal 比较两个 *T 指向的值。
	Equal(a, b any) bool
	// Serialize 把 *T 写成一个以 Name() 命名的对象。
	Serialize(ptr any, sink Serializer) error
	// Deserialize 从 source 读取一个对象到 *T。
	Deserialize(ptr any, source Deserializer) error
	// New 返回新分配的零值 *T。
	New() any
	// Clone 返回 *T 的深拷贝，二者不共享可变存储。
	Clone(ptr any) any
}

// Impl 是手写描述符需要提供的最小实现，外层的对象框定由描述符负责。
type Impl[T any] interface {
	Serialize(v *T, sink Serializer) error
	Deserialize(v *T, source Deserializer) error
	Equal(a, b *T) bool
}

// ImplCloner 由需要自定义拷贝语义的 Impl 额外实现（例如引用计数的句柄）。
type ImplCloner[T any] interface {
	Clone(dst, src *T)
}

// typeInfo 是 TypeInfo 唯一的实现，按具体类型 T 实例化。
type typeInfo[T any] struct {
	name string
	typ  reflect.Type
	impl Impl[T]
}

// Custom 用给定名字和实现构造描述符。递归类型（如树）通过它脱离默认策略的无限递归。
func Custom[T any](name string, impl Impl[T]) TypeInfo {
	return &typeInfo[T]{name: name, typ: reflect.TypeOf((*T)(nil)).Elem(), impl: impl}
}

func (ti *typeInfo[T]) Name() string       { return ti.name }
func (ti *typeInfo[T]) Type() reflect.Type { return ti.typ }
func (ti *typeInfo[T]) New() any           { return new(T) }

func (ti *typeInfo[T]) String() string { return ti.name }

func (ti *typeInfo[T]) cast(v any) (*T, error) {
	switch x := v.(type) {
	case *T:
		if x == nil {
			return nil, ErrUnsupportedType.GenWithStackByArgs("nil *" + ti.name)
		}
		return x, nil
	case T:
		return &x, nil
	}
	return nil, ErrTypeNameMismatch.GenWithStackByArgs(ti.name, CanonicalName(reflect.TypeOf(v)))
}

func (ti *typeInfo[T]) Serialize(ptr any, sink Serializer) error {
	v, err := ti.cast(ptr)
	if err != nil {
		return err
	}
	return WithObject(sink, ti, func() error { return ti.impl.Serialize(v, sink) })
}

func (ti *typeInfo[T]) Deserialize(ptr any, source Deserializer) error {
	v, ok := ptr.(*T)
	if !ok || v == nil {
		return errors.Trace(ErrUnsupportedType.GenWithStackByArgs(reflect.TypeOf(ptr)))
	}
	return ReadObject(source, ti, func() error { return ti.impl.Deserialize(v, source) })
}

func (ti *typeInfo[T]) Equal(a, b any) bool {
	x, err := ti.cast(a)
	if err != nil {
		return false
	}
	y, err := ti.cast(b)
	if err != nil {
		return false
	}
	return ti.impl.Equal(x, y)
}

func (ti *typeInfo[T]) Clone(ptr any) any {
	src, err := ti.cast(ptr)
	if err != nil {
		return nil
	}
	dst := new(T)
	if c, ok := ti.impl.(ImplCloner[T]); ok {
		c.Clone(dst, src)
		return dst
	}
	deepCopy(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
	return dst
}

// cloneValue 让默认策略在深拷贝嵌套值时尊重自定义拷贝语义。
func (ti *typeInfo[T]) cloneValue(dst, src reflect.Value) bool {
	c, ok := ti.impl.(ImplCloner[T])
	if !ok {
		return false
	}
	c.Clone(dst.Addr().Interface().(*T), src.Addr().Interface().(*T))
	return true
}

// equalityCapable 报告该描述符的 Equal 是否给出结构相等（组合类型可能恒为 false）。
func (ti *typeInfo[T]) equalityCapable(seen map[reflect.Type]bool) bool {
	if e, ok := ti.impl.(interface {
		structural(map[reflect.Type]bool) bool
	}); ok {
		return e.structural(seen)
	}
	return true
}

type valueCloner interface {
	cloneValue(dst, src reflect.Value) bool
}

type structuralEq interface {
	equalityCapable(seen map[reflect.Type]bool) bool
}
