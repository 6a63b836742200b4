package uniform

import (
	"reflect"

	"go.uber.org/atomic"
)

// Member 描述聚合类型 T 的一个成员：如何读写它、如何比较它。
// 通过 Field、FieldWith、Accessor、AccessorWith、Compound 构造。
type Member[T any] interface {
	serialize(obj *T, sink Serializer) error
	deserialize(obj *T, source Deserializer) error
	equal(a, b *T) bool
	capable(seen map[reflect.Type]bool) bool
}

// fieldMember 通过返回成员地址的函数访问成员，等价于成员指针。
// ti 为空时走默认策略，否则转发给 ti（forwarding 策略）。
type fieldMember[T, F any] struct {
	get func(*T) *F
	ti  TypeInfo
}

// Field 用成员指针描述一个成员，按默认策略序列化。
func Field[T, F any](get func(*T) *F) Member[T] {
	return fieldMember[T, F]{get: get}
}

// FieldWith 用成员指针描述一个成员，序列化转发给给定描述符。
func FieldWith[T, F any](get func(*T) *F, ti TypeInfo) Member[T] {
	return fieldMember[T, F]{get: get, ti: ti}
}

// Compound 把嵌套聚合 F 的成员就地描述出来，F 作为独立命名的对象写出，但不进入注册表。
func Compound[T, F any](get func(*T) *F, members ...Member[F]) Member[T] {
	return FieldWith(get, Compose[F](members...))
}

func (m fieldMember[T, F]) serialize(obj *T, sink Serializer) error {
	p := m.get(obj)
	if m.ti != nil {
		return m.ti.Serialize(p, sink)
	}
	return serializeValue(reflect.ValueOf(p).Elem(), sink)
}

func (m fieldMember[T, F]) deserialize(obj *T, source Deserializer) error {
	p := m.get(obj)
	if m.ti != nil {
		return m.ti.Deserialize(p, source)
	}
	return deserializeValue(reflect.ValueOf(p).Elem(), source)
}

func (m fieldMember[T, F]) equal(a, b *T) bool {
	pa, pb := m.get(a), m.get(b)
	if m.ti != nil {
		return m.ti.Equal(pa, pb)
	}
	return valueEqual(reflect.ValueOf(pa).Elem(), reflect.ValueOf(pb).Elem())
}

func (m fieldMember[T, F]) capable(seen map[reflect.Type]bool) bool {
	return memberCapable[F](m.ti, seen)
}

// accessorMember 通过 getter/setter 访问成员，适用于未导出或计算得到的字段。
type accessorMember[T, F any] struct {
	get func(*T) F
	set func(*T, F)
	ti  TypeInfo
}

// Accessor 用 getter/setter 描述一个成员，按默认策略序列化。
func Accessor[T, F any](get func(*T) F, set func(*T, F)) Member[T] {
	return accessorMember[T, F]{get: get, set: set}
}

// AccessorWith 同 Accessor，序列化转发给给定描述符。
func AccessorWith[T, F any](get func(*T) F, set func(*T, F), ti TypeInfo) Member[T] {
	return accessorMember[T, F]{get: get, set: set, ti: ti}
}

func (m accessorMember[T, F]) serialize(obj *T, sink Serializer) error {
	v := m.get(obj)
	if m.ti != nil {
		return m.ti.Serialize(&v, sink)
	}
	return serializeValue(reflect.ValueOf(&v).Elem(), sink)
}

func (m accessorMember[T, F]) deserialize(obj *T, source Deserializer) error {
	var v F
	var err error
	if m.ti != nil {
		err = m.ti.Deserialize(&v, source)
	} else {
		err = deserializeValue(reflect.ValueOf(&v).Elem(), source)
	}
	if err != nil {
		return err
	}
	m.set(obj, v)
	return nil
}

func (m accessorMember[T, F]) equal(a, b *T) bool {
	va, vb := m.get(a), m.get(b)
	if m.ti != nil {
		return m.ti.Equal(&va, &vb)
	}
	return valueEqual(reflect.ValueOf(&va).Elem(), reflect.ValueOf(&vb).Elem())
}

func (m accessorMember[T, F]) capable(seen map[reflect.Type]bool) bool {
	return memberCapable[F](m.ti, seen)
}

func memberCapable[F any](ti TypeInfo, seen map[reflect.Type]bool) bool {
	if ti == nil {
		return equalityCapableType(reflect.TypeOf((*F)(nil)).Elem(), seen)
	}
	if s, ok := ti.(structuralEq); ok {
		return s.equalityCapable(seen)
	}
	return true
}

const (
	capabilityUnknown int32 = iota
	capabilityYes
	capabilityNo
)

// composeInfo 按声明顺序遍历成员完成序列化与比较。
type composeInfo[T any] struct {
	members []Member[T]
	// cap 缓存成员是否全部支持结构相等，第一次 Equal 时计算
	cap atomic.Int32
}

// Compose 用成员列表为聚合类型 T 构造描述符，名字取规范名。
func Compose[T any](members ...Member[T]) TypeInfo {
	return ComposeNamed[T](CanonicalName(reflect.TypeOf((*T)(nil)).Elem()), members...)
}

// ComposeNamed 同 Compose，但使用显式给出的短名。
func ComposeNamed[T any](name string, members ...Member[T]) TypeInfo {
	return Custom[T](name, &composeInfo[T]{members: members})
}

// AnnounceCompose 构造并注册 T 的组合描述符。
func AnnounceCompose[T any](members ...Member[T]) TypeInfo {
	return AnnounceType[T](Compose[T](members...))
}

// AnnounceComposeNamed 以给定短名构造并注册 T 的组合描述符。
func AnnounceComposeNamed[T any](name string, members ...Member[T]) TypeInfo {
	return AnnounceType[T](ComposeNamed[T](name, members...))
}

func (c *composeInfo[T]) Serialize(v *T, sink Serializer) error {
	for _, m := range c.members {
		if err := m.serialize(v, sink); err != nil {
			return err
		}
	}
	return nil
}

func (c *composeInfo[T]) Deserialize(v *T, source Deserializer) error {
	for _, m := range c.members {
		if err := m.deserialize(v, source); err != nil {
			return err
		}
	}
	return nil
}

// Equal 只有在全部成员都支持结构相等时才逐个比较，否则恒为 false。
func (c *composeInfo[T]) Equal(a, b *T) bool {
	if !c.structural(make(map[reflect.Type]bool)) {
		return false
	}
	for _, m := range c.members {
		if !m.equal(a, b) {
			return false
		}
	}
	return true
}

func (c *composeInfo[T]) structural(seen map[reflect.Type]bool) bool {
	switch c.cap.Load() {
	case capabilityYes:
		return true
	case capabilityNo:
		return false
	}
	seen[reflect.TypeOf((*T)(nil)).Elem()] = true
	ok := true
	for _, m := range c.members {
		if !m.capable(seen) {
			ok = false
			break
		}
	}
	if ok {
		c.cap.Store(capabilityYes)
	} else {
		c.cap.Store(capabilityNo)
	}
	return ok
}
