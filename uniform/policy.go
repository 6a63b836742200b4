package uniform

import (
	"math"
	"reflect"
	"unicode/utf16"

	"github.com/pingcap/errors"
)

var (
	atomType       = reflect.TypeOf((*Atom)(nil)).Elem()
	longDoubleType = reflect.TypeOf((*LongDouble)(nil)).Elem()
	u16Type        = reflect.TypeOf((*U16String)(nil)).Elem()
	u32Type        = reflect.TypeOf((*U32String)(nil)).Elem()
)

// tagOfType 返回默认策略下 t 直接对应的原始标签。
// 具名整数类型（枚举）被收窄为其底层整数标签；字符串类先于数值判断。
func tagOfType(t reflect.Type) (Tag, bool) {
	switch t {
	case atomType:
		return TagAtom, true
	case longDoubleType:
		return TagLongDouble, true
	case u16Type:
		return TagU16String, true
	case u32Type:
		return TagU32String, true
	}
	switch t.Kind() {
	case reflect.String:
		return TagU8String, true
	case reflect.Int8:
		return TagInt8, true
	case reflect.Int16:
		return TagInt16, true
	case reflect.Int32:
		return TagInt32, true
	case reflect.Int64, reflect.Int:
		return TagInt64, true
	case reflect.Uint8:
		return TagUint8, true
	case reflect.Uint16:
		return TagUint16, true
	case reflect.Uint32:
		return TagUint32, true
	case reflect.Uint64, reflect.Uint:
		return TagUint64, true
	case reflect.Float32:
		return TagFloat, true
	case reflect.Float64:
		return TagDouble, true
	}
	return TagNull, false
}

func primitiveFromValue(tag Tag, v reflect.Value) Primitive {
	switch tag {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return IntPrimitive(tag, v.Int())
	case TagUint8, TagUint16, TagUint32, TagUint64, TagAtom:
		return UintPrimitive(tag, v.Uint())
	case TagFloat, TagDouble, TagLongDouble:
		return FloatPrimitive(tag, v.Float())
	case TagU8String:
		return PrimitiveOf(v.String())
	case TagU16String:
		return PrimitiveOf(U16String(v.Convert(u16Type).Interface().(U16String)))
	case TagU32String:
		return PrimitiveOf(U32String(v.Convert(u32Type).Interface().(U32String)))
	}
	return Primitive{}
}

func setFromPrimitive(v reflect.Value, p Primitive) {
	switch p.tag {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		v.SetInt(p.Int64())
	case TagUint8, TagUint16, TagUint32, TagUint64, TagAtom:
		v.SetUint(p.Uint64())
	case TagFloat, TagDouble, TagLongDouble:
		v.SetFloat(p.Float64())
	case TagU8String:
		v.SetString(p.Str())
	case TagU16String:
		v.Set(reflect.ValueOf(p.U16()).Convert(v.Type()))
	case TagU32String:
		v.Set(reflect.ValueOf(p.U32()).Convert(v.Type()))
	}
}

// serializeValue 是默认策略：原始值直接写出，切片/数组写成序列，
// map 写成键值对序列，其余类型递归到其已注册的描述符。
func serializeValue(v reflect.Value, sink Serializer) error {
	t := v.Type()
	if tag, ok := tagOfType(t); ok {
		return sink.WriteValue(primitiveFromValue(tag, v))
	}
	if ti, ok := lookupType(t); ok && t.Kind() == reflect.Struct {
		return ti.Serialize(addrOf(v).Interface(), sink)
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		return WithSequence(sink, n, func() error {
			for i := 0; i < n; i++ {
				if err := serializeValue(v.Index(i), sink); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Map:
		keys := sortedKeys(v)
		return WithSequence(sink, len(keys), func() error {
			for _, k := range keys {
				if err := serializePair(k, v.MapIndex(k), sink); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Struct:
		if pc, ok := addrOf(v).Interface().(pairCodec); ok {
			return pc.serializePair(sink)
		}
	}
	ti, err := ByType(t)
	if err != nil {
		return err
	}
	return ti.Serialize(addrOf(v).Interface(), sink)
}

// serializePair 写出一个键值对：两侧都是原始值时走 WriteTuple，否则写成两元素序列。
func serializePair(first, second reflect.Value, sink Serializer) error {
	t1, ok1 := tagOfType(first.Type())
	t2, ok2 := tagOfType(second.Type())
	if ok1 && ok2 {
		return sink.WriteTuple([]Primitive{primitiveFromValue(t1, first), primitiveFromValue(t2, second)})
	}
	return WithSequence(sink, 2, func() error {
		if err := serializeValue(first, sink); err != nil {
			return err
		}
		return serializeValue(second, sink)
	})
}

// deserializeValue 是 serializeValue 的逆过程，v 必须可寻址。
func deserializeValue(v reflect.Value, source Deserializer) error {
	t := v.Type()
	if tag, ok := tagOfType(t); ok {
		p, err := source.ReadValue(tag)
		if err != nil {
			return errors.Trace(err)
		}
		setFromPrimitive(v, p)
		return nil
	}
	if ti, ok := lookupType(t); ok && t.Kind() == reflect.Struct {
		return ti.Deserialize(v.Addr().Interface(), source)
	}
	switch t.Kind() {
	case reflect.Slice:
		return ReadSequence(source, func(n int) error {
			s := reflect.MakeSlice(t, 0, PreallocHint(n))
			zero := reflect.Zero(t.Elem())
			for i := 0; i < n; i++ {
				s = reflect.Append(s, zero)
				if err := deserializeValue(s.Index(i), source); err != nil {
					return err
				}
			}
			v.Set(s)
			return nil
		})
	case reflect.Array:
		return ReadSequence(source, func(n int) error {
			if n != t.Len() {
				return ErrMalformedInput.GenWithStackByArgs("array length mismatch")
			}
			for i := 0; i < n; i++ {
				if err := deserializeValue(v.Index(i), source); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Map:
		return ReadSequence(source, func(n int) error {
			m := reflect.MakeMapWithSize(t, PreallocHint(n))
			for i := 0; i < n; i++ {
				k := reflect.New(t.Key()).Elem()
				e := reflect.New(t.Elem()).Elem()
				if err := deserializePair(k, e, source); err != nil {
					return err
				}
				m.SetMapIndex(k, e)
			}
			v.Set(m)
			return nil
		})
	case reflect.Struct:
		if pc, ok := v.Addr().Interface().(pairCodec); ok {
			return pc.deserializePair(source)
		}
	}
	ti, err := ByType(t)
	if err != nil {
		return err
	}
	return ti.Deserialize(v.Addr().Interface(), source)
}

func deserializePair(first, second reflect.Value, source Deserializer) error {
	t1, ok1 := tagOfType(first.Type())
	t2, ok2 := tagOfType(second.Type())
	if ok1 && ok2 {
		ps, err := source.ReadTuple([]Tag{t1, t2})
		if err != nil {
			return errors.Trace(err)
		}
		setFromPrimitive(first, ps[0])
		setFromPrimitive(second, ps[1])
		return nil
	}
	return ReadSequence(source, func(n int) error {
		if n != 2 {
			return ErrMalformedInput.GenWithStackByArgs("pair must have two elements")
		}
		if err := deserializeValue(first, source); err != nil {
			return err
		}
		return deserializeValue(second, source)
	})
}

// valueEqual 是默认策略下的结构相等。
func valueEqual(a, b reflect.Value) bool {
	t := a.Type()
	if tag, ok := tagOfType(t); ok {
		return primitiveFromValue(tag, a).Equal(primitiveFromValue(tag, b))
	}
	if ti, ok := lookupType(t); ok && t.Kind() == reflect.Struct {
		return ti.Equal(addrOf(a).Interface(), addrOf(b).Interface())
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !valueEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			o := b.MapIndex(iter.Key())
			if !o.IsValid() || !valueEqual(iter.Value(), o) {
				return false
			}
		}
		return true
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() && !valueEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	}
	if ti, ok := lookupType(t); ok {
		return ti.Equal(addrOf(a).Interface(), addrOf(b).Interface())
	}
	return false
}

// equalityCapableType 报告默认策略能否对 t 给出结构相等。
// seen 用来截断自引用类型的递归，环上的类型视为可比较。
func equalityCapableType(t reflect.Type, seen map[reflect.Type]bool) bool {
	if _, ok := tagOfType(t); ok {
		return true
	}
	if seen[t] {
		return true
	}
	seen[t] = true
	if ti, ok := lookupType(t); ok {
		if s, ok := ti.(structuralEq); ok {
			return s.equalityCapable(seen)
		}
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return equalityCapableType(t.Elem(), seen)
	case reflect.Map:
		return equalityCapableType(t.Key(), seen) && equalityCapableType(t.Elem(), seen)
	case reflect.Bool:
		return true
	case reflect.Struct:
		return fieldsEqualityCapable(t, seen)
	}
	return false
}

func fieldsEqualityCapable(t reflect.Type, seen map[reflect.Type]bool) bool {
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() && !equalityCapableType(f.Type, seen) {
			return false
		}
	}
	return true
}

// deepCopy 把 src 深拷贝到 dst，切片与 map 不再共享底层存储。
func deepCopy(dst, src reflect.Value) {
	t := src.Type()
	if ti, ok := lookupType(t); ok {
		if c, ok := ti.(valueCloner); ok {
			if c.cloneValue(dst, addrOf(src).Elem()) {
				return
			}
		}
	}
	switch t.Kind() {
	case reflect.Slice:
		if src.IsNil() {
			dst.Set(reflect.Zero(t))
			return
		}
		s := reflect.MakeSlice(t, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			deepCopy(s.Index(i), src.Index(i))
		}
		dst.Set(s)
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			deepCopy(dst.Index(i), src.Index(i))
		}
	case reflect.Map:
		if src.IsNil() {
			dst.Set(reflect.Zero(t))
			return
		}
		m := reflect.MakeMapWithSize(t, src.Len())
		iter := src.MapRange()
		for iter.Next() {
			k := reflect.New(t.Key()).Elem()
			deepCopy(k, iter.Key())
			e := reflect.New(t.Elem()).Elem()
			deepCopy(e, iter.Value())
			m.SetMapIndex(k, e)
		}
		dst.Set(m)
	case reflect.Struct:
		dst.Set(src)
		for i := 0; i < t.NumField(); i++ {
			if f := dst.Field(i); f.CanSet() {
				deepCopy(f, src.Field(i))
			}
		}
	default:
		dst.Set(src)
	}
}

// addrOf 返回指向 v 的指针；v 不可寻址（如 map 的值）时先复制一份。
func addrOf(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// sortedKeys 让 map 的输出顺序确定，保证线上编码可复现。
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	lessFn := func(a, b reflect.Value) bool { return false }
	if tag, ok := tagOfType(m.Type().Key()); ok {
		lessFn = func(a, b reflect.Value) bool {
			return primitiveLess(primitiveFromValue(tag, a), primitiveFromValue(tag, b))
		}
	}
	// 插入排序即可，map 通常很小
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && lessFn(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func primitiveLess(a, b Primitive) bool {
	switch a.tag {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return a.Int64() < b.Int64()
	case TagUint8, TagUint16, TagUint32, TagUint64, TagAtom:
		return a.Uint64() < b.Uint64()
	case TagFloat, TagDouble, TagLongDouble:
		x, y := a.Float64(), b.Float64()
		return x < y || (math.IsNaN(x) && !math.IsNaN(y))
	case TagU8String:
		return a.str < b.str
	case TagU16String:
		return string(utf16.Decode(a.u16)) < string(utf16.Decode(b.u16))
	case TagU32String:
		return string(a.u32) < string(b.u32)
	}
	return false
}

// plainInfo 用默认策略描述任意 Go 类型 T（切片、map、具名原始类型等）。
// 结构体只处理导出字段，按声明顺序。
type plainInfo[T any] struct{}

func (plainInfo[T]) Serialize(v *T, sink Serializer) error {
	rv := reflect.ValueOf(v).Elem()
	if rv.Kind() != reflect.Struct {
		return serializeValue(rv, sink)
	}
	if pc, ok := any(v).(pairCodec); ok {
		return pc.serializePair(sink)
	}
	for i := 0; i < rv.NumField(); i++ {
		if !rv.Type().Field(i).IsExported() {
			continue
		}
		if err := serializeValue(rv.Field(i), sink); err != nil {
			return err
		}
	}
	return nil
}

func (plainInfo[T]) Deserialize(v *T, source Deserializer) error {
	rv := reflect.ValueOf(v).Elem()
	if rv.Kind() != reflect.Struct {
		return deserializeValue(rv, source)
	}
	if pc, ok := any(v).(pairCodec); ok {
		return pc.deserializePair(source)
	}
	for i := 0; i < rv.NumField(); i++ {
		if !rv.Type().Field(i).IsExported() {
			continue
		}
		if err := deserializeValue(rv.Field(i), source); err != nil {
			return err
		}
	}
	return nil
}

func (plainInfo[T]) Equal(a, b *T) bool {
	x, y := reflect.ValueOf(a).Elem(), reflect.ValueOf(b).Elem()
	if x.Kind() != reflect.Struct {
		return valueEqual(x, y)
	}
	for i := 0; i < x.NumField(); i++ {
		if x.Type().Field(i).IsExported() && !valueEqual(x.Field(i), y.Field(i)) {
			return false
		}
	}
	return true
}

func (plainInfo[T]) structural(seen map[reflect.Type]bool) bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Struct {
		return fieldsEqualityCapable(t, seen)
	}
	return equalityCapableType(t, seen)
}

// Default 用默认策略为 T 构造描述符，名字取规范名。
func Default[T any]() TypeInfo {
	return DefaultNamed[T](CanonicalName(reflect.TypeOf((*T)(nil)).Elem()))
}

// DefaultNamed 同 Default，但使用显式给出的短名。
func DefaultNamed[T any](name string) TypeInfo {
	return &typeInfo[T]{name: name, typ: reflect.TypeOf((*T)(nil)).Elem(), impl: plainInfo[T]{}}
}
