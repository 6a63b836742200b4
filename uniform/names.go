package uniform

import (
	"path"
	"reflect"
	"strconv"
	"strings"
)

// builtinNames 是内建原始类型的固定短名表。int/uint 与 64 位整数同名。
var builtinNames = map[reflect.Type]string{
	reflect.TypeOf((*int8)(nil)).Elem():       "@i8",
	reflect.TypeOf((*int16)(nil)).Elem():      "@i16",
	reflect.TypeOf((*int32)(nil)).Elem():      "@i32",
	reflect.TypeOf((*int64)(nil)).Elem():      "@i64",
	reflect.TypeOf((*int)(nil)).Elem():        "@i64",
	reflect.TypeOf((*uint8)(nil)).Elem():      "@u8",
	reflect.TypeOf((*uint16)(nil)).Elem():     "@u16",
	reflect.TypeOf((*uint32)(nil)).Elem():     "@u32",
	reflect.TypeOf((*uint64)(nil)).Elem():     "@u64",
	reflect.TypeOf((*uint)(nil)).Elem():       "@u64",
	reflect.TypeOf((*float32)(nil)).Elem():    "float",
	reflect.TypeOf((*float64)(nil)).Elem():    "double",
	reflect.TypeOf((*LongDouble)(nil)).Elem(): "@ldouble",
	reflect.TypeOf((*string)(nil)).Elem():     "@str",
	reflect.TypeOf((*U16String)(nil)).Elem():  "@u16str",
	reflect.TypeOf((*U32String)(nil)).Elem():  "@u32str",
	reflect.TypeOf((*Atom)(nil)).Elem():       "@atom",
	reflect.TypeOf((*bool)(nil)).Elem():       "bool",
}

// nameReplacer 去掉文本格式里有特殊含义的字符，规范名因此可以直接出现在线上。
var nameReplacer = strings.NewReplacer(
	" ", "",
	",", ";",
	"(", "<",
	")", ">",
	"{", "<",
	"}", ">",
	"'", "",
	"\"", "",
)

// CanonicalName 返回 t 的规范名：已注册的名字优先；其次内建短名表；
// 容器由元素的规范名组合；具名类型取 "包名.类型名"。
func CanonicalName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if ti, ok := lookupType(t); ok {
		return ti.Name()
	}
	if n, ok := builtinNames[t]; ok {
		return n
	}
	if t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(pairCodecType) {
		return "@pair<" + CanonicalName(t.Field(0).Type) + ";" + CanonicalName(t.Field(1).Type) + ">"
	}
	if t.Name() == "" {
		switch t.Kind() {
		case reflect.Slice:
			return "[]" + CanonicalName(t.Elem())
		case reflect.Array:
			return "[" + strconv.Itoa(t.Len()) + "]" + CanonicalName(t.Elem())
		case reflect.Map:
			return "map[" + CanonicalName(t.Key()) + "]" + CanonicalName(t.Elem())
		case reflect.Pointer:
			return "*" + CanonicalName(t.Elem())
		}
		return nameReplacer.Replace(t.String())
	}
	name := t.Name()
	if p := t.PkgPath(); p != "" {
		name = path.Base(p) + "." + name
	}
	return nameReplacer.Replace(name)
}
