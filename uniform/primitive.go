package uniform

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Tag 标识 Primitive 当前持有的线上原始类型。
type Tag uint8

const (
	// TagNull 空值，只在零值 Primitive 上出现。
	TagNull Tag = iota
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUint8
	TagUint16
	TagUint32
	TagUint64
	TagFloat
	TagDouble
	TagLongDouble
	TagU8String
	TagU16String
	TagU32String
	TagAtom
)

var tagNames = [...]string{
	TagNull:       "null",
	TagInt8:       "int8",
	TagInt16:      "int16",
	TagInt32:      "int32",
	TagInt64:      "int64",
	TagUint8:      "uint8",
	TagUint16:     "uint16",
	TagUint32:     "uint32",
	TagUint64:     "uint64",
	TagFloat:      "float",
	TagDouble:     "double",
	TagLongDouble: "long_double",
	TagU8String:   "u8string",
	TagU16String:  "u16string",
	TagU32String:  "u32string",
	TagAtom:       "atom",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

// IsString 报告该标签是否属于三种字符串编码之一。
func (t Tag) IsString() bool {
	return t == TagU8String || t == TagU16String || t == TagU32String
}

// LongDouble 是扩展精度浮点数在线上的独立类别。
// Go 没有扩展精度浮点，值以 float64 保存，但标签与 double 不同。
type LongDouble float64

// U16String 是 UTF-16 编码的字符串。
type U16String []uint16

// U32String 是 UTF-32 编码的字符串。
type U32String []rune

// PrimitiveType 列出可以直接放进 Primitive 的 Go 类型。
// int 与 uint 映射到 64 位标签。
type PrimitiveType interface {
	int8 | int16 | int32 | int64 | int |
		uint8 | uint16 | uint32 | uint64 | uint |
		float32 | float64 | LongDouble |
		string | U16String | U32String | Atom
}

// Primitive 是线上原始值的带标签联合体，任何时刻只有一个成员有效。
//
// 数值成员共用 bits 字段，就地赋值；字符串成员在换标签时被清零后重新构造。
// Primitive 是值类型，复制即拷贝（UTF-16/32 切片在 Assign/Clone 时深拷贝）。
type Primitive struct {
	tag  Tag
	bits uint64
	str  string
	u16  U16String
	u32  U32String
}

// NewPrimitive 返回指定标签的零值。
func NewPrimitive(tag Tag) Primitive { return Primitive{tag: tag} }

// PrimitiveOf 从原生值构造 Primitive，标签在编译期由类型决定。
func PrimitiveOf[T PrimitiveType](v T) Primitive {
	var p Primitive
	Assign(&p, v)
	return p
}

// TagOf 返回类型参数 T 对应的标签。
func TagOf[T PrimitiveType]() Tag {
	var zero T
	switch any(zero).(type) {
	case int8:
		return TagInt8
	case int16:
		return TagInt16
	case int32:
		return TagInt32
	case int64, int:
		return TagInt64
	case uint8:
		return TagUint8
	case uint16:
		return TagUint16
	case uint32:
		return TagUint32
	case uint64, uint:
		return TagUint64
	case float32:
		return TagFloat
	case float64:
		return TagDouble
	case LongDouble:
		return TagLongDouble
	case string:
		return TagU8String
	case U16String:
		return TagU16String
	case U32String:
		return TagU32String
	case Atom:
		return TagAtom
	}
	return TagNull
}

// Tag 返回当前有效成员的标签。
func (p Primitive) Tag() Tag { return p.tag }

// reset 丢弃当前成员，准备切换标签。
func (p *Primitive) reset(tag Tag) {
	*p = Primitive{tag: tag}
}

// Assign 给 p 赋值：标签相同则就地更新，否则先清空再构造。
func Assign[T PrimitiveType](p *Primitive, v T) {
	tag := TagOf[T]()
	if p.tag != tag {
		p.reset(tag)
	}
	switch x := any(v).(type) {
	case int8:
		p.bits = uint64(int64(x))
	case int16:
		p.bits = uint64(int64(x))
	case int32:
		p.bits = uint64(int64(x))
	case int64:
		p.bits = uint64(x)
	case int:
		p.bits = uint64(int64(x))
	case uint8:
		p.bits = uint64(x)
	case uint16:
		p.bits = uint64(x)
	case uint32:
		p.bits = uint64(x)
	case uint64:
		p.bits = x
	case uint:
		p.bits = uint64(x)
	case float32:
		p.bits = uint64(math.Float32bits(x))
	case float64:
		p.bits = math.Float64bits(x)
	case LongDouble:
		p.bits = math.Float64bits(float64(x))
	case string:
		p.str = x
	case U16String:
		p.u16 = slices.Clone(x)
	case U32String:
		p.u32 = slices.Clone(x)
	case Atom:
		p.bits = uint64(x)
	}
}

// Get 取出类型为 T 的值；T 与当前标签不符时返回 ErrTagMismatch，绝不隐式转换。
func Get[T PrimitiveType](p Primitive) (T, error) {
	var zero T
	if want := TagOf[T](); want != p.tag {
		return zero, ErrTagMismatch.GenWithStackByArgs(want, p.tag)
	}
	var out any
	switch any(zero).(type) {
	case int8:
		out = int8(p.bits)
	case int16:
		out = int16(p.bits)
	case int32:
		out = int32(p.bits)
	case int64:
		out = int64(p.bits)
	case int:
		out = int(int64(p.bits))
	case uint8:
		out = uint8(p.bits)
	case uint16:
		out = uint16(p.bits)
	case uint32:
		out = uint32(p.bits)
	case uint64:
		out = p.bits
	case uint:
		out = uint(p.bits)
	case float32:
		out = math.Float32frombits(uint32(p.bits))
	case float64:
		out = math.Float64frombits(p.bits)
	case LongDouble:
		out = LongDouble(math.Float64frombits(p.bits))
	case string:
		out = p.str
	case U16String:
		out = p.u16
	case U32String:
		out = p.u32
	case Atom:
		out = Atom(p.bits)
	}
	return out.(T), nil
}

// MustGet 同 Get，标签不符时 panic。
func MustGet[T PrimitiveType](p Primitive) T {
	v, err := Get[T](p)
	if err != nil {
		panic(err)
	}
	return v
}

// Ref 在标签检查通过后把当前成员交给 fn 原地修改。
func Ref[T PrimitiveType](p *Primitive, fn func(*T)) error {
	v, err := Get[T](*p)
	if err != nil {
		return err
	}
	fn(&v)
	Assign(p, v)
	return nil
}

// Equal 仅在两侧标签相同时比较值，标签不同一律不等。
func (p Primitive) Equal(o Primitive) bool {
	if p.tag != o.tag {
		return false
	}
	switch p.tag {
	case TagU8String:
		return p.str == o.str
	case TagU16String:
		return slices.Equal(p.u16, o.u16)
	case TagU32String:
		return slices.Equal(p.u32, o.u32)
	case TagFloat:
		return math.Float32frombits(uint32(p.bits)) == math.Float32frombits(uint32(o.bits))
	case TagDouble, TagLongDouble:
		return math.Float64frombits(p.bits) == math.Float64frombits(o.bits)
	default:
		return p.bits == o.bits
	}
}

// Clone 返回不与 p 共享任何底层存储的副本。
func (p Primitive) Clone() Primitive {
	p.u16 = slices.Clone(p.u16)
	p.u32 = slices.Clone(p.u32)
	return p
}

// Interface 以 Go 原生类型返回当前值，TagNull 返回 nil。
func (p Primitive) Interface() any {
	switch p.tag {
	case TagInt8:
		return int8(p.bits)
	case TagInt16:
		return int16(p.bits)
	case TagInt32:
		return int32(p.bits)
	case TagInt64:
		return int64(p.bits)
	case TagUint8:
		return uint8(p.bits)
	case TagUint16:
		return uint16(p.bits)
	case TagUint32:
		return uint32(p.bits)
	case TagUint64:
		return p.bits
	case TagFloat:
		return math.Float32frombits(uint32(p.bits))
	case TagDouble:
		return math.Float64frombits(p.bits)
	case TagLongDouble:
		return LongDouble(math.Float64frombits(p.bits))
	case TagU8String:
		return p.str
	case TagU16String:
		return p.u16
	case TagU32String:
		return p.u32
	case TagAtom:
		return Atom(p.bits)
	}
	return nil
}

// Int64 返回有符号整数标签的值，供编解码器使用。
func (p Primitive) Int64() int64 { return int64(p.bits) }

// Uint64 返回无符号整数或 atom 标签的原始位。
func (p Primitive) Uint64() uint64 { return p.bits }

// Float64 返回浮点标签的值（float 会被放宽为 float64）。
func (p Primitive) Float64() float64 {
	if p.tag == TagFloat {
		return float64(math.Float32frombits(uint32(p.bits)))
	}
	return math.Float64frombits(p.bits)
}

// Str 返回 UTF-8 字符串成员。
func (p Primitive) Str() string { return p.str }

// U16 返回 UTF-16 字符串成员。
func (p Primitive) U16() U16String { return p.u16 }

// U32 返回 UTF-32 字符串成员。
func (p Primitive) U32() U32String { return p.u32 }

func (p Primitive) String() string {
	if p.tag == TagNull {
		return "null"
	}
	return fmt.Sprintf("%s(%v)", p.tag, p.Interface())
}

// primitiveFromBits 供编解码器按标签重建数值成员。
func primitiveFromBits(tag Tag, bits uint64) Primitive {
	return Primitive{tag: tag, bits: bits}
}

// IntPrimitive 以有符号整数构造指定标签的 Primitive，按标签宽度截断。
func IntPrimitive(tag Tag, v int64) Primitive {
	switch tag {
	case TagInt8:
		v = int64(int8(v))
	case TagInt16:
		v = int64(int16(v))
	case TagInt32:
		v = int64(int32(v))
	}
	return primitiveFromBits(tag, uint64(v))
}

// UintPrimitive 以无符号整数构造指定标签的 Primitive，按标签宽度截断。
func UintPrimitive(tag Tag, v uint64) Primitive {
	switch tag {
	case TagUint8:
		v = uint64(uint8(v))
	case TagUint16:
		v = uint64(uint16(v))
	case TagUint32:
		v = uint64(uint32(v))
	}
	return primitiveFromBits(tag, v)
}

// FloatPrimitive 以 float64 构造浮点标签的 Primitive。
func FloatPrimitive(tag Tag, v float64) Primitive {
	if tag == TagFloat {
		return primitiveFromBits(tag, uint64(math.Float32bits(float32(v))))
	}
	return primitiveFromBits(tag, math.Float64bits(v))
}
