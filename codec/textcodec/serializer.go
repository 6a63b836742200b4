// Package textcodec 实现人类可读的文本线上格式。
//
// 对象写作 `name ( member, member )`，没有成员的对象只写类型名；
// 序列写作 `{ a, b }`；字符串加双引号并转义 `"` 与 `\`；atom 写作 'literal'。
// 文本格式不保证字节级稳定，但对每个已注册类型保证往返一致。
package textcodec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pingcap/errors"

	"uniactor/uniform"
)

// Serializer 把对象写成文本。
type Serializer struct {
	w   io.Writer
	err error
	// afterValue 上一个写出的是一个完整的值，下一个值前需要 ", "
	afterValue bool
	// objJustOpened 刚写出类型名，第一个成员前需要 " ( "
	objJustOpened bool
	depth         int
}

var _ uniform.Serializer = (*Serializer)(nil)

// NewSerializer 创建一个写到 w 的文本序列化器。
func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{w: w}
}

func (s *Serializer) write(str string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, str)
}

// clear 在下一个值之前补上分隔符。
func (s *Serializer) clear() {
	if s.afterValue {
		s.write(", ")
		s.afterValue = false
	} else if s.objJustOpened {
		s.write(" ( ")
		s.objJustOpened = false
	}
}

func (s *Serializer) BeginObject(ti uniform.TypeInfo) error {
	s.clear()
	s.write(ti.Name())
	s.objJustOpened = true
	s.depth++
	return errors.Trace(s.err)
}

func (s *Serializer) EndObject() error {
	if s.depth == 0 {
		return uniform.ErrMalformedInput.GenWithStackByArgs("end_object without begin_object")
	}
	s.depth--
	if s.objJustOpened {
		s.objJustOpened = false
	} else if s.afterValue {
		s.write(" )")
	} else {
		s.write(")")
	}
	s.afterValue = true
	return errors.Trace(s.err)
}

func (s *Serializer) BeginSequence(int) error {
	s.clear()
	s.write("{ ")
	return errors.Trace(s.err)
}

func (s *Serializer) EndSequence() error {
	if s.afterValue {
		s.write(" }")
	} else {
		s.write("}")
	}
	s.afterValue = true
	return errors.Trace(s.err)
}

func (s *Serializer) WriteValue(v uniform.Primitive) error {
	s.clear()
	s.write(formatPrimitive(v))
	s.afterValue = true
	return errors.Trace(s.err)
}

func (s *Serializer) WriteTuple(vs []uniform.Primitive) error {
	s.clear()
	s.write("{ ")
	for i, v := range vs {
		if i > 0 {
			s.write(", ")
		}
		s.write(formatPrimitive(v))
	}
	s.write(" }")
	s.afterValue = true
	return errors.Trace(s.err)
}

func formatPrimitive(v uniform.Primitive) string {
	switch v.Tag() {
	case uniform.TagInt8, uniform.TagInt16, uniform.TagInt32, uniform.TagInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case uniform.TagUint8, uniform.TagUint16, uniform.TagUint32, uniform.TagUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case uniform.TagFloat:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 32)
	case uniform.TagDouble, uniform.TagLongDouble:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case uniform.TagU8String:
		return quote(v.Str(), '"')
	case uniform.TagU16String:
		return quoteU16(v.U16())
	case uniform.TagU32String:
		return quoteU32(v.U32())
	case uniform.TagAtom:
		return quote(uniform.Atom(v.Uint64()).String(), '\'')
	}
	return "null"
}

func quote(str string, q byte) string {
	var sb strings.Builder
	sb.Grow(len(str) + 2)
	sb.WriteByte(q)
	for i := 0; i < len(str); i++ {
		c := str[i]
		if c == q || c == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte(q)
	return sb.String()
}

func writeQuotedRune(sb *strings.Builder, r rune) {
	if r == '"' || r == '\\' {
		sb.WriteByte('\\')
	}
	sb.WriteRune(r)
}

// quoteU16 写出 UTF-16 字符串。不成对的代理项写成 \uXXXX，读回时得到原样的码元。
func quoteU16(u uniform.U16String) string {
	var sb strings.Builder
	sb.Grow(len(u) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(u); i++ {
		c := rune(u[i])
		if !utf16.IsSurrogate(c) {
			writeQuotedRune(&sb, c)
			continue
		}
		if i+1 < len(u) {
			if r := utf16.DecodeRune(c, rune(u[i+1])); r != utf8.RuneError {
				writeQuotedRune(&sb, r)
				i++
				continue
			}
		}
		fmt.Fprintf(&sb, "\\u%04X", c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// quoteU32 写出 UTF-32 字符串。不是合法 Unicode 标量值的码元写成 \UXXXXXXXX。
func quoteU32(u uniform.U32String) string {
	var sb strings.Builder
	sb.Grow(len(u) + 2)
	sb.WriteByte('"')
	for _, r := range u {
		if utf8.ValidRune(r) {
			writeQuotedRune(&sb, r)
		} else {
			fmt.Fprintf(&sb, "\\U%08X", uint32(r))
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// ToString 把 ptr（*T 或 T）按描述符 ti 写成文本。
func ToString(ti uniform.TypeInfo, ptr any) (string, error) {
	var sb strings.Builder
	if err := ti.Serialize(ptr, NewSerializer(&sb)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ToStringValue 通过注册表找到 v 的描述符后写成文本。
func ToStringValue(v any) (string, error) {
	o, err := uniform.ObjectOf(v)
	if err != nil {
		return "", err
	}
	return ToString(o.Type, o.Value)
}
