package textcodec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pingcap/errors"

	"uniactor/uniform"
)

type frame struct {
	name  string
	paren bool
}

// Deserializer 从文本中读取对象。
type Deserializer struct {
	s      string
	pos    int
	frames []frame
}

var _ uniform.Deserializer = (*Deserializer)(nil)

// NewDeserializer 创建一个读取 s 的文本反序列化器。
func NewDeserializer(s string) *Deserializer {
	return &Deserializer{s: s}
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', '(', ')', '{', '}':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (d *Deserializer) malformed(format string, args ...any) error {
	return uniform.ErrMalformedInput.GenWithStackByArgs(fmt.Sprintf(format, args...) + " at offset " + strconv.Itoa(d.pos))
}

func (d *Deserializer) skipSpace() {
	for d.pos < len(d.s) && isSpace(d.s[d.pos]) {
		d.pos++
	}
}

func (d *Deserializer) skipSpaceAndComma() {
	for d.pos < len(d.s) && (isSpace(d.s[d.pos]) || d.s[d.pos] == ',') {
		d.pos++
	}
}

func (d *Deserializer) consume(c byte) error {
	d.skipSpace()
	if d.pos >= len(d.s) || d.s[d.pos] != c {
		return d.malformed("expected %q", c)
	}
	d.pos++
	return nil
}

func (d *Deserializer) SeekObject() (string, error) {
	d.skipSpaceAndComma()
	start := d.pos
	for d.pos < len(d.s) && !isDelim(d.s[d.pos]) {
		d.pos++
	}
	if start == d.pos {
		return "", d.malformed("expected type name")
	}
	return d.s[start:d.pos], nil
}

func (d *Deserializer) PeekObject() (string, error) {
	save := d.pos
	name, err := d.SeekObject()
	d.pos = save
	return name, err
}

func (d *Deserializer) BeginObject(ti uniform.TypeInfo) error {
	name, err := d.SeekObject()
	if err != nil {
		return err
	}
	if name != ti.Name() {
		return uniform.ErrTypeNameMismatch.GenWithStackByArgs(ti.Name(), name)
	}
	d.skipSpace()
	f := frame{name: name}
	if d.pos < len(d.s) && d.s[d.pos] == '(' {
		d.pos++
		f.paren = true
	}
	d.frames = append(d.frames, f)
	return nil
}

func (d *Deserializer) EndObject() error {
	if len(d.frames) == 0 {
		return d.malformed("end_object without begin_object")
	}
	f := d.frames[len(d.frames)-1]
	d.frames = d.frames[:len(d.frames)-1]
	if f.paren {
		if err := d.consume(')'); err != nil {
			return errors.Annotatef(err, "closing %s", f.name)
		}
	}
	if len(d.frames) == 0 {
		d.skipSpace()
		if d.pos != len(d.s) {
			return d.malformed("trailing characters after %s", f.name)
		}
	}
	return nil
}

func (d *Deserializer) BeginSequence() (int, error) {
	d.skipSpaceAndComma()
	if err := d.consume('{'); err != nil {
		return 0, err
	}
	n, err := d.countElements()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// countElements 向前扫描到匹配的 '}'，统计顶层元素个数，不移动读位置。
func (d *Deserializer) countElements() (int, error) {
	depth, commas := 0, 0
	sawToken := false
	for i := d.pos; i < len(d.s); i++ {
		c := d.s[i]
		switch {
		case c == '"' || c == '\'':
			end, err := d.skipQuoted(i)
			if err != nil {
				return 0, err
			}
			i = end
			sawToken = true
		case c == '(' || c == '{':
			depth++
			sawToken = true
		case c == ')':
			depth--
		case c == '}':
			if depth == 0 {
				if !sawToken {
					return 0, nil
				}
				return commas + 1, nil
			}
			depth--
		case c == ',':
			if depth == 0 {
				commas++
			}
		case isSpace(c):
		default:
			sawToken = true
		}
	}
	return 0, d.malformed("unterminated sequence")
}

// skipQuoted 返回从 start 开始的引号串的结束位置。
func (d *Deserializer) skipQuoted(start int) (int, error) {
	q := d.s[start]
	for i := start + 1; i < len(d.s); i++ {
		switch d.s[i] {
		case '\\':
			i++
		case q:
			return i, nil
		}
	}
	return 0, d.malformed("unterminated quoted string")
}

func (d *Deserializer) EndSequence() error {
	return d.consume('}')
}

// readRawQuoted 返回引号内未经转义处理的原文。
func (d *Deserializer) readRawQuoted(q byte) (string, error) {
	d.skipSpaceAndComma()
	if d.pos >= len(d.s) || d.s[d.pos] != q {
		return "", d.malformed("expected %q", q)
	}
	end, err := d.skipQuoted(d.pos)
	if err != nil {
		return "", err
	}
	raw := d.s[d.pos+1 : end]
	d.pos = end + 1
	return raw, nil
}

func (d *Deserializer) readQuoted(q byte) (string, error) {
	raw, err := d.readRawQuoted(q)
	if err != nil {
		return "", err
	}
	if strings.IndexByte(raw, '\\') < 0 {
		return raw, nil
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
		}
		sb.WriteByte(raw[i])
	}
	return sb.String(), nil
}

// unquoteUnits 把引号内的原文还原为 UTF-16 或 UTF-32 码元序列，
// 识别 \uXXXX（UTF-16 码元）与 \UXXXXXXXX（UTF-32 码元）转义。
func (d *Deserializer) unquoteUnits(raw string, tag uniform.Tag) (uniform.Primitive, error) {
	var u16 uniform.U16String
	var u32 uniform.U32String
	for i := 0; i < len(raw); {
		if raw[i] == '\\' && i+1 < len(raw) {
			width := 0
			switch {
			case raw[i+1] == 'u' && tag == uniform.TagU16String:
				width = 4
			case raw[i+1] == 'U' && tag == uniform.TagU32String:
				width = 8
			}
			if width > 0 {
				if i+2+width > len(raw) {
					return uniform.Primitive{}, d.malformed("truncated escape in %s", tag)
				}
				v, err := strconv.ParseUint(raw[i+2:i+2+width], 16, 32)
				if err != nil {
					return uniform.Primitive{}, d.malformed("bad escape %q in %s", raw[i:i+2+width], tag)
				}
				if tag == uniform.TagU16String {
					u16 = append(u16, uint16(v))
				} else {
					u32 = append(u32, rune(uint32(v)))
				}
				i += 2 + width
				continue
			}
			// 其余转义只保护下一个字节
			i++
		}
		r, size := utf8.DecodeRuneInString(raw[i:])
		if tag == uniform.TagU16String {
			u16 = utf16.AppendRune(u16, r)
		} else {
			u32 = append(u32, r)
		}
		i += size
	}
	if tag == uniform.TagU16String {
		return uniform.PrimitiveOf(u16), nil
	}
	return uniform.PrimitiveOf(u32), nil
}

func (d *Deserializer) readToken() (string, error) {
	d.skipSpaceAndComma()
	start := d.pos
	for d.pos < len(d.s) && !isDelim(d.s[d.pos]) {
		d.pos++
	}
	if start == d.pos {
		return "", d.malformed("expected value")
	}
	return d.s[start:d.pos], nil
}

func (d *Deserializer) ReadValue(tag uniform.Tag) (uniform.Primitive, error) {
	switch tag {
	case uniform.TagU8String:
		s, err := d.readQuoted('"')
		if err != nil {
			return uniform.Primitive{}, err
		}
		return uniform.PrimitiveOf(s), nil
	case uniform.TagU16String, uniform.TagU32String:
		raw, err := d.readRawQuoted('"')
		if err != nil {
			return uniform.Primitive{}, err
		}
		return d.unquoteUnits(raw, tag)
	case uniform.TagAtom:
		s, err := d.readQuoted('\'')
		if err != nil {
			return uniform.Primitive{}, err
		}
		a, err := uniform.ParseAtom(s)
		if err != nil {
			return uniform.Primitive{}, err
		}
		return uniform.PrimitiveOf(a), nil
	}
	tok, err := d.readToken()
	if err != nil {
		return uniform.Primitive{}, err
	}
	switch tag {
	case uniform.TagInt8, uniform.TagInt16, uniform.TagInt32, uniform.TagInt64:
		v, err := strconv.ParseInt(tok, 10, bitSize(tag))
		if err != nil {
			return uniform.Primitive{}, d.malformed("bad %s %q", tag, tok)
		}
		return uniform.IntPrimitive(tag, v), nil
	case uniform.TagUint8, uniform.TagUint16, uniform.TagUint32, uniform.TagUint64:
		v, err := strconv.ParseUint(tok, 10, bitSize(tag))
		if err != nil {
			return uniform.Primitive{}, d.malformed("bad %s %q", tag, tok)
		}
		return uniform.UintPrimitive(tag, v), nil
	case uniform.TagFloat, uniform.TagDouble, uniform.TagLongDouble:
		v, err := strconv.ParseFloat(tok, bitSize(tag))
		if err != nil {
			return uniform.Primitive{}, d.malformed("bad %s %q", tag, tok)
		}
		return uniform.FloatPrimitive(tag, v), nil
	}
	return uniform.Primitive{}, d.malformed("cannot read %s", tag)
}

func (d *Deserializer) ReadTuple(tags []uniform.Tag) ([]uniform.Primitive, error) {
	d.skipSpaceAndComma()
	if err := d.consume('{'); err != nil {
		return nil, err
	}
	out := make([]uniform.Primitive, 0, len(tags))
	for _, tag := range tags {
		p, err := d.ReadValue(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := d.consume('}'); err != nil {
		return nil, err
	}
	return out, nil
}

func bitSize(tag uniform.Tag) int {
	switch tag {
	case uniform.TagInt8, uniform.TagUint8:
		return 8
	case uniform.TagInt16, uniform.TagUint16:
		return 16
	case uniform.TagInt32, uniform.TagUint32, uniform.TagFloat:
		return 32
	}
	return 64
}

// FromString 读取一个自描述对象，类型由文本中的类型名决定。
func FromString(s string) (uniform.Object, error) {
	return uniform.ReadAny(NewDeserializer(s))
}

// FromStringInto 按 ti 读取文本到 ptr。
func FromStringInto(s string, ti uniform.TypeInfo, ptr any) error {
	return ti.Deserialize(ptr, NewDeserializer(s))
}
