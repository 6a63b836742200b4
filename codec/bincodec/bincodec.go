// Package bincodec 实现紧凑的二进制线上格式，帧结构借用 MessagePack：
// 对象是一个类型名字符串，序列是数组头，原始值按标签定宽编码。
package bincodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pingcap/errors"
	"github.com/vmihailenco/msgpack/v5"

	"uniactor/uniform"
)

// Serializer 把对象编码为 MessagePack 帧。
type Serializer struct {
	enc *msgpack.Encoder
}

var _ uniform.Serializer = (*Serializer)(nil)

// NewSerializer 创建一个写到 w 的二进制序列化器。
func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{enc: msgpack.NewEncoder(w)}
}

func (s *Serializer) BeginObject(ti uniform.TypeInfo) error {
	return errors.Trace(s.enc.EncodeString(ti.Name()))
}

func (s *Serializer) EndObject() error { return nil }

func (s *Serializer) BeginSequence(n int) error {
	return errors.Trace(s.enc.EncodeArrayLen(n))
}

func (s *Serializer) EndSequence() error { return nil }

func (s *Serializer) WriteValue(v uniform.Primitive) error {
	var err error
	switch v.Tag() {
	case uniform.TagInt8:
		err = s.enc.EncodeInt8(int8(v.Int64()))
	case uniform.TagInt16:
		err = s.enc.EncodeInt16(int16(v.Int64()))
	case uniform.TagInt32:
		err = s.enc.EncodeInt32(int32(v.Int64()))
	case uniform.TagInt64:
		err = s.enc.EncodeInt64(v.Int64())
	case uniform.TagUint8:
		err = s.enc.EncodeUint8(uint8(v.Uint64()))
	case uniform.TagUint16:
		err = s.enc.EncodeUint16(uint16(v.Uint64()))
	case uniform.TagUint32:
		err = s.enc.EncodeUint32(uint32(v.Uint64()))
	case uniform.TagUint64, uniform.TagAtom:
		err = s.enc.EncodeUint64(v.Uint64())
	case uniform.TagFloat:
		err = s.enc.EncodeFloat32(float32(v.Float64()))
	case uniform.TagDouble, uniform.TagLongDouble:
		err = s.enc.EncodeFloat64(v.Float64())
	case uniform.TagU8String:
		err = s.enc.EncodeString(v.Str())
	case uniform.TagU16String:
		u := v.U16()
		if err = s.enc.EncodeArrayLen(len(u)); err != nil {
			break
		}
		for _, c := range u {
			if err = s.enc.EncodeUint16(c); err != nil {
				break
			}
		}
	case uniform.TagU32String:
		u := v.U32()
		if err = s.enc.EncodeArrayLen(len(u)); err != nil {
			break
		}
		for _, c := range u {
			if err = s.enc.EncodeInt32(c); err != nil {
				break
			}
		}
	default:
		err = s.enc.EncodeNil()
	}
	return errors.Trace(err)
}

func (s *Serializer) WriteTuple(vs []uniform.Primitive) error {
	for _, v := range vs {
		if err := s.WriteValue(v); err != nil {
			return err
		}
	}
	return nil
}

// Deserializer 解码 Serializer 产生的帧。
type Deserializer struct {
	dec     *msgpack.Decoder
	peeked  string
	hasPeek bool
	// left 报告输入中尚未读取的字节数，未知时为 nil
	left interface{ Len() int }
}

var _ uniform.Deserializer = (*Deserializer)(nil)

// NewDeserializer 创建一个从 r 读取的二进制反序列化器。
// r 能报告剩余长度时（如 *bytes.Reader），声明长度超过剩余字节数的序列头会被拒绝。
func NewDeserializer(r io.Reader) *Deserializer {
	d := &Deserializer{dec: msgpack.NewDecoder(r)}
	// 只有不经 bufio 包装直接读取时剩余长度才准确
	if l, ok := r.(interface {
		io.ByteScanner
		Len() int
	}); ok {
		d.left = l
	}
	return d
}

// checkLen 拒绝声明了 n 个元素、但剩余输入不足 n 字节的头部：每个元素至少占一个字节。
func (d *Deserializer) checkLen(n int, what string) error {
	if d.left != nil && n > d.left.Len() {
		return uniform.ErrMalformedInput.GenWithStackByArgs(
			fmt.Sprintf("%s declares %d elements but only %d bytes remain", what, n, d.left.Len()))
	}
	return nil
}

func (d *Deserializer) SeekObject() (string, error) {
	if d.hasPeek {
		d.hasPeek = false
		return d.peeked, nil
	}
	name, err := d.dec.DecodeString()
	if err != nil {
		return "", uniform.ErrMalformedInput.Wrap(err).GenWithStackByArgs("type name")
	}
	return name, nil
}

func (d *Deserializer) PeekObject() (string, error) {
	if !d.hasPeek {
		name, err := d.SeekObject()
		if err != nil {
			return "", err
		}
		d.peeked, d.hasPeek = name, true
	}
	return d.peeked, nil
}

func (d *Deserializer) BeginObject(ti uniform.TypeInfo) error {
	name, err := d.SeekObject()
	if err != nil {
		return err
	}
	if name != ti.Name() {
		return uniform.ErrTypeNameMismatch.GenWithStackByArgs(ti.Name(), name)
	}
	return nil
}

func (d *Deserializer) EndObject() error { return nil }

func (d *Deserializer) BeginSequence() (int, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return 0, uniform.ErrMalformedInput.Wrap(err).GenWithStackByArgs("sequence header")
	}
	if n < 0 {
		n = 0
	}
	if err := d.checkLen(n, "sequence header"); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Deserializer) EndSequence() error { return nil }

func (d *Deserializer) ReadValue(tag uniform.Tag) (uniform.Primitive, error) {
	p, err := d.readValue(tag)
	if err != nil {
		return uniform.Primitive{}, uniform.ErrMalformedInput.Wrap(err).GenWithStackByArgs(tag.String())
	}
	return p, nil
}

func (d *Deserializer) readValue(tag uniform.Tag) (uniform.Primitive, error) {
	switch tag {
	case uniform.TagInt8:
		v, err := d.dec.DecodeInt8()
		return uniform.IntPrimitive(tag, int64(v)), err
	case uniform.TagInt16:
		v, err := d.dec.DecodeInt16()
		return uniform.IntPrimitive(tag, int64(v)), err
	case uniform.TagInt32:
		v, err := d.dec.DecodeInt32()
		return uniform.IntPrimitive(tag, int64(v)), err
	case uniform.TagInt64:
		v, err := d.dec.DecodeInt64()
		return uniform.IntPrimitive(tag, v), err
	case uniform.TagUint8:
		v, err := d.dec.DecodeUint8()
		return uniform.UintPrimitive(tag, uint64(v)), err
	case uniform.TagUint16:
		v, err := d.dec.DecodeUint16()
		return uniform.UintPrimitive(tag, uint64(v)), err
	case uniform.TagUint32:
		v, err := d.dec.DecodeUint32()
		return uniform.UintPrimitive(tag, uint64(v)), err
	case uniform.TagUint64, uniform.TagAtom:
		v, err := d.dec.DecodeUint64()
		return uniform.UintPrimitive(tag, v), err
	case uniform.TagFloat:
		v, err := d.dec.DecodeFloat32()
		return uniform.FloatPrimitive(tag, float64(v)), err
	case uniform.TagDouble, uniform.TagLongDouble:
		v, err := d.dec.DecodeFloat64()
		return uniform.FloatPrimitive(tag, v), err
	case uniform.TagU8String:
		v, err := d.dec.DecodeString()
		return uniform.PrimitiveOf(v), err
	case uniform.TagU16String:
		n, err := d.dec.DecodeArrayLen()
		if err != nil {
			return uniform.Primitive{}, err
		}
		if err := d.checkLen(n, "string"); err != nil {
			return uniform.Primitive{}, err
		}
		u := make(uniform.U16String, 0, uniform.PreallocHint(n))
		for i := 0; i < n; i++ {
			c, err := d.dec.DecodeUint16()
			if err != nil {
				return uniform.Primitive{}, err
			}
			u = append(u, c)
		}
		return uniform.PrimitiveOf(u), nil
	case uniform.TagU32String:
		n, err := d.dec.DecodeArrayLen()
		if err != nil {
			return uniform.Primitive{}, err
		}
		if err := d.checkLen(n, "string"); err != nil {
			return uniform.Primitive{}, err
		}
		u := make(uniform.U32String, 0, uniform.PreallocHint(n))
		for i := 0; i < n; i++ {
			c, err := d.dec.DecodeInt32()
			if err != nil {
				return uniform.Primitive{}, err
			}
			u = append(u, c)
		}
		return uniform.PrimitiveOf(u), nil
	}
	return uniform.Primitive{}, errors.Errorf("cannot decode %s", tag)
}

func (d *Deserializer) ReadTuple(tags []uniform.Tag) ([]uniform.Primitive, error) {
	out := make([]uniform.Primitive, 0, len(tags))
	for _, tag := range tags {
		p, err := d.ReadValue(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Marshal 按描述符 ti 把 ptr（*T 或 T）编码为字节。
func Marshal(ti uniform.TypeInfo, ptr any) ([]byte, error) {
	var buf bytes.Buffer
	if err := ti.Serialize(ptr, NewSerializer(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalValue 通过注册表找到 v 的描述符后编码。
func MarshalValue(v any) ([]byte, error) {
	o, err := uniform.ObjectOf(v)
	if err != nil {
		return nil, err
	}
	return Marshal(o.Type, o.Value)
}

// Unmarshal 解码一个自描述对象。
func Unmarshal(data []byte) (uniform.Object, error) {
	return uniform.ReadAny(NewDeserializer(bytes.NewReader(data)))
}

// UnmarshalInto 按 ti 把 data 解码到 ptr。
func UnmarshalInto(data []byte, ti uniform.TypeInfo, ptr any) error {
	return ti.Deserialize(ptr, NewDeserializer(bytes.NewReader(data)))
}
