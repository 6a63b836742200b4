package uniform

import (
	"time"

	"github.com/pingcap/errors"
)

// Unit 是不携带任何数据的值，线上只有类型名 "@0"。
type Unit struct{}

// primitiveInfo 描述一个原始类型：对象里只有一个原始值。
type primitiveInfo[T PrimitiveType] struct{}

func (primitiveInfo[T]) Serialize(v *T, sink Serializer) error {
	return sink.WriteValue(PrimitiveOf(*v))
}

func (primitiveInfo[T]) Deserialize(v *T, source Deserializer) error {
	p, err := source.ReadValue(TagOf[T]())
	if err != nil {
		return errors.Trace(err)
	}
	x, err := Get[T](p)
	if err != nil {
		return err
	}
	*v = x
	return nil
}

func (primitiveInfo[T]) Equal(a, b *T) bool {
	return PrimitiveOf(*a).Equal(PrimitiveOf(*b))
}

// boolInfo 把 bool 收窄为 0/1 的 uint8。
type boolInfo struct{}

func (boolInfo) Serialize(v *bool, sink Serializer) error {
	var b uint8
	if *v {
		b = 1
	}
	return sink.WriteValue(PrimitiveOf(b))
}

func (boolInfo) Deserialize(v *bool, source Deserializer) error {
	p, err := source.ReadValue(TagUint8)
	if err != nil {
		return errors.Trace(err)
	}
	*v = p.Uint64() != 0
	return nil
}

func (boolInfo) Equal(a, b *bool) bool { return *a == *b }

type unitInfo struct{}

func (unitInfo) Serialize(*Unit, Serializer) error     { return nil }
func (unitInfo) Deserialize(*Unit, Deserializer) error { return nil }
func (unitInfo) Equal(*Unit, *Unit) bool               { return true }

func announcePrimitive[T PrimitiveType](name string) {
	AnnounceType[T](Custom[T](name, primitiveInfo[T]{}))
}

func init() {
	announcePrimitive[int8]("@i8")
	announcePrimitive[int16]("@i16")
	announcePrimitive[int32]("@i32")
	announcePrimitive[int64]("@i64")
	announcePrimitive[uint8]("@u8")
	announcePrimitive[uint16]("@u16")
	announcePrimitive[uint32]("@u32")
	announcePrimitive[uint64]("@u64")
	announcePrimitive[float32]("float")
	announcePrimitive[float64]("double")
	announcePrimitive[LongDouble]("@ldouble")
	announcePrimitive[string]("@str")
	announcePrimitive[U16String]("@u16str")
	announcePrimitive[U32String]("@u32str")
	announcePrimitive[Atom]("@atom")

	AnnounceType[bool](Custom[bool]("bool", boolInfo{}))
	AnnounceType[Unit](Custom[Unit]("@0", unitInfo{}))
	AnnounceType[[]byte](DefaultNamed[[]byte]("@buffer"))
	AnnounceType[map[string]string](DefaultNamed[map[string]string]("@strmap"))
	AnnounceType[time.Duration](DefaultNamed[time.Duration]("@duration"))
}
