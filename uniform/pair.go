package uniform

import "reflect"

// Pair 是一个二元组。两侧都是原始类型时整体作为原始值元组写出，
// 否则先写 First 再写 Second。
type Pair[A, B any] struct {
	First  A
	Second B
}

// MakePair 构造一个 Pair。
func MakePair[A, B any](a A, b B) Pair[A, B] { return Pair[A, B]{First: a, Second: b} }

type pairCodec interface {
	serializePair(sink Serializer) error
	deserializePair(source Deserializer) error
}

var pairCodecType = reflect.TypeOf((*pairCodec)(nil)).Elem()

func (p *Pair[A, B]) serializePair(sink Serializer) error {
	return serializePair(reflect.ValueOf(&p.First).Elem(), reflect.ValueOf(&p.Second).Elem(), sink)
}

func (p *Pair[A, B]) deserializePair(source Deserializer) error {
	return deserializePair(reflect.ValueOf(&p.First).Elem(), reflect.ValueOf(&p.Second).Elem(), source)
}

// AnnouncePair 以 "@pair<A;B>" 为名注册 Pair[A, B]。
func AnnouncePair[A, B any]() TypeInfo {
	return AnnounceDefault[Pair[A, B]]()
}
