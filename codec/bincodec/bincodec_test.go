package bincodec_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"uniactor/codec/bincodec"
	"uniactor/uniform"
)

type sample struct {
	ID    uint32
	Name  string
	Tags  map[string]int64
	Ratio float64
}

type other struct {
	ID uint32
}

var (
	sampleType = uniform.AnnounceComposeNamed[sample]("bin_sample",
		uniform.Field(func(s *sample) *uint32 { return &s.ID }),
		uniform.Field(func(s *sample) *string { return &s.Name }),
		uniform.Field(func(s *sample) *map[string]int64 { return &s.Tags }),
		uniform.Field(func(s *sample) *float64 { return &s.Ratio }),
	)
	otherType = uniform.AnnounceDefault[other]()
)

func TestBinaryRoundTrip(t *testing.T) {
	values := []any{
		int8(math.MinInt8), int16(-2), int32(42), int64(math.MinInt64),
		uint8(7), uint16(1 << 15), uint32(math.MaxUint32), uint64(math.MaxUint64),
		float32(-0.5), math.Pi, uniform.LongDouble(1e300),
		"héllo", uniform.U16String{0xD83D, 0xDE00}, uniform.U32String("汉字"),
		uniform.AtomOf("down"), true, uniform.Unit{},
		[]byte("raw"), time.Duration(time.Millisecond),
		map[string]string{"z": "1", "a": "2"},
		sample{ID: 1, Name: "n", Tags: map[string]int64{"x": -1, "y": 2}, Ratio: 0.25},
		other{ID: 9},
	}
	for _, v := range values {
		data, err := bincodec.MarshalValue(v)
		require.NoError(t, err)
		o, err := bincodec.Unmarshal(data)
		require.NoError(t, err, "%T", v)
		expected, err := uniform.ObjectOf(v)
		require.NoError(t, err)
		require.True(t, expected.Equal(o), "%T", v)
	}
}

func TestBinaryDeterministic(t *testing.T) {
	v := sample{Tags: map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4}}
	first, err := bincodec.Marshal(sampleType, &v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := bincodec.Marshal(sampleType, &v)
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, again))
	}
}

func TestBinaryNameMismatch(t *testing.T) {
	data, err := bincodec.Marshal(sampleType, &sample{ID: 3})
	require.NoError(t, err)

	var o other
	err = bincodec.UnmarshalInto(data, otherType, &o)
	require.True(t, uniform.ErrTypeNameMismatch.Equal(err), "%v", err)

	var s sample
	require.NoError(t, bincodec.UnmarshalInto(data, sampleType, &s))
	require.Equal(t, uint32(3), s.ID)
}

func TestBinaryTruncated(t *testing.T) {
	data, err := bincodec.MarshalValue(sample{ID: 1, Name: "truncated", Ratio: 2})
	require.NoError(t, err)
	for _, n := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := bincodec.Unmarshal(data[:n])
		require.Error(t, err, "prefix %d", n)
	}
}

func TestBinaryStreaming(t *testing.T) {
	var buf bytes.Buffer
	enc := bincodec.NewSerializer(&buf)
	require.NoError(t, uniform.TypeID[int32]().Serialize(int32(1), enc))
	require.NoError(t, uniform.TypeID[string]().Serialize("two", enc))

	dec := bincodec.NewDeserializer(&buf)
	name, err := dec.PeekObject()
	require.NoError(t, err)
	require.Equal(t, "@i32", name)
	first, err := uniform.ReadAny(dec)
	require.NoError(t, err)
	require.Equal(t, int32(1), *first.Value.(*int32))
	second, err := uniform.ReadAny(dec)
	require.NoError(t, err)
	require.Equal(t, "two", *second.Value.(*string))
}

func TestBinaryRejectsOversizedHeaders(t *testing.T) {
	var buf bytes.Buffer
	enc := bincodec.NewSerializer(&buf)
	require.NoError(t, enc.BeginObject(sampleType))
	require.NoError(t, enc.WriteValue(uniform.PrimitiveOf(uint32(1))))
	require.NoError(t, enc.WriteValue(uniform.PrimitiveOf("n")))
	require.NoError(t, enc.BeginSequence(50_000_000))
	_, err := bincodec.Unmarshal(buf.Bytes())
	require.True(t, uniform.ErrMalformedInput.Equal(err), "%v", err)

	buf.Reset()
	require.NoError(t, enc.BeginObject(uniform.TypeID[uniform.U16String]()))
	require.NoError(t, enc.BeginSequence(1<<30))
	_, err = bincodec.Unmarshal(buf.Bytes())
	require.True(t, uniform.ErrMalformedInput.Equal(err), "%v", err)

	// 声明的长度与实际内容一致时照常解码
	data, err := bincodec.MarshalValue(sample{ID: 2, Tags: map[string]int64{"a": 1, "b": 2}})
	require.NoError(t, err)
	o, err := bincodec.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 1, "b": 2}, o.Value.(*sample).Tags)
}
