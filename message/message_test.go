package message

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"uniactor/codec/bincodec"
	"uniactor/codec/textcodec"
	"uniactor/uniform"
)

func TestIDBits(t *testing.T) {
	var async ID
	require.False(t, async.Valid())
	require.False(t, async.IsRequest())
	require.Equal(t, ID(0), async.ResponseID())

	req := NewRequestID(42)
	require.True(t, req.Valid())
	require.True(t, req.IsRequest())
	require.False(t, req.IsResponse())

	resp := req.ResponseID()
	require.True(t, resp.IsResponse())
	require.False(t, resp.IsRequest())
	require.Equal(t, req, resp.RequestID())

	answered := req.MarkAsAnswered()
	require.True(t, answered.IsAnswered())
	require.True(t, answered.IsRequest())
	require.Equal(t, req, answered.RequestID())
	require.Equal(t, answered, FromIntegerValue(answered.IntegerValue()))

	require.Equal(t, "request#42", req.String())
	require.Equal(t, "response#42", resp.String())
	require.Equal(t, NewRequestID(1), NewRequestID(1|1<<63))
}

func TestCopyOnWrite(t *testing.T) {
	a := MustMake(int32(1), "x")
	b := a.Copy()
	require.True(t, a.Shared())
	require.Same(t, a.At(0), b.At(0))

	p, err := Mutable[int32](&b, 0)
	require.NoError(t, err)
	*p = 100

	require.Equal(t, int32(1), MustGet[int32](a, 0))
	require.Equal(t, int32(100), MustGet[int32](b, 0))
	require.False(t, a.Shared())
	require.False(t, b.Shared())

	// 存储不再共享时原地修改
	before := a.At(1)
	s, err := Mutable[string](&a, 1)
	require.NoError(t, err)
	*s = "y"
	require.Same(t, before, a.At(1))
	require.Equal(t, "x", MustGet[string](b, 1))
}

func TestReleaseDropsReference(t *testing.T) {
	a := MustMake(int32(1))
	b := a.Copy()
	c := a.Copy()
	require.True(t, a.Shared())
	b.Release()
	c.Release()
	require.True(t, b.Empty())
	require.False(t, a.Shared())

	before := a.At(0)
	a.MutableAt(0)
	require.Same(t, before, a.At(0))
}

func TestTypedAccess(t *testing.T) {
	m := MustMake(int32(7), "seven")
	require.Equal(t, 2, m.Size())
	require.True(t, m.Match(uniform.TypeID[int32](), uniform.TypeID[string]()))
	require.False(t, m.Match(uniform.TypeID[int32]()))
	require.Same(t, uniform.TypeID[string](), m.TypeAt(1))
	require.Nil(t, m.TypeAt(2))
	require.Nil(t, m.At(-1))

	_, err := Get[string](m, 0)
	require.True(t, ErrTypeMismatch.Equal(err))
	require.Contains(t, err.Error(), "expected @str, actual @i32")

	_, err = Get[int32](m, 5)
	require.True(t, ErrIndexOutOfRange.Equal(err))

	require.Panics(t, func() { MustGet[uint8](m, 0) })
}

func TestBuilderConversions(t *testing.T) {
	m, err := NewBuilder().
		Append(3).
		Append(uint(4)).
		Append([]rune("r")).
		Append([]uint16{'u'}).
		ToMessage()
	require.NoError(t, err)
	require.True(t, m.Match(
		uniform.TypeID[int64](),
		uniform.TypeID[uint64](),
		uniform.TypeID[uniform.U32String](),
		uniform.TypeID[uniform.U16String](),
	))
	require.Equal(t, int64(3), MustGet[int64](m, 0))

	x := 1
	for _, bad := range []any{nil, &x, func() {}, make(chan int)} {
		_, err := Make(int32(1), bad)
		require.True(t, ErrUnsupportedValue.Equal(err), "%T", bad)
	}

	type unannounced struct{}
	_, err = Make(unannounced{})
	require.True(t, uniform.ErrTypeNotAnnounced.Equal(err))
}

func TestBuilderCopiesValues(t *testing.T) {
	buf := []byte{1, 2}
	m := MustMake(buf)
	buf[0] = 9
	require.Equal(t, []byte{1, 2}, MustGet[[]byte](m, 0))
}

func TestAppendRangeSharesDescriptor(t *testing.T) {
	b := NewBuilder()
	AppendRange(b, []string{"a", "b", "c"})
	AppendRange(b, []int{1, 2})
	require.Equal(t, 5, b.Len())
	m, err := b.ToMessage()
	require.NoError(t, err)
	require.Equal(t, 0, b.Len())
	require.Same(t, m.TypeAt(0), m.TypeAt(2))
	require.Same(t, uniform.TypeID[int64](), m.TypeAt(4))
}

func TestStaticWrapping(t *testing.T) {
	m := Of2(int32(1), "a")
	require.True(t, m.Equal(MustMake(int32(1), "a")))
	require.False(t, m.Equal(MustMake(int64(1), "a")))
	require.False(t, m.Equal(MustMake(int32(1))))
	require.True(t, Empty().Equal(Message{}))
	require.Equal(t, 1, Of1(uniform.Unit{}).Size())
	require.Equal(t, 3, Of3(int8(1), int16(2), int32(3)).Size())
}

func TestMessageText(t *testing.T) {
	m := MustMake(int32(42), "Hello \"World\"!")
	require.Equal(t, `@<> ( { @i32 ( 42 ), @str ( "Hello \"World\"!" ) } )`, m.String())
	require.Equal(t, "@<> ( { } )", Empty().String())

	o, err := textcodec.FromString(m.String())
	require.NoError(t, err)
	require.Same(t, Descriptor(), o.Type)
	require.True(t, m.Equal(*o.Value.(*Message)))
}

func TestNestedMessageBinary(t *testing.T) {
	inner := MustMake(uniform.AtomOf("ping"), int32(3))
	outer := MustMake("wrap", inner)
	require.True(t, inner.Shared())

	data, err := bincodec.Marshal(Descriptor(), &outer)
	require.NoError(t, err)
	o, err := bincodec.Unmarshal(data)
	require.NoError(t, err)
	back := *o.Value.(*Message)
	require.True(t, outer.Equal(back))
	require.True(t, inner.Equal(MustGet[Message](back, 1)))
}

func TestAliasAfterReleaseCopiesBeforeWrite(t *testing.T) {
	a := MustMake(int32(1))
	b := a.Copy()
	alias := b
	b.Release()
	require.False(t, a.Shared())
	require.True(t, alias.Shared())

	// 别名不再持有引用，重复归还不会影响 a 的计数
	alias2 := alias
	alias2.Release()
	require.False(t, a.Shared())

	p, err := Mutable[int32](&alias, 0)
	require.NoError(t, err)
	*p = 5
	require.Equal(t, int32(1), MustGet[int32](a, 0))
	require.Equal(t, int32(5), MustGet[int32](alias, 0))

	before := a.At(0)
	a.MutableAt(0)
	require.Same(t, before, a.At(0))
}

func TestEqualAlwaysComparesSlots(t *testing.T) {
	m := MustMake(math.NaN())
	require.False(t, m.Equal(m))
	require.False(t, m.Equal(m.Copy()))
	require.True(t, MustMake(1.5).Equal(MustMake(1.5)))
}

func TestOversizedSequenceHeaderIsRejected(t *testing.T) {
	data := []byte{0xa3, '@', '<', '>', 0xdd, 0x02, 0xfa, 0xf0, 0x80}
	_, err := bincodec.Unmarshal(data)
	require.True(t, uniform.ErrMalformedInput.Equal(err), "%v", err)
}
