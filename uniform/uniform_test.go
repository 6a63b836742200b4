package uniform

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomRoundTrip(t *testing.T) {
	for _, s := range []string{"", "ok", "get_state", "A1b2C3d4E5", " x"} {
		a, err := ParseAtom(s)
		require.NoError(t, err)
		require.Equal(t, s, a.String())
	}
	require.NotEqual(t, AtomOf("ab"), AtomOf("ba"))

	_, err := ParseAtom("abcdefghijk")
	require.True(t, ErrInvalidAtom.Equal(err), "%v", err)
	_, err = ParseAtom("a-b")
	require.True(t, ErrInvalidAtom.Equal(err), "%v", err)
	require.Panics(t, func() { AtomOf("not/an/atom") })
}

func TestPrimitiveTagCheckedAccess(t *testing.T) {
	p := PrimitiveOf("hello")
	require.Equal(t, TagU8String, p.Tag())

	_, err := Get[int32](p)
	require.Error(t, err)
	require.True(t, ErrTagMismatch.Equal(err))
	require.Contains(t, err.Error(), "expected int32, actual u8string")

	s, err := Get[string](p)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestPrimitiveAssignSwitchesTag(t *testing.T) {
	p := PrimitiveOf(int32(5))
	Assign(&p, int32(7))
	require.Equal(t, int32(7), MustGet[int32](p))

	Assign(&p, U32String("héllo"))
	require.Equal(t, TagU32String, p.Tag())
	require.Equal(t, U32String("héllo"), MustGet[U32String](p))

	Assign(&p, 3)
	require.Equal(t, TagInt64, p.Tag())
	require.Equal(t, int64(3), MustGet[int64](p))

	require.NoError(t, Ref(&p, func(v *int64) { *v += 10 }))
	require.Equal(t, int64(13), MustGet[int64](p))
	require.Error(t, Ref(&p, func(v *string) {}))
}

func TestPrimitiveEqualRequiresSameTag(t *testing.T) {
	require.True(t, PrimitiveOf(int32(1)).Equal(PrimitiveOf(int32(1))))
	require.False(t, PrimitiveOf(int32(1)).Equal(PrimitiveOf(int64(1))))
	require.False(t, PrimitiveOf(1.0).Equal(PrimitiveOf(LongDouble(1.0))))
	require.False(t, Primitive{}.Equal(PrimitiveOf("")))
	require.True(t, NewPrimitive(TagNull).Equal(Primitive{}))
}

func TestPrimitiveWidthTruncation(t *testing.T) {
	require.Equal(t, int64(44), IntPrimitive(TagInt8, 300).Int64())
	require.Equal(t, uint64(0xFFFF), UintPrimitive(TagUint16, 0x1FFFF).Uint64())
	require.Equal(t, float64(float32(0.1)), FloatPrimitive(TagFloat, 0.1).Float64())
}

func TestPrimitiveCloneDoesNotShare(t *testing.T) {
	src := U16String{1, 2, 3}
	p := PrimitiveOf(src)
	src[0] = 9
	require.Equal(t, uint16(1), p.U16()[0])

	q := p.Clone()
	q.U16()[1] = 42
	require.Equal(t, uint16(2), p.U16()[1])
}

type idemType struct{ A int32 }

func TestAnnounceIsIdempotent(t *testing.T) {
	first := AnnounceDefault[idemType]()
	second := AnnounceType[idemType](DefaultNamed[idemType]("other_name"))
	require.Same(t, first, second)
	require.Same(t, first, TypeID[idemType]())
	require.Same(t, TypeID[idemType](), TypeID[idemType]())

	_, err := ByName("other_name")
	require.True(t, ErrTypeNotAnnounced.Equal(err))

	byName, err := ByName(first.Name())
	require.NoError(t, err)
	require.Same(t, first, byName)
}

type nameThief struct{ A int32 }

type wrongDescriptor struct{}

func TestAnnounceConflicts(t *testing.T) {
	require.Panics(t, func() { AnnounceType[nameThief](DefaultNamed[nameThief]("@i32")) })
	require.Panics(t, func() { Announce(reflect.TypeOf((*wrongDescriptor)(nil)).Elem(), Default[nameThief]()) })
	_, err := Lookup[nameThief]()
	require.True(t, ErrTypeNotAnnounced.Equal(err))
	require.Contains(t, err.Error(), "uniform.nameThief")
	require.Panics(t, func() { TypeID[nameThief]() })
}

func TestBuiltinsAnnounced(t *testing.T) {
	names := make(map[string]bool)
	for _, ti := range Instances() {
		names[ti.Name()] = true
	}
	for _, n := range []string{
		"@i8", "@i16", "@i32", "@i64", "@u8", "@u16", "@u32", "@u64",
		"float", "double", "@ldouble", "@str", "@u16str", "@u32str", "@atom",
		"bool", "@0", "@buffer", "@strmap", "@duration",
	} {
		require.True(t, names[n], "missing builtin %s", n)
	}
	require.Equal(t, reflect.TypeOf((*int64)(nil)).Elem(), TypeID[int64]().Type())
}

type unnamedHolder struct{}

func TestCanonicalName(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		name string
	}{
		{reflect.TypeOf((*int32)(nil)).Elem(), "@i32"},
		{reflect.TypeOf((*int)(nil)).Elem(), "@i64"},
		{reflect.TypeOf((*[]int32)(nil)).Elem(), "[]@i32"},
		{reflect.TypeOf((*[3]uint8)(nil)).Elem(), "[3]@u8"},
		{reflect.TypeOf((*map[string]float64)(nil)).Elem(), "map[@str]double"},
		{reflect.TypeOf((*Pair[int32, string])(nil)).Elem(), "@pair<@i32;@str>"},
		{reflect.TypeOf((*unnamedHolder)(nil)).Elem(), "uniform.unnamedHolder"},
		{reflect.TypeOf((**int8)(nil)).Elem(), "*@i8"},
	}
	for _, c := range cases {
		require.Equal(t, c.name, CanonicalName(c.typ))
	}
}

type plainPoint struct {
	X, Y   int32
	hidden int
}

type withCallback struct {
	N  int32
	Fn func()
}

func TestComposeEquality(t *testing.T) {
	ti := ComposeNamed[plainPoint]("plain_point",
		Field(func(p *plainPoint) *int32 { return &p.X }),
		Field(func(p *plainPoint) *int32 { return &p.Y }),
	)
	require.True(t, ti.Equal(&plainPoint{X: 1, Y: 2, hidden: 1}, &plainPoint{X: 1, Y: 2, hidden: 2}))
	require.False(t, ti.Equal(&plainPoint{X: 1, Y: 2}, &plainPoint{X: 2, Y: 2}))

	// 含有无法比较的成员时，组合描述符的相等恒为 false
	cb := ComposeNamed[withCallback]("with_callback",
		Field(func(p *withCallback) *int32 { return &p.N }),
		Field(func(p *withCallback) *func() { return &p.Fn }),
	)
	v := withCallback{N: 1}
	require.False(t, cb.Equal(&v, &v))
}

type counter struct{ n int32 }

func TestAccessorMember(t *testing.T) {
	ti := ComposeNamed[counter]("counter",
		Accessor(func(c *counter) int32 { return c.n }, func(c *counter, v int32) { c.n = v }),
	)
	require.True(t, ti.Equal(&counter{n: 3}, &counter{n: 3}))
	require.False(t, ti.Equal(&counter{n: 3}, &counter{n: 4}))
}

type cloneMe struct {
	Items []int32
	Index map[string]int32
}

func TestCloneIsDeep(t *testing.T) {
	ti := DefaultNamed[cloneMe]("clone_me")
	src := &cloneMe{Items: []int32{1, 2}, Index: map[string]int32{"a": 1}}
	dst := ti.Clone(src).(*cloneMe)
	require.True(t, ti.Equal(src, dst))

	dst.Items[0] = 100
	dst.Index["a"] = 100
	require.Equal(t, int32(1), src.Items[0])
	require.Equal(t, int32(1), src.Index["a"])
	require.False(t, ti.Equal(src, dst))
}

func TestObjectOf(t *testing.T) {
	o, err := ObjectOf(int32(5))
	require.NoError(t, err)
	require.Same(t, TypeID[int32](), o.Type)
	require.Equal(t, int32(5), *o.Value.(*int32))

	other, err := ObjectOf(int32(5))
	require.NoError(t, err)
	require.True(t, o.Equal(other))

	_, err = ObjectOf(nil)
	require.True(t, ErrUnsupportedType.Equal(err))
	_, err = ObjectOf(struct{ Z int }{})
	require.True(t, ErrTypeNotAnnounced.Equal(err))
}
