package uniform

import "strings"

// atomAlphabet 是 atom 可用的 64 个字符，下标即 6 位编码值。
const atomAlphabet = " 0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

const (
	// MaxAtomLength atom 最多容纳的字符数。
	MaxAtomLength = 10
	atomMarker    = 0xF
)

var atomEncoding = func() (tbl [256]int8) {
	for i := range tbl {
		tbl[i] = -1
	}
	for i := 0; i < len(atomAlphabet); i++ {
		tbl[atomAlphabet[i]] = int8(i)
	}
	return tbl
}()

// Atom 是一个短小的符号常量，编码在 64 位整数里：
// 高位是 4 位标记 0xF，随后每个字符占 6 位。
// 相同文本的 atom 在任何进程中都得到相同的数值，因此可以直接上线路。
type Atom uint64

// ParseAtom 把字符串编码为 Atom。
func ParseAtom(s string) (Atom, error) {
	if len(s) > MaxAtomLength {
		return 0, ErrInvalidAtom.GenWithStackByArgs(s, "longer than 10 characters")
	}
	v := uint64(atomMarker)
	for i := 0; i < len(s); i++ {
		c := atomEncoding[s[i]]
		if c < 0 {
			return 0, ErrInvalidAtom.GenWithStackByArgs(s, "character out of alphabet")
		}
		v = v<<6 | uint64(c)
	}
	return Atom(v), nil
}

// AtomOf 同 ParseAtom，但在非法输入时 panic，用于包级常量。
func AtomOf(s string) Atom {
	a, err := ParseAtom(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String 还原 atom 的文本。
func (a Atom) String() string {
	v := uint64(a)
	n := -1
	for i := MaxAtomLength; i >= 0; i-- {
		if v>>(6*uint(i)) == atomMarker {
			n = i
			break
		}
	}
	if n < 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(n)
	for i := n - 1; i >= 0; i-- {
		sb.WriteByte(atomAlphabet[(v>>(6*uint(i)))&0x3F])
	}
	return sb.String()
}
