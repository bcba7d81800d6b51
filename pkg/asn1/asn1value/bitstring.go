package asn1value

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// BitString is a bit length and the bits packed most significant first. Bits past Length in
// the last octet are zero.
type BitString struct {
	Bytes  []byte
	Length int
}

// NewBitString builds a bit string of length n whose bits are the low n bits of v.
func NewBitString(v uint64, n int) BitString {
	bs := BitString{Bytes: make([]byte, (n+7)/8), Length: n}
	for i := 0; i < n && i < 64; i++ {
		if v&(1<<uint(n-1-i)) != 0 {
			bs.SetBit(i, true)
		}
	}
	return bs
}

// BitStringFromBits builds a bit string from individual bits.
func BitStringFromBits(bits ...bool) BitString {
	bs := BitString{Bytes: make([]byte, (len(bits)+7)/8), Length: len(bits)}
	for i, b := range bits {
		bs.SetBit(i, b)
	}
	return bs
}

func (b BitString) At(i int) bool {
	if i < 0 || i >= b.Length {
		return false
	}
	return b.Bytes[i/8]&(0x80>>uint(i%8)) != 0
}

// SetBit sets bit i. The string must already be at least i+1 bits long.
func (b BitString) SetBit(i int, v bool) {
	if v {
		b.Bytes[i/8] |= 0x80 >> uint(i%8)
	} else {
		b.Bytes[i/8] &^= 0x80 >> uint(i%8)
	}
}

// Resize returns a copy with n bits, truncating or zero extending.
func (b BitString) Resize(n int) BitString {
	out := BitString{Bytes: make([]byte, (n+7)/8), Length: n}
	for i := 0; i < n && i < b.Length; i++ {
		out.SetBit(i, b.At(i))
	}
	return out
}

// Uint64 returns the bits as an unsigned number, first bit most significant.
func (b BitString) Uint64() uint64 {
	var v uint64
	for i := 0; i < b.Length; i++ {
		v <<= 1
		if b.At(i) {
			v |= 1
		}
	}
	return v
}

// TrimTrailingZeros drops trailing zero bits, keeping at least min bits.
func (b BitString) TrimTrailingZeros(min int) BitString {
	n := b.Length
	for n > min && !b.At(n-1) {
		n--
	}
	if n == b.Length {
		return b
	}
	return b.Resize(n)
}

func (b BitString) String() string {
	if b.Length <= 64 {
		sb := strings.Builder{}
		sb.WriteString("'")
		for i := 0; i < b.Length; i++ {
			if b.At(i) {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteString("'B")
		return sb.String()
	}
	return "'" + strings.ToUpper(hex.EncodeToString(b.Bytes)) + "'H(" + strconv.Itoa(b.Length) + ")"
}
