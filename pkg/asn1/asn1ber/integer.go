package asn1ber

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// IntLen is the number of octets in the minimal two's complement form of v.
func IntLen(v int64) int {
	n := 1
	for v > 127 || v < -128 {
		n++
		v >>= 8
	}
	return n
}

// UintLen is the number of octets needed to hold v, at least one.
func UintLen(v uint64) int {
	n := 1
	for v > 255 {
		n++
		v >>= 8
	}
	return n
}

// AppendInt appends the minimal two's complement form of v.
func AppendInt(b []byte, v int64) []byte {
	return AppendIntN(b, v, IntLen(v))
}

// AppendIntN appends v as an n octet two's complement number.
func AppendIntN(b []byte, v int64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(uint(i)*8)))
	}
	return b
}

// AppendUintN appends v as an n octet unsigned number.
func AppendUintN(b []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(uint(i)*8)))
	}
	return b
}

// ParseInt decodes a two's complement number of at most eight octets. Redundant leading
// octets are tolerated.
func ParseInt(content []byte) (int64, error) {
	if len(content) == 0 {
		return 0, asn1core.DecodeErrorf("%w: empty integer", asn1core.ErrMalformed)
	}
	for len(content) > 1 && (content[0] == 0x00 && content[1]&0x80 == 0 || content[0] == 0xFF && content[1]&0x80 != 0) {
		content = content[1:]
	}
	if len(content) > 8 {
		return 0, asn1core.NewUnimplementedError("integer of %d octets exceeds 64 bits", len(content))
	}
	var v int64
	if content[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range content {
		v = v<<8 | int64(c)
	}
	return v, nil
}

// ParseUint decodes an unsigned number of at most eight significant octets.
func ParseUint(content []byte) (uint64, error) {
	for len(content) > 1 && content[0] == 0 {
		content = content[1:]
	}
	if len(content) > 8 {
		return 0, asn1core.NewUnimplementedError("unsigned integer of %d octets exceeds 64 bits", len(content))
	}
	var v uint64
	for _, c := range content {
		v = v<<8 | uint64(c)
	}
	return v, nil
}
