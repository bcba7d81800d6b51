// Package asn1ber holds the tag-length-value primitives shared by BER, CER and DER, together
// with the content encodings of INTEGER, OBJECT IDENTIFIER and BIT STRING that the other
// encoding families reuse.
package asn1ber

import (
	"strconv"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// LengthIndefinite marks a constructed encoding terminated by an end-of-contents marker.
const LengthIndefinite = -1

type Header struct {
	Tag    asn1core.Tag
	Length int
}

func (h Header) String() string {
	if h.Length == LengthIndefinite {
		return h.Tag.String() + " len=indefinite"
	}
	return h.Tag.String() + " len=" + strconv.Itoa(h.Length)
}

// AppendTag appends the identifier octets of tag.
func AppendTag(b []byte, tag asn1core.Tag) []byte {
	first := byte(tag.Class) << 6
	if tag.Constructed {
		first |= 0x20
	}
	if tag.Number < 31 {
		return append(b, first|byte(tag.Number))
	}
	b = append(b, first|0x1F)
	return AppendBase128(b, uint64(tag.Number))
}

// AppendLength appends definite length octets, short form below 128.
func AppendLength(b []byte, n int) []byte {
	if n == LengthIndefinite {
		return append(b, 0x80)
	}
	if n < 128 {
		return append(b, byte(n))
	}
	numBytes := 1
	for l := n; l > 255; l >>= 8 {
		numBytes++
	}
	b = append(b, 0x80|byte(numBytes))
	for ; numBytes > 0; numBytes-- {
		b = append(b, byte(n>>uint((numBytes-1)*8)))
	}
	return b
}

func AppendHeader(b []byte, h Header) []byte {
	return AppendLength(AppendTag(b, h.Tag), h.Length)
}

// AppendTLV appends a definite length encoding of content under tag.
func AppendTLV(b []byte, tag asn1core.Tag, content []byte) []byte {
	b = AppendHeader(b, Header{Tag: tag, Length: len(content)})
	return append(b, content...)
}

// AppendIndefinite appends a constructed indefinite length encoding followed by end-of-contents.
func AppendIndefinite(b []byte, tag asn1core.Tag, content []byte) []byte {
	tag.Constructed = true
	b = AppendHeader(b, Header{Tag: tag, Length: LengthIndefinite})
	b = append(b, content...)
	return append(b, 0x00, 0x00)
}

// AppendBase128 appends v as big endian base-128 digits with continuation bits.
func AppendBase128(b []byte, v uint64) []byte {
	var reverse [10]byte
	j := 0
	for {
		reverse[j] = byte(v & 0x7F)
		v >>= 7
		j++
		if v == 0 {
			break
		}
	}
	for j--; j >= 0; j-- {
		if j > 0 {
			b = append(b, reverse[j]|0x80)
		} else {
			b = append(b, reverse[j])
		}
	}
	return b
}

// ParseBase128 reads one base-128 number from the front of data and returns it with the
// number of octets consumed.
func ParseBase128(data []byte) (uint64, int, error) {
	if len(data) > 0 && data[0] == 0x80 {
		return 0, 0, asn1core.DecodeErrorf("%w: base-128 number is not minimally encoded", asn1core.ErrMalformed)
	}
	var v uint64
	for i, c := range data {
		if v > (1<<57)-1 {
			return 0, 0, asn1core.DecodeErrorf("%w: base-128 number overflows 64 bits", asn1core.ErrMalformed)
		}
		v = v<<7 | uint64(c&0x7F)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, asn1core.DecodeErrorf("%w: base-128 number", asn1core.ErrTruncated)
}

// ParseHeader decodes identifier and length octets from the front of data.
func ParseHeader(data []byte) (Header, int, error) {
	if len(data) < 1 {
		return Header{}, 0, asn1core.DecodeErrorf("%w: missing identifier octet", asn1core.ErrTruncated)
	}
	b := data[0]
	h := Header{Tag: asn1core.Tag{
		Class:       asn1core.Class(b >> 6),
		Constructed: b&0x20 != 0,
		Number:      uint32(b & 0x1F),
	}}
	off := 1
	if b&0x1F == 0x1F {
		n, used, err := ParseBase128(data[off:])
		if err != nil {
			return h, 0, err
		}
		if n > 1<<32-1 {
			return h, 0, asn1core.DecodeErrorf("%w: tag number %d too large", asn1core.ErrMalformed, n)
		}
		if n < 31 {
			return h, 0, asn1core.DecodeErrorf("%w: tag number %d should use the short form", asn1core.ErrMalformed, n)
		}
		h.Tag.Number = uint32(n)
		off += used
	}
	if len(data) <= off {
		return h, 0, asn1core.DecodeErrorf("%w: missing length octet", asn1core.ErrTruncated).WithFragment(data)
	}
	b = data[off]
	off++
	switch {
	case b&0x80 == 0:
		h.Length = int(b)
	case b == 0x80:
		if !h.Tag.Constructed {
			return h, 0, asn1core.DecodeErrorf("%w: indefinite length on a primitive encoding", asn1core.ErrMalformed).WithFragment(data)
		}
		h.Length = LengthIndefinite
	case b == 0xFF:
		return h, 0, asn1core.DecodeErrorf("%w: reserved length octet 0xFF", asn1core.ErrMalformed).WithFragment(data)
	default:
		numBytes := int(b & 0x7F)
		if numBytes > 8 {
			return h, 0, asn1core.DecodeErrorf("%w: %d length octets", asn1core.ErrLengthLimit, numBytes).WithFragment(data)
		}
		if len(data) < off+numBytes {
			return h, 0, asn1core.DecodeErrorf("%w: length octets", asn1core.ErrTruncated).WithFragment(data)
		}
		var l uint64
		for _, c := range data[off : off+numBytes] {
			l = l<<8 | uint64(c)
		}
		if l > 1<<62 {
			return h, 0, asn1core.DecodeErrorf("%w: length %d", asn1core.ErrLengthLimit, l).WithFragment(data)
		}
		h.Length = int(l)
		off += numBytes
	}
	return h, off, nil
}
