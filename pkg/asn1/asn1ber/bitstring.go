package asn1ber

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// AppendBitString appends the unused-bits octet followed by the first nbits of p.
func AppendBitString(b []byte, p []byte, nbits int) []byte {
	full := (nbits + 7) / 8
	unused := full*8 - nbits
	b = append(b, byte(unused))
	b = append(b, p[:full]...)
	if unused > 0 {
		b[len(b)-1] &= 0xFF << unused
	}
	return b
}

// ParseBitString splits bit string content into data and bit length.
func ParseBitString(content []byte) ([]byte, int, error) {
	if len(content) == 0 {
		return nil, 0, asn1core.DecodeErrorf("%w: bit string without unused-bits octet", asn1core.ErrMalformed)
	}
	unused := int(content[0])
	if unused > 7 || unused > 0 && len(content) == 1 {
		return nil, 0, asn1core.DecodeErrorf("%w: %d unused bits", asn1core.ErrMalformed, unused).WithFragment(content)
	}
	data := append([]byte(nil), content[1:]...)
	return data, len(data)*8 - unused, nil
}
