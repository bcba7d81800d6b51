// Package asn1oer implements the X.696 octet encoding primitives: length determinants,
// fixed and variable size integers, enumerations, tags, preambles and open types.
package asn1oer

import (
	"math"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1bits"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// UnsignedSize is the fixed octet count for values in 0..ub.
func UnsignedSize(ub uint64) int {
	switch {
	case ub <= math.MaxUint8:
		return 1
	case ub <= math.MaxUint16:
		return 2
	case ub <= math.MaxUint32:
		return 4
	}
	return 8
}

// SignedSize is the fixed octet count for values in lb..ub.
func SignedSize(lb, ub int64) int {
	switch {
	case lb >= math.MinInt8 && ub <= math.MaxInt8:
		return 1
	case lb >= math.MinInt16 && ub <= math.MaxInt16:
		return 2
	case lb >= math.MinInt32 && ub <= math.MaxInt32:
		return 4
	}
	return 8
}

type Encoder struct {
	*asn1bits.Writer
}

func NewEncoder() *Encoder {
	return &Encoder{Writer: asn1bits.NewWriter()}
}

// WriteLength writes a definite length: one octet below 128, otherwise 0x80|k and k octets.
func (e *Encoder) WriteLength(n uint64) {
	if n < 128 {
		e.WriteBits(8, n)
		return
	}
	k := asn1ber.UintLen(n)
	e.WriteBits(8, 0x80|uint64(k))
	e.WriteBytes(asn1ber.AppendUintN(nil, n, k))
}

func (e *Encoder) WriteUnsigned(v uint64, size int) {
	e.WriteBytes(asn1ber.AppendUintN(nil, v, size))
}

func (e *Encoder) WriteSigned(v int64, size int) {
	e.WriteBytes(asn1ber.AppendIntN(nil, v, size))
}

func (e *Encoder) WriteVarUnsigned(v uint64) {
	k := asn1ber.UintLen(v)
	e.WriteLength(uint64(k))
	e.WriteUnsigned(v, k)
}

func (e *Encoder) WriteVarSigned(v int64) {
	content := asn1ber.AppendInt(nil, v)
	e.WriteLength(uint64(len(content)))
	e.WriteBytes(content)
}

// WriteEnumerated writes an enumeration number: one octet for 0..127, otherwise a length
// octet with the top bit set followed by two's complement octets.
func (e *Encoder) WriteEnumerated(n int64) {
	if n >= 0 && n < 128 {
		e.WriteBits(8, uint64(n))
		return
	}
	content := asn1ber.AppendInt(nil, n)
	e.WriteBits(8, 0x80|uint64(len(content)))
	e.WriteBytes(content)
}

// WriteTag writes the two bit class and the tag number, using 0x3F and base-128 octets for
// numbers of 63 and above.
func (e *Encoder) WriteTag(tag asn1core.Tag) {
	first := uint64(tag.Class) << 6
	if tag.Number < 63 {
		e.WriteBits(8, first|uint64(tag.Number))
		return
	}
	e.WriteBits(8, first|0x3F)
	e.WriteBytes(asn1ber.AppendBase128(nil, uint64(tag.Number)))
}

// WritePreamble writes presence bits padded with zeros to whole octets.
func (e *Encoder) WritePreamble(bitmap []bool) {
	for _, b := range bitmap {
		e.WriteBit(b)
	}
	e.Align()
}

// WriteBitmap writes a length prefixed bit string: the unused bit count octet and the bits.
func (e *Encoder) WriteBitmap(bitmap []bool) {
	octets := (len(bitmap) + 7) / 8
	e.WriteLength(uint64(octets + 1))
	e.WriteBits(8, uint64(octets*8-len(bitmap)))
	e.WritePreamble(bitmap)
}

func (e *Encoder) WriteOpenType(content []byte) {
	e.WriteLength(uint64(len(content)))
	e.WriteBytes(content)
}

type Decoder struct {
	*asn1bits.Reader
	maxLength uint64
}

func NewDecoder(data []byte, maxLength uint64) *Decoder {
	return &Decoder{Reader: asn1bits.NewReader(data), maxLength: maxLength}
}

func (d *Decoder) MaxLength() uint64 {
	return d.maxLength
}

func (d *Decoder) ReadLength() (uint64, error) {
	first, err := d.ReadBits(8)
	if err != nil {
		return 0, err
	}
	n := first
	if first >= 128 {
		k := first & 0x7F
		if k == 0 || k > 8 {
			return 0, asn1core.DecodeErrorf("%w: %d length octets", asn1core.ErrMalformed, k)
		}
		if n, err = d.ReadBits(uint8(k * 8)); err != nil {
			return 0, err
		}
	}
	if d.maxLength > 0 && n > d.maxLength {
		return 0, asn1core.DecodeErrorf("%w: %d", asn1core.ErrLengthLimit, n)
	}
	if n > d.Remaining()/8 {
		return 0, asn1core.DecodeErrorf("%w: length %d with %d octets left", asn1core.ErrTruncated, n, d.Remaining()/8)
	}
	return n, nil
}

func (d *Decoder) ReadUnsigned(size int) (uint64, error) {
	return d.ReadBits(uint8(size * 8))
}

func (d *Decoder) ReadSigned(size int) (int64, error) {
	b, err := d.ReadBytes(uint64(size))
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseInt(b)
}

func (d *Decoder) ReadVarUnsigned() (uint64, error) {
	n, err := d.ReadLength()
	if err != nil {
		return 0, err
	}
	b, err := d.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseUint(b)
}

func (d *Decoder) ReadVarSigned() (int64, error) {
	n, err := d.ReadLength()
	if err != nil {
		return 0, err
	}
	b, err := d.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseInt(b)
}

func (d *Decoder) ReadEnumerated() (int64, error) {
	first, err := d.ReadBits(8)
	if err != nil {
		return 0, err
	}
	if first < 128 {
		return int64(first), nil
	}
	b, err := d.ReadBytes(first & 0x7F)
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseInt(b)
}

func (d *Decoder) ReadTag() (asn1core.Tag, error) {
	first, err := d.ReadBits(8)
	if err != nil {
		return asn1core.Tag{}, err
	}
	tag := asn1core.Tag{Class: asn1core.Class(first >> 6), Number: uint32(first & 0x3F)}
	if tag.Number < 63 {
		return tag, nil
	}
	var number uint64
	for i := 0; ; i++ {
		c, err := d.ReadBits(8)
		if err != nil {
			return tag, err
		}
		if i == 0 && c == 0x80 || i > 4 {
			return tag, asn1core.DecodeErrorf("%w: tag number", asn1core.ErrMalformed)
		}
		number = number<<7 | (c & 0x7F)
		if c&0x80 == 0 {
			break
		}
	}
	if number < 63 || number > math.MaxUint32 {
		return tag, asn1core.DecodeErrorf("%w: tag number %d", asn1core.ErrMalformed, number)
	}
	tag.Number = uint32(number)
	return tag, nil
}

func (d *Decoder) ReadPreamble(n int) ([]bool, error) {
	bitmap := make([]bool, n)
	for i := range bitmap {
		b, err := d.ReadBit()
		if err != nil {
			return nil, err
		}
		bitmap[i] = b
	}
	pad := d.Pos() % 8
	if pad == 0 {
		return bitmap, nil
	}
	v, err := d.ReadBits(uint8(8 - pad))
	if err != nil {
		return nil, err
	}
	if v != 0 {
		return nil, asn1core.DecodeErrorf("%w: non-zero preamble padding", asn1core.ErrInvalidBitmap)
	}
	return bitmap, nil
}

func (d *Decoder) ReadBitmap() ([]bool, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, asn1core.DecodeErrorf("%w: empty bit string", asn1core.ErrInvalidBitmap)
	}
	unused, err := d.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if unused > 7 || n == 1 && unused > 0 {
		return nil, asn1core.DecodeErrorf("%w: %d unused bits", asn1core.ErrInvalidBitmap, unused)
	}
	bits := (n-1)*8 - unused
	bitmap := make([]bool, bits)
	for i := range bitmap {
		if bitmap[i], err = d.ReadBit(); err != nil {
			return nil, err
		}
	}
	if unused > 0 {
		if _, err := d.ReadBits(uint8(unused)); err != nil {
			return nil, err
		}
	}
	return bitmap, nil
}

func (d *Decoder) ReadOpenType() ([]byte, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	return d.ReadBytes(n)
}
