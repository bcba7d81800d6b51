package asn1per

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1bits"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

type Decoder struct {
	*asn1bits.Reader
	aligned   bool
	maxLength uint64
}

// NewDecoder reads data. maxLength caps every accumulated length (0 for no limit).
func NewDecoder(data []byte, aligned bool, maxLength uint64) *Decoder {
	return &Decoder{Reader: asn1bits.NewReader(data), aligned: aligned, maxLength: maxLength}
}

func (d *Decoder) Aligned() bool {
	return d.aligned
}

func (d *Decoder) MaxLength() uint64 {
	return d.maxLength
}

func (d *Decoder) AlignIfAligned() error {
	if d.aligned {
		_, err := d.Align()
		return err
	}
	return nil
}

func (d *Decoder) ReadBool() (bool, error) {
	return d.ReadBit()
}

func (d *Decoder) ReadConstrainedWholeNumber(lb, ub int64) (int64, error) {
	if ub < lb {
		return 0, asn1core.DecodeErrorf("%w: empty range %d..%d", asn1core.ErrConstraint, lb, ub)
	}
	s := span(lb, ub)
	if s == 0 {
		return lb, nil
	}
	var v uint64
	var err error
	switch {
	case !d.aligned || s < 255:
		v, err = d.ReadBits(RangeBits(s))
	case s == 255:
		if err = d.AlignIfAligned(); err == nil {
			v, err = d.ReadBits(8)
		}
	case s < 65536:
		if err = d.AlignIfAligned(); err == nil {
			v, err = d.ReadBits(16)
		}
	default:
		var octets int64
		octets, err = d.ReadConstrainedWholeNumber(1, int64(asn1ber.UintLen(s)))
		if err == nil {
			if err = d.AlignIfAligned(); err == nil {
				v, err = d.ReadBits(uint8(octets * 8))
			}
		}
	}
	if err != nil {
		return 0, err
	}
	if v > s {
		return 0, asn1core.DecodeErrorf("%w: offset %d exceeds range %d..%d", asn1core.ErrConstraint, v, lb, ub)
	}
	return int64(uint64(lb) + v), nil
}

func (d *Decoder) ReadNormallySmall() (uint64, error) {
	large, err := d.ReadBit()
	if err != nil {
		return 0, err
	}
	if !large {
		return d.ReadBits(6)
	}
	return d.readUnsignedOctets()
}

func (d *Decoder) readOctets() ([]byte, error) {
	n, more, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	if more {
		return nil, asn1core.NewUnimplementedError("fragmented whole number")
	}
	if n == 0 {
		return nil, asn1core.DecodeErrorf("%w: zero length whole number", asn1core.ErrMalformed)
	}
	return d.ReadBytes(n)
}

func (d *Decoder) readUnsignedOctets() (uint64, error) {
	content, err := d.readOctets()
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseUint(content)
}

func (d *Decoder) ReadSemiConstrainedWholeNumber(lb int64) (int64, error) {
	v, err := d.readUnsignedOctets()
	if err != nil {
		return 0, err
	}
	n := int64(uint64(lb) + v)
	if n < lb {
		return 0, asn1core.NewUnimplementedError("semi-constrained value %d above %d exceeds 64 bits", v, lb)
	}
	return n, nil
}

func (d *Decoder) ReadUnconstrainedWholeNumber() (int64, error) {
	content, err := d.readOctets()
	if err != nil {
		return 0, err
	}
	return asn1ber.ParseInt(content)
}

func (d *Decoder) ReadConstrainedLength(lb, ub uint64) (uint64, error) {
	n, err := d.ReadConstrainedWholeNumber(int64(lb), int64(ub))
	return uint64(n), err
}

// ReadLength reads one unconstrained length determinant. more is true for a fragment, in
// which case another determinant follows the fragment's units.
func (d *Decoder) ReadLength() (n uint64, more bool, err error) {
	if err = d.AlignIfAligned(); err != nil {
		return 0, false, err
	}
	first, err := d.ReadBits(8)
	if err != nil {
		return 0, false, err
	}
	switch {
	case first&0x80 == 0:
		n = first
	case first&0xC0 == 0x80:
		second, err := d.ReadBits(8)
		if err != nil {
			return 0, false, err
		}
		n = (first&0x3F)<<8 | second
	default:
		m := first & 0x3F
		if m < 1 || m > maxFragmentQuanta {
			return 0, false, asn1core.DecodeErrorf("%w: fragment of %d quanta", asn1core.ErrMalformed, m)
		}
		n, more = m*FragmentSize, true
	}
	if d.maxLength > 0 && n > d.maxLength {
		return 0, false, asn1core.DecodeErrorf("%w: %d", asn1core.ErrLengthLimit, n)
	}
	return n, more, nil
}

// ReadFragmented reverses WriteFragmented: it reads determinants until one below 16K and calls
// read for every run of units. The running total is checked against the configured maximum
// before read is called.
func (d *Decoder) ReadFragmented(read func(count uint64) error) (uint64, error) {
	var total uint64
	for {
		n, more, err := d.ReadLength()
		if err != nil {
			return total, err
		}
		total += n
		if d.maxLength > 0 && total > d.maxLength {
			return total, asn1core.DecodeErrorf("%w: %d accumulated", asn1core.ErrLengthLimit, total)
		}
		if n > 0 {
			if err := read(n); err != nil {
				return total, err
			}
		}
		if !more {
			return total, nil
		}
	}
}

func (d *Decoder) ReadNormallySmallLength() (uint64, error) {
	large, err := d.ReadBit()
	if err != nil {
		return 0, err
	}
	if !large {
		n, err := d.ReadBits(6)
		return n + 1, err
	}
	n, more, err := d.ReadLength()
	if err != nil {
		return 0, err
	}
	if more {
		return 0, asn1core.NewUnimplementedError("fragmented normally small length")
	}
	return n, nil
}

func (d *Decoder) ReadOpenType() ([]byte, error) {
	var content []byte
	_, err := d.ReadFragmented(func(count uint64) error {
		if err := d.AlignIfAligned(); err != nil {
			return err
		}
		b, err := d.ReadBytes(count)
		content = append(content, b...)
		return err
	})
	return content, err
}

func (d *Decoder) ReadBitmap(n uint64) ([]bool, error) {
	if n > d.Remaining() {
		return nil, asn1core.DecodeErrorf("%w: bitmap of %d bits", asn1core.ErrTruncated, n)
	}
	bitmap := make([]bool, n)
	for i := range bitmap {
		b, err := d.ReadBit()
		if err != nil {
			return nil, err
		}
		bitmap[i] = b
	}
	return bitmap, nil
}
