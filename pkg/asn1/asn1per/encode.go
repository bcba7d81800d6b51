package asn1per

import (
	"math/bits"

	"github.com/davidjspooner/asn1rt/internal/genericutils"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1bits"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

type Encoder struct {
	*asn1bits.Writer
	aligned bool
}

func NewEncoder(aligned bool) *Encoder {
	return &Encoder{Writer: asn1bits.NewWriter(), aligned: aligned}
}

func (e *Encoder) Aligned() bool {
	return e.aligned
}

// AlignIfAligned pads to an octet boundary in the aligned variant only.
func (e *Encoder) AlignIfAligned() {
	if e.aligned {
		e.Align()
	}
}

// Complete returns the encoding padded to whole octets. An empty encoding becomes a single
// zero octet.
func (e *Encoder) Complete() []byte {
	if e.Len() == 0 {
		return []byte{0x00}
	}
	e.Align()
	return e.Bytes()
}

// RangeBits is the number of bits needed for values 0..span.
func RangeBits(span uint64) uint8 {
	return uint8(bits.Len64(span))
}

func span(lb, ub int64) uint64 {
	return uint64(ub) - uint64(lb)
}

func (e *Encoder) WriteBool(b bool) {
	e.WriteBit(b)
}

// WriteConstrainedWholeNumber encodes lb <= n <= ub (X.691 11.5).
func (e *Encoder) WriteConstrainedWholeNumber(lb, ub, n int64) error {
	if n < lb || n > ub {
		return asn1core.EncodeErrorf("%w: %d not in %d..%d", asn1core.ErrConstraint, n, lb, ub)
	}
	s := span(lb, ub)
	v := uint64(n) - uint64(lb)
	if s == 0 {
		return nil
	}
	if !e.aligned {
		return e.WriteBits(RangeBits(s), v)
	}
	switch {
	case s < 255:
		return e.WriteBits(RangeBits(s), v)
	case s == 255:
		e.Align()
		return e.WriteBits(8, v)
	case s < 65536:
		e.Align()
		return e.WriteBits(16, v)
	}
	octets := asn1ber.UintLen(v)
	if err := e.WriteConstrainedWholeNumber(1, int64(asn1ber.UintLen(s)), int64(octets)); err != nil {
		return err
	}
	e.Align()
	return e.WriteBits(uint8(octets*8), v)
}

// WriteNormallySmall encodes a normally small non-negative whole number (X.691 11.6).
func (e *Encoder) WriteNormallySmall(n uint64) error {
	if n < NormallySmallLimit {
		e.WriteBit(false)
		return e.WriteBits(6, n)
	}
	e.WriteBit(true)
	return e.writeUnsignedOctets(n)
}

func (e *Encoder) writeUnsignedOctets(v uint64) error {
	octets := asn1ber.UintLen(v)
	if _, err := e.WriteLength(uint64(octets)); err != nil {
		return err
	}
	e.WriteBytes(asn1ber.AppendUintN(nil, v, octets))
	return nil
}

// WriteSemiConstrainedWholeNumber encodes n >= lb as octets of n-lb (X.691 11.7).
func (e *Encoder) WriteSemiConstrainedWholeNumber(lb, n int64) error {
	if n < lb {
		return asn1core.EncodeErrorf("%w: %d below lower bound %d", asn1core.ErrConstraint, n, lb)
	}
	return e.writeUnsignedOctets(uint64(n) - uint64(lb))
}

// WriteUnconstrainedWholeNumber encodes n as length prefixed two's complement (X.691 11.8).
func (e *Encoder) WriteUnconstrainedWholeNumber(n int64) error {
	content := asn1ber.AppendInt(nil, n)
	if _, err := e.WriteLength(uint64(len(content))); err != nil {
		return err
	}
	e.WriteBytes(content)
	return nil
}

// WriteConstrainedLength encodes a length with ub < 64K (X.691 11.9.3.3). Nothing is written
// when lb == ub.
func (e *Encoder) WriteConstrainedLength(n, lb, ub uint64) error {
	if ub >= MaxConstrainedLength {
		return asn1core.NewUnexpectedError(uint64(MaxConstrainedLength-1), ub, "constrained length upper bound").WithType(asn1core.EncodeError)
	}
	return e.WriteConstrainedWholeNumber(int64(lb), int64(ub), int64(n))
}

// WriteLength writes an unconstrained length determinant for the first part of n and returns
// how many units it covers. Lengths of 16K or more are covered by a fragment of 1 to 4
// quanta; the caller must write those units and call again for the remainder.
func (e *Encoder) WriteLength(n uint64) (uint64, error) {
	e.AlignIfAligned()
	switch {
	case n < 128:
		return n, e.WriteBits(8, n)
	case n < FragmentSize:
		return n, e.WriteBits(16, 0x8000|n)
	}
	m := genericutils.Min(n/FragmentSize, maxFragmentQuanta)
	return m * FragmentSize, e.WriteBits(8, 0xC0|m)
}

// WriteFragmented writes n units behind unconstrained length determinants, calling emit for
// each run of units. A run that fills whole fragments is always followed by another
// determinant, so a final zero length is written when n is a multiple of 16K.
func (e *Encoder) WriteFragmented(n uint64, emit func(from, count uint64) error) error {
	var from uint64
	for {
		count, err := e.WriteLength(n - from)
		if err != nil {
			return err
		}
		if count > 0 {
			if err := emit(from, count); err != nil {
				return err
			}
		}
		from += count
		if count < FragmentSize {
			return nil
		}
	}
}

// WriteNormallySmallLength encodes n >= 1 (X.691 11.9.3.4), used for extension bitmaps.
func (e *Encoder) WriteNormallySmallLength(n uint64) error {
	if n == 0 {
		return asn1core.EncodeErrorf("%w: normally small length must be positive", asn1core.ErrConstraint)
	}
	if n <= NormallySmallLimit {
		e.WriteBit(false)
		return e.WriteBits(6, n-1)
	}
	e.WriteBit(true)
	count, err := e.WriteLength(n)
	if err != nil {
		return err
	}
	if count != n {
		return asn1core.NewUnimplementedError("fragmented normally small length %d", n)
	}
	return nil
}

// WriteOpenType writes content as a length prefixed, octet aligned open type (X.691 11.2).
func (e *Encoder) WriteOpenType(content []byte) error {
	return e.WriteFragmented(uint64(len(content)), func(from, count uint64) error {
		e.AlignIfAligned()
		e.WriteBytes(content[from : from+count])
		return nil
	})
}

func (e *Encoder) WriteBitmap(bitmap []bool) {
	for _, b := range bitmap {
		e.WriteBit(b)
	}
}
