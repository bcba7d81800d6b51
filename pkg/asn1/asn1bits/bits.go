// Package asn1bits is an MSB-first bit cursor over a byte buffer. Writers grow their buffer on
// demand; readers never read past the data they were given. Positions are bit offsets from the
// start of the buffer.
package asn1bits

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

type Writer struct {
	buf []byte
	n   uint64
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Len is the number of bits written.
func (w *Writer) Len() uint64 {
	return w.n
}

// Bytes returns the written bits, with the final partial octet zero padded.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) grow(bits uint64) {
	need := int((w.n + bits + 7) / 8)
	for len(w.buf) < need {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteBit(b bool) {
	w.grow(1)
	if b {
		w.buf[w.n/8] |= 0x80 >> (w.n % 8)
	}
	w.n++
}

// WriteBits writes the low width bits of v, most significant first.
func (w *Writer) WriteBits(width uint8, v uint64) error {
	if width > 64 {
		return asn1core.NewUnexpectedError(64, int(width), "bit field too wide").WithUnits("bits").WithType(asn1core.EncodeError)
	}
	if width == 0 {
		return nil
	}
	w.grow(uint64(width))
	for i := int(width) - 1; i >= 0; {
		free := 8 - uint8(w.n%8)
		take := free
		if uint8(i+1) < take {
			take = uint8(i + 1)
		}
		chunk := byte((v >> uint(i+1-int(take))) & (1<<take - 1))
		w.buf[w.n/8] |= chunk << (free - take)
		w.n += uint64(take)
		i -= int(take)
	}
	return nil
}

// WriteBytes writes whole octets at the current bit position.
func (w *Writer) WriteBytes(p []byte) {
	if w.n%8 == 0 {
		w.buf = append(w.buf[:w.n/8], p...)
		w.n += uint64(len(p)) * 8
		return
	}
	for _, b := range p {
		w.WriteBits(8, uint64(b))
	}
}

// WriteBitString writes the first nbits of p.
func (w *Writer) WriteBitString(p []byte, nbits uint64) {
	full := nbits / 8
	w.WriteBytes(p[:full])
	if rem := uint8(nbits % 8); rem > 0 {
		w.WriteBits(rem, uint64(p[full]>>(8-rem)))
	}
}

// Align pads with zero bits to the next octet boundary and returns the pad count.
func (w *Writer) Align() uint8 {
	pad := uint8((8 - w.n%8) % 8)
	w.grow(uint64(pad))
	w.n += uint64(pad)
	return pad
}

type Reader struct {
	buf  []byte
	pos  uint64
	size uint64
}

func NewReader(p []byte) *Reader {
	return &Reader{buf: p, size: uint64(len(p)) * 8}
}

func (r *Reader) Pos() uint64 {
	return r.pos
}

// Remaining is the number of unread bits.
func (r *Reader) Remaining() uint64 {
	return r.size - r.pos
}

// Seek moves the cursor to an absolute bit position, used to restore after a failed trial.
func (r *Reader) Seek(pos uint64) {
	if pos > r.size {
		pos = r.size
	}
	r.pos = pos
}

func (r *Reader) need(bits uint64) error {
	if r.size-r.pos < bits {
		return asn1core.DecodeErrorf("%w: need %d bits at bit %d, have %d", asn1core.ErrTruncated, bits, r.pos, r.size-r.pos)
	}
	return nil
}

func (r *Reader) ReadBit() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	b := r.buf[r.pos/8]&(0x80>>(r.pos%8)) != 0
	r.pos++
	return b, nil
}

func (r *Reader) ReadBits(width uint8) (uint64, error) {
	if width > 64 {
		return 0, asn1core.NewUnexpectedError(64, int(width), "bit field too wide").WithUnits("bits")
	}
	if err := r.need(uint64(width)); err != nil {
		return 0, err
	}
	var v uint64
	for left := width; left > 0; {
		avail := 8 - uint8(r.pos%8)
		take := avail
		if left < take {
			take = left
		}
		b := r.buf[r.pos/8] >> (avail - take) & (1<<take - 1)
		v = v<<take | uint64(b)
		r.pos += uint64(take)
		left -= take
	}
	return v, nil
}

func (r *Reader) ReadBytes(n uint64) ([]byte, error) {
	if n > r.size/8 {
		return nil, asn1core.DecodeErrorf("%w: need %d octets at bit %d", asn1core.ErrTruncated, n, r.pos)
	}
	if err := r.need(n * 8); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if r.pos%8 == 0 {
		copy(out, r.buf[r.pos/8:])
		r.pos += n * 8
		return out, nil
	}
	for i := range out {
		b, _ := r.ReadBits(8)
		out[i] = byte(b)
	}
	return out, nil
}

// ReadBitString reads nbits into a left aligned byte slice.
func (r *Reader) ReadBitString(nbits uint64) ([]byte, error) {
	if err := r.need(nbits); err != nil {
		return nil, err
	}
	out, _ := r.ReadBytes(nbits / 8)
	if rem := uint8(nbits % 8); rem > 0 {
		b, _ := r.ReadBits(rem)
		out = append(out, byte(b)<<(8-rem))
	}
	return out, nil
}

// Align skips to the next octet boundary and returns the number of bits skipped.
func (r *Reader) Align() (uint8, error) {
	pad := uint8((8 - r.pos%8) % 8)
	if err := r.need(uint64(pad)); err != nil {
		return 0, err
	}
	r.pos += uint64(pad)
	return pad, nil
}
