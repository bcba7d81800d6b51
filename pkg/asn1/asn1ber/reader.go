package asn1ber

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

const maxRawDepth = 64

// Reader walks a sequence of encodings. A Reader entered through an indefinite length header
// runs until the end-of-contents marker, which Leave consumes.
type Reader struct {
	data       []byte
	off        int
	base       int
	indefinite bool
	maxLength  int
}

// NewReader reads data, rejecting any single length above maxLength (0 for no limit).
func NewReader(data []byte, maxLength int) *Reader {
	return &Reader{data: data, maxLength: maxLength}
}

// Offset is the absolute octet offset of the cursor from the start of the top level buffer.
func (r *Reader) Offset() int {
	return r.base + r.off
}

func (r *Reader) Mark() int {
	return r.off
}

func (r *Reader) Reset(mark int) {
	r.off = mark
}

func (r *Reader) atEOC() bool {
	return r.off+2 <= len(r.data) && r.data[r.off] == 0 && r.data[r.off+1] == 0
}

// More reports whether another encoding follows before the end of this level.
func (r *Reader) More() bool {
	if r.off >= len(r.data) {
		return false
	}
	if r.indefinite {
		return !r.atEOC()
	}
	return true
}

// Rest returns the unread bytes of this level.
func (r *Reader) Rest() []byte {
	return r.data[r.off:]
}

func (r *Reader) PeekHeader() (Header, error) {
	h, _, err := ParseHeader(r.data[r.off:])
	return h, err
}

func (r *Reader) ReadHeader() (Header, error) {
	h, n, err := ParseHeader(r.data[r.off:])
	if err != nil {
		return h, err
	}
	if h.Length != LengthIndefinite {
		if r.maxLength > 0 && h.Length > r.maxLength {
			return h, asn1core.DecodeErrorf("%w: %d octets", asn1core.ErrLengthLimit, h.Length).WithFragment(r.data[r.off:])
		}
		if h.Length > len(r.data)-r.off-n {
			return h, asn1core.DecodeErrorf("%w: %s needs %d octets, %d remain", asn1core.ErrTruncated, h.Tag, h.Length, len(r.data)-r.off-n).WithFragment(r.data[r.off:])
		}
	}
	r.off += n
	return h, nil
}

// ReadContent returns the content octets of a primitive encoding whose header was just read.
func (r *Reader) ReadContent(h Header) ([]byte, error) {
	if h.Length == LengthIndefinite {
		return nil, asn1core.DecodeErrorf("%w: indefinite length on %s", asn1core.ErrMalformed, h.Tag)
	}
	content := r.data[r.off : r.off+h.Length]
	r.off += h.Length
	return content, nil
}

// Enter returns a reader over the contents of the constructed encoding whose header was just read.
func (r *Reader) Enter(h Header) *Reader {
	child := &Reader{base: r.base + r.off, maxLength: r.maxLength}
	if h.Length == LengthIndefinite {
		child.data = r.data[r.off:]
		child.indefinite = true
		return child
	}
	child.data = r.data[r.off : r.off+h.Length]
	r.off += h.Length
	return child
}

// Leave finishes a child returned by Enter. Definite children must be fully consumed;
// indefinite children must be positioned at their end-of-contents marker.
func (r *Reader) Leave(child *Reader) error {
	if child.indefinite {
		if !child.atEOC() {
			return asn1core.DecodeErrorf("%w at offset %d", asn1core.ErrMissingEOC, child.Offset())
		}
		r.off += child.off + 2
		return nil
	}
	if child.off != len(child.data) {
		return asn1core.DecodeErrorf("%w: %d octets at offset %d", asn1core.ErrTrailingData, len(child.data)-child.off, child.Offset()).WithFragment(child.data[child.off:])
	}
	return nil
}

// ReadRaw returns the complete encoding (identifier, length and contents) of the next element.
func (r *Reader) ReadRaw() ([]byte, Header, error) {
	return r.readRaw(0)
}

func (r *Reader) readRaw(depth int) ([]byte, Header, error) {
	if depth > maxRawDepth {
		return nil, Header{}, asn1core.DecodeErrorf("%w: %d levels of indefinite length nesting", asn1core.ErrDepthLimit, depth)
	}
	start := r.off
	h, err := r.ReadHeader()
	if err != nil {
		return nil, h, err
	}
	if h.Length != LengthIndefinite {
		r.off += h.Length
		return r.data[start:r.off], h, nil
	}
	child := r.Enter(h)
	for child.More() {
		if _, _, err := child.readRaw(depth + 1); err != nil {
			r.off = start
			return nil, h, err
		}
	}
	if err := r.Leave(child); err != nil {
		r.off = start
		return nil, h, err
	}
	return r.data[start:r.off], h, nil
}
