package asn1oer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

func TestLength(t *testing.T) {
	tests := map[uint64][]byte{
		0:     {0x00},
		127:   {0x7F},
		128:   {0x81, 0x80},
		256:   {0x82, 0x01, 0x00},
		70000: {0x83, 0x01, 0x11, 0x70},
	}
	for n, want := range tests {
		e := NewEncoder()
		e.WriteLength(n)
		if got := e.Bytes(); !bytes.Equal(got, want) {
			t.Errorf("length %d: got % X, want % X", n, got, want)
		}
		padded := append(append([]byte(nil), want...), make([]byte, n)...)
		got, err := NewDecoder(padded, 0).ReadLength()
		if err != nil || got != n {
			t.Errorf("length %d: decoded %d %v", n, got, err)
		}
	}
	if _, err := NewDecoder([]byte{0x82, 0x01, 0x00}, 0).ReadLength(); !errors.Is(err, asn1core.ErrTruncated) {
		t.Errorf("got %v, want truncated", err)
	}
	if _, err := NewDecoder(append([]byte{0x82, 0x01, 0x00}, make([]byte, 256)...), 100).ReadLength(); !errors.Is(err, asn1core.ErrLengthLimit) {
		t.Errorf("got %v, want length limit", err)
	}

	// the short form is held to the same limits
	if _, err := NewDecoder([]byte{0x05, 0x01}, 0).ReadLength(); !errors.Is(err, asn1core.ErrTruncated) {
		t.Errorf("short form: got %v, want truncated", err)
	}
	if _, err := NewDecoder([]byte{0x05, 0, 0, 0, 0, 0}, 4).ReadLength(); !errors.Is(err, asn1core.ErrLengthLimit) {
		t.Errorf("short form: got %v, want length limit", err)
	}
}

func TestSizes(t *testing.T) {
	if UnsignedSize(255) != 1 || UnsignedSize(256) != 2 || UnsignedSize(1<<32-1) != 4 || UnsignedSize(1<<32) != 8 {
		t.Errorf("unexpected unsigned sizes")
	}
	if SignedSize(-128, 127) != 1 || SignedSize(-129, 0) != 2 || SignedSize(0, 1<<31) != 8 {
		t.Errorf("unexpected signed sizes")
	}
}

func TestIntegers(t *testing.T) {
	e := NewEncoder()
	e.WriteUnsigned(0x1234, 2)
	e.WriteSigned(-2, 1)
	e.WriteVarUnsigned(300)
	e.WriteVarSigned(-129)
	e.WriteEnumerated(5)
	e.WriteEnumerated(200)
	e.WriteEnumerated(-1)
	want := []byte{0x12, 0x34, 0xFE, 0x02, 0x01, 0x2C, 0x02, 0xFF, 0x7F, 0x05, 0x82, 0x00, 0xC8, 0x81, 0xFF}
	if got := e.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
	d := NewDecoder(want, 0)
	if v, _ := d.ReadUnsigned(2); v != 0x1234 {
		t.Errorf("got %X", v)
	}
	if v, _ := d.ReadSigned(1); v != -2 {
		t.Errorf("got %d", v)
	}
	if v, _ := d.ReadVarUnsigned(); v != 300 {
		t.Errorf("got %d", v)
	}
	if v, _ := d.ReadVarSigned(); v != -129 {
		t.Errorf("got %d", v)
	}
	for _, n := range []int64{5, 200, -1} {
		if v, err := d.ReadEnumerated(); err != nil || v != n {
			t.Errorf("got %d %v, want %d", v, err, n)
		}
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		tag  asn1core.Tag
		want []byte
	}{
		{asn1core.Context(0), []byte{0x80}},
		{asn1core.Application(62), []byte{0x7E}},
		{asn1core.Context(63), []byte{0xBF, 0x3F}},
		{asn1core.Private(200), []byte{0xFF, 0x81, 0x48}},
	}
	for _, test := range tests {
		e := NewEncoder()
		e.WriteTag(test.tag)
		if got := e.Bytes(); !bytes.Equal(got, test.want) {
			t.Errorf("%v: got % X, want % X", test.tag, got, test.want)
		}
		tag, err := NewDecoder(test.want, 0).ReadTag()
		if err != nil || tag != test.tag {
			t.Errorf("%v: decoded %v %v", test.tag, tag, err)
		}
	}
}

func TestBitmaps(t *testing.T) {
	e := NewEncoder()
	e.WritePreamble([]bool{true, false, true})
	e.WriteBitmap([]bool{false, true, false, false, false, false, false, false, true})
	want := []byte{0xA0, 0x03, 0x07, 0x40, 0x80}
	if got := e.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
	d := NewDecoder(want, 0)
	pre, err := d.ReadPreamble(3)
	if err != nil || !pre[0] || pre[1] || !pre[2] {
		t.Errorf("got %v %v", pre, err)
	}
	bm, err := d.ReadBitmap()
	if err != nil || len(bm) != 9 || !bm[1] || !bm[8] {
		t.Errorf("got %v %v", bm, err)
	}
	if _, err := NewDecoder([]byte{0xA1}, 0).ReadPreamble(3); !errors.Is(err, asn1core.ErrInvalidBitmap) {
		t.Errorf("got %v, want invalid bitmap", err)
	}
}
