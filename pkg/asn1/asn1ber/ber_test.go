package asn1ber

import (
	"bytes"
	"errors"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

func TestHeaders(t *testing.T) {
	tests := map[string]struct {
		h    Header
		want []byte
	}{
		"short":        {Header{asn1core.Universal(asn1core.TagInteger), 1}, []byte{0x02, 0x01}},
		"long":         {Header{asn1core.Universal(asn1core.TagOctetString), 200}, []byte{0x04, 0x81, 0xC8}},
		"two octets":   {Header{asn1core.Universal(asn1core.TagOctetString), 0x1234}, []byte{0x04, 0x82, 0x12, 0x34}},
		"high tag":     {Header{asn1core.Context(31), 0}, []byte{0x9F, 0x1F, 0x00}},
		"big tag":      {Header{asn1core.Application(201), 3}, []byte{0x5F, 0x81, 0x49, 0x03}},
		"constructed":  {Header{asn1core.Universal(asn1core.TagSequence).WithConstructed(true), 0}, []byte{0x30, 0x00}},
		"indefinite":   {Header{asn1core.Context(2).WithConstructed(true), LengthIndefinite}, []byte{0xA2, 0x80}},
		"private 0x3F": {Header{asn1core.Private(0x3F), 0}, []byte{0xDF, 0x3F, 0x00}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := AppendHeader(nil, test.h)
			if !bytes.Equal(got, test.want) {
				t.Fatalf("got % X, want % X", got, test.want)
			}
			h, n, err := ParseHeader(got)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(got) || h != test.h {
				t.Errorf("got %v (%d octets), want %v", h, n, test.h)
			}
		})
	}
}

func TestHeaderErrors(t *testing.T) {
	tests := map[string]struct {
		data []byte
		want error
	}{
		"empty":               {nil, asn1core.ErrTruncated},
		"no length":           {[]byte{0x02}, asn1core.ErrTruncated},
		"reserved":            {[]byte{0x02, 0xFF}, asn1core.ErrMalformed},
		"primitive indef":     {[]byte{0x04, 0x80}, asn1core.ErrMalformed},
		"non-minimal tag":     {[]byte{0x1F, 0x80, 0x01, 0x00}, asn1core.ErrMalformed},
		"short form tag long": {[]byte{0x1F, 0x05, 0x00}, asn1core.ErrMalformed},
		"length octets":       {[]byte{0x04, 0x89, 1, 2, 3, 4, 5, 6, 7, 8, 9}, asn1core.ErrLengthLimit},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseHeader(test.data)
			if !errors.Is(err, test.want) {
				t.Errorf("got %v, want %v", err, test.want)
			}
		})
	}
}

func TestReaderIndefinite(t *testing.T) {
	// SEQUENCE (indefinite) { INTEGER 5, [0] (indefinite) { NULL } } followed by BOOLEAN
	data := []byte{0x30, 0x80, 0x02, 0x01, 0x05, 0xA0, 0x80, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0xFF}
	r := NewReader(data, 0)
	raw, h, err := r.ReadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if h.Length != LengthIndefinite || !bytes.Equal(raw, data[:13]) {
		t.Errorf("got % X, want % X", raw, data[:13])
	}
	if !r.More() {
		t.Fatal("expected the BOOLEAN to follow")
	}

	r = NewReader(data, 0)
	h, _ = r.ReadHeader()
	child := r.Enter(h)
	ih, _ := child.ReadHeader()
	content, _ := child.ReadContent(ih)
	if v, _ := ParseInt(content); v != 5 {
		t.Errorf("got %d, want 5", v)
	}
	if _, _, err := child.ReadRaw(); err != nil {
		t.Fatal(err)
	}
	if child.More() {
		t.Fatal("expected end-of-contents")
	}
	if err := r.Leave(child); err != nil {
		t.Fatal(err)
	}
	if r.Offset() != 13 {
		t.Errorf("got offset %d, want 13", r.Offset())
	}

	r = NewReader(data[:8], 0)
	if _, _, err := r.ReadRaw(); err == nil {
		t.Errorf("expected an error for a missing end-of-contents")
	}
}

func TestReaderLimits(t *testing.T) {
	r := NewReader([]byte{0x04, 0x82, 0x01, 0x00}, 128)
	if _, err := r.ReadHeader(); !errors.Is(err, asn1core.ErrLengthLimit) {
		t.Errorf("got %v, want length limit", err)
	}
	r = NewReader([]byte{0x04, 0x05, 0x01}, 0)
	if _, err := r.ReadHeader(); !errors.Is(err, asn1core.ErrTruncated) {
		t.Errorf("got %v, want truncated", err)
	}
	r = NewReader([]byte{0x30, 0x03, 0x05, 0x00, 0xFF}, 0)
	h, _ := r.ReadHeader()
	child := r.Enter(h)
	nh, _ := child.ReadHeader()
	child.ReadContent(nh)
	if err := r.Leave(child); !errors.Is(err, asn1core.ErrTrailingData) {
		t.Errorf("got %v, want trailing data", err)
	}
}

func TestInteger(t *testing.T) {
	tests := []struct {
		Bytes []byte
		Value int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7F}, 127},
		{[]byte{0x00, 0x80}, 128},
		{[]byte{0x80}, -128},
		{[]byte{0xFF, 0x7F}, -129},
		{[]byte{0xFF}, -1},
		{[]byte{0x07, 0xE4}, 2020},
		{[]byte{0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, -1 << 63},
	}
	for _, test := range tests {
		if got := AppendInt(nil, test.Value); !bytes.Equal(got, test.Bytes) {
			t.Errorf("encode %d: got % X, want % X", test.Value, got, test.Bytes)
		}
		got, err := ParseInt(test.Bytes)
		if err != nil || got != test.Value {
			t.Errorf("decode % X: got %d (%v), want %d", test.Bytes, got, err, test.Value)
		}
	}
	if v, err := ParseInt([]byte{0x00, 0x00, 0x05}); err != nil || v != 5 {
		t.Errorf("redundant octets: got %d %v", v, err)
	}
	if v, err := ParseInt(make([]byte, 9)); err != nil || v != 0 {
		t.Errorf("nine zero octets: got %d %v, want 0", v, err)
	}
	if _, err := ParseInt([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Errorf("expected an unsupported error for a 72 bit integer")
	}
}

func TestOID(t *testing.T) {
	oid := []uint64{1, 3, 6, 1, 2, 1, 1, 1, 0}
	content, err := AppendOID(nil, oid)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x2B, 0x06, 0x01, 0x02, 0x01, 0x01, 0x01, 0x00}; !bytes.Equal(content, want) {
		t.Errorf("got % X, want % X", content, want)
	}
	back, err := ParseOID(content)
	if err != nil || FormatOID(back) != "1.3.6.1.2.1.1.1.0" {
		t.Errorf("got %v %v", back, err)
	}
	big, _ := AppendOID(nil, []uint64{2, 999, 3})
	if want := []byte{0x88, 0x37, 0x03}; !bytes.Equal(big, want) {
		t.Errorf("got % X, want % X", big, want)
	}
	if back, _ := ParseOID(big); FormatOID(back) != "2.999.3" {
		t.Errorf("got %v", back)
	}
	if _, err := ParseOIDString("1..2"); err == nil {
		t.Errorf("expected an error for an empty arc")
	}
}

func TestBitString(t *testing.T) {
	content := AppendBitString(nil, []byte{0xFF, 0xFF}, 12)
	if want := []byte{0x04, 0xFF, 0xF0}; !bytes.Equal(content, want) {
		t.Errorf("got % X, want % X", content, want)
	}
	data, n, err := ParseBitString(content)
	if err != nil || n != 12 || !bytes.Equal(data, []byte{0xFF, 0xF0}) {
		t.Errorf("got % X %d %v", data, n, err)
	}
	if _, _, err := ParseBitString([]byte{0x08, 0x00}); err == nil {
		t.Errorf("expected an error for 8 unused bits")
	}
}
