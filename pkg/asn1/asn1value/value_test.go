package asn1value

import (
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

func TestBitString(t *testing.T) {
	bs := NewBitString(0x5, 4)
	if got := bs.String(); got != "'0101'B" {
		t.Errorf("got %q, want %q", got, "'0101'B")
	}
	if bs.Uint64() != 5 || !bs.At(1) || bs.At(0) {
		t.Errorf("unexpected bits in %v", bs)
	}
	longer := bs.Resize(10)
	if longer.Length != 10 || longer.Uint64() != 5<<6 {
		t.Errorf("got %v", longer)
	}
	if trimmed := longer.TrimTrailingZeros(0); trimmed.Length != 4 {
		t.Errorf("got %v, want 4 bits", trimmed)
	}
	if trimmed := longer.TrimTrailingZeros(8); trimmed.Length != 8 {
		t.Errorf("got %v, want 8 bits", trimmed)
	}
	if !Equal(BitStringFromBits(false, true, false, true), bs) {
		t.Errorf("bit-wise construction differs")
	}
}

func TestEqual(t *testing.T) {
	tag := asn1core.Context(4)
	a := NewSequence().
		Set("a", Integer(5)).
		Set("b", List{Boolean(true), String("x")}).
		Set("c", NewChoice("y", OID{1, 2, 3}))
	a.Extensions = []*Unknown{{Index: 2, Tag: &tag, Raw: []byte{0x84, 0x00}}}

	b := NewSequence().
		Set("c", NewChoice("y", OID{1, 2, 3})).
		Set("b", List{Boolean(true), String("x")}).
		Set("a", Integer(5))
	tag2 := asn1core.Context(4)
	b.Extensions = []*Unknown{{Index: 2, Tag: &tag2, Raw: []byte{0x84, 0x00}}}

	if !Equal(a, b) {
		t.Errorf("%v != %v", a, b)
	}
	if Key(a) != Key(b) {
		t.Errorf("keys differ: %q %q", Key(a), Key(b))
	}
	b.Set("a", Integer(6))
	if Equal(a, b) {
		t.Errorf("%v == %v", a, b)
	}
	if Equal(Integer(1), Enumerated("1")) {
		t.Errorf("different kinds must not compare equal")
	}
	if Equal(OctetString{1}, nil) || !Equal(nil, nil) {
		t.Errorf("nil handling")
	}
}
