package asn1codec

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
	"github.com/google/go-cmp/cmp"
)

func ctx(t asn1schema.Type, n uint32) asn1schema.Type {
	return asn1schema.Retag(t, asn1core.Context(n), false)
}

func byteInt() *asn1schema.Integer {
	return &asn1schema.Integer{Value: asn1schema.Range(0, 255)}
}

func seqOf(fields ...any) *asn1value.Sequence {
	seq := asn1value.NewSequence()
	for i := 0; i+1 < len(fields); i += 2 {
		seq.Set(fields[i].(string), fields[i+1].(asn1value.Value))
	}
	return seq
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return b
}

// roundTrip encodes v, decodes the result and checks the value survived.
func roundTrip(t *testing.T, rule asn1core.Rule, typ asn1schema.Type, v asn1value.Value) []byte {
	t.Helper()
	c := New(rule, Options{})
	b, err := c.Encode(typ, v)
	if err != nil {
		t.Fatalf("%s encode: %v", rule, err)
	}
	got, err := c.Decode(typ, b)
	if err != nil {
		t.Fatalf("%s decode % X: %v", rule, b, err)
	}
	if !asn1value.Equal(v, got) {
		t.Errorf("%s: got %s, want %s", rule, got, v)
	}
	return b
}

func TestKnownEncodings(t *testing.T) {
	optSeq := asn1schema.NewSequence("S", asn1schema.NewComponents(
		asn1schema.Field("a", byteInt()),
		asn1schema.Optional("b", &asn1schema.Boolean{}),
	))
	defSeq := asn1schema.NewSequence("D", asn1schema.NewComponents(
		asn1schema.Field("a", &asn1schema.Integer{}),
		asn1schema.WithDefault("b", &asn1schema.Boolean{}, asn1value.Boolean(false)),
	))
	defByte := asn1schema.NewSequence("DB", asn1schema.NewComponents(
		asn1schema.WithDefault("a", byteInt(), asn1value.Integer(3)),
	))
	single := asn1schema.NewChoice("C", asn1schema.NewComponents(
		asn1schema.Field("x", &asn1schema.Integer{Value: asn1schema.Range(0, 15)}),
	))
	tagChoice := asn1schema.NewChoice("T", asn1schema.NewComponents(
		asn1schema.Field("a", ctx(byteInt(), 0)),
		asn1schema.Field("b", ctx(&asn1schema.Boolean{}, 1)),
	))
	extSeq := asn1schema.NewSequence("E", asn1schema.NewComponents(
		asn1schema.Field("a", &asn1schema.Integer{Value: asn1schema.Range(0, 7)}),
	).Extend(asn1schema.Optional("b", ctx(&asn1schema.Integer{Value: asn1schema.Range(0, 7)}, 0))))
	enum := &asn1schema.Enumerated{Root: []asn1schema.EnumItem{{Name: "a", Number: 0}, {Name: "b", Number: 1}, {Name: "c", Number: 2}}}
	set := asn1schema.NewSet("Set", asn1schema.NewComponents(
		asn1schema.Field("z", ctx(&asn1schema.Integer{}, 2)),
		asn1schema.Field("a", ctx(&asn1schema.Boolean{}, 1)),
	))
	a5 := seqOf("a", asn1value.Integer(5))

	tests := []struct {
		name  string
		rule  asn1core.Rule
		typ   asn1schema.Type
		value asn1value.Value
		want  string
	}{
		{"uper optional absent", asn1core.UPER, optSeq, a5, "02 80"},
		{"aper optional absent", asn1core.APER, optSeq, a5, "00 05"},
		{"oer optional absent", asn1core.OER, optSeq, a5, "00 05"},
		{"uper single alternative", asn1core.UPER, single, asn1value.NewChoice("x", asn1value.Integer(5)), "50"},
		{"uper default dropped", asn1core.UPER, defByte, seqOf("a", asn1value.Integer(3)), "00"},
		{"uper enumerated", asn1core.UPER, enum, asn1value.Enumerated("b"), "40"},
		{"oer enumerated", asn1core.OER, enum, asn1value.Enumerated("b"), "01"},
		{"uper fixed ia5", asn1core.UPER, &asn1schema.String{StringKind: asn1schema.IA5String, Size: asn1schema.Fixed(3)}, asn1value.String("abc"), "C3 8B 18"},
		{"uper fixed octets", asn1core.UPER, &asn1schema.OctetString{Size: asn1schema.Fixed(2)}, asn1value.OctetString{0xAB, 0xCD}, "AB CD"},
		{"uper extension addition", asn1core.UPER, extSeq, seqOf("a", asn1value.Integer(1), "b", asn1value.Integer(2)), "90 10 14 00"},
		{"der integer", asn1core.DER, &asn1schema.Integer{}, asn1value.Integer(5), "02 01 05"},
		{"der negative integer", asn1core.DER, &asn1schema.Integer{}, asn1value.Integer(-129), "02 02 FF 7F"},
		{"ber boolean", asn1core.BER, &asn1schema.Boolean{}, asn1value.Boolean(true), "01 01 FF"},
		{"der default dropped", asn1core.DER, defSeq, seqOf("a", asn1value.Integer(1), "b", asn1value.Boolean(false)), "30 03 02 01 01"},
		{"ber default kept", asn1core.BER, defSeq, seqOf("a", asn1value.Integer(1), "b", asn1value.Boolean(false)), "30 06 02 01 01 01 01 00"},
		{"cer indefinite", asn1core.CER, asn1schema.NewSequence("", asn1schema.NewComponents(asn1schema.Field("a", &asn1schema.Integer{}))), a5, "30 80 02 01 05 00 00"},
		{"der explicit tag", asn1core.DER, asn1schema.Retag(&asn1schema.Integer{}, asn1core.Context(1), true), asn1value.Integer(5), "A1 03 02 01 05"},
		{"der implicit tag", asn1core.DER, ctx(&asn1schema.Integer{}, 1), asn1value.Integer(5), "81 01 05"},
		{"der bit string", asn1core.DER, &asn1schema.BitString{}, asn1value.BitStringFromBits(true, false, true), "03 02 05 A0"},
		{"der oid", asn1core.DER, &asn1schema.ObjectIdentifier{}, asn1value.OID{1, 2, 840, 113549}, "06 06 2A 86 48 86 F7 0D"},
		{"der set order", asn1core.DER, set, seqOf("z", asn1value.Integer(5), "a", asn1value.Boolean(true)), "31 06 81 01 FF 82 01 05"},
		{"der set of sorted", asn1core.DER, asn1schema.NewSetOf("", &asn1schema.Integer{}, nil), asn1value.List{asn1value.Integer(3), asn1value.Integer(1), asn1value.Integer(2)}, "31 09 02 01 01 02 01 02 02 01 03"},
		{"oer unconstrained integer", asn1core.OER, &asn1schema.Integer{}, asn1value.Integer(5), "01 05"},
		{"oer two octet integer", asn1core.OER, &asn1schema.Integer{Value: asn1schema.Range(0, 65535)}, asn1value.Integer(5), "00 05"},
		{"oer choice tag", asn1core.OER, tagChoice, asn1value.NewChoice("b", asn1value.Boolean(true)), "81 FF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := mustHex(t, tt.want)
			c := New(tt.rule, Options{})
			got, err := c.Encode(tt.typ, tt.value)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(got) != string(want) {
				t.Errorf("got % X, want % X", got, want)
			}
			v, err := c.Decode(tt.typ, want)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			again, err := c.Encode(tt.typ, v)
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if string(again) != string(want) {
				t.Errorf("re-encoded % X, want % X", again, want)
			}
		})
	}
}

func recordType() *asn1schema.Sequence {
	body := asn1schema.NewChoice("Body", asn1schema.NewComponents(
		asn1schema.Field("num", &asn1schema.Integer{}),
		asn1schema.Field("text", ctx(&asn1schema.String{StringKind: asn1schema.IA5String}, 0)),
	))
	inner := &asn1schema.Integer{Common: asn1schema.Common{Name: "Inner"}, Value: asn1schema.Range(0, 255)}
	return asn1schema.NewSequence("Record", asn1schema.NewComponents(
		asn1schema.Field("id", &asn1schema.Integer{Value: asn1schema.Range(0, 65535)}),
		asn1schema.Field("name", &asn1schema.String{StringKind: asn1schema.UTF8String}),
		asn1schema.Field("flags", &asn1schema.BitString{NamedBits: []asn1schema.NamedBit{{Name: "a", Bit: 0}, {Name: "b", Bit: 1}}}),
		asn1schema.Field("kind", &asn1schema.Enumerated{Root: []asn1schema.EnumItem{{Name: "x", Number: 0}, {Name: "y", Number: 1}, {Name: "z", Number: 5}}}),
		asn1schema.Field("labels", asn1schema.NewSequenceOf("", &asn1schema.String{StringKind: asn1schema.IA5String}, nil)),
		asn1schema.Field("body", body),
		asn1schema.Optional("blob", ctx(&asn1schema.OctetString{}, 1)),
		asn1schema.Field("oid", &asn1schema.ObjectIdentifier{}),
		asn1schema.Field("done", &asn1schema.Null{}),
		asn1schema.Optional("wrapped", ctx(&asn1schema.OctetString{Containing: inner}, 3)),
	).Extend(asn1schema.Optional("extra", ctx(&asn1schema.Boolean{}, 2))))
}

func TestRoundTrip(t *testing.T) {
	typ := recordType()
	flags, err := typ.Root[2].Type.(*asn1schema.BitString).FromNames("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	full := seqOf(
		"id", asn1value.Integer(4242),
		"name", asn1value.String("zoë"),
		"flags", flags,
		"kind", asn1value.Enumerated("z"),
		"labels", asn1value.List{asn1value.String("one"), asn1value.String("two")},
		"body", asn1value.NewChoice("num", asn1value.Integer(-7)),
		"blob", asn1value.OctetString{1, 2, 3},
		"oid", asn1value.OID{1, 3, 6, 1, 2, 1},
		"done", asn1value.Null{},
		"wrapped", &asn1value.Contained{Type: "Inner", Value: asn1value.Integer(7)},
		"extra", asn1value.Boolean(true),
	)
	minimal := seqOf(
		"id", asn1value.Integer(0),
		"name", asn1value.String(""),
		"flags", asn1value.BitString{},
		"kind", asn1value.Enumerated("x"),
		"labels", asn1value.List{},
		"body", asn1value.NewChoice("text", asn1value.String("hi")),
		"oid", asn1value.OID{2, 999},
		"done", asn1value.Null{},
	)
	for _, rule := range asn1core.Rules() {
		t.Run(rule.String(), func(t *testing.T) {
			roundTrip(t, rule, typ, full)
			roundTrip(t, rule, typ, minimal)
		})
	}
}

func TestSetRoundTrip(t *testing.T) {
	set := asn1schema.NewSet("Set", asn1schema.NewComponents(
		asn1schema.Field("z", ctx(&asn1schema.Integer{}, 2)),
		asn1schema.Optional("m", ctx(&asn1schema.String{StringKind: asn1schema.VisibleString}, 0)),
		asn1schema.Field("a", ctx(&asn1schema.Boolean{}, 1)),
	))
	v := seqOf("z", asn1value.Integer(-1), "a", asn1value.Boolean(false), "m", asn1value.String("set"))
	for _, rule := range asn1core.Rules() {
		t.Run(rule.String(), func(t *testing.T) {
			roundTrip(t, rule, set, v)
		})
	}
	// BER accepts members in any order
	got, err := Decode(asn1core.BER, set, mustHex(t, "31 06 82 01 05 81 01 FF"))
	if err != nil {
		t.Fatal(err)
	}
	if want := seqOf("z", asn1value.Integer(5), "a", asn1value.Boolean(true)); !asn1value.Equal(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestOpenTypeTable(t *testing.T) {
	num := &asn1schema.Integer{Common: asn1schema.Common{Name: "Num"}}
	text := &asn1schema.String{Common: asn1schema.Common{Name: "Text"}, StringKind: asn1schema.IA5String}
	typ := asn1schema.NewSequence("Attr", asn1schema.NewComponents(
		asn1schema.Field("kind", byteInt()),
		asn1schema.Field("value", &asn1schema.Open{Table: &asn1schema.FieldTable{
			Field: "kind",
			Rows: map[string][]asn1schema.Type{
				"1": {num},
				"2": {text},
			},
		}}),
	))
	values := []*asn1value.Sequence{
		seqOf("kind", asn1value.Integer(1), "value", &asn1value.Open{Type: "Num", Value: asn1value.Integer(300)}),
		seqOf("kind", asn1value.Integer(2), "value", &asn1value.Open{Type: "Text", Value: asn1value.String("hello")}),
	}
	for _, rule := range asn1core.Rules() {
		t.Run(rule.String(), func(t *testing.T) {
			for _, v := range values {
				roundTrip(t, rule, typ, v)
			}
		})
	}
}

func TestJER(t *testing.T) {
	tests := []struct {
		name  string
		typ   asn1schema.Type
		value asn1value.Value
		want  string
	}{
		{"octets", &asn1schema.OctetString{}, asn1value.OctetString{0x0A, 0xBC}, `"0ABC"`},
		{"fixed bits", &asn1schema.BitString{Size: asn1schema.Fixed(4)}, asn1value.BitStringFromBits(true, false, true, false), `"A0"`},
		{"variable bits", &asn1schema.BitString{}, asn1value.BitStringFromBits(true, true, false), `{"value":"C0","length":3}`},
		{"oid", &asn1schema.ObjectIdentifier{}, asn1value.OID{1, 2, 840}, `"1.2.840"`},
		{"null", &asn1schema.Null{}, asn1value.Null{}, `null`},
		{"choice", asn1schema.NewChoice("", asn1schema.NewComponents(asn1schema.Field("x", &asn1schema.Integer{}))), asn1value.NewChoice("x", asn1value.Integer(5)), `{"x":5}`},
		{"sequence", asn1schema.NewSequence("", asn1schema.NewComponents(
			asn1schema.Field("a", &asn1schema.Integer{}),
			asn1schema.Optional("b", &asn1schema.Boolean{}),
			asn1schema.Field("c", asn1schema.NewSequenceOf("", &asn1schema.String{StringKind: asn1schema.UTF8String}, nil)),
		)), seqOf("a", asn1value.Integer(5), "c", asn1value.List{asn1value.String("x")}), `{"a":5,"c":["x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(asn1core.JER, tt.typ, tt.value)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			v, err := Decode(asn1core.JER, tt.typ, got)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !asn1value.Equal(v, tt.value) {
				t.Errorf("got %s, want %s", v, tt.value)
			}
		})
	}
}

func TestFromGeneric(t *testing.T) {
	typ := recordType()
	x := map[string]any{
		"id":     42,
		"name":   "n",
		"flags":  []any{"b"},
		"kind":   "y",
		"labels": []any{"l"},
		"body":   map[string]any{"text": "t"},
		"oid":    "1.2.3",
		"done":   nil,
	}
	got, err := FromGeneric(typ, x)
	if err != nil {
		t.Fatal(err)
	}
	seq := got.(*asn1value.Sequence)
	if diff := cmp.Diff([]string{"body", "done", "flags", "id", "kind", "labels", "name", "oid"}, seq.Names()); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	if flags := seq.Fields["flags"].(asn1value.BitString); flags.Length != 2 || !flags.At(1) || flags.At(0) {
		t.Errorf("got flags %s, want '01'B", flags)
	}
	if err := asn1schema.Validate(typ, got); err != nil {
		t.Errorf("converted value does not validate: %v", err)
	}

	x["nope"] = 1
	_, err = FromGeneric(typ, x)
	if et, _ := asn1core.TypeOf(err); err == nil || et != asn1core.ValueShapeError {
		t.Errorf("got %v, want a value shape error for an undeclared member", err)
	}
}

func TestDefaultsStayAbsent(t *testing.T) {
	defByte := asn1schema.NewSequence("DB", asn1schema.NewComponents(
		asn1schema.WithDefault("a", byteInt(), asn1value.Integer(3)),
	))
	defSeq := asn1schema.NewSequence("D", asn1schema.NewComponents(
		asn1schema.Field("a", &asn1schema.Integer{}),
		asn1schema.WithDefault("b", &asn1schema.Boolean{}, asn1value.Boolean(false)),
	))
	tests := []struct {
		name   string
		rule   asn1core.Rule
		typ    asn1schema.Type
		data   string
		member string
	}{
		{"uper", asn1core.UPER, defByte, "00", "a"},
		{"der", asn1core.DER, defSeq, "30 03 02 01 01", "b"},
		{"coer", asn1core.COER, defByte, "00", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tt.rule, tt.typ, mustHex(t, tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if got, ok := v.(*asn1value.Sequence).Fields[tt.member]; ok {
				t.Errorf("got %s = %s, want the default left out", tt.member, got)
			}
		})
	}
}
