package asn1schema

import (
	"errors"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
	"github.com/google/go-cmp/cmp"
)

func tagged(t Type, n uint32) Type {
	return Retag(t, asn1core.Context(n), false)
}

func TestCanonicalOrder(t *testing.T) {
	inner := NewChoice("Inner", NewComponents(
		Field("x", tagged(&Integer{}, 7)),
		Field("y", tagged(&Boolean{}, 1)),
	))
	set := NewSet("S", NewComponents(
		Field("c", tagged(&Integer{}, 3)),
		Field("a", &Boolean{}),
		Field("d", inner),
		Field("b", Retag(&Integer{}, asn1core.Application(0), false)),
	))
	var got []string
	for _, m := range set.CanonicalOrder() {
		got = append(got, m.Name)
	}
	want := []string{"a", "b", "d", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("canonical order mismatch (-want +got):\n%s", diff)
	}
}

func TestChoiceLookup(t *testing.T) {
	inner := NewChoice("Inner", NewComponents(
		Field("x", tagged(&Integer{}, 1)),
		Field("y", &String{StringKind: IA5String}),
	))
	outer := NewChoice("Outer", NewComponents(
		Field("a", tagged(&Boolean{}, 0)),
		Field("b", inner),
	).Extend(Field("c", &Open{})))

	tests := []struct {
		tag  asn1core.Tag
		want []string
	}{
		{asn1core.Context(0), []string{"a"}},
		{asn1core.Context(1), []string{"b", "x"}},
		{asn1core.Universal(asn1core.TagIA5String), []string{"b", "y"}},
		{asn1core.Private(9), []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			got, ok := outer.Lookup(tt.tag)
			if !ok {
				t.Fatalf("no match for %s", tt.tag)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if _, ok := inner.Lookup(asn1core.Private(9)); ok {
		t.Errorf("inner choice must not match an unrelated tag")
	}
	if !Matches(outer, asn1core.Context(1)) || Matches(inner, asn1core.Context(0)) {
		t.Errorf("Matches disagrees with Lookup")
	}
}

func TestRetag(t *testing.T) {
	base := &Integer{Common: Common{Name: "Age"}, Value: Range(0, 200)}
	r := Retag(base, asn1core.Context(2), false).(*Integer)
	if base.Tag != nil {
		t.Errorf("Retag modified its input")
	}
	if r.Value != base.Value || r.Explicit {
		t.Errorf("unexpected copy %+v", r)
	}
	tag, _ := OuterTag(r)
	if got, want := tag.String(), "[2]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	c := Retag(NewChoice("C", NewComponents()), asn1core.Context(0), false)
	if !c.Attributes().Explicit {
		t.Errorf("tagged CHOICE must be explicit")
	}
	if tag, _ := OuterTag(c); !tag.Constructed {
		t.Errorf("explicit tag must be constructed")
	}
}

func TestEnumerated(t *testing.T) {
	e := &Enumerated{
		Root:       []EnumItem{{"red", 5}, {"green", 0}, {"blue", 3}},
		Extensible: true,
		Extension:  []EnumItem{{"black", 10}},
	}
	for name, want := range map[string]int{"green": 0, "blue": 1, "red": 2} {
		if got, _ := e.RootIndex(name); got != want {
			t.Errorf("%s: got %d, want %d", name, got, want)
		}
		item, _ := e.RootByIndex(want)
		if item.Name != name {
			t.Errorf("got %q, want %q", item.Name, name)
		}
	}
	if _, ok := e.RootIndex("black"); ok {
		t.Errorf("extension item reported in root")
	}
	if idx, ok := e.ExtensionIndex("black"); !ok || idx != 0 {
		t.Errorf("got %d %v", idx, ok)
	}
}

func TestConstraint(t *testing.T) {
	c := Range(-5, 10)
	if !c.Bounded() || c.Span() != 15 {
		t.Errorf("got span %d", c.Span())
	}
	if c.Contains(11) || !c.Contains(-5) {
		t.Errorf("bad containment")
	}
	if n, ok := Fixed(4).Fixed(); !ok || n != 4 {
		t.Errorf("got %d %v", n, ok)
	}
	var none *Constraint
	if !none.Contains(1<<40) || none.Bounded() {
		t.Errorf("nil constraint must be unbounded")
	}
	if got, want := AtLeast(1).Extend().String(), "(1..MAX, ...)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	a := NewAlphabet("cab a", false)
	if got, want := string(a.Chars), " abc"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if i, ok := a.Index('b'); !ok || i != 2 {
		t.Errorf("got %d %v", i, ok)
	}
}

func TestStringKinds(t *testing.T) {
	tests := []struct {
		kind StringKind
		in   string
		want []byte
	}{
		{IA5String, "abc", []byte("abc")},
		{BMPString, "hé", []byte{0x00, 'h', 0x00, 0xE9}},
		{UniversalString, "€", []byte{0x00, 0x00, 0x20, 0xAC}},
		{GeneralString, "café", []byte{'c', 'a', 'f', 0xE9}},
		{UTF8String, "café", []byte("café")},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := tt.kind.Encode(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("encode mismatch (-want +got):\n%s", diff)
			}
			back, err := tt.kind.Decode(got)
			if err != nil {
				t.Fatal(err)
			}
			if back != tt.in {
				t.Errorf("got %q, want %q", back, tt.in)
			}
		})
	}

	if _, err := PrintableString.Encode("a@b"); !errors.Is(err, asn1core.ErrInvalidChar) {
		t.Errorf("got %v, want ErrInvalidChar", err)
	}
	_, err := TeletexString.Encode("x")
	if typ, _ := asn1core.TypeOf(err); typ != asn1core.UnsupportedError {
		t.Errorf("got %v, want an unsupported error", err)
	}
	if n, max := NumericString.Repertoire(); n != 11 || max != '9' {
		t.Errorf("got %d %q", n, max)
	}
	if k, err := ParseStringKind("ia5string"); err != nil || k != IA5String {
		t.Errorf("got %v %v", k, err)
	}
}

func TestTableResolve(t *testing.T) {
	intType := &Integer{Common: Common{Name: "Int"}}
	strType := &String{Common: Common{Name: "Str"}, StringKind: UTF8String}
	table := &FieldTable{
		Field: "id",
		Rows: map[string][]Type{
			"1": {intType},
			"2": {intType, strType},
		},
	}
	env := (*Enclosing)(nil).Push(nil, asn1value.NewSequence().Set("id", asn1value.Integer(2)))
	inner := env.Push(nil, asn1value.List{})

	tests := []struct {
		name string
		env  *Enclosing
		want Resolution
	}{
		{"many", inner, ResolveMany},
		{"one", (*Enclosing)(nil).Push(nil, asn1value.NewSequence().Set("id", asn1value.Integer(1))), ResolveOne},
		{"no row", (*Enclosing)(nil).Push(nil, asn1value.NewSequence().Set("id", asn1value.Integer(9))), ResolveNone},
		{"no field", nil, ResolveNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := table.Resolve(tt.env)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	seq := NewSequence("Rec", NewComponents(
		Field("a", &Integer{}),
		Optional("b", &Boolean{}),
		WithDefault("c", &Integer{}, asn1value.Integer(3)),
	).ExtendGroup(
		Field("d", &Integer{}),
		Optional("e", &Boolean{}),
	))

	tests := []struct {
		name  string
		value asn1value.Value
		fails int
	}{
		{"minimal", asn1value.NewSequence().Set("a", asn1value.Integer(1)), 0},
		{"group complete", asn1value.NewSequence().Set("a", asn1value.Integer(1)).Set("d", asn1value.Integer(2)), 0},
		{"group partial", asn1value.NewSequence().Set("a", asn1value.Integer(1)).Set("e", asn1value.Boolean(true)), 1},
		{"missing mandatory", asn1value.NewSequence().Set("b", asn1value.Boolean(true)), 1},
		{"undeclared and wrong kind", asn1value.NewSequence().Set("a", asn1value.Boolean(true)).Set("z", asn1value.Null{}), 2},
		{"not a sequence", asn1value.Integer(1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(seq, tt.value)
			var got int
			var list asn1core.ErrorList
			switch {
			case err == nil:
			case errors.As(err, &list):
				got = len(list)
			default:
				got = 1
			}
			if got != tt.fails {
				t.Errorf("got %d errors (%v), want %d", got, err, tt.fails)
			}
			if err != nil {
				if typ, _ := asn1core.TypeOf(err); typ != asn1core.ValueShapeError {
					t.Errorf("got %v, want a value shape error", typ)
				}
			}
		})
	}
}

func TestNamedBits(t *testing.T) {
	bs := &BitString{
		NamedBits: []NamedBit{{"read", 0}, {"write", 1}, {"exec", 5}},
		Size:      AtLeast(8),
	}
	v, err := bs.FromNames("write", "exec")
	if err != nil {
		t.Fatal(err)
	}
	if v.Length != 8 || v.Bytes[0] != 0x44 {
		t.Errorf("got %v", v)
	}
	if diff := cmp.Diff([]string{"write", "exec"}, bs.Names(v)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if _, err := bs.FromNames("delete"); err == nil {
		t.Errorf("expected an error for an unknown bit name")
	}
}
