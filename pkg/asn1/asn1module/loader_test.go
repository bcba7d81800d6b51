package asn1module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
	"github.com/google/go-cmp/cmp"
)

const exampleModule = `
module: Example
types:
  - name: Inner
    kind: INTEGER
    value: {min: 0, max: 255}
  - name: Colour
    kind: ENUMERATED
    items: [red, {name: green, number: 5}, blue]
    extension_items: [cyan]
  - name: Record
    kind: SEQUENCE
    members:
      - {name: id, type: Inner}
      - {name: note, type: {kind: IA5String, size: {min: 1, max: 8}}, optional: true}
      - {name: inner, type: {ref: Inner, tag: "[1]", explicit: true}, optional: true}
      - {name: flag, type: BOOLEAN, default: false}
    extensible: true
    extension:
      - {name: colour, type: Colour, optional: true}
    groups:
      - - {name: x, type: INTEGER}
        - {name: y, type: INTEGER, optional: true}
  - name: Tree
    kind: SEQUENCE
    members:
      - {name: value, type: INTEGER}
      - name: children
        optional: true
        type:
          kind: SEQUENCE OF
          tag: "[0]"
          element: {ref: Tree, tag: "[1]"}
  - name: Message
    kind: SEQUENCE
    members:
      - {name: kind, type: INTEGER}
      - name: body
        type:
          kind: ANY
          table:
            field: kind
            rows:
              - {key: 1, types: [Inner]}
              - {key: 2, types: [Note]}
  - name: Note
    kind: UTF8String
  - name: Tagged
    ref: Record
    tag: "[APPLICATION 3]"
`

func loadExample(t *testing.T) *asn1schema.Module {
	t.Helper()
	m, err := Load(strings.NewReader(exampleModule))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

func mustType(t *testing.T, r asn1schema.Resolver, name string) asn1schema.Type {
	t.Helper()
	typ, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("type %s not loaded", name)
	}
	return typ
}

func TestLoadNames(t *testing.T) {
	m := loadExample(t)
	want := []string{"Colour", "Inner", "Message", "Note", "Record", "Tagged", "Tree"}
	if diff := cmp.Diff(want, m.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if m.Name != "Example" {
		t.Errorf("got %q, want %q", m.Name, "Example")
	}
}

func TestEnumNumbering(t *testing.T) {
	colour := mustType(t, loadExample(t), "Colour").(*asn1schema.Enumerated)
	want := []asn1schema.EnumItem{{Name: "red", Number: 0}, {Name: "green", Number: 5}, {Name: "blue", Number: 1}}
	if diff := cmp.Diff(want, colour.Root); diff != "" {
		t.Errorf("root items (-want +got):\n%s", diff)
	}
	if !colour.Extensible || len(colour.Extension) != 1 || colour.Extension[0].Number != 6 {
		t.Errorf("got extension %v, want cyan numbered 6", colour.Extension)
	}
}

func TestLoadedRecord(t *testing.T) {
	m := loadExample(t)
	record := mustType(t, m, "Record").(*asn1schema.Sequence)

	flag, ok := record.Member("flag")
	if !ok || !asn1value.Equal(flag.Default, asn1value.Boolean(false)) {
		t.Fatalf("flag default not loaded: %+v", flag)
	}
	inner, _ := record.Member("inner")
	if tag := inner.Type.Attributes().Tag; tag == nil || !tag.Equal(asn1core.Context(1)) || !inner.Type.Attributes().Explicit {
		t.Errorf("inner is not explicitly tagged [1]: %+v", inner.Type.Attributes())
	}
	if len(record.Groups) != 1 || len(record.Groups[0].Members) != 2 {
		t.Errorf("got %d groups, want one group of two", len(record.Groups))
	}

	tests := []struct {
		name string
		rule asn1core.Rule
		v    asn1value.Value
		want string
	}{
		{"default dropped", asn1core.DER, asn1value.NewSequence().Set("id", asn1value.Integer(5)), "30 03 02 01 05"},
		{"explicit member", asn1core.DER, asn1value.NewSequence().
			Set("id", asn1value.Integer(5)).
			Set("inner", asn1value.Integer(7)), "30 08 02 01 05 A1 03 02 01 07"},
		{"per root only", asn1core.UPER, asn1value.NewSequence().Set("id", asn1value.Integer(5)), "00 50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := asn1codec.Encode(tt.rule, record, tt.v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got := hexOf(b); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func hexOf(b []byte) string {
	return fmt.Sprintf("% X", b)
}

func TestRecursiveType(t *testing.T) {
	tree := mustType(t, loadExample(t), "Tree").(*asn1schema.Sequence)
	children, _ := tree.Member("children")
	list, ok := children.Type.(*asn1schema.SequenceOf)
	if !ok {
		t.Fatalf("children is %T", children.Type)
	}
	elem, ok := list.Element.(*asn1schema.Sequence)
	if !ok {
		t.Fatalf("element is %T", list.Element)
	}
	if elem.Components != tree.Components {
		t.Errorf("element does not share the members of Tree")
	}
	if tag := elem.Tag; tag == nil || !tag.Equal(asn1core.Context(1)) {
		t.Errorf("element tag got %v, want [1]", tag)
	}

	leaf := asn1value.NewSequence().Set("value", asn1value.Integer(2))
	v := asn1value.NewSequence().
		Set("value", asn1value.Integer(1)).
		Set("children", asn1value.List{leaf})
	for _, rule := range []asn1core.Rule{asn1core.BER, asn1core.UPER, asn1core.OER, asn1core.JER} {
		t.Run(rule.String(), func(t *testing.T) {
			b, err := asn1codec.Encode(rule, tree, v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := asn1codec.Decode(rule, tree, b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !asn1value.Equal(v, got) {
				t.Errorf("got %s, want %s", got, v)
			}
		})
	}
}

func TestTableRows(t *testing.T) {
	msg := mustType(t, loadExample(t), "Message")
	tests := []struct {
		name string
		kind int64
		body asn1value.Value
		want string
	}{
		{"integer body", 1, asn1value.Integer(9), "Inner"},
		{"string body", 2, asn1value.String("hi"), "Note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := asn1value.NewSequence().
				Set("kind", asn1value.Integer(tt.kind)).
				Set("body", &asn1value.Open{Type: tt.want, Value: tt.body})
			b, err := asn1codec.Encode(asn1core.DER, msg, v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := asn1codec.Decode(asn1core.DER, msg, b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			body, _ := got.(*asn1value.Sequence).Get("body")
			open, ok := body.(*asn1value.Open)
			if !ok {
				t.Fatalf("body is %T", body)
			}
			if open.Type != tt.want {
				t.Errorf("got %q, want %q", open.Type, tt.want)
			}
			if !asn1value.Equal(open.Value, tt.body) {
				t.Errorf("got %s, want %s", open.Value, tt.body)
			}
		})
	}
}

func TestAliasTag(t *testing.T) {
	m := loadExample(t)
	tagged := mustType(t, m, "Tagged")
	record := mustType(t, m, "Record")
	if tagged.Attributes().Name != "Tagged" || record.Attributes().Name != "Record" {
		t.Errorf("alias renamed its target")
	}
	b, err := asn1codec.Encode(asn1core.DER, tagged, asn1value.NewSequence().Set("id", asn1value.Integer(5)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := hexOf(b), "63 03 02 01 05"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	top := filepath.Join(dir, "top.yaml")
	if err := os.WriteFile(base, []byte("module: Base\ntypes:\n  - {name: Id, kind: INTEGER, value: {min: 0, max: 7}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(top, []byte("module: Top\ntypes:\n  - name: Pair\n    kind: SEQUENCE\n    members: [{name: a, type: Id}, {name: b, type: Id}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFiles(base, top)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pair := mustType(t, loaded, "Pair")
	b, err := asn1codec.Encode(asn1core.UPER, pair, asn1value.NewSequence().
		Set("a", asn1value.Integer(1)).
		Set("b", asn1value.Integer(7)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// 001 111 padded
	if got, want := hexOf(b), "3C"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "types:\n  - {name: A, kind: INTEGER, colour: red}\n", "colour"},
		{"unknown member field", "types:\n  - name: A\n    kind: SEQUENCE\n    members: [{name: a, type: BOOLEAN, opt: true}]\n", "opt"},
		{"undefined", "types:\n  - name: A\n    kind: SEQUENCE\n    members: [{name: a, type: Missing}]\n", "Missing"},
		{"duplicate", "types:\n  - {name: A, kind: NULL}\n  - {name: A, kind: NULL}\n", "defined twice"},
		{"optional default", "types:\n  - name: A\n    kind: SEQUENCE\n    members: [{name: a, type: BOOLEAN, optional: true, default: true}]\n", "optional and defaulted"},
		{"bad default", "types:\n  - name: A\n    kind: SEQUENCE\n    members: [{name: a, type: BOOLEAN, default: 3}]\n", "BOOLEAN"},
		{"bad kind", "types:\n  - {name: A, kind: REAL}\n", "REAL"},
		{"direct cycle", "types:\n  - {name: A, ref: B}\n  - {name: B, ref: A}\n", "itself"},
		{"bare sequence", "types:\n  - name: A\n    kind: SEQUENCE OF\n    element: SEQUENCE\n", "definition"},
		{"bad tag", "types:\n  - {name: A, kind: INTEGER, tag: \"[FOO 1]\"}\n", "tag class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatalf("got nil error, want one mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
