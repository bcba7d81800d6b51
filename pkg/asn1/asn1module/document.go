// Package asn1module loads type graphs from the YAML hand-over format a front-end compiler
// produces, and registers them in an asn1schema.Module.
//
// A document lists named types. Wherever a type is expected a scalar names a declared type, a
// universal kind ("INTEGER", "OCTET STRING", "ANY") or a string kind ("IA5String"); a mapping
// describes an inline type:
//
//	module: Example
//	types:
//	  - name: Record
//	    kind: SEQUENCE
//	    members:
//	      - {name: id, type: {kind: INTEGER, value: {min: 0, max: 255}}}
//	      - {name: note, type: UTF8String, optional: true}
//	      - {name: inner, type: {ref: Inner, tag: "[0]", explicit: true}}
//	    extensible: true
//	    extension:
//	      - {name: flag, type: BOOLEAN, default: false}
package asn1module

import (
	"reflect"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"gopkg.in/yaml.v3"
)

type document struct {
	Module string      `yaml:"module"`
	Types  []*typeSpec `yaml:"types"`
}

// typeSpec is one type node. Name is only read on top level definitions.
type typeSpec struct {
	Name     string `yaml:"name"`
	Ref      string `yaml:"ref"`
	Kind     string `yaml:"kind"`
	Tag      string `yaml:"tag"`
	Explicit bool   `yaml:"explicit"`

	Value    *rangeSpec `yaml:"value"`
	Size     *rangeSpec `yaml:"size"`
	Alphabet *alphaSpec `yaml:"alphabet"`

	Items          []*itemSpec `yaml:"items"`
	ExtensionItems []*itemSpec `yaml:"extension_items"`
	Bits           []*itemSpec `yaml:"bits"`

	Containing *typeSpec `yaml:"containing"`
	Element    *typeSpec `yaml:"element"`

	Members    []*memberSpec   `yaml:"members"`
	Extensible bool            `yaml:"extensible"`
	Extension  []*memberSpec   `yaml:"extension"`
	Groups     [][]*memberSpec `yaml:"groups"`

	Table      *tableSpec `yaml:"table"`
	Candidates []string   `yaml:"candidates"`

	line int
}

type memberSpec struct {
	Name     string    `yaml:"name"`
	Type     *typeSpec `yaml:"type"`
	Optional bool      `yaml:"optional"`
	Default  any       `yaml:"default"`

	line int
}

type rangeSpec struct {
	Min        *int64  `yaml:"min"`
	Max        *int64  `yaml:"max"`
	Extensible bool    `yaml:"extensible"`
	Values     []int64 `yaml:"values"`
}

type alphaSpec struct {
	Chars      string `yaml:"chars"`
	Extensible bool   `yaml:"extensible"`
}

// itemSpec is an enumeration item or a named bit.
type itemSpec struct {
	Name   string `yaml:"name"`
	Number *int64 `yaml:"number"`
	Bit    *int   `yaml:"bit"`
}

// tableSpec maps values of the governing field to candidate type names. KeyType is needed
// when the field is not a member of the SEQUENCE declaring the open type.
type tableSpec struct {
	Field   string     `yaml:"field"`
	KeyType *typeSpec  `yaml:"key_type"`
	Rows    []*rowSpec `yaml:"rows"`
	Default []string   `yaml:"default"`
}

type rowSpec struct {
	Key   any      `yaml:"key"`
	Types []string `yaml:"types"`
}

func (t *typeSpec) UnmarshalYAML(node *yaml.Node) error {
	t.line = node.Line
	if node.Kind == yaml.ScalarNode {
		t.Ref = node.Value
		return nil
	}
	type plain typeSpec
	return decodeStrict(node, (*plain)(t))
}

func (m *memberSpec) UnmarshalYAML(node *yaml.Node) error {
	m.line = node.Line
	type plain memberSpec
	return decodeStrict(node, (*plain)(m))
}

func (r *rangeSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain rangeSpec
	return decodeStrict(node, (*plain)(r))
}

func (a *alphaSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Chars = node.Value
		return nil
	}
	type plain alphaSpec
	return decodeStrict(node, (*plain)(a))
}

func (i *itemSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		i.Name = node.Value
		return nil
	}
	type plain itemSpec
	return decodeStrict(node, (*plain)(i))
}

func (t *tableSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain tableSpec
	return decodeStrict(node, (*plain)(t))
}

func (r *rowSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain rowSpec
	return decodeStrict(node, (*plain)(r))
}

// decodeStrict rejects mapping keys that out does not declare. Custom unmarshalers lose the
// decoder's KnownFields setting, so the check is repeated here.
func decodeStrict(node *yaml.Node, out any) error {
	if node.Kind == yaml.MappingNode {
		known := yamlFields(reflect.TypeOf(out).Elem())
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if !known[key.Value] {
				return asn1core.NewErrorf("line %d: field %s not found", key.Line, key.Value)
			}
		}
	}
	return node.Decode(out)
}

func yamlFields(st reflect.Type) map[string]bool {
	known := make(map[string]bool, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		tag := st.Field(i).Tag.Get("yaml")
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			known[name] = true
		}
	}
	return known
}
