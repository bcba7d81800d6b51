package asn1schema

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// Type is one node of a type graph. The set of implementations is closed.
type Type interface {
	Kind() Kind
	Attributes() *Common
	isType()
}

// Common carries the attributes shared by every type node. A nil Tag means the universal tag
// of the kind, or no tag at all for CHOICE and OPEN.
type Common struct {
	Name     string
	Tag      *asn1core.Tag
	Explicit bool
}

func (c *Common) Attributes() *Common { return c }
func (c *Common) isType()             {}

// TypeName returns the name of t, or its kind when it is anonymous.
func TypeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	if name := t.Attributes().Name; name != "" {
		return name
	}
	return t.Kind().String()
}

type Boolean struct {
	Common
}

type Integer struct {
	Common
	Value *Constraint
}

type EnumItem struct {
	Name   string
	Number int64
}

// Enumerated lists root and extension items in declaration order.
type Enumerated struct {
	Common
	Root       []EnumItem
	Extensible bool
	Extension  []EnumItem
}

type Null struct {
	Common
}

type ObjectIdentifier struct {
	Common
}

type NamedBit struct {
	Name string
	Bit  int
}

type BitString struct {
	Common
	Size      *Constraint
	NamedBits []NamedBit
	// Containing is the type of a value carried in the bits, when constrained so.
	Containing Type
}

type OctetString struct {
	Common
	Size       *Constraint
	Containing Type
}

type String struct {
	Common
	StringKind StringKind
	Size       *Constraint
	Alphabet   *Alphabet
}

type Choice struct {
	Common
	*Components
}

type Sequence struct {
	Common
	*Components
}

// Set shares the component model of Sequence. Members are encoded in canonical order.
type Set struct {
	Sequence
}

type SequenceOf struct {
	Common
	Element Type
	Size    *Constraint
}

type SetOf struct {
	SequenceOf
}

// Open is an open type (ANY). Table, when set, narrows the candidate types from the values
// of enclosing components.
type Open struct {
	Common
	Table TableConstraint
}

func (*Boolean) Kind() Kind          { return KindBoolean }
func (*Integer) Kind() Kind          { return KindInteger }
func (*Enumerated) Kind() Kind       { return KindEnumerated }
func (*Null) Kind() Kind             { return KindNull }
func (*ObjectIdentifier) Kind() Kind { return KindObjectIdentifier }
func (*BitString) Kind() Kind        { return KindBitString }
func (*OctetString) Kind() Kind      { return KindOctetString }
func (*String) Kind() Kind           { return KindString }
func (*Choice) Kind() Kind           { return KindChoice }
func (*Sequence) Kind() Kind         { return KindSequence }
func (*Set) Kind() Kind              { return KindSet }
func (*SequenceOf) Kind() Kind       { return KindSequenceOf }
func (*SetOf) Kind() Kind            { return KindSetOf }
func (*Open) Kind() Kind             { return KindOpen }

func NewChoice(name string, c *Components) *Choice {
	return &Choice{Common: Common{Name: name}, Components: c}
}

func NewSequence(name string, c *Components) *Sequence {
	return &Sequence{Common: Common{Name: name}, Components: c}
}

func NewSet(name string, c *Components) *Set {
	return &Set{Sequence: Sequence{Common: Common{Name: name}, Components: c}}
}

func NewSequenceOf(name string, element Type, size *Constraint) *SequenceOf {
	return &SequenceOf{Common: Common{Name: name}, Element: element, Size: size}
}

func NewSetOf(name string, element Type, size *Constraint) *SetOf {
	return &SetOf{SequenceOf: SequenceOf{Common: Common{Name: name}, Element: element, Size: size}}
}

// RootIndex returns the PER index of a root item: its rank among root items ordered by number.
func (t *Enumerated) RootIndex(name string) (int, bool) {
	for _, item := range t.Root {
		if item.Name != name {
			continue
		}
		idx := 0
		for _, other := range t.Root {
			if other.Number < item.Number {
				idx++
			}
		}
		return idx, true
	}
	return 0, false
}

// RootByIndex is the inverse of RootIndex.
func (t *Enumerated) RootByIndex(idx int) (EnumItem, bool) {
	for _, item := range t.Root {
		if i, _ := t.RootIndex(item.Name); i == idx {
			return item, true
		}
	}
	return EnumItem{}, false
}

// ExtensionIndex returns the position of an extension item.
func (t *Enumerated) ExtensionIndex(name string) (int, bool) {
	for i, item := range t.Extension {
		if item.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Item finds an item by name in the root or the extension.
func (t *Enumerated) Item(name string) (EnumItem, bool) {
	for _, item := range t.Root {
		if item.Name == name {
			return item, true
		}
	}
	for _, item := range t.Extension {
		if item.Name == name {
			return item, true
		}
	}
	return EnumItem{}, false
}

// ByNumber finds an item by its number.
func (t *Enumerated) ByNumber(n int64) (EnumItem, bool) {
	for _, item := range t.Root {
		if item.Number == n {
			return item, true
		}
	}
	for _, item := range t.Extension {
		if item.Number == n {
			return item, true
		}
	}
	return EnumItem{}, false
}

// FromNames builds a bit string with the named bits set, sized to the highest bit used or
// to the lower size bound, whichever is larger.
func (t *BitString) FromNames(names ...string) (asn1value.BitString, error) {
	bits := make([]int, 0, len(names))
	n := 0
	for _, name := range names {
		found := false
		for _, nb := range t.NamedBits {
			if nb.Name == name {
				bits = append(bits, nb.Bit)
				n = max(n, nb.Bit+1)
				found = true
				break
			}
		}
		if !found {
			return asn1value.BitString{}, asn1core.ShapeErrorf("unknown named bit %q", name).In(TypeName(t))
		}
	}
	n = max(n, int(t.Size.LowerOr(0)))
	bs := asn1value.BitString{Bytes: make([]byte, (n+7)/8), Length: n}
	for _, b := range bits {
		bs.SetBit(b, true)
	}
	return bs, nil
}

// Names lists the named bits set in v.
func (t *BitString) Names(v asn1value.BitString) []string {
	var names []string
	for _, nb := range t.NamedBits {
		if v.At(nb.Bit) {
			names = append(names, nb.Name)
		}
	}
	return names
}
