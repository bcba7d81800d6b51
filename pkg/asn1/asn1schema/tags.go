package asn1schema

import "github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"

// UniversalTag returns the universal tag of the kind of t. CHOICE and OPEN have none.
func UniversalTag(t Type) (asn1core.Tag, bool) {
	var n uint32
	switch x := t.(type) {
	case *Boolean:
		n = asn1core.TagBoolean
	case *Integer:
		n = asn1core.TagInteger
	case *Enumerated:
		n = asn1core.TagEnumerated
	case *Null:
		n = asn1core.TagNull
	case *ObjectIdentifier:
		n = asn1core.TagOID
	case *BitString:
		n = asn1core.TagBitString
	case *OctetString:
		n = asn1core.TagOctetString
	case *String:
		n = x.StringKind.Tag()
	case *Sequence, *SequenceOf:
		return asn1core.Universal(asn1core.TagSequence).WithConstructed(true), true
	case *Set, *SetOf:
		return asn1core.Universal(asn1core.TagSet).WithConstructed(true), true
	default:
		return asn1core.Tag{}, false
	}
	return asn1core.Universal(n), true
}

// Constructed reports whether the untagged encoding of t is constructed in BER.
func Constructed(t Type) bool {
	switch t.(type) {
	case *Sequence, *Set, *SequenceOf, *SetOf, *Choice, *Open:
		return true
	}
	return false
}

// OuterTag returns the first tag a BER encoding of t carries.
func OuterTag(t Type) (asn1core.Tag, bool) {
	c := t.Attributes()
	if c.Tag == nil {
		return UniversalTag(t)
	}
	return c.Tag.WithConstructed(c.Explicit || Constructed(t)), true
}

// CanonicalTag is the tag used to order t among SET members: its outer tag, or for an
// untagged CHOICE the smallest tag of its alternatives.
func CanonicalTag(t Type) (asn1core.Tag, bool) {
	if tag, ok := OuterTag(t); ok {
		return tag.Key(), true
	}
	choice, ok := t.(*Choice)
	if !ok {
		return asn1core.Tag{}, false
	}
	var best asn1core.Tag
	found := false
	for _, list := range [][]*Component{choice.Root, choice.Extension} {
		for _, m := range list {
			tag, ok := CanonicalTag(m.Type)
			if ok && (!found || tag.Less(best)) {
				best, found = tag, true
			}
		}
	}
	return best, found
}

// Matches reports whether an encoding of t can begin with tag.
func Matches(t Type, tag asn1core.Tag) bool {
	if outer, ok := OuterTag(t); ok {
		return outer.Equal(tag)
	}
	switch x := t.(type) {
	case *Choice:
		_, ok := x.Lookup(tag)
		return ok
	case *Open:
		return true
	}
	return false
}

// Clone returns a shallow copy of t. CHOICE, SEQUENCE and SET copies share their member lists
// with t.
func Clone(t Type) Type {
	switch x := t.(type) {
	case *Boolean:
		cp := *x
		return &cp
	case *Integer:
		cp := *x
		return &cp
	case *Enumerated:
		cp := *x
		return &cp
	case *Null:
		cp := *x
		return &cp
	case *ObjectIdentifier:
		cp := *x
		return &cp
	case *BitString:
		cp := *x
		return &cp
	case *OctetString:
		cp := *x
		return &cp
	case *String:
		cp := *x
		return &cp
	case *Choice:
		cp := *x
		return &cp
	case *Sequence:
		cp := *x
		return &cp
	case *Set:
		cp := *x
		return &cp
	case *SequenceOf:
		cp := *x
		return &cp
	case *SetOf:
		cp := *x
		return &cp
	case *Open:
		cp := *x
		return &cp
	}
	return t
}

// Retag returns a shallow copy of t carrying tag. CHOICE and OPEN are always tagged
// explicitly.
func Retag(t Type, tag asn1core.Tag, explicit bool) Type {
	tag = tag.Key()
	c := Clone(t)
	switch c.(type) {
	case *Choice, *Open:
		explicit = true
	}
	attrs := c.Attributes()
	attrs.Tag = &tag
	attrs.Explicit = explicit
	return c
}
