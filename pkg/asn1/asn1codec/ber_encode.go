package asn1codec

import (
	"bytes"
	"slices"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// ownTag returns the tag of the TLV holding the contents of t, inside any explicit tag.
// CHOICE and OPEN have none.
func ownTag(t asn1schema.Type) (asn1core.Tag, bool) {
	if _, ok := t.(*asn1schema.Choice); ok {
		return asn1core.Tag{}, false
	}
	if _, ok := t.(*asn1schema.Open); ok {
		return asn1core.Tag{}, false
	}
	attrs := t.Attributes()
	if attrs.Tag != nil && !attrs.Explicit {
		return attrs.Tag.WithConstructed(asn1schema.Constructed(t)), true
	}
	return asn1schema.UniversalTag(t)
}

// explicitTag returns the wrapping tag of t when it carries one.
func explicitTag(t asn1schema.Type) (asn1core.Tag, bool) {
	attrs := t.Attributes()
	if attrs.Tag == nil {
		return asn1core.Tag{}, false
	}
	if _, ok := ownTag(t); ok && !attrs.Explicit {
		return asn1core.Tag{}, false
	}
	return attrs.Tag.WithConstructed(true), true
}

func (c *call) berTLV(tag asn1core.Tag, content []byte) []byte {
	if c.rule == asn1core.CER && tag.Constructed {
		return asn1ber.AppendIndefinite(nil, tag, content)
	}
	return asn1ber.AppendTLV(nil, tag, content)
}

// berEncode returns the complete encoding of v: one TLV, or the encoding of the chosen
// alternative for an untagged CHOICE or OPEN.
func (c *call) berEncode(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) (b []byte, err error) {
	if err := c.enter(t); err != nil {
		return nil, err
	}
	defer c.leave()
	defer func() {
		if err != nil {
			err = asn1core.Annotate(err, asn1core.EncodeError, c.rule, asn1schema.TypeName(t))
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Choice:
		b, err = c.berChoice(x, v.(*asn1value.Choice), env)
	case *asn1schema.Open:
		b, err = c.berOpen(x, v.(*asn1value.Open), env)
	default:
		var content []byte
		if content, err = c.berContent(t, v, env); err == nil {
			tag, _ := ownTag(t)
			b = c.berTLV(tag, content)
		}
	}
	if err != nil {
		return nil, err
	}
	if tag, ok := explicitTag(t); ok {
		b = c.berTLV(tag, b)
	}
	return b, nil
}

func (c *call) berContent(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) ([]byte, error) {
	switch x := t.(type) {
	case *asn1schema.Boolean:
		if v.(asn1value.Boolean) {
			return []byte{0xFF}, nil
		}
		return []byte{0x00}, nil
	case *asn1schema.Integer:
		n := int64(v.(asn1value.Integer))
		if cons := x.Value; cons != nil && !cons.Extensible && !cons.Contains(n) {
			return nil, asn1core.EncodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, cons)
		}
		return asn1ber.AppendInt(nil, n), nil
	case *asn1schema.Enumerated:
		if u, ok := v.(*asn1value.Unknown); ok {
			return asn1ber.AppendInt(nil, int64(u.Index)), nil
		}
		item, _ := x.Item(string(v.(asn1value.Enumerated)))
		return asn1ber.AppendInt(nil, item.Number), nil
	case *asn1schema.Null:
		return nil, nil
	case *asn1schema.ObjectIdentifier:
		return asn1ber.AppendOID(nil, v.(asn1value.OID))
	case *asn1schema.BitString:
		if cv, ok := v.(*asn1value.Contained); ok {
			inner, err := c.berEncode(x.Containing, cv.Value, env)
			if err != nil {
				return nil, err
			}
			return asn1ber.AppendBitString(nil, inner, len(inner)*8), nil
		}
		bs := normalizeBits(x, v.(asn1value.BitString), c.rule.Canonical())
		if err := checkSize(x.Size, bs.Length); err != nil {
			return nil, err
		}
		return asn1ber.AppendBitString(nil, bs.Bytes, bs.Length), nil
	case *asn1schema.OctetString:
		if cv, ok := v.(*asn1value.Contained); ok {
			return c.berEncode(x.Containing, cv.Value, env)
		}
		s := v.(asn1value.OctetString)
		if err := checkSize(x.Size, len(s)); err != nil {
			return nil, err
		}
		return s, nil
	case *asn1schema.String:
		return c.berString(x, string(v.(asn1value.String)))
	case *asn1schema.Sequence:
		comps := x.Components
		order := append(append([]*asn1schema.Component(nil), comps.Root...), comps.Extension...)
		return c.berMembers(t, order, v.(*asn1value.Sequence), env)
	case *asn1schema.Set:
		comps := x.Components
		order := append(append([]*asn1schema.Component(nil), comps.CanonicalOrder()...), comps.Extension...)
		return c.berMembers(t, order, v.(*asn1value.Sequence), env)
	case *asn1schema.SequenceOf:
		return c.berList(x, v.(asn1value.List), false, env)
	case *asn1schema.SetOf:
		return c.berList(&x.SequenceOf, v.(asn1value.List), c.rule.Canonical(), env)
	}
	return nil, asn1core.NewUnimplementedError("type node %T", t)
}

func (c *call) berString(t *asn1schema.String, s string) ([]byte, error) {
	if t.StringKind.KnownMultiplier() {
		n := 0
		for _, r := range s {
			if !permittedChar(t, r) {
				return nil, asn1core.EncodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, t.StringKind)
			}
			n++
		}
		if err := checkSize(t.Size, n); err != nil {
			return nil, err
		}
	}
	return t.StringKind.Encode(s)
}

func (c *call) berChoice(t *asn1schema.Choice, v *asn1value.Choice, env *asn1schema.Enclosing) ([]byte, error) {
	if v.ID == "" {
		u := v.Value.(*asn1value.Unknown)
		if u.Tag == nil {
			return nil, asn1core.EncodeErrorf("unknown alternative %d has no tag based encoding", u.Index)
		}
		return u.Raw, nil
	}
	m, _ := t.Member(v.ID)
	return c.berEncode(m.Type, v.Value, env)
}

func (c *call) berOpen(t *asn1schema.Open, v *asn1value.Open, env *asn1schema.Enclosing) ([]byte, error) {
	if u, ok := v.Value.(*asn1value.Unknown); ok {
		return u.Raw, nil
	}
	inner, err := c.openValue(t, v, env)
	if err != nil {
		return nil, err
	}
	return c.berEncode(inner, v.Value, env)
}

func (c *call) berMembers(t asn1schema.Type, order []*asn1schema.Component, seq *asn1value.Sequence, env *asn1schema.Enclosing) ([]byte, error) {
	env = env.Push(t, seq)
	var b []byte
	for _, m := range order {
		v, ok := c.present(seq, m)
		if !ok {
			continue
		}
		enc, err := c.berEncode(m.Type, v, env)
		if err != nil {
			return nil, err
		}
		b = append(b, enc...)
	}
	unknown := slices.Clone(seq.Extensions)
	slices.SortStableFunc(unknown, func(a, b *asn1value.Unknown) int { return a.Index - b.Index })
	for _, u := range unknown {
		if u.Raw == nil {
			continue
		}
		if u.Tag == nil {
			return nil, asn1core.EncodeErrorf("unknown extension %d has no tag based encoding", u.Index)
		}
		b = append(b, u.Raw...)
	}
	return b, nil
}

func (c *call) berList(t *asn1schema.SequenceOf, list asn1value.List, sorted bool, env *asn1schema.Enclosing) ([]byte, error) {
	if err := checkSize(t.Size, len(list)); err != nil {
		return nil, err
	}
	encs := make([][]byte, 0, len(list))
	for _, e := range list {
		enc, err := c.berEncode(t.Element, e, env)
		if err != nil {
			return nil, err
		}
		encs = append(encs, enc)
	}
	if sorted {
		slices.SortStableFunc(encs, comparePadded)
	}
	return bytes.Join(encs, nil), nil
}

// comparePadded orders encodings as octet strings, the shorter one padded with trailing zeros.
func comparePadded(a, b []byte) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return int(x) - int(y)
		}
	}
	return 0
}
