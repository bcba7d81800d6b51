package asn1codec

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1oer"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type oerEncoder struct {
	*call
	*asn1oer.Encoder
}

func (c *call) oerEncodeComplete(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) ([]byte, error) {
	o := &oerEncoder{call: c, Encoder: asn1oer.NewEncoder()}
	if err := o.encode(t, v, env); err != nil {
		return nil, err
	}
	return o.Bytes(), nil
}

// oerIntegerForm returns the fixed octet count of an INTEGER, 0 for the length prefixed
// form, and whether it is signed. Extensible constraints are not visible to OER.
func oerIntegerForm(c *asn1schema.Constraint) (int, bool) {
	if c == nil || c.Extensible {
		return 0, true
	}
	if c.Lower != nil && *c.Lower >= 0 {
		if c.Upper != nil {
			return asn1oer.UnsignedSize(uint64(*c.Upper)), false
		}
		return 0, false
	}
	if c.Lower != nil && c.Upper != nil {
		return asn1oer.SignedSize(*c.Lower, *c.Upper), true
	}
	return 0, true
}

// fixedSize returns the size of a non-extensible constraint with equal bounds.
func fixedSize(c *asn1schema.Constraint) (uint64, bool) {
	if c == nil || c.Extensible {
		return 0, false
	}
	n, ok := c.Fixed()
	return uint64(n), ok
}

func checkSize(c *asn1schema.Constraint, n int) error {
	if c != nil && !c.Extensible && !c.Contains(int64(n)) {
		return asn1core.EncodeErrorf("%w: size %d outside %s", asn1core.ErrConstraint, n, c)
	}
	return nil
}

// oerCharOctets is the number of octets per character of a known-multiplier string.
func oerCharOctets(kind asn1schema.StringKind) uint64 {
	_, max := kind.Repertoire()
	switch {
	case max <= 0xFF:
		return 1
	case max <= 0xFFFF:
		return 2
	}
	return 4
}

func (o *oerEncoder) encode(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) (err error) {
	if err := o.enter(t); err != nil {
		return err
	}
	defer o.leave()
	defer func() {
		if err != nil {
			err = asn1core.Annotate(err, asn1core.EncodeError, o.rule, asn1schema.TypeName(t))
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Boolean:
		if v.(asn1value.Boolean) {
			return o.WriteBits(8, 0xFF)
		}
		return o.WriteBits(8, 0)
	case *asn1schema.Integer:
		return o.integer(x.Value, int64(v.(asn1value.Integer)))
	case *asn1schema.Enumerated:
		if u, ok := v.(*asn1value.Unknown); ok {
			o.WriteEnumerated(int64(u.Index))
			return nil
		}
		item, _ := x.Item(string(v.(asn1value.Enumerated)))
		o.WriteEnumerated(item.Number)
		return nil
	case *asn1schema.Null:
		return nil
	case *asn1schema.ObjectIdentifier:
		content, err := asn1ber.AppendOID(nil, v.(asn1value.OID))
		if err != nil {
			return err
		}
		o.WriteOpenType(content)
		return nil
	case *asn1schema.BitString:
		return o.bitString(x, v, env)
	case *asn1schema.OctetString:
		return o.octetString(x, v, env)
	case *asn1schema.String:
		return o.characterString(x, string(v.(asn1value.String)))
	case *asn1schema.Choice:
		return o.choice(x, v.(*asn1value.Choice), env)
	case *asn1schema.Sequence:
		return o.sequence(t, x.Components, x.Components.Root, v.(*asn1value.Sequence), env)
	case *asn1schema.Set:
		return o.sequence(t, x.Components, x.CanonicalOrder(), v.(*asn1value.Sequence), env)
	case *asn1schema.SequenceOf:
		return o.list(x, v.(asn1value.List), env)
	case *asn1schema.SetOf:
		return o.list(&x.SequenceOf, v.(asn1value.List), env)
	case *asn1schema.Open:
		return o.open(x, v.(*asn1value.Open), env)
	}
	return asn1core.NewUnimplementedError("type node %T", t)
}

func (o *oerEncoder) integer(c *asn1schema.Constraint, n int64) error {
	if c != nil && !c.Extensible && !c.Contains(n) {
		return asn1core.EncodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, c)
	}
	size, signed := oerIntegerForm(c)
	switch {
	case size > 0 && signed:
		o.WriteSigned(n, size)
	case size > 0:
		o.WriteUnsigned(uint64(n), size)
	case signed:
		o.WriteVarSigned(n)
	default:
		o.WriteVarUnsigned(uint64(n))
	}
	return nil
}

func (o *oerEncoder) bitString(t *asn1schema.BitString, v asn1value.Value, env *asn1schema.Enclosing) error {
	var bs asn1value.BitString
	switch x := v.(type) {
	case *asn1value.Contained:
		content, err := o.oerEncodeComplete(t.Containing, x.Value, env)
		if err != nil {
			return err
		}
		bs = asn1value.BitString{Bytes: content, Length: len(content) * 8}
	case asn1value.BitString:
		bs = normalizeBits(t, x, o.rule.Canonical())
		if err := checkSize(t.Size, bs.Length); err != nil {
			return err
		}
		if n, ok := fixedSize(t.Size); ok && t.Containing == nil {
			o.WriteBitString(bs.Bytes, n)
			o.Align()
			return nil
		}
	}
	o.WriteOpenType(asn1ber.AppendBitString(nil, bs.Bytes, bs.Length))
	return nil
}

func (o *oerEncoder) octetString(t *asn1schema.OctetString, v asn1value.Value, env *asn1schema.Enclosing) error {
	switch x := v.(type) {
	case *asn1value.Contained:
		content, err := o.oerEncodeComplete(t.Containing, x.Value, env)
		if err != nil {
			return err
		}
		o.WriteOpenType(content)
	case asn1value.OctetString:
		if err := checkSize(t.Size, len(x)); err != nil {
			return err
		}
		if _, ok := fixedSize(t.Size); ok && t.Containing == nil {
			o.WriteBytes(x)
			return nil
		}
		o.WriteOpenType(x)
	}
	return nil
}

func (o *oerEncoder) characterString(t *asn1schema.String, s string) error {
	content, err := t.StringKind.Encode(s)
	if err != nil {
		return err
	}
	if !t.StringKind.KnownMultiplier() {
		o.WriteOpenType(content)
		return nil
	}
	n := 0
	for _, r := range s {
		if !permittedChar(t, r) {
			return asn1core.EncodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, t.StringKind)
		}
		n++
	}
	if err := checkSize(t.Size, n); err != nil {
		return err
	}
	if _, ok := fixedSize(t.Size); ok {
		o.WriteBytes(content)
		return nil
	}
	o.WriteOpenType(content)
	return nil
}

func (o *oerEncoder) choice(t *asn1schema.Choice, v *asn1value.Choice, env *asn1schema.Enclosing) error {
	if v.ID == "" {
		u := v.Value.(*asn1value.Unknown)
		if u.Tag == nil {
			return asn1core.EncodeErrorf("unknown alternative without a tag")
		}
		o.WriteTag(*u.Tag)
		o.WriteOpenType(u.Raw)
		return nil
	}
	m, _ := t.Member(v.ID)
	extension := !t.IsRoot(v.ID)
	tag, tagged := asn1schema.OuterTag(m.Type)
	if !tagged {
		if _, ok := m.Type.(*asn1schema.Choice); !ok || extension {
			return asn1core.NewUnimplementedError("untagged %s alternative %q", m.Type.Kind(), m.Name)
		}
		// the nested CHOICE writes the tag of its own alternative
		return o.encode(m.Type, v.Value, env)
	}
	o.WriteTag(tag)
	if !extension {
		return o.encode(m.Type, v.Value, env)
	}
	content, err := o.oerEncodeComplete(m.Type, v.Value, env)
	if err != nil {
		return err
	}
	o.WriteOpenType(content)
	return nil
}

func (o *oerEncoder) sequence(t asn1schema.Type, comps *asn1schema.Components, order []*asn1schema.Component, seq *asn1value.Sequence, env *asn1schema.Enclosing) error {
	env = env.Push(t, seq)
	extended := comps.Extensible && o.extensionsPresent(comps, seq)
	var preamble []bool
	if comps.Extensible {
		preamble = append(preamble, extended)
	}
	for _, m := range order {
		if !m.Mandatory() {
			_, ok := o.present(seq, m)
			preamble = append(preamble, ok)
		}
	}
	o.WritePreamble(preamble)
	for _, m := range order {
		v, ok := o.present(seq, m)
		if !ok {
			if m.Mandatory() {
				return asn1core.ShapeErrorf("missing mandatory member %q", m.Name)
			}
			continue
		}
		if err := o.encode(m.Type, v, env); err != nil {
			return err
		}
	}
	if !extended {
		return nil
	}

	extBitmap := o.extensionBitmap(comps, seq)
	o.WriteBitmap(extBitmap)
	for i, slot := range comps.Slots() {
		if !extBitmap[i] {
			continue
		}
		var content []byte
		var err error
		if slot.Group != nil {
			gv, _ := o.groupValue(slot.Group, seq)
			content, err = o.oerEncodeComplete(slot.Group.Type, gv, env)
		} else {
			content, err = o.oerEncodeComplete(slot.Component.Type, seq.Fields[slot.Component.Name], env)
		}
		if err != nil {
			return err
		}
		o.WriteOpenType(content)
	}
	for _, u := range unknownSlots(comps, seq) {
		o.WriteOpenType(u.Raw)
	}
	return nil
}

func (o *oerEncoder) list(t *asn1schema.SequenceOf, list asn1value.List, env *asn1schema.Enclosing) error {
	if err := checkSize(t.Size, len(list)); err != nil {
		return err
	}
	o.WriteVarUnsigned(uint64(len(list)))
	for _, e := range list {
		if err := o.encode(t.Element, e, env); err != nil {
			return err
		}
	}
	return nil
}

func (o *oerEncoder) open(t *asn1schema.Open, v *asn1value.Open, env *asn1schema.Enclosing) error {
	if u, ok := v.Value.(*asn1value.Unknown); ok {
		o.WriteOpenType(u.Raw)
		return nil
	}
	inner, err := o.openValue(t, v, env)
	if err != nil {
		return err
	}
	content, err := o.oerEncodeComplete(inner, v.Value, env)
	if err != nil {
		return err
	}
	o.WriteOpenType(content)
	return nil
}
