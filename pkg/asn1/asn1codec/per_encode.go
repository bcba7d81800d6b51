package asn1codec

import (
	"github.com/davidjspooner/asn1rt/internal/genericutils"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1per"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type perEncoder struct {
	*call
	*asn1per.Encoder
}

// perEncodeComplete produces a complete encoding of v: padded to whole octets, never empty.
func (c *call) perEncodeComplete(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) ([]byte, error) {
	p := &perEncoder{call: c, Encoder: asn1per.NewEncoder(c.rule.Aligned())}
	if err := p.encode(t, v, env); err != nil {
		return nil, err
	}
	return p.Complete(), nil
}

func (p *perEncoder) encode(t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) (err error) {
	if err := p.enter(t); err != nil {
		return err
	}
	defer p.leave()
	defer func() {
		if err != nil {
			err = asn1core.Annotate(err, asn1core.EncodeError, p.rule, asn1schema.TypeName(t))
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Boolean:
		p.WriteBool(bool(v.(asn1value.Boolean)))
		return nil
	case *asn1schema.Integer:
		return p.integer(x.Value, int64(v.(asn1value.Integer)))
	case *asn1schema.Enumerated:
		return p.enumerated(x, v)
	case *asn1schema.Null:
		return nil
	case *asn1schema.ObjectIdentifier:
		content, err := asn1ber.AppendOID(nil, v.(asn1value.OID))
		if err != nil {
			return err
		}
		return p.octets(nil, content)
	case *asn1schema.BitString:
		return p.bitString(x, v, env)
	case *asn1schema.OctetString:
		return p.octetString(x, v, env)
	case *asn1schema.String:
		return p.characterString(x, string(v.(asn1value.String)))
	case *asn1schema.Choice:
		return p.choice(x, v.(*asn1value.Choice), env)
	case *asn1schema.Sequence:
		return p.sequence(t, x.Components, x.Components.Root, v.(*asn1value.Sequence), env)
	case *asn1schema.Set:
		return p.sequence(t, x.Components, x.CanonicalOrder(), v.(*asn1value.Sequence), env)
	case *asn1schema.SequenceOf:
		return p.list(x, v.(asn1value.List), env)
	case *asn1schema.SetOf:
		return p.list(&x.SequenceOf, v.(asn1value.List), env)
	case *asn1schema.Open:
		return p.open(x, v.(*asn1value.Open), env)
	}
	return asn1core.NewUnimplementedError("type node %T", t)
}

func (p *perEncoder) integer(c *asn1schema.Constraint, n int64) error {
	inRoot := c.Contains(n)
	if c != nil && c.Extensible {
		p.WriteBit(!inRoot)
		if !inRoot {
			return p.WriteUnconstrainedWholeNumber(n)
		}
	} else if !inRoot {
		return asn1core.EncodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, c)
	}
	switch {
	case c.Bounded():
		return p.WriteConstrainedWholeNumber(*c.Lower, *c.Upper, n)
	case c != nil && c.Lower != nil:
		return p.WriteSemiConstrainedWholeNumber(*c.Lower, n)
	}
	return p.WriteUnconstrainedWholeNumber(n)
}

func (p *perEncoder) enumerated(t *asn1schema.Enumerated, v asn1value.Value) error {
	if u, ok := v.(*asn1value.Unknown); ok {
		p.WriteBit(true)
		return p.WriteNormallySmall(uint64(u.Index))
	}
	name := string(v.(asn1value.Enumerated))
	if idx, ok := t.RootIndex(name); ok {
		if t.Extensible {
			p.WriteBit(false)
		}
		return p.WriteConstrainedWholeNumber(0, int64(len(t.Root)-1), int64(idx))
	}
	idx, _ := t.ExtensionIndex(name)
	p.WriteBit(true)
	return p.WriteNormallySmall(uint64(idx))
}

// sizedAlign reports whether the units of a sized value start on an octet boundary in the
// aligned variant. Bit and octet strings align whenever their size varies; character
// strings only when their longest form exceeds 16 bits.
func sizedAlign(size *asn1schema.Constraint, n, unitBits uint64, alignVariable bool) bool {
	if n == 0 || unitBits == 0 {
		return false
	}
	lb, ub := uint64(*size.Lower), uint64(*size.Upper)
	return ub*unitBits > 16 || alignVariable && lb != ub
}

// constrainedSize reports whether the size is sent as a constrained whole number (or not at
// all when fixed) rather than as a fragmentable length determinant.
func constrainedSize(size *asn1schema.Constraint, inRoot bool) bool {
	return inRoot && size.Bounded() && *size.Upper < asn1per.MaxConstrainedLength
}

// sized writes the size n of a string or list followed by its units through emit. unitBits
// is the width of each unit, 0 when units differ in width.
func (p *perEncoder) sized(size *asn1schema.Constraint, n, unitBits uint64, alignVariable bool, emit func(from, count uint64) error) error {
	inRoot := size.Contains(int64(n))
	if size != nil && size.Extensible {
		p.WriteBit(!inRoot)
	} else if !inRoot {
		return asn1core.EncodeErrorf("%w: size %d outside %s", asn1core.ErrConstraint, n, size)
	}
	if !constrainedSize(size, inRoot) {
		return p.WriteFragmented(n, emit)
	}
	lb, ub := uint64(*size.Lower), uint64(*size.Upper)
	if lb != ub {
		if err := p.WriteConstrainedLength(n, lb, ub); err != nil {
			return err
		}
	}
	if sizedAlign(size, n, unitBits, alignVariable) {
		p.AlignIfAligned()
	}
	if n == 0 {
		return nil
	}
	return emit(0, n)
}

func (p *perEncoder) octets(size *asn1schema.Constraint, content []byte) error {
	return p.sized(size, uint64(len(content)), 8, true, func(from, count uint64) error {
		p.WriteBytes(content[from : from+count])
		return nil
	})
}

// normalizeBits applies the canonical form of a bit string value: trailing zero bits of a
// named bit list dropped, then zero extension to the lower size bound.
func normalizeBits(t *asn1schema.BitString, bs asn1value.BitString, canonical bool) asn1value.BitString {
	lb := 0
	if t.Size != nil && !t.Size.Extensible {
		lb = int(t.Size.LowerOr(0))
	}
	if canonical && len(t.NamedBits) > 0 {
		bs = bs.TrimTrailingZeros(lb)
	}
	if bs.Length < lb {
		bs = bs.Resize(lb)
	}
	return bs
}

func (p *perEncoder) bitString(t *asn1schema.BitString, v asn1value.Value, env *asn1schema.Enclosing) error {
	size := t.Size
	if t.Containing != nil {
		size = nil
	}
	var bs asn1value.BitString
	switch x := v.(type) {
	case *asn1value.Contained:
		content, err := p.perEncodeComplete(t.Containing, x.Value, env)
		if err != nil {
			return err
		}
		bs = asn1value.BitString{Bytes: content, Length: len(content) * 8}
	case asn1value.BitString:
		bs = normalizeBits(t, x, p.rule.Canonical())
	}
	return p.sized(size, uint64(bs.Length), 1, true, func(from, count uint64) error {
		p.WriteBitString(bs.Bytes[from/8:], count)
		return nil
	})
}

func (p *perEncoder) octetString(t *asn1schema.OctetString, v asn1value.Value, env *asn1schema.Enclosing) error {
	switch x := v.(type) {
	case *asn1value.Contained:
		content, err := p.perEncodeComplete(t.Containing, x.Value, env)
		if err != nil {
			return err
		}
		return p.octets(nil, content)
	case asn1value.OctetString:
		if t.Containing != nil {
			return p.octets(nil, x)
		}
		return p.octets(t.Size, x)
	}
	return asn1core.ShapeErrorf("%T in OCTET STRING", v)
}

// perAlphabet returns the bits per character of a known-multiplier string and, when the
// character codes do not fit that width, the alphabet whose indexes are sent instead.
func perAlphabet(t *asn1schema.String, aligned bool) (uint8, *asn1schema.Alphabet) {
	alpha := t.StringKind.Alphabet()
	count, max := t.StringKind.Repertoire()
	if t.Alphabet != nil && !t.Alphabet.Extensible && t.Alphabet.Len() > 0 {
		alpha = t.Alphabet
		count, max = uint64(alpha.Len()), alpha.Max()
	}
	width := asn1per.RangeBits(count - 1)
	if aligned && width > 0 {
		width = genericutils.PowerOfTwoCeil(width)
	}
	if uint64(max) < uint64(1)<<width {
		return width, nil
	}
	return width, alpha
}

// permittedChar checks r against the character set of the kind and a PER visible alphabet.
func permittedChar(t *asn1schema.String, r rune) bool {
	if !t.StringKind.Valid(r) {
		return false
	}
	if t.Alphabet != nil && !t.Alphabet.Extensible && t.Alphabet.Len() > 0 {
		return t.Alphabet.Contains(r)
	}
	return true
}

func (p *perEncoder) characterString(t *asn1schema.String, s string) error {
	if !t.StringKind.KnownMultiplier() {
		content, err := t.StringKind.Encode(s)
		if err != nil {
			return err
		}
		return p.octets(nil, content)
	}
	runes := []rune(s)
	for _, r := range runes {
		if !permittedChar(t, r) {
			return asn1core.EncodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, t.StringKind)
		}
	}
	width, remap := perAlphabet(t, p.Aligned())
	return p.sized(t.Size, uint64(len(runes)), uint64(width), false, func(from, count uint64) error {
		for _, r := range runes[from : from+count] {
			code := uint64(r)
			if remap != nil {
				idx, _ := remap.Index(r)
				code = uint64(idx)
			}
			if err := p.WriteBits(width, code); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *perEncoder) choice(t *asn1schema.Choice, v *asn1value.Choice, env *asn1schema.Enclosing) error {
	if idx, ok := t.RootIndex(v.ID); ok {
		if t.Extensible {
			p.WriteBit(false)
		}
		if err := p.WriteConstrainedWholeNumber(0, int64(len(t.Root)-1), int64(idx)); err != nil {
			return err
		}
		return p.encode(t.Root[idx].Type, v.Value, env)
	}
	if !t.Extensible {
		return asn1core.EncodeErrorf("unknown alternative %q", v.ID)
	}
	p.WriteBit(true)
	if u, ok := v.Value.(*asn1value.Unknown); ok && v.ID == "" {
		if err := p.WriteNormallySmall(uint64(u.Index)); err != nil {
			return err
		}
		return p.WriteOpenType(u.Raw)
	}
	idx, ok := t.ExtensionIndex(v.ID)
	if !ok {
		return asn1core.EncodeErrorf("unknown alternative %q", v.ID)
	}
	if err := p.WriteNormallySmall(uint64(idx)); err != nil {
		return err
	}
	content, err := p.perEncodeComplete(t.Extension[idx].Type, v.Value, env)
	if err != nil {
		return err
	}
	return p.WriteOpenType(content)
}

// sequence encodes a SEQUENCE or SET; order is the root order to use.
func (p *perEncoder) sequence(t asn1schema.Type, comps *asn1schema.Components, order []*asn1schema.Component, seq *asn1value.Sequence, env *asn1schema.Enclosing) error {
	env = env.Push(t, seq)
	extended := comps.Extensible && p.extensionsPresent(comps, seq)
	if comps.Extensible {
		p.WriteBit(extended)
	}
	var bitmap []bool
	for _, m := range order {
		if !m.Mandatory() {
			_, ok := p.present(seq, m)
			bitmap = append(bitmap, ok)
		}
	}
	p.WriteBitmap(bitmap)
	for _, m := range order {
		v, ok := p.present(seq, m)
		if !ok {
			if m.Mandatory() {
				return asn1core.ShapeErrorf("missing mandatory member %q", m.Name)
			}
			continue
		}
		if err := p.encode(m.Type, v, env); err != nil {
			return err
		}
	}
	if !extended {
		return nil
	}

	extBitmap := p.extensionBitmap(comps, seq)
	if err := p.WriteNormallySmallLength(uint64(len(extBitmap))); err != nil {
		return err
	}
	p.WriteBitmap(extBitmap)
	for i, slot := range comps.Slots() {
		if !extBitmap[i] {
			continue
		}
		var content []byte
		var err error
		if slot.Group != nil {
			gv, _ := p.groupValue(slot.Group, seq)
			content, err = p.perEncodeComplete(slot.Group.Type, gv, env)
		} else {
			content, err = p.perEncodeComplete(slot.Component.Type, seq.Fields[slot.Component.Name], env)
		}
		if err != nil {
			return err
		}
		if err := p.WriteOpenType(content); err != nil {
			return err
		}
	}
	for _, u := range unknownSlots(comps, seq) {
		if err := p.WriteOpenType(u.Raw); err != nil {
			return err
		}
	}
	return nil
}

func (p *perEncoder) list(t *asn1schema.SequenceOf, list asn1value.List, env *asn1schema.Enclosing) error {
	return p.sized(t.Size, uint64(len(list)), 0, false, func(from, count uint64) error {
		for _, e := range list[from : from+count] {
			if err := p.encode(t.Element, e, env); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *perEncoder) open(t *asn1schema.Open, o *asn1value.Open, env *asn1schema.Enclosing) error {
	if u, ok := o.Value.(*asn1value.Unknown); ok {
		return p.WriteOpenType(u.Raw)
	}
	inner, err := p.openValue(t, o, env)
	if err != nil {
		return err
	}
	content, err := p.perEncodeComplete(inner, o.Value, env)
	if err != nil {
		return err
	}
	return p.WriteOpenType(content)
}
