package asn1codec

import (
	"strconv"

	"github.com/davidjspooner/asn1rt/internal/genericutils"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1oer"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type oerDecoder struct {
	*call
	*asn1oer.Decoder
	data []byte
}

// oerDecodeComplete decodes a complete encoding, which must be consumed entirely.
func (c *call) oerDecodeComplete(t asn1schema.Type, data []byte, env *asn1schema.Enclosing) (asn1value.Value, error) {
	o := &oerDecoder{
		call:    c,
		Decoder: asn1oer.NewDecoder(data, c.opts.MaxLength),
		data:    data,
	}
	v, err := o.decode(t, env)
	if err != nil {
		return nil, err
	}
	if n := o.Remaining() / 8; n > 0 {
		return nil, withFragment(asn1core.DecodeErrorf("%w: %d octets after %s", asn1core.ErrTrailingData, n, asn1schema.TypeName(t)), data, o.Pos())
	}
	return v, nil
}

func (o *oerDecoder) pos() uint64 {
	return o.base() + o.Pos()
}

func (o *oerDecoder) note(name string, start uint64, value any) {
	o.trace.leaf(name, o.base()+start, o.pos(), value)
}

func (o *oerDecoder) nested(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, error) {
	o.push(o.base() + at)
	defer o.pop()
	return o.oerDecodeComplete(t, content, env)
}

func (o *oerDecoder) openType() ([]byte, uint64, error) {
	start := o.Pos()
	content, err := o.ReadOpenType()
	if err != nil {
		return nil, 0, err
	}
	o.note("open type", start, strconv.Itoa(len(content))+" octets")
	return content, o.Pos() - uint64(len(content))*8, nil
}

func (o *oerDecoder) decode(t asn1schema.Type, env *asn1schema.Enclosing) (v asn1value.Value, err error) {
	if err := o.enter(t); err != nil {
		return nil, err
	}
	defer o.leave()
	start := o.Pos()
	defer func() {
		if err != nil {
			err = withFragment(asn1core.Annotate(err, asn1core.DecodeError, o.rule, asn1schema.TypeName(t)), o.data, start)
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Boolean:
		b, err := o.ReadBits(8)
		if err != nil {
			return nil, err
		}
		if b != 0 && b != 0xFF && o.rule.Canonical() {
			return nil, asn1core.DecodeErrorf("%w: BOOLEAN octet %#02x", asn1core.ErrMalformed, b)
		}
		o.note("value", start, b != 0)
		return asn1value.Boolean(b != 0), nil
	case *asn1schema.Integer:
		n, err := o.integer(x.Value)
		if err != nil {
			return nil, err
		}
		o.note("value", start, n)
		return asn1value.Integer(n), nil
	case *asn1schema.Enumerated:
		return o.enumerated(x)
	case *asn1schema.Null:
		return asn1value.Null{}, nil
	case *asn1schema.ObjectIdentifier:
		content, err := o.octets(nil)
		if err != nil {
			return nil, err
		}
		oid, err := asn1ber.ParseOID(content)
		if err != nil {
			return nil, err
		}
		o.note("value", start, asn1value.OID(oid))
		return asn1value.OID(oid), nil
	case *asn1schema.BitString:
		return o.bitString(x, env)
	case *asn1schema.OctetString:
		return o.octetString(x, env)
	case *asn1schema.String:
		s, err := o.characterString(x)
		if err != nil {
			return nil, err
		}
		o.note("value", start, strconv.Quote(s))
		return asn1value.String(s), nil
	case *asn1schema.Choice:
		return o.choice(x, env)
	case *asn1schema.Sequence:
		return o.sequence(t, x.Components, x.Components.Root, env)
	case *asn1schema.Set:
		return o.sequence(t, x.Components, x.CanonicalOrder(), env)
	case *asn1schema.SequenceOf:
		return o.list(x, env)
	case *asn1schema.SetOf:
		return o.list(&x.SequenceOf, env)
	case *asn1schema.Open:
		return o.open(x, env)
	}
	return nil, asn1core.NewUnimplementedError("type node %T", t)
}

func (o *oerDecoder) integer(c *asn1schema.Constraint) (int64, error) {
	size, signed := oerIntegerForm(c)
	var n int64
	switch {
	case size > 0 && signed:
		v, err := o.ReadSigned(size)
		if err != nil {
			return 0, err
		}
		n = v
	case size > 0:
		v, err := o.ReadUnsigned(size)
		if err != nil {
			return 0, err
		}
		n = int64(v)
	case signed:
		v, err := o.ReadVarSigned()
		if err != nil {
			return 0, err
		}
		n = v
	default:
		v, err := o.ReadVarUnsigned()
		if err != nil {
			return 0, err
		}
		n = int64(v)
	}
	if c != nil && !c.Extensible && !c.Contains(n) {
		return 0, asn1core.DecodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, c)
	}
	return n, nil
}

func (o *oerDecoder) enumerated(t *asn1schema.Enumerated) (asn1value.Value, error) {
	start := o.Pos()
	n, err := o.ReadEnumerated()
	if err != nil {
		return nil, err
	}
	if item, ok := t.ByNumber(n); ok {
		o.note("value", start, item.Name)
		return asn1value.Enumerated(item.Name), nil
	}
	if !t.Extensible {
		return nil, asn1core.DecodeErrorf("%w: enumeration number %d", asn1core.ErrMalformed, n)
	}
	o.event(EventUnknownExtension, t, "number", n)
	o.note("value", start, n)
	return &asn1value.Unknown{Index: int(n)}, nil
}

// octets reads the content of a string type: size octets when the size is fixed, else a
// length and the content.
func (o *oerDecoder) octets(size *asn1schema.Constraint) ([]byte, error) {
	if n, ok := fixedSize(size); ok {
		return o.ReadBytes(n)
	}
	n, err := o.ReadLength()
	if err != nil {
		return nil, err
	}
	return o.ReadBytes(n)
}

func (o *oerDecoder) contained(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, bool) {
	mark := o.trace.mark()
	v, err := o.nested(t, content, at, env)
	if err != nil {
		o.trace.reset(mark)
		return nil, false
	}
	return containedResult(t, v), true
}

func (o *oerDecoder) bitString(t *asn1schema.BitString, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := o.Pos()
	if n, ok := fixedSize(t.Size); ok && t.Containing == nil {
		data, err := o.ReadBitString(n)
		if err != nil {
			return nil, err
		}
		if _, err := o.Align(); err != nil {
			return nil, err
		}
		bs := asn1value.BitString{Bytes: data, Length: int(n)}
		o.note("value", start, bs)
		return bs, nil
	}
	content, err := o.octets(nil)
	if err != nil {
		return nil, err
	}
	data, nbits, err := asn1ber.ParseBitString(content)
	if err != nil {
		return nil, err
	}
	if t.Containing != nil && nbits%8 == 0 {
		if v, ok := o.contained(t.Containing, data, o.Pos()-uint64(len(data))*8, env); ok {
			return v, nil
		}
	}
	bs := asn1value.BitString{Bytes: data, Length: nbits}
	o.note("value", start, bs)
	return bs, nil
}

func (o *oerDecoder) octetString(t *asn1schema.OctetString, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := o.Pos()
	size := t.Size
	if t.Containing != nil {
		size = nil
	}
	content, err := o.octets(size)
	if err != nil {
		return nil, err
	}
	if t.Containing != nil {
		if v, ok := o.contained(t.Containing, content, o.Pos()-uint64(len(content))*8, env); ok {
			return v, nil
		}
	}
	o.note("value", start, asn1value.OctetString(content))
	return asn1value.OctetString(content), nil
}

func (o *oerDecoder) characterString(t *asn1schema.String) (string, error) {
	var content []byte
	var err error
	if n, ok := fixedSize(t.Size); ok && t.StringKind.KnownMultiplier() {
		content, err = o.ReadBytes(n * oerCharOctets(t.StringKind))
	} else {
		content, err = o.octets(nil)
	}
	if err != nil {
		return "", err
	}
	s, err := t.StringKind.Decode(content)
	if err != nil {
		return "", err
	}
	if t.StringKind.KnownMultiplier() {
		for _, r := range s {
			if !permittedChar(t, r) {
				return "", asn1core.DecodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, t.StringKind)
			}
		}
	}
	return s, nil
}

func (o *oerDecoder) choice(t *asn1schema.Choice, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := o.Pos()
	tag, err := o.ReadTag()
	if err != nil {
		return nil, err
	}
	o.note("tag", start, tag)
	return o.alternative(t, tag, env)
}

// alternative decodes the alternative of t selected by tag, which has already been read.
// A tag of an untagged nested CHOICE is passed down to it.
func (o *oerDecoder) alternative(t *asn1schema.Choice, tag asn1core.Tag, env *asn1schema.Enclosing) (asn1value.Value, error) {
	path, ok := t.Lookup(tag)
	if !ok {
		if !t.Extensible {
			return nil, asn1core.DecodeErrorf("%w: no alternative with tag %s", asn1core.ErrMalformed, tag)
		}
		content, _, err := o.openType()
		if err != nil {
			return nil, err
		}
		o.event(EventUnknownAlternative, t, "tag", tag.String())
		return asn1value.NewChoice("", &asn1value.Unknown{Tag: &tag, Raw: content}), nil
	}
	m, _ := t.Member(path[0])
	if inner, ok := m.Type.(*asn1schema.Choice); ok && len(path) > 1 {
		if err := o.enter(inner); err != nil {
			return nil, err
		}
		o.trace.begin(m.Name, o.pos())
		v, err := o.alternative(inner, tag, env)
		o.trace.end(o.pos())
		o.leave()
		if err != nil {
			return nil, err
		}
		return asn1value.NewChoice(m.Name, v), nil
	}
	if t.IsRoot(m.Name) {
		o.trace.begin(m.Name, o.pos())
		v, err := o.decode(m.Type, env)
		o.trace.end(o.pos())
		if err != nil {
			return nil, err
		}
		return asn1value.NewChoice(m.Name, v), nil
	}
	content, at, err := o.openType()
	if err != nil {
		return nil, err
	}
	o.trace.begin(m.Name, o.base()+at)
	v, err := o.nested(m.Type, content, at, env)
	o.trace.end(o.pos())
	if err != nil {
		return nil, err
	}
	return asn1value.NewChoice(m.Name, v), nil
}

func (o *oerDecoder) sequence(t asn1schema.Type, comps *asn1schema.Components, order []*asn1schema.Component, env *asn1schema.Enclosing) (asn1value.Value, error) {
	seq := asn1value.NewSequence()
	env = env.Push(t, seq)
	start := o.Pos()
	n := 0
	if comps.Extensible {
		n++
	}
	for _, m := range order {
		if !m.Mandatory() {
			n++
		}
	}
	preamble, err := o.ReadPreamble(n)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		o.note("preamble", start, bitmapString(preamble))
	}
	extended := false
	if comps.Extensible {
		extended, preamble = preamble[0], preamble[1:]
	}
	j := 0
	for _, m := range order {
		if !m.Mandatory() {
			present := preamble[j]
			j++
			if !present {
				continue
			}
		}
		o.trace.begin(m.Name, o.pos())
		v, err := o.decode(m.Type, env)
		o.trace.end(o.pos())
		if err != nil {
			return nil, err
		}
		seq.Set(m.Name, v)
	}
	if !extended {
		return seq, nil
	}

	start = o.Pos()
	extBitmap, err := o.ReadBitmap()
	if err != nil {
		return nil, err
	}
	o.note("extension bitmap", start, bitmapString(extBitmap))
	if !anySet(extBitmap) {
		return nil, asn1core.DecodeErrorf("%w: extension bit set without additions", asn1core.ErrInvalidBitmap)
	}
	slots := comps.Slots()
	raws := make(map[int][]byte)
	for i, set := range extBitmap {
		if !set {
			continue
		}
		content, at, err := o.openType()
		if err != nil {
			return nil, err
		}
		if i >= len(slots) {
			raws[i] = content
			continue
		}
		slot := slots[i]
		o.trace.begin(slot.Name(), o.base()+at)
		if slot.Group != nil {
			var gv asn1value.Value
			if gv, err = o.nested(slot.Group.Type, content, at, env); err == nil {
				for name, v := range gv.(*asn1value.Sequence).Fields {
					seq.Set(name, v)
				}
			}
		} else {
			var v asn1value.Value
			if v, err = o.nested(slot.Component.Type, content, at, env); err == nil {
				seq.Set(slot.Component.Name, v)
			}
		}
		o.trace.end(o.pos())
		if err != nil {
			return nil, err
		}
	}
	o.storeUnknownSlots(t, seq, extBitmap, len(slots), raws)
	return seq, nil
}

func (o *oerDecoder) list(t *asn1schema.SequenceOf, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := o.Pos()
	n, err := o.ReadVarUnsigned()
	if err != nil {
		return nil, err
	}
	if n > o.MaxLength() {
		return nil, asn1core.DecodeErrorf("%w: quantity %d", asn1core.ErrLengthLimit, n)
	}
	if err := o.elements(0, n); err != nil {
		return nil, err
	}
	o.note("quantity", start, n)
	// capacity never exceeds one element per remaining octet
	list := make(asn1value.List, 0, genericutils.Min(n, o.Remaining()/8))
	for i := uint64(0); i < n; i++ {
		o.trace.begin("["+strconv.FormatUint(i, 10)+"]", o.pos())
		v, err := o.decode(t.Element, env)
		o.trace.end(o.pos())
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (o *oerDecoder) open(t *asn1schema.Open, env *asn1schema.Enclosing) (asn1value.Value, error) {
	content, at, err := o.openType()
	if err != nil {
		return nil, err
	}
	res, candidates := o.openCandidates(t, env)
	switch res {
	case asn1schema.ResolveOne:
		o.trace.begin(asn1schema.TypeName(candidates[0]), o.base()+at)
		v, err := o.nested(candidates[0], content, at, env)
		o.trace.end(o.pos())
		if err != nil {
			return nil, err
		}
		return openResult(candidates[0], v), nil
	case asn1schema.ResolveMany:
		o.event(EventOpenTypeUnresolved, t, "candidates", len(candidates))
	default:
		o.event(EventUnknownOpenType, t)
	}
	return &asn1value.Open{Value: &asn1value.Unknown{Raw: content}}, nil
}
