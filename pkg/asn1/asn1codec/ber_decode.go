package asn1codec

import (
	"bytes"
	"math"
	"strconv"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type berDecoder struct {
	*call
	data []byte
}

func readerLimit(n uint64) int {
	if n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

func (c *call) berDecodeComplete(t asn1schema.Type, data []byte) (asn1value.Value, error) {
	return c.berDecodeNested(t, data, nil)
}

// berDecodeNested decodes a complete encoding, which must be consumed entirely.
func (c *call) berDecodeNested(t asn1schema.Type, data []byte, env *asn1schema.Enclosing) (asn1value.Value, error) {
	d := &berDecoder{call: c, data: data}
	r := asn1ber.NewReader(data, readerLimit(c.opts.MaxLength))
	v, err := d.decode(r, t, env)
	if err != nil {
		return nil, err
	}
	if rest := r.Rest(); len(rest) > 0 {
		return nil, asn1core.DecodeErrorf("%w: %d octets after %s", asn1core.ErrTrailingData, len(rest), asn1schema.TypeName(t)).WithFragment(rest)
	}
	return v, nil
}

func (d *berDecoder) pos(r *asn1ber.Reader) uint64 {
	return d.base() + uint64(r.Offset())*8
}

func (d *berDecoder) header(r *asn1ber.Reader) (asn1ber.Header, error) {
	start := d.pos(r)
	h, err := r.ReadHeader()
	if err != nil {
		return h, err
	}
	d.trace.leaf("header", start, d.pos(r), h.String())
	return h, nil
}

func (d *berDecoder) decode(r *asn1ber.Reader, t asn1schema.Type, env *asn1schema.Enclosing) (v asn1value.Value, err error) {
	if err := d.enter(t); err != nil {
		return nil, err
	}
	defer d.leave()
	start := r.Offset()
	defer func() {
		if err != nil {
			err = withFragment(asn1core.Annotate(err, asn1core.DecodeError, d.rule, asn1schema.TypeName(t)), d.data, uint64(start)*8)
		}
	}()

	tag, ok := explicitTag(t)
	if !ok {
		return d.element(r, t, env)
	}
	h, err := d.header(r)
	if err != nil {
		return nil, err
	}
	if !h.Tag.Equal(tag) || !h.Tag.Constructed {
		return nil, asn1core.NewUnexpectedError(tag, h.Tag, "explicit tag")
	}
	child := r.Enter(h)
	if v, err = d.element(child, t, env); err != nil {
		return nil, err
	}
	if err := r.Leave(child); err != nil {
		return nil, err
	}
	return v, nil
}

// element decodes the encoding of t inside any explicit tag.
func (d *berDecoder) element(r *asn1ber.Reader, t asn1schema.Type, env *asn1schema.Enclosing) (asn1value.Value, error) {
	switch x := t.(type) {
	case *asn1schema.Choice:
		return d.choice(r, x, env)
	case *asn1schema.Open:
		return d.open(r, x, env)
	}
	tag, _ := ownTag(t)
	h, err := d.header(r)
	if err != nil {
		return nil, err
	}
	if !h.Tag.Equal(tag) {
		return nil, asn1core.NewUnexpectedError(tag, h.Tag, "tag")
	}
	if asn1schema.Constructed(t) {
		if !h.Tag.Constructed {
			return nil, asn1core.DecodeErrorf("%w: primitive encoding of %s", asn1core.ErrMalformed, t.Kind())
		}
		child := r.Enter(h)
		v, err := d.constructed(child, t, env)
		if err != nil {
			return nil, err
		}
		if err := r.Leave(child); err != nil {
			return nil, err
		}
		return v, nil
	}

	start := d.pos(r)
	var content []byte
	if h.Tag.Constructed {
		content, err = d.segments(r, h, t)
	} else {
		content, err = r.ReadContent(h)
	}
	if err != nil {
		return nil, err
	}
	v, err := d.primitive(t, content, start, env)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*asn1value.Contained); !ok {
		d.trace.leaf("value", start, d.pos(r), v)
	}
	return v, nil
}

// segments joins the content of a constructed string encoding. Only one level of
// segmentation is supported.
func (d *berDecoder) segments(r *asn1ber.Reader, h asn1ber.Header, t asn1schema.Type) ([]byte, error) {
	switch t.(type) {
	case *asn1schema.BitString, *asn1schema.OctetString, *asn1schema.String:
	default:
		return nil, asn1core.DecodeErrorf("%w: constructed encoding of %s", asn1core.ErrMalformed, t.Kind())
	}
	want, _ := asn1schema.UniversalTag(t)
	child := r.Enter(h)
	var parts [][]byte
	for child.More() {
		sh, err := d.header(child)
		if err != nil {
			return nil, err
		}
		if sh.Tag.Constructed {
			return nil, asn1core.NewUnimplementedError("nested constructed segments of %s", t.Kind())
		}
		if !sh.Tag.Equal(want) {
			return nil, asn1core.NewUnexpectedError(want, sh.Tag, "segment tag")
		}
		part, err := child.ReadContent(sh)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if err := r.Leave(child); err != nil {
		return nil, err
	}
	if _, ok := t.(*asn1schema.BitString); !ok {
		return bytes.Join(parts, nil), nil
	}
	var data []byte
	total := 0
	for i, part := range parts {
		p, n, err := asn1ber.ParseBitString(part)
		if err != nil {
			return nil, err
		}
		if n%8 != 0 && i != len(parts)-1 {
			return nil, asn1core.DecodeErrorf("%w: unused bits in a middle segment", asn1core.ErrMalformed)
		}
		data = append(data, p...)
		total += n
	}
	return asn1ber.AppendBitString(nil, data, total), nil
}

// primitive decodes content octets found at absolute bit offset at.
func (d *berDecoder) primitive(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, error) {
	switch x := t.(type) {
	case *asn1schema.Boolean:
		if len(content) != 1 {
			return nil, asn1core.NewUnexpectedError(1, len(content), "BOOLEAN length").WithUnits("octets")
		}
		if d.rule != asn1core.BER && content[0] != 0 && content[0] != 0xFF {
			return nil, asn1core.DecodeErrorf("%w: BOOLEAN octet %#02x", asn1core.ErrMalformed, content[0])
		}
		return asn1value.Boolean(content[0] != 0), nil
	case *asn1schema.Integer:
		n, err := asn1ber.ParseInt(content)
		if err != nil {
			return nil, err
		}
		if c := x.Value; c != nil && !c.Extensible && !c.Contains(n) {
			return nil, asn1core.DecodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, c)
		}
		return asn1value.Integer(n), nil
	case *asn1schema.Enumerated:
		n, err := asn1ber.ParseInt(content)
		if err != nil {
			return nil, err
		}
		if item, ok := x.ByNumber(n); ok {
			return asn1value.Enumerated(item.Name), nil
		}
		if !x.Extensible {
			return nil, asn1core.DecodeErrorf("%w: enumeration number %d", asn1core.ErrMalformed, n)
		}
		d.event(EventUnknownExtension, t, "number", n)
		return &asn1value.Unknown{Index: int(n)}, nil
	case *asn1schema.Null:
		if len(content) != 0 {
			return nil, asn1core.NewUnexpectedError(0, len(content), "NULL length").WithUnits("octets")
		}
		return asn1value.Null{}, nil
	case *asn1schema.ObjectIdentifier:
		oid, err := asn1ber.ParseOID(content)
		if err != nil {
			return nil, err
		}
		return asn1value.OID(oid), nil
	case *asn1schema.BitString:
		data, n, err := asn1ber.ParseBitString(content)
		if err != nil {
			return nil, err
		}
		if x.Containing != nil && n%8 == 0 {
			if v, ok := d.contained(x.Containing, data, at+8, env); ok {
				return v, nil
			}
		}
		return asn1value.BitString{Bytes: data, Length: n}, nil
	case *asn1schema.OctetString:
		if x.Containing != nil {
			if v, ok := d.contained(x.Containing, content, at, env); ok {
				return v, nil
			}
		}
		return asn1value.OctetString(content), nil
	case *asn1schema.String:
		s, err := x.StringKind.Decode(content)
		if err != nil {
			return nil, err
		}
		if x.StringKind.KnownMultiplier() {
			for _, r := range s {
				if !permittedChar(x, r) {
					return nil, asn1core.DecodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, x.StringKind)
				}
			}
		}
		return asn1value.String(s), nil
	}
	return nil, asn1core.NewUnimplementedError("type node %T", t)
}

// contained tries to decode content at absolute bit offset at as a value of the CONTAINING
// type, keeping the raw form when that fails.
func (d *berDecoder) contained(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, bool) {
	mark := d.trace.mark()
	d.push(at)
	v, err := d.berDecodeNested(t, content, env)
	d.pop()
	if err != nil {
		d.trace.reset(mark)
		return nil, false
	}
	return containedResult(t, v), true
}

func (d *berDecoder) constructed(r *asn1ber.Reader, t asn1schema.Type, env *asn1schema.Enclosing) (asn1value.Value, error) {
	switch x := t.(type) {
	case *asn1schema.Sequence:
		return d.sequence(r, t, x.Components, env)
	case *asn1schema.Set:
		return d.set(r, t, x.Components, env)
	case *asn1schema.SequenceOf:
		return d.list(r, x, env)
	case *asn1schema.SetOf:
		return d.list(r, &x.SequenceOf, env)
	}
	return nil, asn1core.NewUnimplementedError("type node %T", t)
}

func (d *berDecoder) member(r *asn1ber.Reader, m *asn1schema.Component, seq *asn1value.Sequence, env *asn1schema.Enclosing) error {
	d.trace.begin(m.Name, d.pos(r))
	v, err := d.decode(r, m.Type, env)
	d.trace.end(d.pos(r))
	if err != nil {
		return err
	}
	seq.Set(m.Name, v)
	return nil
}

// unknown keeps the next TLV of an extensible SEQUENCE or SET.
func (d *berDecoder) unknown(r *asn1ber.Reader, t asn1schema.Type, seq *asn1value.Sequence) error {
	start := d.pos(r)
	raw, h, err := r.ReadRaw()
	if err != nil {
		return err
	}
	d.trace.leaf("unknown", start, d.pos(r), h.String())
	tag := h.Tag
	seq.Extensions = append(seq.Extensions, &asn1value.Unknown{Index: len(seq.Extensions), Tag: &tag, Raw: raw})
	d.event(EventUnknownExtension, t, "tag", tag.String())
	return nil
}

// assumable returns the member decoded when no tag matches: the last mandatory root member
// of a non-extensible SEQUENCE, provided no other mandatory member is still missing.
func assumable(comps *asn1schema.Components, members []*asn1schema.Component, next int) int {
	if comps.Extensible {
		return -1
	}
	last := -1
	for i, m := range comps.Root {
		if m.Mandatory() {
			last = i
		}
	}
	if last < next {
		return -1
	}
	for i := next; i < last; i++ {
		if members[i].Mandatory() {
			return -1
		}
	}
	return last
}

func (d *berDecoder) sequence(r *asn1ber.Reader, t asn1schema.Type, comps *asn1schema.Components, env *asn1schema.Enclosing) (asn1value.Value, error) {
	seq := asn1value.NewSequence()
	env = env.Push(t, seq)
	members := append(append([]*asn1schema.Component(nil), comps.Root...), comps.Extension...)
	next := 0
	for r.More() {
		h, err := r.PeekHeader()
		if err != nil {
			return nil, err
		}
		idx := -1
		for i := next; i < len(members); i++ {
			if asn1schema.Matches(members[i].Type, h.Tag) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if idx = assumable(comps, members, next); idx >= 0 {
				d.event(EventAssumePresent, t, "member", members[idx].Name, "tag", h.Tag.String())
			}
		}
		if idx < 0 {
			if !comps.Extensible {
				return nil, asn1core.DecodeErrorf("%w: no member for %s", asn1core.ErrMalformed, h.Tag)
			}
			if err := d.unknown(r, t, seq); err != nil {
				return nil, err
			}
			continue
		}
		if err := d.member(r, members[idx], seq, env); err != nil {
			return nil, err
		}
		next = idx + 1
	}
	return seq, d.complete(comps, seq)
}

func (d *berDecoder) set(r *asn1ber.Reader, t asn1schema.Type, comps *asn1schema.Components, env *asn1schema.Enclosing) (asn1value.Value, error) {
	seq := asn1value.NewSequence()
	env = env.Push(t, seq)
	members := append(append([]*asn1schema.Component(nil), comps.Root...), comps.Extension...)
	for r.More() {
		h, err := r.PeekHeader()
		if err != nil {
			return nil, err
		}
		var found *asn1schema.Component
		for _, m := range members {
			if _, seen := seq.Fields[m.Name]; !seen && asn1schema.Matches(m.Type, h.Tag) {
				found = m
				break
			}
		}
		if found == nil {
			if !comps.Extensible {
				return nil, asn1core.DecodeErrorf("%w: no member for %s", asn1core.ErrMalformed, h.Tag)
			}
			if err := d.unknown(r, t, seq); err != nil {
				return nil, err
			}
			continue
		}
		if err := d.member(r, found, seq, env); err != nil {
			return nil, err
		}
	}
	return seq, d.complete(comps, seq)
}

func (d *berDecoder) complete(comps *asn1schema.Components, seq *asn1value.Sequence) error {
	for _, m := range comps.Root {
		if _, ok := seq.Fields[m.Name]; !ok && m.Mandatory() {
			return asn1core.DecodeErrorf("%w: missing mandatory member %q", asn1core.ErrMalformed, m.Name)
		}
	}
	return nil
}

func (d *berDecoder) list(r *asn1ber.Reader, t *asn1schema.SequenceOf, env *asn1schema.Enclosing) (asn1value.Value, error) {
	list := asn1value.List{}
	for r.More() {
		if err := d.elements(len(list), 1); err != nil {
			return nil, err
		}
		d.trace.begin("["+strconv.Itoa(len(list))+"]", d.pos(r))
		v, err := d.decode(r, t.Element, env)
		d.trace.end(d.pos(r))
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (d *berDecoder) choice(r *asn1ber.Reader, t *asn1schema.Choice, env *asn1schema.Enclosing) (asn1value.Value, error) {
	h, err := r.PeekHeader()
	if err != nil {
		return nil, err
	}
	path, ok := t.Lookup(h.Tag)
	if !ok {
		if !t.Extensible {
			return nil, asn1core.DecodeErrorf("%w: no alternative with tag %s", asn1core.ErrMalformed, h.Tag)
		}
		start := d.pos(r)
		raw, _, err := r.ReadRaw()
		if err != nil {
			return nil, err
		}
		d.trace.leaf("unknown", start, d.pos(r), h.String())
		d.event(EventUnknownAlternative, t, "tag", h.Tag.String())
		tag := h.Tag
		return asn1value.NewChoice("", &asn1value.Unknown{Tag: &tag, Raw: raw}), nil
	}
	m, _ := t.Member(path[0])
	d.trace.begin(m.Name, d.pos(r))
	v, err := d.decode(r, m.Type, env)
	d.trace.end(d.pos(r))
	if err != nil {
		return nil, err
	}
	return asn1value.NewChoice(m.Name, v), nil
}

// open decodes with the single candidate, or tries every candidate whose tag matches.
// Content no candidate accepts is kept raw.
func (d *berDecoder) open(r *asn1ber.Reader, t *asn1schema.Open, env *asn1schema.Enclosing) (asn1value.Value, error) {
	h, err := r.PeekHeader()
	if err != nil {
		return nil, err
	}
	res, candidates := d.openCandidates(t, env)
	switch res {
	case asn1schema.ResolveOne:
		d.trace.begin(asn1schema.TypeName(candidates[0]), d.pos(r))
		v, err := d.decode(r, candidates[0], env)
		d.trace.end(d.pos(r))
		if err != nil {
			return nil, err
		}
		return openResult(candidates[0], v), nil
	case asn1schema.ResolveMany:
		mark, traceMark := r.Mark(), d.trace.mark()
		for _, cand := range candidates {
			if !asn1schema.Matches(cand, h.Tag) {
				continue
			}
			d.trace.begin(asn1schema.TypeName(cand), d.pos(r))
			v, err := d.decode(r, cand, env)
			d.trace.end(d.pos(r))
			if err == nil {
				return openResult(cand, v), nil
			}
			r.Reset(mark)
			d.trace.reset(traceMark)
		}
		d.event(EventOpenTypeUnresolved, t, "candidates", len(candidates), "tag", h.Tag.String())
	default:
		d.event(EventUnknownOpenType, t, "tag", h.Tag.String())
	}
	start := d.pos(r)
	raw, _, err := r.ReadRaw()
	if err != nil {
		return nil, err
	}
	d.trace.leaf("open type", start, d.pos(r), h.String())
	return &asn1value.Open{Value: &asn1value.Unknown{Raw: raw}}, nil
}
