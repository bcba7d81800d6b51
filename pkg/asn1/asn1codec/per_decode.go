package asn1codec

import (
	"errors"
	"strconv"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1per"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type perDecoder struct {
	*call
	*asn1per.Decoder
	data []byte
}

// perDecodeComplete decodes a complete encoding. Bits after the value are ignored.
func (c *call) perDecodeComplete(t asn1schema.Type, data []byte, env *asn1schema.Enclosing) (asn1value.Value, error) {
	p := &perDecoder{
		call:    c,
		Decoder: asn1per.NewDecoder(data, c.rule.Aligned(), c.opts.MaxLength),
		data:    data,
	}
	return p.decode(t, env)
}

func (p *perDecoder) pos() uint64 {
	return p.base() + p.Pos()
}

// note records a trace leaf for the field read since start.
func (p *perDecoder) note(name string, start uint64, value any) {
	p.trace.leaf(name, p.base()+start, p.pos(), value)
}

func withFragment(err error, data []byte, bit uint64) error {
	var ge *asn1core.GeneralError
	if errors.As(err, &ge) && bit/8 < uint64(len(data)) {
		ge.WithFragment(data[bit/8:])
	}
	return err
}

// nested decodes a complete encoding found at relative bit offset at.
func (p *perDecoder) nested(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, error) {
	p.push(p.base() + at)
	defer p.pop()
	return p.perDecodeComplete(t, content, env)
}

func (p *perDecoder) openType() ([]byte, uint64, error) {
	start := p.Pos()
	content, err := p.ReadOpenType()
	if err != nil {
		return nil, 0, err
	}
	p.note("open type", start, strconv.Itoa(len(content))+" octets")
	return content, p.Pos() - uint64(len(content))*8, nil
}

func (p *perDecoder) decode(t asn1schema.Type, env *asn1schema.Enclosing) (v asn1value.Value, err error) {
	if err := p.enter(t); err != nil {
		return nil, err
	}
	defer p.leave()
	start := p.Pos()
	defer func() {
		if err != nil {
			err = withFragment(asn1core.Annotate(err, asn1core.DecodeError, p.rule, asn1schema.TypeName(t)), p.data, start)
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Boolean:
		b, err := p.ReadBool()
		if err != nil {
			return nil, err
		}
		p.note("value", start, b)
		return asn1value.Boolean(b), nil
	case *asn1schema.Integer:
		n, err := p.integer(x.Value)
		if err != nil {
			return nil, err
		}
		p.note("value", start, n)
		return asn1value.Integer(n), nil
	case *asn1schema.Enumerated:
		return p.enumerated(x)
	case *asn1schema.Null:
		return asn1value.Null{}, nil
	case *asn1schema.ObjectIdentifier:
		content, err := p.octets(nil)
		if err != nil {
			return nil, err
		}
		oid, err := asn1ber.ParseOID(content)
		if err != nil {
			return nil, err
		}
		p.note("value", start, asn1value.OID(oid))
		return asn1value.OID(oid), nil
	case *asn1schema.BitString:
		return p.bitString(x, env)
	case *asn1schema.OctetString:
		return p.octetString(x, env)
	case *asn1schema.String:
		s, err := p.characterString(x)
		if err != nil {
			return nil, err
		}
		p.note("value", start, strconv.Quote(s))
		return asn1value.String(s), nil
	case *asn1schema.Choice:
		return p.choice(x, env)
	case *asn1schema.Sequence:
		return p.sequence(t, x.Components, x.Components.Root, env)
	case *asn1schema.Set:
		return p.sequence(t, x.Components, x.CanonicalOrder(), env)
	case *asn1schema.SequenceOf:
		return p.list(x, env)
	case *asn1schema.SetOf:
		return p.list(&x.SequenceOf, env)
	case *asn1schema.Open:
		return p.open(x, env)
	}
	return nil, asn1core.NewUnimplementedError("type node %T", t)
}

func (p *perDecoder) integer(c *asn1schema.Constraint) (int64, error) {
	if c != nil && c.Extensible {
		ext, err := p.ReadBit()
		if err != nil {
			return 0, err
		}
		if ext {
			return p.ReadUnconstrainedWholeNumber()
		}
	}
	switch {
	case c.Bounded():
		return p.ReadConstrainedWholeNumber(*c.Lower, *c.Upper)
	case c != nil && c.Lower != nil:
		return p.ReadSemiConstrainedWholeNumber(*c.Lower)
	}
	return p.ReadUnconstrainedWholeNumber()
}

func (p *perDecoder) enumerated(t *asn1schema.Enumerated) (asn1value.Value, error) {
	start := p.Pos()
	ext := false
	if t.Extensible {
		var err error
		if ext, err = p.ReadBit(); err != nil {
			return nil, err
		}
	}
	if ext {
		idx, err := p.ReadNormallySmall()
		if err != nil {
			return nil, err
		}
		if idx < uint64(len(t.Extension)) {
			p.note("value", start, t.Extension[idx].Name)
			return asn1value.Enumerated(t.Extension[idx].Name), nil
		}
		p.note("value", start, "unknown #"+strconv.FormatUint(idx, 10))
		return &asn1value.Unknown{Index: int(idx)}, nil
	}
	idx, err := p.ReadConstrainedWholeNumber(0, int64(len(t.Root)-1))
	if err != nil {
		return nil, err
	}
	item, ok := t.RootByIndex(int(idx))
	if !ok {
		return nil, asn1core.DecodeErrorf("%w: enumeration index %d", asn1core.ErrMalformed, idx)
	}
	p.note("value", start, item.Name)
	return asn1value.Enumerated(item.Name), nil
}

// sized reads the size of a string or list and calls read for each run of units.
func (p *perDecoder) sized(size *asn1schema.Constraint, unitBits uint64, alignVariable bool, read func(count uint64) error) (uint64, error) {
	start := p.Pos()
	inRoot := true
	if size != nil && size.Extensible {
		ext, err := p.ReadBit()
		if err != nil {
			return 0, err
		}
		inRoot = !ext
	}
	if !constrainedSize(size, inRoot) {
		return p.ReadFragmented(func(count uint64) error {
			if unitBits > 0 && count*unitBits > p.Remaining() {
				return asn1core.DecodeErrorf("%w: %d units of %d bits", asn1core.ErrTruncated, count, unitBits)
			}
			return read(count)
		})
	}
	lb, ub := uint64(*size.Lower), uint64(*size.Upper)
	n := lb
	if lb != ub {
		var err error
		if n, err = p.ReadConstrainedLength(lb, ub); err != nil {
			return 0, err
		}
		p.note("length", start, n)
	}
	if sizedAlign(size, n, unitBits, alignVariable) {
		if err := p.AlignIfAligned(); err != nil {
			return 0, err
		}
	}
	if n == 0 {
		return 0, nil
	}
	if unitBits > 0 && n*unitBits > p.Remaining() {
		return 0, asn1core.DecodeErrorf("%w: %d units of %d bits", asn1core.ErrTruncated, n, unitBits)
	}
	return n, read(n)
}

func (p *perDecoder) octets(size *asn1schema.Constraint) ([]byte, error) {
	var content []byte
	_, err := p.sized(size, 8, true, func(count uint64) error {
		b, err := p.ReadBytes(count)
		content = append(content, b...)
		return err
	})
	return content, err
}

func (p *perDecoder) bits(size *asn1schema.Constraint) (asn1value.BitString, error) {
	var data []byte
	n, err := p.sized(size, 1, true, func(count uint64) error {
		b, err := p.ReadBitString(count)
		data = append(data, b...)
		return err
	})
	if err != nil {
		return asn1value.BitString{}, err
	}
	if data == nil {
		data = []byte{}
	}
	return asn1value.BitString{Bytes: data, Length: int(n)}, nil
}

// contained tries to decode content as a value of the CONTAINING type, keeping the raw
// form when that fails.
func (p *perDecoder) contained(t asn1schema.Type, content []byte, at uint64, env *asn1schema.Enclosing) (asn1value.Value, bool) {
	mark := p.trace.mark()
	v, err := p.nested(t, content, at, env)
	if err != nil {
		p.trace.reset(mark)
		return nil, false
	}
	return containedResult(t, v), true
}

func (p *perDecoder) bitString(t *asn1schema.BitString, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := p.Pos()
	if t.Containing == nil {
		bs, err := p.bits(t.Size)
		if err != nil {
			return nil, err
		}
		p.note("value", start, bs)
		return bs, nil
	}
	bs, err := p.bits(nil)
	if err != nil {
		return nil, err
	}
	if bs.Length%8 == 0 {
		if v, ok := p.contained(t.Containing, bs.Bytes, p.Pos()-uint64(bs.Length), env); ok {
			return v, nil
		}
	}
	p.note("value", start, bs)
	return bs, nil
}

func (p *perDecoder) octetString(t *asn1schema.OctetString, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := p.Pos()
	size := t.Size
	if t.Containing != nil {
		size = nil
	}
	content, err := p.octets(size)
	if err != nil {
		return nil, err
	}
	if t.Containing != nil {
		if v, ok := p.contained(t.Containing, content, p.Pos()-uint64(len(content))*8, env); ok {
			return v, nil
		}
	}
	p.note("value", start, asn1value.OctetString(content))
	return asn1value.OctetString(content), nil
}

func (p *perDecoder) characterString(t *asn1schema.String) (string, error) {
	if !t.StringKind.KnownMultiplier() {
		content, err := p.octets(nil)
		if err != nil {
			return "", err
		}
		return t.StringKind.Decode(content)
	}
	width, remap := perAlphabet(t, p.Aligned())
	var runes []rune
	_, err := p.sized(t.Size, uint64(width), false, func(count uint64) error {
		for i := uint64(0); i < count; i++ {
			code, err := p.ReadBits(width)
			if err != nil {
				return err
			}
			r := rune(code)
			if remap != nil {
				if code >= uint64(remap.Len()) {
					return asn1core.DecodeErrorf("%w: character index %d", asn1core.ErrInvalidChar, code)
				}
				r = remap.Chars[code]
			}
			if !permittedChar(t, r) {
				return asn1core.DecodeErrorf("%w: %q in %s", asn1core.ErrInvalidChar, r, t.StringKind)
			}
			runes = append(runes, r)
		}
		return nil
	})
	return string(runes), err
}

func (p *perDecoder) choice(t *asn1schema.Choice, env *asn1schema.Enclosing) (asn1value.Value, error) {
	start := p.Pos()
	ext := false
	if t.Extensible {
		var err error
		if ext, err = p.ReadBit(); err != nil {
			return nil, err
		}
	}
	if !ext {
		idx, err := p.ReadConstrainedWholeNumber(0, int64(len(t.Root)-1))
		if err != nil {
			return nil, err
		}
		m := t.Root[idx]
		p.note("index", start, m.Name)
		p.trace.begin(m.Name, p.pos())
		v, err := p.decode(m.Type, env)
		p.trace.end(p.pos())
		if err != nil {
			return nil, err
		}
		return asn1value.NewChoice(m.Name, v), nil
	}
	idx, err := p.ReadNormallySmall()
	if err != nil {
		return nil, err
	}
	p.note("extension index", start, idx)
	content, at, err := p.openType()
	if err != nil {
		return nil, err
	}
	if idx >= uint64(len(t.Extension)) {
		p.event(EventUnknownAlternative, t, "index", idx)
		return asn1value.NewChoice("", &asn1value.Unknown{Index: int(idx), Raw: content}), nil
	}
	m := t.Extension[idx]
	p.trace.begin(m.Name, p.base()+at)
	v, err := p.nested(m.Type, content, at, env)
	p.trace.end(p.pos())
	if err != nil {
		return nil, err
	}
	return asn1value.NewChoice(m.Name, v), nil
}

func (p *perDecoder) sequence(t asn1schema.Type, comps *asn1schema.Components, order []*asn1schema.Component, env *asn1schema.Enclosing) (asn1value.Value, error) {
	seq := asn1value.NewSequence()
	env = env.Push(t, seq)
	start := p.Pos()
	extended := false
	if comps.Extensible {
		var err error
		if extended, err = p.ReadBit(); err != nil {
			return nil, err
		}
		p.note("extension bit", start, extended)
	}
	optional := 0
	for _, m := range order {
		if !m.Mandatory() {
			optional++
		}
	}
	start = p.Pos()
	bitmap, err := p.ReadBitmap(uint64(optional))
	if err != nil {
		return nil, err
	}
	if optional > 0 {
		p.note("presence bitmap", start, bitmapString(bitmap))
	}
	j := 0
	for _, m := range order {
		if !m.Mandatory() {
			present := bitmap[j]
			j++
			if !present {
				continue
			}
		}
		p.trace.begin(m.Name, p.pos())
		v, err := p.decode(m.Type, env)
		p.trace.end(p.pos())
		if err != nil {
			return nil, err
		}
		seq.Set(m.Name, v)
	}
	if !extended {
		return seq, nil
	}

	start = p.Pos()
	n, err := p.ReadNormallySmallLength()
	if err != nil {
		return nil, err
	}
	extBitmap, err := p.ReadBitmap(n)
	if err != nil {
		return nil, err
	}
	p.note("extension bitmap", start, bitmapString(extBitmap))
	if !anySet(extBitmap) {
		return nil, asn1core.DecodeErrorf("%w: extension bit set without additions", asn1core.ErrInvalidBitmap)
	}
	slots := comps.Slots()
	raws := make(map[int][]byte)
	for i, set := range extBitmap {
		if !set {
			continue
		}
		content, at, err := p.openType()
		if err != nil {
			return nil, err
		}
		if i >= len(slots) {
			raws[i] = content
			continue
		}
		slot := slots[i]
		p.trace.begin(slot.Name(), p.base()+at)
		if slot.Group != nil {
			var gv asn1value.Value
			if gv, err = p.nested(slot.Group.Type, content, at, env); err == nil {
				for name, v := range gv.(*asn1value.Sequence).Fields {
					seq.Set(name, v)
				}
			}
		} else {
			var v asn1value.Value
			if v, err = p.nested(slot.Component.Type, content, at, env); err == nil {
				seq.Set(slot.Component.Name, v)
			}
		}
		p.trace.end(p.pos())
		if err != nil {
			return nil, err
		}
	}
	p.storeUnknownSlots(t, seq, extBitmap, len(slots), raws)
	return seq, nil
}

func (p *perDecoder) list(t *asn1schema.SequenceOf, env *asn1schema.Enclosing) (asn1value.Value, error) {
	list := asn1value.List{}
	_, err := p.sized(t.Size, 0, false, func(count uint64) error {
		if err := p.elements(len(list), count); err != nil {
			return err
		}
		for i := uint64(0); i < count; i++ {
			p.trace.begin("["+strconv.Itoa(len(list))+"]", p.pos())
			v, err := p.decode(t.Element, env)
			p.trace.end(p.pos())
			if err != nil {
				return err
			}
			list = append(list, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (p *perDecoder) open(t *asn1schema.Open, env *asn1schema.Enclosing) (asn1value.Value, error) {
	content, at, err := p.openType()
	if err != nil {
		return nil, err
	}
	res, candidates := p.openCandidates(t, env)
	switch res {
	case asn1schema.ResolveOne:
		p.trace.begin(asn1schema.TypeName(candidates[0]), p.base()+at)
		v, err := p.nested(candidates[0], content, at, env)
		p.trace.end(p.pos())
		if err != nil {
			return nil, err
		}
		return openResult(candidates[0], v), nil
	case asn1schema.ResolveMany:
		p.event(EventOpenTypeUnresolved, t, "candidates", len(candidates))
	default:
		p.event(EventUnknownOpenType, t)
	}
	return &asn1value.Open{Value: &asn1value.Unknown{Raw: content}}, nil
}

func anySet(bitmap []bool) bool {
	for _, b := range bitmap {
		if b {
			return true
		}
	}
	return false
}

func bitmapString(bitmap []bool) string {
	b := make([]byte, len(bitmap))
	for i, set := range bitmap {
		b[i] = '0'
		if set {
			b[i] = '1'
		}
	}
	return "'" + string(b) + "'B"
}
