package asn1codec

import (
	"log/slog"
	"slices"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// Events logged when decoded content is kept as asn1value.Unknown or found by a heuristic.
const (
	EventUnknownExtension   = "unknown-extension"
	EventUnknownAlternative = "unknown-alternative"
	EventUnknownOpenType    = "unknown-open-type"
	EventOpenTypeUnresolved = "open-type-unresolved"
	EventAssumePresent      = "assume-present"
)

// call is the state of one top level Encode or Decode.
type call struct {
	rule  asn1core.Rule
	opts  Options
	log   *slog.Logger
	depth int
	// frames holds the absolute bit offset at which each nested complete encoding (open
	// type or contained value) starts. Positions reported by nested cursors are relative
	// to the innermost frame.
	frames []uint64
	trace  *recorder
}

func (c *call) enter(t asn1schema.Type) error {
	c.depth++
	if c.depth > c.opts.MaxDepth {
		return asn1core.NewErrorf("%w: more than %d levels", asn1core.ErrDepthLimit, c.opts.MaxDepth).In(asn1schema.TypeName(t))
	}
	return nil
}

func (c *call) leave() {
	c.depth--
}

// elements fails when a list would hold more than MaxElements after adding count more.
func (c *call) elements(have int, count uint64) error {
	if count > c.opts.MaxElements || uint64(have) > c.opts.MaxElements-count {
		return asn1core.DecodeErrorf("%w: more than %d elements", asn1core.ErrLengthLimit, c.opts.MaxElements)
	}
	return nil
}

func (c *call) base() uint64 {
	if len(c.frames) == 0 {
		return 0
	}
	return c.frames[len(c.frames)-1]
}

func (c *call) push(offset uint64) {
	c.frames = append(c.frames, offset)
}

func (c *call) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *call) event(event string, t asn1schema.Type, args ...any) {
	args = append([]any{"event", event, "type", asn1schema.TypeName(t)}, args...)
	c.log.Debug("decoded content kept as unknown", args...)
}

// present returns the value to encode for m, or false when it is absent or, under a
// canonical rule, equal to its default.
func (c *call) present(seq *asn1value.Sequence, m *asn1schema.Component) (asn1value.Value, bool) {
	v, ok := seq.Fields[m.Name]
	if !ok {
		return nil, false
	}
	if m.Default != nil && c.rule.Canonical() && asn1value.Equal(v, m.Default) {
		return nil, false
	}
	return v, true
}

// groupValue collects the members of an extension group present in seq.
func (c *call) groupValue(g *asn1schema.ExtensionGroup, seq *asn1value.Sequence) (*asn1value.Sequence, bool) {
	var gv *asn1value.Sequence
	for _, m := range g.Members {
		if v, ok := c.present(seq, m); ok {
			if gv == nil {
				gv = asn1value.NewSequence()
			}
			gv.Set(m.Name, v)
		}
	}
	return gv, gv != nil
}

// extensionsPresent reports whether any extension addition or unknown extension of seq
// will be encoded.
func (c *call) extensionsPresent(comps *asn1schema.Components, seq *asn1value.Sequence) bool {
	for _, m := range comps.Extension {
		if _, ok := c.present(seq, m); ok {
			return true
		}
	}
	for _, u := range seq.Extensions {
		if u.Raw != nil {
			return true
		}
	}
	return false
}

// extensionBitmap returns the presence bits of the extension slots of seq. The bitmap is
// extended to cover unknown extensions, including an absent trailing one recorded on decode.
func (c *call) extensionBitmap(comps *asn1schema.Components, seq *asn1value.Sequence) []bool {
	slots := comps.Slots()
	n := len(slots)
	for _, u := range seq.Extensions {
		if u.Index+1 > n {
			n = u.Index + 1
		}
	}
	bitmap := make([]bool, n)
	for i, slot := range slots {
		if slot.Group != nil {
			_, bitmap[i] = c.groupValue(slot.Group, seq)
		} else {
			_, bitmap[i] = c.present(seq, slot.Component)
		}
	}
	for _, u := range seq.Extensions {
		if u.Index >= len(slots) && u.Raw != nil {
			bitmap[u.Index] = true
		}
	}
	return bitmap
}

// unknownSlots returns the unknown extensions of seq that extensionBitmap marks present,
// in slot order.
func unknownSlots(comps *asn1schema.Components, seq *asn1value.Sequence) []*asn1value.Unknown {
	known := len(comps.Slots())
	var out []*asn1value.Unknown
	for _, u := range seq.Extensions {
		if u.Index >= known && u.Raw != nil {
			out = append(out, u)
		}
	}
	slices.SortStableFunc(out, func(a, b *asn1value.Unknown) int { return a.Index - b.Index })
	return out
}

// storeUnknownSlots records the decoded extension slots beyond the known ones as unknown
// extensions. An absent last slot is kept too, so the bitmap length survives re-encoding.
func (c *call) storeUnknownSlots(t asn1schema.Type, seq *asn1value.Sequence, bitmap []bool, known int, raws map[int][]byte) {
	for i := known; i < len(bitmap); i++ {
		if bitmap[i] {
			seq.Extensions = append(seq.Extensions, &asn1value.Unknown{Index: i, Raw: raws[i]})
			c.event(EventUnknownExtension, t, "index", i)
		} else if i == len(bitmap)-1 {
			seq.Extensions = append(seq.Extensions, &asn1value.Unknown{Index: i})
		}
	}
}

func (c *call) openCandidates(t *asn1schema.Open, env *asn1schema.Enclosing) (asn1schema.Resolution, []asn1schema.Type) {
	if t.Table == nil {
		return asn1schema.ResolveNone, nil
	}
	return t.Table.Resolve(env)
}

// openType picks the type to encode an open type value with: a candidate of the table
// constraint named by the value (or the only candidate), else a type known to the resolver.
func (c *call) openType(t *asn1schema.Open, o *asn1value.Open, env *asn1schema.Enclosing) (asn1schema.Type, error) {
	_, candidates := c.openCandidates(t, env)
	if o.Type == "" && len(candidates) == 1 {
		return candidates[0], nil
	}
	for _, cand := range candidates {
		if cand.Attributes().Name == o.Type {
			return cand, nil
		}
	}
	if o.Type != "" && c.opts.Resolver != nil {
		if found, ok := c.opts.Resolver.Lookup(o.Type); ok {
			return found, nil
		}
	}
	return nil, asn1core.EncodeErrorf("cannot resolve open type %q", o.Type)
}

// openValue validates the inner value of an open type against the type chosen for it.
func (c *call) openValue(t *asn1schema.Open, o *asn1value.Open, env *asn1schema.Enclosing) (asn1schema.Type, error) {
	inner, err := c.openType(t, o, env)
	if err != nil {
		return nil, err
	}
	if err := asn1schema.Validate(inner, o.Value); err != nil {
		return nil, err
	}
	return inner, nil
}

func openResult(t asn1schema.Type, v asn1value.Value) *asn1value.Open {
	return &asn1value.Open{Type: t.Attributes().Name, Value: v}
}

func containedResult(t asn1schema.Type, v asn1value.Value) *asn1value.Contained {
	return &asn1value.Contained{Type: asn1schema.TypeName(t), Value: v}
}
