package asn1codec

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// FromGeneric converts a JSON or YAML shaped value (maps, slices, strings, numbers, bools and
// nil) into the value of t, using the JER conventions.
func FromGeneric(t asn1schema.Type, x any) (asn1value.Value, error) {
	return New(asn1core.JER, Options{}).FromGeneric(t, x)
}

func (c *Codec) FromGeneric(t asn1schema.Type, x any) (v asn1value.Value, err error) {
	defer recoverPanic(&err, c.rule, t)
	return c.newCall(nil).fromGeneric(t, x, nil)
}

func shapeError(t asn1schema.Type, x any) error {
	return asn1core.ShapeErrorf("cannot use %T as %s", x, t.Kind())
}

func genericInt(x any) (int64, bool) {
	switch n := x.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		return int64(n), n == math.Trunc(n) && math.Abs(n) < 1<<63
	}
	return 0, false
}

func parseHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, asn1core.ShapeErrorf("malformed hex %q", s).WithCause(err)
	}
	return b, nil
}

// unknownFrom reads the {"index", "tag", "raw"} form of an unknown value.
func unknownFrom(x any) (*asn1value.Unknown, error) {
	m, ok := x.(map[string]any)
	if !ok {
		return nil, asn1core.ShapeErrorf("unknown content must be an object, not %T", x)
	}
	u := &asn1value.Unknown{}
	if i, ok := genericInt(m["index"]); ok {
		u.Index = int(i)
	}
	if s, ok := m["tag"].(string); ok {
		tag, err := asn1core.ParseTag(s)
		if err != nil {
			return nil, err
		}
		u.Tag = &tag
	}
	if s, ok := m["raw"].(string); ok {
		raw, err := parseHex(s)
		if err != nil {
			return nil, err
		}
		u.Raw = raw
	}
	return u, nil
}

// wrappedUnknown returns the unknown value of an object whose only member is "$unknown".
func wrappedUnknown(x any) (*asn1value.Unknown, bool, error) {
	m, ok := x.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false, nil
	}
	body, ok := m[UnknownField]
	if !ok {
		return nil, false, nil
	}
	u, err := unknownFrom(body)
	return u, true, err
}

func (c *call) fromGeneric(t asn1schema.Type, x any, env *asn1schema.Enclosing) (v asn1value.Value, err error) {
	if err := c.enter(t); err != nil {
		return nil, err
	}
	defer c.leave()
	defer func() {
		if err != nil {
			err = asn1core.Annotate(err, asn1core.ValueShapeError, c.rule, asn1schema.TypeName(t))
		}
	}()

	switch x2 := t.(type) {
	case *asn1schema.Boolean:
		if b, ok := x.(bool); ok {
			return asn1value.Boolean(b), nil
		}
	case *asn1schema.Integer:
		if n, ok := genericInt(x); ok {
			return asn1value.Integer(n), nil
		}
	case *asn1schema.Enumerated:
		if u, ok, err := wrappedUnknown(x); ok {
			if err != nil {
				return nil, err
			}
			return u, nil
		}
		if s, ok := x.(string); ok {
			if _, known := x2.Item(s); !known {
				return nil, asn1core.ShapeErrorf("unknown enumeration %q", s)
			}
			return asn1value.Enumerated(s), nil
		}
	case *asn1schema.Null:
		if x == nil {
			return asn1value.Null{}, nil
		}
	case *asn1schema.ObjectIdentifier:
		if s, ok := x.(string); ok {
			oid, err := asn1ber.ParseOIDString(s)
			if err != nil {
				return nil, err
			}
			return asn1value.OID(oid), nil
		}
	case *asn1schema.BitString:
		return c.bitStringFrom(x2, x, env)
	case *asn1schema.OctetString:
		if x2.Containing != nil {
			if inner, err := c.fromGeneric(x2.Containing, x, env); err == nil {
				return containedResult(x2.Containing, inner), nil
			}
		}
		if s, ok := x.(string); ok {
			b, err := parseHex(s)
			if err != nil {
				return nil, err
			}
			return asn1value.OctetString(b), nil
		}
	case *asn1schema.String:
		if s, ok := x.(string); ok {
			return asn1value.String(s), nil
		}
	case *asn1schema.Choice:
		return c.choiceFrom(x2, x, env)
	case *asn1schema.Sequence:
		return c.sequenceFrom(t, x2.Components, x, env)
	case *asn1schema.Set:
		return c.sequenceFrom(t, x2.Components, x, env)
	case *asn1schema.SequenceOf:
		return c.listFrom(x2.Element, x, env)
	case *asn1schema.SetOf:
		return c.listFrom(x2.Element, x, env)
	case *asn1schema.Open:
		return c.openFrom(x2, x, env)
	default:
		return nil, asn1core.NewUnimplementedError("type node %T", t)
	}
	return nil, shapeError(t, x)
}

// bitStringFrom accepts a hex string (fixed size types), a {"value", "length"} object, a
// list of named bits, or a value of the CONTAINING type.
func (c *call) bitStringFrom(t *asn1schema.BitString, x any, env *asn1schema.Enclosing) (asn1value.Value, error) {
	if t.Containing != nil {
		if inner, err := c.fromGeneric(t.Containing, x, env); err == nil {
			return containedResult(t.Containing, inner), nil
		}
	}
	switch y := x.(type) {
	case string:
		b, err := parseHex(y)
		if err != nil {
			return nil, err
		}
		n := len(b) * 8
		if size, ok := fixedSize(t.Size); ok && int(size) <= n {
			n = int(size)
		}
		return asn1value.BitString{Bytes: b, Length: n}, nil
	case map[string]any:
		s, ok := y["value"].(string)
		n, ok2 := genericInt(y["length"])
		if !ok || !ok2 {
			return nil, asn1core.ShapeErrorf("BIT STRING object needs value and length")
		}
		b, err := parseHex(s)
		if err != nil {
			return nil, err
		}
		if n < 0 || int(n) > len(b)*8 {
			return nil, asn1core.ShapeErrorf("BIT STRING length %d exceeds %d octets", n, len(b))
		}
		return asn1value.BitString{Bytes: b, Length: int(n)}, nil
	case []any:
		names := make([]string, 0, len(y))
		for _, e := range y {
			s, ok := e.(string)
			if !ok {
				return nil, shapeError(t, e)
			}
			names = append(names, s)
		}
		return t.FromNames(names...)
	}
	return nil, shapeError(t, x)
}

func (c *call) choiceFrom(t *asn1schema.Choice, x any, env *asn1schema.Enclosing) (asn1value.Value, error) {
	if u, ok, err := wrappedUnknown(x); ok {
		if err != nil {
			return nil, err
		}
		return asn1value.NewChoice("", u), nil
	}
	m, ok := x.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, asn1core.ShapeErrorf("CHOICE needs an object with one member")
	}
	for id, body := range m {
		alt, ok := t.Member(id)
		if !ok {
			return nil, asn1core.ShapeErrorf("unknown alternative %q", id)
		}
		v, err := c.fromGeneric(alt.Type, body, env)
		if err != nil {
			return nil, err
		}
		return asn1value.NewChoice(id, v), nil
	}
	return nil, shapeError(t, x)
}

func (c *call) sequenceFrom(t asn1schema.Type, comps *asn1schema.Components, x any, env *asn1schema.Enclosing) (asn1value.Value, error) {
	m, ok := x.(map[string]any)
	if !ok {
		return nil, shapeError(t, x)
	}
	seq := asn1value.NewSequence()
	env = env.Push(t, seq)
	// members in declaration order so table constraints see the fields they refer to
	for _, list := range [][]*asn1schema.Component{comps.Root, comps.Extension} {
		for _, comp := range list {
			body, ok := m[comp.Name]
			if !ok {
				continue
			}
			v, err := c.fromGeneric(comp.Type, body, env)
			if err != nil {
				return nil, err
			}
			seq.Set(comp.Name, v)
		}
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == UnknownField {
			list, ok := m[name].([]any)
			if !ok {
				return nil, asn1core.ShapeErrorf("%s must be an array", UnknownField)
			}
			for _, e := range list {
				u, err := unknownFrom(e)
				if err != nil {
					return nil, err
				}
				seq.Extensions = append(seq.Extensions, u)
			}
			continue
		}
		if _, ok := comps.Member(name); !ok {
			return nil, asn1core.ShapeErrorf("unknown member %q", name)
		}
	}
	return seq, nil
}

func (c *call) listFrom(elem asn1schema.Type, x any, env *asn1schema.Enclosing) (asn1value.Value, error) {
	items, ok := x.([]any)
	if !ok {
		return nil, asn1core.ShapeErrorf("cannot use %T as a list", x)
	}
	list := make(asn1value.List, 0, len(items))
	for _, item := range items {
		v, err := c.fromGeneric(elem, item, env)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (c *call) openFrom(t *asn1schema.Open, x any, env *asn1schema.Enclosing) (asn1value.Value, error) {
	if u, ok, err := wrappedUnknown(x); ok {
		if err != nil {
			return nil, err
		}
		return &asn1value.Open{Value: u}, nil
	}
	res, candidates := c.openCandidates(t, env)
	if res == asn1schema.ResolveOne {
		v, err := c.fromGeneric(candidates[0], x, env)
		if err != nil {
			return nil, err
		}
		return openResult(candidates[0], v), nil
	}
	m, ok := x.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, asn1core.ShapeErrorf("open type value needs an object naming its type")
	}
	for name, body := range m {
		inner, err := c.openType(t, &asn1value.Open{Type: name}, env)
		if err != nil {
			return nil, err
		}
		v, err := c.fromGeneric(inner, body, env)
		if err != nil {
			return nil, err
		}
		return &asn1value.Open{Type: name, Value: v}, nil
	}
	return nil, shapeError(t, x)
}
