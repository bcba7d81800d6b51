package asn1codec

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// UnknownField is the JSON member carrying content kept as asn1value.Unknown.
const UnknownField = "$unknown"

var jerConfig = jsoniter.Config{UseNumber: true}.Froze()

func (c *call) jerEncode(t asn1schema.Type, v asn1value.Value) ([]byte, error) {
	s := jsoniter.NewStream(jsoniter.ConfigDefault, nil, 512)
	if err := c.jerValue(s, t, v, nil); err != nil {
		return nil, err
	}
	if s.Error != nil {
		return nil, asn1core.Wrap(s.Error)
	}
	return append([]byte(nil), s.Buffer()...), nil
}

func (c *call) jerDecode(t asn1schema.Type, data []byte) (asn1value.Value, error) {
	var x any
	if err := jerConfig.Unmarshal(data, &x); err != nil {
		return nil, asn1core.DecodeErrorf("%w: %s", asn1core.ErrMalformed, err.Error()).WithCause(err)
	}
	return c.fromGeneric(t, x, nil)
}

func hexString(b []byte) string {
	return fmt.Sprintf("%X", b)
}

func writeUnknown(s *jsoniter.Stream, u *asn1value.Unknown) {
	s.WriteObjectStart()
	s.WriteObjectField(UnknownField)
	writeUnknownBody(s, u)
	s.WriteObjectEnd()
}

func writeUnknownBody(s *jsoniter.Stream, u *asn1value.Unknown) {
	s.WriteObjectStart()
	s.WriteObjectField("index")
	s.WriteInt(u.Index)
	if u.Tag != nil {
		s.WriteMore()
		s.WriteObjectField("tag")
		s.WriteString(u.Tag.String())
	}
	if u.Raw != nil {
		s.WriteMore()
		s.WriteObjectField("raw")
		s.WriteString(hexString(u.Raw))
	}
	s.WriteObjectEnd()
}

func (c *call) jerValue(s *jsoniter.Stream, t asn1schema.Type, v asn1value.Value, env *asn1schema.Enclosing) (err error) {
	if err := c.enter(t); err != nil {
		return err
	}
	defer c.leave()
	defer func() {
		if err != nil {
			err = asn1core.Annotate(err, asn1core.EncodeError, c.rule, asn1schema.TypeName(t))
		}
	}()

	switch x := t.(type) {
	case *asn1schema.Boolean:
		s.WriteBool(bool(v.(asn1value.Boolean)))
	case *asn1schema.Integer:
		n := int64(v.(asn1value.Integer))
		if cons := x.Value; cons != nil && !cons.Extensible && !cons.Contains(n) {
			return asn1core.EncodeErrorf("%w: %d outside %s", asn1core.ErrConstraint, n, cons)
		}
		s.WriteInt64(n)
	case *asn1schema.Enumerated:
		if u, ok := v.(*asn1value.Unknown); ok {
			writeUnknown(s, u)
			return nil
		}
		s.WriteString(string(v.(asn1value.Enumerated)))
	case *asn1schema.Null:
		s.WriteNil()
	case *asn1schema.ObjectIdentifier:
		s.WriteString(asn1ber.FormatOID(v.(asn1value.OID)))
	case *asn1schema.BitString:
		if cv, ok := v.(*asn1value.Contained); ok {
			return c.jerValue(s, x.Containing, cv.Value, env)
		}
		bs := normalizeBits(x, v.(asn1value.BitString), false)
		if _, ok := fixedSize(x.Size); ok {
			s.WriteString(hexString(bs.Bytes))
			return nil
		}
		s.WriteObjectStart()
		s.WriteObjectField("value")
		s.WriteString(hexString(bs.Bytes))
		s.WriteMore()
		s.WriteObjectField("length")
		s.WriteInt(bs.Length)
		s.WriteObjectEnd()
	case *asn1schema.OctetString:
		if cv, ok := v.(*asn1value.Contained); ok {
			return c.jerValue(s, x.Containing, cv.Value, env)
		}
		s.WriteString(hexString(v.(asn1value.OctetString)))
	case *asn1schema.String:
		s.WriteString(string(v.(asn1value.String)))
	case *asn1schema.Choice:
		ch := v.(*asn1value.Choice)
		if ch.ID == "" {
			writeUnknown(s, ch.Value.(*asn1value.Unknown))
			return nil
		}
		m, _ := x.Member(ch.ID)
		s.WriteObjectStart()
		s.WriteObjectField(ch.ID)
		if err := c.jerValue(s, m.Type, ch.Value, env); err != nil {
			return err
		}
		s.WriteObjectEnd()
	case *asn1schema.Sequence:
		return c.jerMembers(s, t, x.Components, v.(*asn1value.Sequence), env)
	case *asn1schema.Set:
		return c.jerMembers(s, t, x.Components, v.(*asn1value.Sequence), env)
	case *asn1schema.SequenceOf:
		return c.jerList(s, x.Element, v.(asn1value.List), env)
	case *asn1schema.SetOf:
		return c.jerList(s, x.Element, v.(asn1value.List), env)
	case *asn1schema.Open:
		return c.jerOpen(s, x, v.(*asn1value.Open), env)
	default:
		return asn1core.NewUnimplementedError("type node %T", t)
	}
	return nil
}

func (c *call) jerMembers(s *jsoniter.Stream, t asn1schema.Type, comps *asn1schema.Components, seq *asn1value.Sequence, env *asn1schema.Enclosing) error {
	env = env.Push(t, seq)
	s.WriteObjectStart()
	first := true
	for _, list := range [][]*asn1schema.Component{comps.Root, comps.Extension} {
		for _, m := range list {
			v, ok := c.present(seq, m)
			if !ok {
				continue
			}
			if !first {
				s.WriteMore()
			}
			first = false
			s.WriteObjectField(m.Name)
			if err := c.jerValue(s, m.Type, v, env); err != nil {
				return err
			}
		}
	}
	if len(seq.Extensions) > 0 {
		if !first {
			s.WriteMore()
		}
		s.WriteObjectField(UnknownField)
		s.WriteArrayStart()
		for i, u := range seq.Extensions {
			if i > 0 {
				s.WriteMore()
			}
			writeUnknownBody(s, u)
		}
		s.WriteArrayEnd()
	}
	s.WriteObjectEnd()
	return nil
}

func (c *call) jerList(s *jsoniter.Stream, elem asn1schema.Type, list asn1value.List, env *asn1schema.Enclosing) error {
	s.WriteArrayStart()
	for i, e := range list {
		if i > 0 {
			s.WriteMore()
		}
		if err := c.jerValue(s, elem, e, env); err != nil {
			return err
		}
	}
	s.WriteArrayEnd()
	return nil
}

// jerOpen writes the bare inner value when the table constraint settles the type, otherwise
// an object naming the type.
func (c *call) jerOpen(s *jsoniter.Stream, t *asn1schema.Open, v *asn1value.Open, env *asn1schema.Enclosing) error {
	if u, ok := v.Value.(*asn1value.Unknown); ok {
		writeUnknown(s, u)
		return nil
	}
	inner, err := c.openValue(t, v, env)
	if err != nil {
		return err
	}
	if res, _ := c.openCandidates(t, env); res == asn1schema.ResolveOne {
		return c.jerValue(s, inner, v.Value, env)
	}
	s.WriteObjectStart()
	s.WriteObjectField(inner.Attributes().Name)
	if err := c.jerValue(s, inner, v.Value, env); err != nil {
		return err
	}
	s.WriteObjectEnd()
	return nil
}
