package asn1schema

import (
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

const maxValidateDepth = 1000

// Validate checks that v has the shape t requires: the right value variant for each kind,
// declared member and alternative names, mandatory members present and extension groups
// complete. Constraint checks are left to the encoders. All problems found are returned as
// an asn1core.ErrorList of value shape errors.
func Validate(t Type, v asn1value.Value) error {
	var errs asn1core.ErrorList
	validate(t, v, TypeName(t), &errs, 0)
	return errs.Err()
}

func shapeError(errs *asn1core.ErrorList, path string, format string, args ...any) {
	*errs = append(*errs, asn1core.ShapeErrorf(format, args...).In(path))
}

func validate(t Type, v asn1value.Value, path string, errs *asn1core.ErrorList, depth int) {
	if depth > maxValidateDepth {
		shapeError(errs, path, "value nested too deeply")
		return
	}
	if v == nil {
		shapeError(errs, path, "missing value for %s", t.Kind())
		return
	}
	mismatch := func() {
		shapeError(errs, path, "%T is not a value of %s", v, t.Kind())
	}
	switch x := t.(type) {
	case *Boolean:
		if _, ok := v.(asn1value.Boolean); !ok {
			mismatch()
		}
	case *Integer:
		if _, ok := v.(asn1value.Integer); !ok {
			mismatch()
		}
	case *Enumerated:
		switch e := v.(type) {
		case asn1value.Enumerated:
			if _, ok := x.Item(string(e)); !ok {
				shapeError(errs, path, "unknown enumeration item %q", string(e))
			}
		case *asn1value.Unknown:
			if !x.Extensible {
				shapeError(errs, path, "unknown enumeration item in a non extensible type")
			}
		default:
			mismatch()
		}
	case *Null:
		if _, ok := v.(asn1value.Null); !ok {
			mismatch()
		}
	case *ObjectIdentifier:
		if _, ok := v.(asn1value.OID); !ok {
			mismatch()
		}
	case *BitString:
		switch c := v.(type) {
		case asn1value.BitString:
		case *asn1value.Contained:
			validateContained(x.Containing, c, path, errs, depth)
		default:
			mismatch()
		}
	case *OctetString:
		switch c := v.(type) {
		case asn1value.OctetString:
		case *asn1value.Contained:
			validateContained(x.Containing, c, path, errs, depth)
		default:
			mismatch()
		}
	case *String:
		if _, ok := v.(asn1value.String); !ok {
			mismatch()
		}
	case *Choice:
		c, ok := v.(*asn1value.Choice)
		if !ok {
			mismatch()
			return
		}
		if c.ID == "" {
			if _, ok := c.Value.(*asn1value.Unknown); !ok || !x.Extensible {
				shapeError(errs, path, "unidentified alternative")
			}
			return
		}
		m, ok := x.Member(c.ID)
		if !ok {
			shapeError(errs, path, "unknown alternative %q", c.ID)
			return
		}
		validate(m.Type, c.Value, path+"."+c.ID, errs, depth+1)
	case *Sequence:
		validateMembers(x.Components, v, path, errs, depth)
	case *Set:
		validateMembers(x.Components, v, path, errs, depth)
	case *SequenceOf:
		validateList(x, v, path, errs, depth)
	case *SetOf:
		validateList(&x.SequenceOf, v, path, errs, depth)
	case *Open:
		o, ok := v.(*asn1value.Open)
		if !ok {
			mismatch()
			return
		}
		if o.Value == nil {
			shapeError(errs, path, "open type without content")
		}
	default:
		shapeError(errs, path, "unsupported type node %T", t)
	}
}

func validateContained(t Type, c *asn1value.Contained, path string, errs *asn1core.ErrorList, depth int) {
	if t == nil {
		shapeError(errs, path, "contained value for a type without a CONTAINING constraint")
		return
	}
	validate(t, c.Value, path, errs, depth+1)
}

func validateMembers(c *Components, v asn1value.Value, path string, errs *asn1core.ErrorList, depth int) {
	seq, ok := v.(*asn1value.Sequence)
	if !ok {
		shapeError(errs, path, "%T is not a SEQUENCE or SET value", v)
		return
	}
	for _, name := range seq.Names() {
		m, ok := c.Member(name)
		if !ok {
			shapeError(errs, path, "undeclared member %q", name)
			continue
		}
		validate(m.Type, seq.Fields[name], path+"."+name, errs, depth+1)
	}
	for _, m := range c.Root {
		if _, ok := seq.Fields[m.Name]; !ok && m.Mandatory() {
			shapeError(errs, path, "missing mandatory member %q", m.Name)
		}
	}
	for _, g := range c.Groups {
		present := false
		for _, m := range g.Members {
			if _, ok := seq.Fields[m.Name]; ok {
				present = true
			}
		}
		if !present {
			continue
		}
		for _, m := range g.Members {
			if _, ok := seq.Fields[m.Name]; !ok && m.Mandatory() {
				shapeError(errs, path, "extension group %d is partially present: missing %q", g.Index, m.Name)
			}
		}
	}
	if len(seq.Extensions) > 0 && !c.Extensible {
		shapeError(errs, path, "unknown extensions in a non extensible type")
	}
}

func validateList(t *SequenceOf, v asn1value.Value, path string, errs *asn1core.ErrorList, depth int) {
	list, ok := v.(asn1value.List)
	if !ok {
		shapeError(errs, path, "%T is not a list value", v)
		return
	}
	for _, e := range list {
		validate(t.Element, e, path+"[]", errs, depth+1)
	}
}
