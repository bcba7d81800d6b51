package asn1value

import (
	"bytes"
	"sort"
	"strings"
)

// Equal compares two values structurally. Bit strings compare by their significant bits.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Boolean, Integer, Enumerated, Null, String:
		return a == b
	case OID:
		y, ok := b.(OID)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case OctetString:
		y, ok := b.(OctetString)
		return ok && bytes.Equal(x, y)
	case BitString:
		y, ok := b.(BitString)
		if !ok || x.Length != y.Length {
			return false
		}
		for i := 0; i < x.Length; i++ {
			if x.At(i) != y.At(i) {
				return false
			}
		}
		return true
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Choice:
		y, ok := b.(*Choice)
		return ok && x.ID == y.ID && Equal(x.Value, y.Value)
	case *Sequence:
		y, ok := b.(*Sequence)
		if !ok || len(x.Fields) != len(y.Fields) || len(x.Extensions) != len(y.Extensions) {
			return false
		}
		for name, v := range x.Fields {
			w, ok := y.Fields[name]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		for i := range x.Extensions {
			if !Equal(x.Extensions[i], y.Extensions[i]) {
				return false
			}
		}
		return true
	case *Contained:
		y, ok := b.(*Contained)
		return ok && x.Type == y.Type && Equal(x.Value, y.Value)
	case *Open:
		y, ok := b.(*Open)
		return ok && x.Type == y.Type && Equal(x.Value, y.Value)
	case *Unknown:
		y, ok := b.(*Unknown)
		if !ok || x.Index != y.Index || !bytes.Equal(x.Raw, y.Raw) {
			return false
		}
		if x.Tag == nil || y.Tag == nil {
			return x.Tag == nil && y.Tag == nil
		}
		return x.Tag.Equal(*y.Tag)
	}
	return false
}

// Key renders a value as a canonical string, suitable as a map key for table lookups.
func Key(v Value) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case *Sequence:
		parts := make([]string, 0, len(x.Fields))
		for _, name := range x.Names() {
			parts = append(parts, name+"="+Key(x.Fields[name]))
		}
		sort.Strings(parts)
		return "{" + strings.Join(parts, ",") + "}"
	case *Choice:
		return x.ID + ":" + Key(x.Value)
	case List:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Key(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return v.String()
}
