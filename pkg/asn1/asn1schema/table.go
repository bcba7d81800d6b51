package asn1schema

import (
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type Resolution int

const (
	ResolveNone Resolution = iota
	ResolveOne
	ResolveMany
)

func (r Resolution) String() string {
	switch r {
	case ResolveOne:
		return "one"
	case ResolveMany:
		return "many"
	}
	return "none"
}

// TableConstraint picks the candidate types of an open type from the values around it.
type TableConstraint interface {
	Resolve(env *Enclosing) (Resolution, []Type)
}

// Enclosing is the chain of constructed values that contain the node being processed,
// innermost first. A nil *Enclosing is the empty chain.
type Enclosing struct {
	Outer *Enclosing
	Type  Type
	Value asn1value.Value
}

// Push returns a new innermost link. e is not modified.
func (e *Enclosing) Push(t Type, v asn1value.Value) *Enclosing {
	return &Enclosing{Outer: e, Type: t, Value: v}
}

// Lookup finds the value of a component by name, searching outward from the innermost
// SEQUENCE or SET. A dotted path such as "header.kind" descends into the first match.
func (e *Enclosing) Lookup(path string) (asn1value.Value, bool) {
	names := strings.Split(path, ".")
	for link := e; link != nil; link = link.Outer {
		seq, ok := link.Value.(*asn1value.Sequence)
		if !ok {
			continue
		}
		v, ok := seq.Get(names[0])
		if !ok {
			continue
		}
		for _, name := range names[1:] {
			inner, ok := v.(*asn1value.Sequence)
			if !ok {
				return nil, false
			}
			if v, ok = inner.Get(name); !ok {
				return nil, false
			}
		}
		return v, true
	}
	return nil, false
}

// FieldTable resolves candidates from the value of a governing component. Rows are keyed
// by asn1value.Key of the governing value. Default applies when the governing component is
// absent or has no row.
type FieldTable struct {
	Field   string
	Rows    map[string][]Type
	Default []Type
}

func (ft *FieldTable) Resolve(env *Enclosing) (Resolution, []Type) {
	candidates := ft.Default
	if v, ok := env.Lookup(ft.Field); ok {
		if row, ok := ft.Rows[asn1value.Key(v)]; ok {
			candidates = row
		}
	}
	switch len(candidates) {
	case 0:
		return ResolveNone, nil
	case 1:
		return ResolveOne, candidates
	}
	return ResolveMany, candidates
}

// Candidates is a table constraint with a fixed candidate list.
type Candidates []Type

func (c Candidates) Resolve(*Enclosing) (Resolution, []Type) {
	switch len(c) {
	case 0:
		return ResolveNone, nil
	case 1:
		return ResolveOne, c
	}
	return ResolveMany, c
}
