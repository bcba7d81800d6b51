package asn1schema

import (
	"sort"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// Resolver finds named types, for CONTAINING and open type values that name their type.
type Resolver interface {
	Lookup(name string) (Type, bool)
}

// Module is a registry of named types.
type Module struct {
	Name  string
	types map[string]Type
}

func NewModule(name string) *Module {
	return &Module{Name: name, types: make(map[string]Type)}
}

// Add registers t under its name.
func (m *Module) Add(t Type) error {
	name := t.Attributes().Name
	if name == "" {
		return asn1core.NewErrorf("cannot register an anonymous %s", t.Kind())
	}
	if _, ok := m.types[name]; ok {
		return asn1core.NewErrorf("type %q already defined in %s", name, m.Name)
	}
	m.types[name] = t
	return nil
}

// MustAdd registers types and panics on a name collision. It is meant for package level
// schema declarations.
func (m *Module) MustAdd(types ...Type) *Module {
	for _, t := range types {
		if err := m.Add(t); err != nil {
			panic(err)
		}
	}
	return m
}

func (m *Module) Lookup(name string) (Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Names returns the registered type names sorted.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.types))
	for name := range m.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolvers searches several resolvers in order.
type Resolvers []Resolver

func (rs Resolvers) Lookup(name string) (Type, bool) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		if t, ok := r.Lookup(name); ok {
			return t, true
		}
	}
	return nil, false
}
