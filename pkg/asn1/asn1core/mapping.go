package asn1core

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

type mappingPair[T constraints.Integer] struct {
	name string
	val  T
}

// mapping is a case insensitive two way table between names and small integers.
type mapping[T constraints.Integer] struct {
	valMap  map[T]*mappingPair[T]
	nameMap map[string]*mappingPair[T]
}

func (m *mapping[T]) AddAlias(name string, aliases ...string) {
	known, ok := m.nameMap[strings.ToLower(name)]
	if !ok {
		panic("unknown name in alias")
	}
	for _, alias := range aliases {
		aliasL := strings.ToLower(alias)
		if _, ok := m.nameMap[aliasL]; ok {
			panic(fmt.Sprintf("duplicate alias %q", alias))
		}
		m.nameMap[aliasL] = known
	}
}

func (m *mapping[T]) Add(name string, val T) {
	nameL := strings.ToLower(name)
	if m.valMap == nil {
		m.valMap = make(map[T]*mappingPair[T])
	}
	if m.nameMap == nil {
		m.nameMap = make(map[string]*mappingPair[T])
	}
	if _, ok := m.valMap[val]; ok {
		panic(fmt.Sprintf("duplicate value %d", val))
	}
	if _, ok := m.nameMap[nameL]; ok {
		panic(fmt.Sprintf("duplicate name %q", name))
	}
	p := &mappingPair[T]{name, val}
	m.valMap[val] = p
	m.nameMap[nameL] = p
}

func (m *mapping[T]) Name(val T) (string, error) {
	p, ok := m.valMap[val]
	if !ok {
		return "", NewErrorf("unknown value %d", val)
	}
	return p.name, nil
}

func (m *mapping[T]) Value(name string) (T, error) {
	p, ok := m.nameMap[strings.ToLower(name)]
	if !ok {
		var null T
		return null, NewErrorf("unknown name %q", name)
	}
	return p.val, nil
}

// Mapping exposes the name table to other packages that keep their own enums.
type Mapping[T constraints.Integer] struct {
	m mapping[T]
}

func (m *Mapping[T]) Add(name string, val T)                  { m.m.Add(name, val) }
func (m *Mapping[T]) AddAlias(name string, aliases ...string) { m.m.AddAlias(name, aliases...) }
func (m *Mapping[T]) Name(val T) (string, error)              { return m.m.Name(val) }
func (m *Mapping[T]) Value(name string) (T, error)            { return m.m.Value(name) }
func (m *Mapping[T]) String(val T) string {
	name, err := m.m.Name(val)
	if err != nil {
		return fmt.Sprintf("%d", val)
	}
	return name
}
