package asn1schema

import (
	"sort"
	"strconv"
	"sync"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type Component struct {
	Name     string
	Type     Type
	Optional bool
	Default  asn1value.Value
	// Group is the index of the extension group declaring the component, 0 when ungrouped.
	Group int
}

func Field(name string, t Type) *Component {
	return &Component{Name: name, Type: t}
}

func Optional(name string, t Type) *Component {
	return &Component{Name: name, Type: t, Optional: true}
}

func WithDefault(name string, t Type, def asn1value.Value) *Component {
	return &Component{Name: name, Type: t, Default: def}
}

// Mandatory reports whether the component must always be present.
func (c *Component) Mandatory() bool {
	return !c.Optional && c.Default == nil
}

// ExtensionGroup is a set of extension additions declared together inside [[ ]]. They are
// present or absent together and travel as one open type encoding of Type.
type ExtensionGroup struct {
	Index   int
	Members []*Component
	Type    *Sequence
}

// Slot is one extension position: an ungrouped addition or a whole group.
type Slot struct {
	Component *Component
	Group     *ExtensionGroup
}

func (s Slot) Name() string {
	if s.Group != nil {
		return "group" + strconv.Itoa(s.Group.Index)
	}
	return s.Component.Name
}

// Components is the member list of a CHOICE, SEQUENCE or SET. Root members and extension
// additions are each kept in declaration order.
type Components struct {
	Root       []*Component
	Extensible bool
	Extension  []*Component
	Groups     []*ExtensionGroup

	once      sync.Once
	byName    map[string]*Component
	canonical []*Component
	slots     []Slot
	tags      map[asn1core.Tag][]string
	anyPath   []string
}

func NewComponents(root ...*Component) *Components {
	return &Components{Root: root}
}

// Extend marks the list extensible and appends ungrouped additions.
func (c *Components) Extend(additions ...*Component) *Components {
	c.Extensible = true
	c.Extension = append(c.Extension, additions...)
	return c
}

// ExtendGroup appends an extension addition group.
func (c *Components) ExtendGroup(members ...*Component) *Components {
	c.Extensible = true
	g := &ExtensionGroup{Index: len(c.Groups) + 1, Members: members}
	for _, m := range members {
		m.Group = g.Index
	}
	g.Type = NewSequence("", NewComponents(members...))
	c.Groups = append(c.Groups, g)
	c.Extension = append(c.Extension, members...)
	return c
}

func (c *Components) init() {
	c.once.Do(func() {
		c.byName = make(map[string]*Component, len(c.Root)+len(c.Extension))
		for _, m := range c.Root {
			c.byName[m.Name] = m
		}
		for _, m := range c.Extension {
			c.byName[m.Name] = m
		}

		c.canonical = append([]*Component(nil), c.Root...)
		sort.SliceStable(c.canonical, func(i, j int) bool {
			ti, oki := CanonicalTag(c.canonical[i].Type)
			tj, okj := CanonicalTag(c.canonical[j].Type)
			if oki != okj {
				return oki
			}
			return ti.Less(tj)
		})

		seen := make(map[int]bool)
		for _, m := range c.Extension {
			if m.Group == 0 {
				c.slots = append(c.slots, Slot{Component: m})
				continue
			}
			if !seen[m.Group] {
				seen[m.Group] = true
				c.slots = append(c.slots, Slot{Group: c.Groups[m.Group-1]})
			}
		}

		c.tags = make(map[asn1core.Tag][]string)
		for _, m := range c.Root {
			c.addTags(m)
		}
		for _, m := range c.Extension {
			c.addTags(m)
		}
	})
}

func (c *Components) addTags(m *Component) {
	if tag, ok := OuterTag(m.Type); ok {
		c.tags[tag.Key()] = []string{m.Name}
		return
	}
	switch x := m.Type.(type) {
	case *Choice:
		x.init()
		for tag, path := range x.tags {
			c.tags[tag] = append([]string{m.Name}, path...)
		}
		if x.anyPath != nil && c.anyPath == nil {
			c.anyPath = append([]string{m.Name}, x.anyPath...)
		}
	case *Open:
		if c.anyPath == nil {
			c.anyPath = []string{m.Name}
		}
	}
}

// Member finds a root or extension component by name.
func (c *Components) Member(name string) (*Component, bool) {
	c.init()
	m, ok := c.byName[name]
	return m, ok
}

// IsRoot reports whether name is a root component.
func (c *Components) IsRoot(name string) bool {
	for _, m := range c.Root {
		if m.Name == name {
			return true
		}
	}
	return false
}

// RootIndex returns the position of name in the root list.
func (c *Components) RootIndex(name string) (int, bool) {
	for i, m := range c.Root {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ExtensionIndex returns the position of name in the extension list.
func (c *Components) ExtensionIndex(name string) (int, bool) {
	for i, m := range c.Extension {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

// CanonicalOrder returns the root components sorted by canonical tag.
func (c *Components) CanonicalOrder() []*Component {
	c.init()
	return c.canonical
}

// Slots returns the extension slots in declaration order.
func (c *Components) Slots() []Slot {
	c.init()
	return c.slots
}

// Lookup returns the path of component names leading to the alternative that carries tag,
// descending through untagged CHOICE alternatives. An untagged open type alternative
// matches any tag not claimed otherwise.
func (c *Components) Lookup(tag asn1core.Tag) ([]string, bool) {
	c.init()
	if path, ok := c.tags[tag.Key()]; ok {
		return path, true
	}
	if c.anyPath != nil {
		return c.anyPath, true
	}
	return nil, false
}
