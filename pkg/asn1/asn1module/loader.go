package asn1module

import (
	"io"
	"os"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
	"gopkg.in/yaml.v3"
)

// Load reads one YAML document from r. References that the document does not define are
// looked up in imports.
func Load(r io.Reader, imports ...asn1schema.Resolver) (*asn1schema.Module, error) {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	var doc document
	if err := d.Decode(&doc); err != nil {
		return nil, asn1core.NewErrorf("cannot parse module").WithCause(err)
	}
	b := newBuilder(&doc, asn1schema.Resolvers(imports))
	return b.run()
}

func LoadFile(path string, imports ...asn1schema.Resolver) (*asn1schema.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Load(f, imports...)
	if err != nil {
		return nil, asn1core.Wrap(err).In(path)
	}
	return m, nil
}

// LoadFiles loads each file in turn. Every file may refer to types of the files before it.
func LoadFiles(paths ...string) (asn1schema.Resolvers, error) {
	var loaded asn1schema.Resolvers
	for _, path := range paths {
		m, err := LoadFile(path, loaded...)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, m)
	}
	return loaded, nil
}

type builder struct {
	doc      *document
	imports  asn1schema.Resolver
	specs    map[string]*typeSpec
	built    map[string]asn1schema.Type
	building map[string]bool
	scopes   []*asn1schema.Components

	// fixups retag references into a type that was still under construction
	fixups []func()
	// late runs once every type is complete: defaults and tables need finished types
	late []func() error
}

func newBuilder(doc *document, imports asn1schema.Resolver) *builder {
	return &builder{
		doc:      doc,
		imports:  imports,
		specs:    make(map[string]*typeSpec),
		built:    make(map[string]asn1schema.Type),
		building: make(map[string]bool),
	}
}

func errorf(line int, format string, args ...any) error {
	if line > 0 {
		format = "line %d: " + format
		args = append([]any{line}, args...)
	}
	return asn1core.NewErrorf(format, args...)
}

func (b *builder) run() (*asn1schema.Module, error) {
	name := b.doc.Module
	if name == "" {
		name = "Module"
	}
	for _, spec := range b.doc.Types {
		if spec.Name == "" {
			return nil, errorf(spec.line, "type definition without a name")
		}
		if _, dup := b.specs[spec.Name]; dup {
			return nil, errorf(spec.line, "type %q defined twice", spec.Name)
		}
		b.specs[spec.Name] = spec
	}
	for _, spec := range b.doc.Types {
		if _, err := b.named(spec.Name); err != nil {
			return nil, asn1core.Wrap(err).In(spec.Name)
		}
	}
	for _, fix := range b.fixups {
		fix()
	}
	for _, fn := range b.late {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	m := asn1schema.NewModule(name)
	for _, spec := range b.doc.Types {
		if err := m.Add(b.built[spec.Name]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// lookup finds a declared, imported or builtin type. pending reports that the type is still
// being filled in.
func (b *builder) lookup(name string, line int) (t asn1schema.Type, pending bool, err error) {
	if t, ok := b.built[name]; ok {
		return t, b.building[name], nil
	}
	if b.building[name] {
		return nil, false, errorf(line, "type %q refers to itself outside a constructed type", name)
	}
	if _, ok := b.specs[name]; ok {
		t, err := b.named(name)
		return t, false, err
	}
	if b.imports != nil {
		if t, ok := b.imports.Lookup(name); ok {
			return t, false, nil
		}
	}
	kind, sk, err := parseKind(name)
	if err != nil {
		return nil, false, errorf(line, "undefined type %q", name)
	}
	switch kind {
	case asn1schema.KindChoice, asn1schema.KindSequence, asn1schema.KindSet,
		asn1schema.KindSequenceOf, asn1schema.KindSetOf:
		return nil, false, errorf(line, "%s needs a definition, not a bare reference", kind)
	}
	t, err = b.node(&typeSpec{Kind: name, line: line}, "", kind, sk, nil)
	return t, false, err
}

func (b *builder) named(name string) (asn1schema.Type, error) {
	if t, ok := b.built[name]; ok {
		return t, nil
	}
	spec := b.specs[name]
	b.building[name] = true
	defer delete(b.building, name)

	if spec.Ref != "" {
		t, err := b.alias(spec)
		if err != nil {
			return nil, err
		}
		b.built[name] = t
		return t, nil
	}
	kind, sk, err := parseKind(spec.Kind)
	if err != nil {
		return nil, errorf(spec.line, "%s", err)
	}
	t, err := b.node(spec, name, kind, sk, func(t asn1schema.Type) { b.built[name] = t })
	if err != nil {
		return nil, err
	}
	b.built[name] = t
	return t, nil
}

// alias defines a new name for another type, optionally with a tag of its own.
func (b *builder) alias(spec *typeSpec) (asn1schema.Type, error) {
	target, pending, err := b.lookup(spec.Ref, spec.line)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, errorf(spec.line, "alias %q is part of a reference cycle", spec.Name)
	}
	t := asn1schema.Clone(target)
	if spec.Tag != "" {
		tag, err := asn1core.ParseTag(spec.Tag)
		if err != nil {
			return nil, err
		}
		t = asn1schema.Retag(target, tag, spec.Explicit)
	}
	t.Attributes().Name = spec.Name
	return t, nil
}

// resolve builds the type spec describes and hands it to set, now or once the types it
// refers to are complete.
func (b *builder) resolve(spec *typeSpec, set func(asn1schema.Type)) error {
	if spec == nil {
		return asn1core.NewErrorf("missing type")
	}
	if spec.Ref == "" {
		kind, sk, err := parseKind(spec.Kind)
		if err != nil {
			return errorf(spec.line, "%s", err)
		}
		t, err := b.node(spec, "", kind, sk, nil)
		if err != nil {
			return err
		}
		set(t)
		return nil
	}
	if spec.Kind != "" {
		return errorf(spec.line, "type has both ref %q and kind %q", spec.Ref, spec.Kind)
	}
	target, pending, err := b.lookup(spec.Ref, spec.line)
	if err != nil {
		return err
	}
	if spec.Tag == "" {
		set(target)
		return nil
	}
	tag, err := asn1core.ParseTag(spec.Tag)
	if err != nil {
		return err
	}
	if pending {
		b.fixups = append(b.fixups, func() { set(asn1schema.Retag(target, tag, spec.Explicit)) })
		return nil
	}
	set(asn1schema.Retag(target, tag, spec.Explicit))
	return nil
}

func parseKind(s string) (asn1schema.Kind, asn1schema.StringKind, error) {
	if s == "" {
		return 0, 0, asn1core.NewErrorf("type needs a kind or a ref")
	}
	s = strings.Join(strings.Fields(s), " ")
	if kind, err := asn1schema.ParseKind(s); err == nil && kind != asn1schema.KindString {
		return kind, 0, nil
	}
	sk, err := asn1schema.ParseStringKind(s)
	if err != nil {
		return 0, 0, asn1core.NewErrorf("unknown kind %q", s)
	}
	return asn1schema.KindString, sk, nil
}

// node builds a type of the given kind. register, when set, receives constructed types before
// their members are built so that members may refer back to them.
func (b *builder) node(spec *typeSpec, name string, kind asn1schema.Kind, sk asn1schema.StringKind, register func(asn1schema.Type)) (asn1schema.Type, error) {
	common := asn1schema.Common{Name: name}
	if spec.Tag != "" {
		tag, err := asn1core.ParseTag(spec.Tag)
		if err != nil {
			return nil, err
		}
		tag = tag.Key()
		common.Tag = &tag
		common.Explicit = spec.Explicit || kind == asn1schema.KindChoice || kind == asn1schema.KindOpen
	}
	if register == nil {
		register = func(asn1schema.Type) {}
	}
	size := constraint(spec.Size)

	switch kind {
	case asn1schema.KindBoolean:
		return &asn1schema.Boolean{Common: common}, nil
	case asn1schema.KindInteger:
		return &asn1schema.Integer{Common: common, Value: constraint(spec.Value)}, nil
	case asn1schema.KindEnumerated:
		root, ext, err := enumItems(spec)
		if err != nil {
			return nil, err
		}
		return &asn1schema.Enumerated{
			Common:     common,
			Root:       root,
			Extensible: spec.Extensible || len(ext) > 0,
			Extension:  ext,
		}, nil
	case asn1schema.KindNull:
		return &asn1schema.Null{Common: common}, nil
	case asn1schema.KindObjectIdentifier:
		return &asn1schema.ObjectIdentifier{Common: common}, nil
	case asn1schema.KindBitString:
		t := &asn1schema.BitString{Common: common, Size: size}
		for _, item := range spec.Bits {
			if item.Bit == nil || *item.Bit < 0 {
				return nil, errorf(spec.line, "named bit %q needs a bit number", item.Name)
			}
			t.NamedBits = append(t.NamedBits, asn1schema.NamedBit{Name: item.Name, Bit: *item.Bit})
		}
		if spec.Containing != nil {
			if err := b.resolve(spec.Containing, func(c asn1schema.Type) { t.Containing = c }); err != nil {
				return nil, err
			}
		}
		return t, nil
	case asn1schema.KindOctetString:
		t := &asn1schema.OctetString{Common: common, Size: size}
		if spec.Containing != nil {
			if err := b.resolve(spec.Containing, func(c asn1schema.Type) { t.Containing = c }); err != nil {
				return nil, err
			}
		}
		return t, nil
	case asn1schema.KindString:
		t := &asn1schema.String{Common: common, StringKind: sk, Size: size}
		if spec.Alphabet != nil {
			t.Alphabet = asn1schema.NewAlphabet(spec.Alphabet.Chars, spec.Alphabet.Extensible)
		}
		return t, nil
	case asn1schema.KindChoice:
		t := asn1schema.NewChoice(name, &asn1schema.Components{})
		t.Common = common
		register(t)
		return t, b.components(t.Components, spec)
	case asn1schema.KindSequence:
		t := asn1schema.NewSequence(name, &asn1schema.Components{})
		t.Common = common
		register(t)
		return t, b.components(t.Components, spec)
	case asn1schema.KindSet:
		t := asn1schema.NewSet(name, &asn1schema.Components{})
		t.Common = common
		register(t)
		return t, b.components(t.Components, spec)
	case asn1schema.KindSequenceOf:
		t := asn1schema.NewSequenceOf(name, nil, size)
		t.Common = common
		register(t)
		return t, b.resolve(spec.Element, func(e asn1schema.Type) { t.Element = e })
	case asn1schema.KindSetOf:
		t := asn1schema.NewSetOf(name, nil, size)
		t.Common = common
		register(t)
		return t, b.resolve(spec.Element, func(e asn1schema.Type) { t.Element = e })
	case asn1schema.KindOpen:
		t := &asn1schema.Open{Common: common}
		if err := b.table(t, spec); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, asn1core.NewUnimplementedError("kind %s", kind)
}

func constraint(r *rangeSpec) *asn1schema.Constraint {
	if r == nil {
		return nil
	}
	c := &asn1schema.Constraint{Lower: r.Min, Upper: r.Max, Extensible: r.Extensible, Root: r.Values}
	// a value list alone still bounds the PER encodings
	for _, v := range r.Values {
		if r.Min == nil && (c.Lower == nil || v < *c.Lower) {
			c.Lower = &v
		}
		if r.Max == nil && (c.Upper == nil || v > *c.Upper) {
			c.Upper = &v
		}
	}
	return c
}

// enumItems numbers unnumbered items: root items take the smallest unused non-negative
// number, extension items follow the largest number seen so far.
func enumItems(spec *typeSpec) (root, ext []asn1schema.EnumItem, err error) {
	used := make(map[int64]bool)
	for _, item := range spec.Items {
		if item.Number != nil {
			used[*item.Number] = true
		}
	}
	next := int64(0)
	last := int64(-1)
	for _, item := range spec.Items {
		n := next
		if item.Number != nil {
			n = *item.Number
		} else {
			for used[n] {
				n++
			}
			used[n] = true
			next = n + 1
		}
		if n > last {
			last = n
		}
		root = append(root, asn1schema.EnumItem{Name: item.Name, Number: n})
	}
	for _, item := range spec.ExtensionItems {
		n := last + 1
		if item.Number != nil {
			if *item.Number <= last || used[*item.Number] {
				return nil, nil, errorf(spec.line, "extension item %q must be numbered above %d", item.Name, last)
			}
			n = *item.Number
		}
		used[n] = true
		last = n
		ext = append(ext, asn1schema.EnumItem{Name: item.Name, Number: n})
	}
	return root, ext, nil
}

func (b *builder) components(comps *asn1schema.Components, spec *typeSpec) error {
	b.scopes = append(b.scopes, comps)
	defer func() { b.scopes = b.scopes[:len(b.scopes)-1] }()

	seen := make(map[string]bool)
	members := func(list []*memberSpec) ([]*asn1schema.Component, error) {
		var out []*asn1schema.Component
		for _, m := range list {
			if seen[m.Name] {
				return nil, errorf(m.line, "member %q declared twice", m.Name)
			}
			seen[m.Name] = true
			c, err := b.member(m)
			if err != nil {
				return nil, asn1core.Wrap(err).In(m.Name)
			}
			out = append(out, c)
		}
		return out, nil
	}

	root, err := members(spec.Members)
	if err != nil {
		return err
	}
	comps.Root = root
	if spec.Extensible || len(spec.Extension) > 0 || len(spec.Groups) > 0 {
		ext, err := members(spec.Extension)
		if err != nil {
			return err
		}
		comps.Extend(ext...)
		for _, group := range spec.Groups {
			g, err := members(group)
			if err != nil {
				return err
			}
			comps.ExtendGroup(g...)
		}
	}
	return nil
}

func (b *builder) member(m *memberSpec) (*asn1schema.Component, error) {
	if m.Name == "" {
		return nil, errorf(m.line, "member without a name")
	}
	if m.Optional && m.Default != nil {
		return nil, errorf(m.line, "member %q is both optional and defaulted", m.Name)
	}
	c := &asn1schema.Component{Name: m.Name, Optional: m.Optional}
	if err := b.resolve(m.Type, func(t asn1schema.Type) { c.Type = t }); err != nil {
		return nil, err
	}
	if m.Default != nil {
		b.late = append(b.late, func() error {
			v, err := asn1codec.FromGeneric(c.Type, m.Default)
			if err != nil {
				return asn1core.Wrap(err).In(m.Name)
			}
			c.Default = v
			return nil
		})
	}
	return c, nil
}

// table attaches the table constraint of an open type once the candidate types and the
// governing member are complete.
func (b *builder) table(t *asn1schema.Open, spec *typeSpec) error {
	if spec.Table != nil && len(spec.Candidates) > 0 {
		return errorf(spec.line, "open type has both a table and a candidate list")
	}
	var scope *asn1schema.Components
	if len(b.scopes) > 0 {
		scope = b.scopes[len(b.scopes)-1]
	}
	if len(spec.Candidates) > 0 {
		b.late = append(b.late, func() error {
			types, err := b.types(spec.Candidates, spec.line)
			if err != nil {
				return err
			}
			t.Table = asn1schema.Candidates(types)
			return nil
		})
	}
	tbl := spec.Table
	if tbl == nil {
		return nil
	}
	if tbl.Field == "" {
		return errorf(spec.line, "table needs a governing field")
	}
	var keyType asn1schema.Type
	if tbl.KeyType != nil {
		if err := b.resolve(tbl.KeyType, func(k asn1schema.Type) { keyType = k }); err != nil {
			return err
		}
	}
	b.late = append(b.late, func() error {
		if keyType == nil {
			var err error
			if keyType, err = fieldType(scope, tbl.Field); err != nil {
				return errorf(spec.line, "%s", err)
			}
		}
		ft := &asn1schema.FieldTable{Field: tbl.Field, Rows: make(map[string][]asn1schema.Type)}
		for _, row := range tbl.Rows {
			key, err := asn1codec.FromGeneric(keyType, row.Key)
			if err != nil {
				return asn1core.Wrap(err).In(tbl.Field)
			}
			if ft.Rows[asn1value.Key(key)], err = b.types(row.Types, spec.line); err != nil {
				return err
			}
		}
		var err error
		if ft.Default, err = b.types(tbl.Default, spec.line); err != nil {
			return err
		}
		t.Table = ft
		return nil
	})
	return nil
}

func (b *builder) types(names []string, line int) ([]asn1schema.Type, error) {
	types := make([]asn1schema.Type, 0, len(names))
	for _, name := range names {
		t, _, err := b.lookup(name, line)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// fieldType follows a dotted member path from scope.
func fieldType(scope *asn1schema.Components, path string) (asn1schema.Type, error) {
	if scope == nil {
		return nil, asn1core.NewErrorf("table field %q needs a key_type outside a SEQUENCE", path)
	}
	comps := scope
	var t asn1schema.Type
	for _, name := range strings.Split(path, ".") {
		if comps == nil {
			return nil, asn1core.NewErrorf("table field %q descends into %s", path, asn1schema.TypeName(t))
		}
		c, ok := comps.Member(name)
		if !ok {
			return nil, asn1core.NewErrorf("table field %q: no member %q", path, name)
		}
		t = c.Type
		switch x := t.(type) {
		case *asn1schema.Sequence:
			comps = x.Components
		case *asn1schema.Set:
			comps = x.Components
		default:
			comps = nil
		}
	}
	return t, nil
}
