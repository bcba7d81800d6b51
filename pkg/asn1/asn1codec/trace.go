package asn1codec

import (
	"fmt"
	"io"
	"strings"
)

// Field is one node of a decode trace. Offset and Length are in bits from the start of the
// top level encoding.
type Field struct {
	Name     string
	Offset   uint64
	Length   uint64
	Value    string
	Children []*Field
}

type Trace struct {
	Root *Field
}

func newTrace(name string, bits uint64) *Trace {
	return &Trace{Root: &Field{Name: name, Length: bits}}
}

// Walk visits every field depth first. Returning false from fn skips the children.
func (t *Trace) Walk(fn func(f *Field, depth int) bool) {
	var walk func(f *Field, depth int)
	walk = func(f *Field, depth int) {
		if !fn(f, depth) {
			return
		}
		for _, child := range f.Children {
			walk(child, depth+1)
		}
	}
	walk(t.Root, 0)
}

// Find returns the first field with the given name.
func (t *Trace) Find(name string) *Field {
	var found *Field
	t.Walk(func(f *Field, _ int) bool {
		if found == nil && f.Name == name {
			found = f
		}
		return found == nil
	})
	return found
}

// Dump writes one line per field: octet.bit offset, length in bits, name and value.
func (t *Trace) Dump(w io.Writer) error {
	var err error
	t.Walk(func(f *Field, depth int) bool {
		if err != nil {
			return false
		}
		line := fmt.Sprintf("%6d.%d %6d %s%s", f.Offset/8, f.Offset%8, f.Length, strings.Repeat("  ", depth), f.Name)
		if f.Value != "" {
			line += " = " + f.Value
		}
		_, err = fmt.Fprintln(w, line)
		return true
	})
	return err
}

// recorder builds a Trace during decoding. A nil recorder records nothing.
type recorder struct {
	stack []*Field
}

type traceMark struct {
	depth    int
	children int
}

func (r *recorder) top() *Field {
	return r.stack[len(r.stack)-1]
}

func (r *recorder) begin(name string, offset uint64) {
	if r == nil {
		return
	}
	f := &Field{Name: name, Offset: offset}
	top := r.top()
	top.Children = append(top.Children, f)
	r.stack = append(r.stack, f)
}

func (r *recorder) end(offset uint64) {
	if r == nil || len(r.stack) < 2 {
		return
	}
	f := r.top()
	f.Length = offset - f.Offset
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *recorder) leaf(name string, offset, end uint64, value any) {
	if r == nil {
		return
	}
	f := &Field{Name: name, Offset: offset, Length: end - offset}
	if value != nil {
		f.Value = fmt.Sprint(value)
	}
	top := r.top()
	top.Children = append(top.Children, f)
}

func (r *recorder) mark() traceMark {
	if r == nil {
		return traceMark{}
	}
	return traceMark{depth: len(r.stack), children: len(r.top().Children)}
}

// reset discards everything recorded since m, for decode attempts that are abandoned.
func (r *recorder) reset(m traceMark) {
	if r == nil {
		return
	}
	r.stack = r.stack[:m.depth]
	top := r.top()
	top.Children = top.Children[:m.children]
}
