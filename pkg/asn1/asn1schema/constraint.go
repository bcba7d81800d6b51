package asn1schema

import (
	"fmt"
	"sort"
	"strconv"
)

// Constraint is a resolved value or size constraint. A nil Lower or Upper is unbounded in that
// direction. Root optionally restricts the root to an explicit value set.
type Constraint struct {
	Lower      *int64
	Upper      *int64
	Extensible bool
	Root       []int64
}

func Range(lb, ub int64) *Constraint {
	return &Constraint{Lower: &lb, Upper: &ub}
}

func AtLeast(lb int64) *Constraint {
	return &Constraint{Lower: &lb}
}

func Fixed(n int64) *Constraint {
	return Range(n, n)
}

// Extend returns a copy of c marked extensible.
func (c *Constraint) Extend() *Constraint {
	cp := Constraint{Extensible: true}
	if c != nil {
		cp = *c
		cp.Extensible = true
	}
	return &cp
}

// Bounded reports whether both bounds are present.
func (c *Constraint) Bounded() bool {
	return c != nil && c.Lower != nil && c.Upper != nil
}

// Fixed returns the single permitted value when lower and upper bound coincide.
func (c *Constraint) Fixed() (int64, bool) {
	if !c.Bounded() || *c.Lower != *c.Upper {
		return 0, false
	}
	return *c.Lower, true
}

// Span is the number of values between the bounds minus one.
func (c *Constraint) Span() uint64 {
	return uint64(*c.Upper) - uint64(*c.Lower)
}

// Contains reports whether v lies in the root of the constraint.
func (c *Constraint) Contains(v int64) bool {
	if c == nil {
		return true
	}
	if c.Lower != nil && v < *c.Lower {
		return false
	}
	if c.Upper != nil && v > *c.Upper {
		return false
	}
	if len(c.Root) > 0 {
		for _, r := range c.Root {
			if r == v {
				return true
			}
		}
		return false
	}
	return true
}

// LowerOr returns the lower bound or def when there is none.
func (c *Constraint) LowerOr(def int64) int64 {
	if c == nil || c.Lower == nil {
		return def
	}
	return *c.Lower
}

func (c *Constraint) String() string {
	if c == nil {
		return "(unconstrained)"
	}
	bound := func(p *int64, s string) string {
		if p == nil {
			return s
		}
		return fmt.Sprint(*p)
	}
	s := "(" + bound(c.Lower, "MIN") + ".." + bound(c.Upper, "MAX")
	if c.Extensible {
		s += ", ..."
	}
	return s + ")"
}

// Alphabet is a permitted alphabet constraint. Chars are sorted and unique.
type Alphabet struct {
	Chars      []rune
	Extensible bool
}

func NewAlphabet(chars string, extensible bool) *Alphabet {
	seen := make(map[rune]bool)
	a := &Alphabet{Extensible: extensible}
	for _, r := range chars {
		if !seen[r] {
			seen[r] = true
			a.Chars = append(a.Chars, r)
		}
	}
	sort.Slice(a.Chars, func(i, j int) bool { return a.Chars[i] < a.Chars[j] })
	return a
}

// AlphabetRange builds an alphabet of every rune from first to last inclusive.
func AlphabetRange(first, last rune) *Alphabet {
	a := &Alphabet{}
	for r := first; r <= last; r++ {
		a.Chars = append(a.Chars, r)
	}
	return a
}

// Index returns the position of r in the alphabet.
func (a *Alphabet) Index(r rune) (int, bool) {
	i := sort.Search(len(a.Chars), func(i int) bool { return a.Chars[i] >= r })
	if i < len(a.Chars) && a.Chars[i] == r {
		return i, true
	}
	return 0, false
}

func (a *Alphabet) Contains(r rune) bool {
	_, ok := a.Index(r)
	return ok
}

func (a *Alphabet) Len() int {
	return len(a.Chars)
}

// Max returns the largest character.
func (a *Alphabet) Max() rune {
	if len(a.Chars) == 0 {
		return 0
	}
	return a.Chars[len(a.Chars)-1]
}

func (a *Alphabet) String() string {
	s := "FROM(" + strconv.Quote(string(a.Chars))
	if a.Extensible {
		s += ", ..."
	}
	return s + ")"
}
