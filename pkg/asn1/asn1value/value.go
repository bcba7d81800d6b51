// Package asn1value is the in-memory form of values handled by the codecs. Value is a closed
// sum type: the codecs switch over the concrete types declared here.
package asn1value

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1ber"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

type Value interface {
	fmt.Stringer
	value()
}

type Boolean bool

type Integer int64

// Enumerated holds the identifier of an enumeration item.
type Enumerated string

type Null struct{}

type OID []uint64

type OctetString []byte

// String holds the text of any character string kind.
type String string

// List holds the elements of a SEQUENCE OF or SET OF.
type List []Value

// Choice holds the selected alternative. An unrecognised alternative has an empty ID and an
// *Unknown value.
type Choice struct {
	ID    string
	Value Value
}

// Sequence holds the present members of a SEQUENCE or SET. Extensions holds decoded
// extension additions that the type does not declare, in ascending Index order.
type Sequence struct {
	Fields     map[string]Value
	Extensions []*Unknown
}

// Contained is a value of another type carried inside a BIT STRING or OCTET STRING.
type Contained struct {
	Type  string
	Value Value
}

// Open is the content of an open type (ANY). Type names the resolved type.
type Open struct {
	Type  string
	Value Value
}

// Unknown is content that the type graph could not interpret: an extension addition or
// alternative beyond the known set, or unresolved open type content. Raw is the complete
// encoding (BER) or the open type contents (PER, OER) and is written back verbatim.
type Unknown struct {
	Index int
	Tag   *asn1core.Tag
	Raw   []byte
}

func (Boolean) value()     {}
func (Integer) value()     {}
func (Enumerated) value()  {}
func (Null) value()        {}
func (OID) value()         {}
func (BitString) value()   {}
func (OctetString) value() {}
func (String) value()      {}
func (List) value()        {}
func (*Choice) value()     {}
func (*Sequence) value()   {}
func (*Contained) value()  {}
func (*Open) value()       {}
func (*Unknown) value()    {}

func NewSequence() *Sequence {
	return &Sequence{Fields: make(map[string]Value)}
}

// Set stores a member value and returns s for chaining.
func (s *Sequence) Set(name string, v Value) *Sequence {
	if s.Fields == nil {
		s.Fields = make(map[string]Value)
	}
	s.Fields[name] = v
	return s
}

func (s *Sequence) Get(name string) (Value, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

func (s *Sequence) Delete(name string) {
	delete(s.Fields, name)
}

// Names returns the present member names sorted.
func (s *Sequence) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewChoice(id string, v Value) *Choice {
	return &Choice{ID: id, Value: v}
}

func (v Boolean) String() string {
	return strconv.FormatBool(bool(v))
}

func (v Integer) String() string {
	return strconv.FormatInt(int64(v), 10)
}

func (v Enumerated) String() string {
	return string(v)
}

func (Null) String() string {
	return "NULL"
}

func (v OID) String() string {
	return asn1ber.FormatOID(v)
}

func (v OctetString) String() string {
	return "0x" + strings.ToUpper(hex.EncodeToString(v))
}

func (v String) String() string {
	return strconv.Quote(string(v))
}

func (v List) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v *Choice) String() string {
	if v.ID == "" {
		return "{" + v.Value.String() + "}"
	}
	return "{" + v.ID + ": " + v.Value.String() + "}"
}

func (v *Sequence) String() string {
	sb := strings.Builder{}
	sb.WriteString("{")
	for i, name := range v.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(v.Fields[name].String())
	}
	for _, u := range v.Extensions {
		if sb.Len() > 1 {
			sb.WriteString(", ")
		}
		sb.WriteString(u.String())
	}
	sb.WriteString("}")
	return sb.String()
}

func (v *Contained) String() string {
	return "CONTAINING " + v.Type + " " + v.Value.String()
}

func (v *Open) String() string {
	return v.Type + " " + v.Value.String()
}

func (v *Unknown) String() string {
	if v.Tag != nil {
		return fmt.Sprintf("unknown %s %X", v.Tag, v.Raw)
	}
	return fmt.Sprintf("unknown #%d %X", v.Index, v.Raw)
}
