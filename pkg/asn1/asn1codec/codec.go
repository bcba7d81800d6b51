// Package asn1codec converts asn1value values to and from their encodings under every
// supported rule. A Codec walks an asn1schema type graph together with the value; each top
// level call owns its state, so one Codec may be shared between goroutines.
package asn1codec

import (
	"fmt"
	"log/slog"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

const (
	DefaultMaxLength   = 1 << 24
	DefaultMaxDepth    = 100
	DefaultMaxElements = 1 << 20
)

type Options struct {
	// MaxLength caps every decoded length determinant and the accumulated length of
	// fragmented values.
	MaxLength uint64
	// MaxElements caps the number of elements decoded into one SEQUENCE OF or SET OF.
	MaxElements uint64
	// MaxDepth caps the nesting of type nodes during a call.
	MaxDepth int
	// MaxEncodedLength, when positive, fails encodes whose output would be longer.
	MaxEncodedLength int
	// Resolver finds the types named by CONTAINING and open type values.
	Resolver asn1schema.Resolver
	// Logger receives the unknown content events. slog.Default() when nil.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxLength == 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.MaxElements == 0 {
		o.MaxElements = DefaultMaxElements
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type Codec struct {
	rule asn1core.Rule
	opts Options
}

func New(rule asn1core.Rule, opts Options) *Codec {
	return &Codec{rule: rule, opts: opts.withDefaults()}
}

func (c *Codec) Rule() asn1core.Rule {
	return c.rule
}

func (c *Codec) newCall(trace *Trace) *call {
	cl := &call{
		rule: c.rule,
		opts: c.opts,
		log:  c.opts.Logger.With("rule", c.rule.String()),
	}
	if trace != nil {
		cl.trace = &recorder{stack: []*Field{trace.Root}}
	}
	return cl
}

// Encode validates v against t and encodes it.
func (c *Codec) Encode(t asn1schema.Type, v asn1value.Value) (b []byte, err error) {
	defer recoverPanic(&err, c.rule, t)
	if err := asn1schema.Validate(t, v); err != nil {
		return nil, err
	}
	cl := c.newCall(nil)
	switch c.rule.Family() {
	case asn1core.FamilyBER:
		b, err = cl.berEncode(t, v, nil)
	case asn1core.FamilyPER:
		b, err = cl.perEncodeComplete(t, v, nil)
	case asn1core.FamilyOER:
		b, err = cl.oerEncodeComplete(t, v, nil)
	case asn1core.FamilyJER:
		b, err = cl.jerEncode(t, v)
	default:
		err = asn1core.NewUnimplementedError("rule %s", c.rule)
	}
	if err != nil {
		return nil, asn1core.Annotate(err, asn1core.EncodeError, c.rule, asn1schema.TypeName(t))
	}
	if max := c.opts.MaxEncodedLength; max > 0 && len(b) > max {
		return nil, asn1core.EncodeErrorf("%w: %d octets, maximum %d", asn1core.ErrEncodedLimit, len(b), max).
			WithRule(c.rule).In(asn1schema.TypeName(t))
	}
	return b, nil
}

// Decode decodes a complete encoding of t.
func (c *Codec) Decode(t asn1schema.Type, data []byte) (asn1value.Value, error) {
	v, err := c.decode(t, data, nil)
	return v, err
}

// DecodeTrace decodes like Decode and also returns the structure of every field consumed.
// The trace is returned even when decoding fails, up to the failing field.
func (c *Codec) DecodeTrace(t asn1schema.Type, data []byte) (asn1value.Value, *Trace, error) {
	trace := newTrace(asn1schema.TypeName(t), uint64(len(data))*8)
	v, err := c.decode(t, data, trace)
	return v, trace, err
}

func (c *Codec) decode(t asn1schema.Type, data []byte, trace *Trace) (v asn1value.Value, err error) {
	defer recoverPanic(&err, c.rule, t)
	cl := c.newCall(trace)
	switch c.rule.Family() {
	case asn1core.FamilyBER:
		v, err = cl.berDecodeComplete(t, data)
	case asn1core.FamilyPER:
		v, err = cl.perDecodeComplete(t, data, nil)
	case asn1core.FamilyOER:
		v, err = cl.oerDecodeComplete(t, data, nil)
	case asn1core.FamilyJER:
		v, err = cl.jerDecode(t, data)
	default:
		err = asn1core.NewUnimplementedError("rule %s", c.rule)
	}
	if err != nil {
		return nil, asn1core.Annotate(err, asn1core.DecodeError, c.rule, asn1schema.TypeName(t))
	}
	return v, nil
}

func recoverPanic(err *error, rule asn1core.Rule, t asn1schema.Type) {
	if r := recover(); r != nil {
		*err = asn1core.NewErrorf("panic: %s", fmt.Sprint(r)).
			WithType(asn1core.PanicError).WithRule(rule).In(asn1schema.TypeName(t)).WithStack()
	}
}

// Encode encodes v with default options.
func Encode(rule asn1core.Rule, t asn1schema.Type, v asn1value.Value) ([]byte, error) {
	return New(rule, Options{}).Encode(t, v)
}

// Decode decodes data with default options.
func Decode(rule asn1core.Rule, t asn1schema.Type, data []byte) (asn1value.Value, error) {
	return New(rule, Options{}).Decode(t, data)
}
