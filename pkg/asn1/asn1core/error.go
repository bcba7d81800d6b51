package asn1core

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

type ErrorType int

const (
	DecodeError      ErrorType = iota // eg the framing is wrong or a length exceeds the configured maximum
	EncodeError                       // eg a value is outside its constraint
	ValueShapeError                   // eg a SEQUENCE value is missing a mandatory member
	UnsupportedError                  // eg a legacy character set
	PanicError                        // eg a panic occurred
)

var errorTypeMap mapping[ErrorType]

func init() {
	errorTypeMap.Add("decode error", DecodeError)
	errorTypeMap.Add("encode error", EncodeError)
	errorTypeMap.Add("value shape error", ValueShapeError)
	errorTypeMap.Add("unsupported", UnsupportedError)
	errorTypeMap.Add("panic", PanicError)
}

func (t ErrorType) String() string {
	name, err := errorTypeMap.Name(t)
	if err != nil {
		return fmt.Sprintf("error type %d", int(t))
	}
	return name
}

var (
	ErrTruncated     = errors.New("truncated input")
	ErrTrailingData  = errors.New("trailing data")
	ErrLengthLimit   = errors.New("length exceeds configured maximum")
	ErrDepthLimit    = errors.New("nesting exceeds configured depth")
	ErrEncodedLimit  = errors.New("encoding exceeds configured maximum size")
	ErrMissingEOC    = errors.New("missing end-of-contents")
	ErrInvalidBitmap = errors.New("invalid extension bitmap")
	ErrInvalidChar   = errors.New("character outside permitted alphabet")
	ErrCharCodec     = errors.New("unsupported character encoding")
	ErrConstraint    = errors.New("value outside constraint")
	ErrMalformed     = errors.New("malformed encoding")
)

type Error interface {
	error
	Type() ErrorType
}

// TypeOf reports the ErrorType of the first typed error in the chain.
func TypeOf(err error) (ErrorType, bool) {
	var typed Error
	if errors.As(err, &typed) {
		return typed.Type(), true
	}
	return 0, false
}

type UnexpectedError[T any] struct {
	inner            error
	units            string
	errorType        ErrorType
	expected, actual T
}

func (e *UnexpectedError[T]) Error() string {
	if e.units == "" {
		return fmt.Sprintf("asn1: %s: expected=%v, actual=%v", e.inner.Error(), e.expected, e.actual)
	}
	return fmt.Sprintf("asn1: %s: expected=%v %s, actual=%v %s", e.inner.Error(), e.expected, e.units, e.actual, e.units)
}

func (e *UnexpectedError[T]) Unwrap() error {
	return e.inner
}

func (e *UnexpectedError[T]) WithUnits(units string) *UnexpectedError[T] {
	e.units = units
	return e
}

func (e *UnexpectedError[T]) Type() ErrorType {
	return e.errorType
}

func (e *UnexpectedError[T]) WithType(errorType ErrorType) *UnexpectedError[T] {
	e.errorType = errorType
	return e
}

func NewUnexpectedError[T any](expected, actual T, format string, args ...any) *UnexpectedError[T] {
	return &UnexpectedError[T]{
		inner:    fmt.Errorf(format, args...),
		expected: expected,
		actual:   actual,
	}
}

func NewUnimplementedError(format string, args ...any) *GeneralError {
	return NewErrorf("not implemented: "+format, args...).WithType(UnsupportedError)
}

// GeneralError is the error carried out of every codec call. Rule, TypeName and Fragment are
// filled in as the error travels up through the type graph.
type GeneralError struct {
	inner    error
	cause    error
	eType    ErrorType
	rule     Rule
	TypeName string
	Fragment []byte
	Stack    string
}

func NewErrorf(format string, args ...any) *GeneralError {
	return &GeneralError{
		inner: fmt.Errorf(format, args...),
	}
}

func DecodeErrorf(format string, args ...any) *GeneralError {
	return NewErrorf(format, args...).WithType(DecodeError)
}

func EncodeErrorf(format string, args ...any) *GeneralError {
	return NewErrorf(format, args...).WithType(EncodeError)
}

func ShapeErrorf(format string, args ...any) *GeneralError {
	return NewErrorf(format, args...).WithType(ValueShapeError)
}

func Wrap(err error) *GeneralError {
	return &GeneralError{
		inner: err,
	}
}

func (e *GeneralError) Error() string {
	sb := strings.Builder{}
	sb.WriteString("asn1: ")
	if e.rule != 0 {
		sb.WriteString(e.rule.String())
		sb.WriteString(" ")
	}
	sb.WriteString(e.eType.String())
	if e.TypeName != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.TypeName)
	}
	sb.WriteString(": ")
	sb.WriteString(strings.TrimPrefix(e.inner.Error(), "asn1: "))
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	if len(e.Fragment) > 0 {
		fmt.Fprintf(&sb, " (% X)", e.Fragment)
	}
	return sb.String()
}

func (e *GeneralError) Type() ErrorType {
	return e.eType
}

func (e *GeneralError) Rule() Rule {
	return e.rule
}

func (e *GeneralError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.inner}
	}
	return []error{e.inner, e.cause}
}

func (e *GeneralError) WithType(eType ErrorType) *GeneralError {
	e.eType = eType
	return e
}

func (e *GeneralError) WithRule(rule Rule) *GeneralError {
	e.rule = rule
	return e
}

// In records the name of the type node being processed, unless a deeper node already did.
func (e *GeneralError) In(typeName string) *GeneralError {
	if e.TypeName == "" {
		e.TypeName = typeName
	}
	return e
}

const maxFragment = 32

func (e *GeneralError) WithFragment(b []byte) *GeneralError {
	if len(e.Fragment) > 0 || len(b) == 0 {
		return e
	}
	if len(b) > maxFragment {
		b = b[:maxFragment]
	}
	e.Fragment = append([]byte(nil), b...)
	return e
}

func (e *GeneralError) WithCause(cause error) *GeneralError {
	e.cause = cause
	return e
}

func (e *GeneralError) WithStack() *GeneralError {
	e.Stack = string(debug.Stack())
	return e
}

// Annotate attaches rule and type context to err, converting foreign errors into a
// GeneralError of the given fallback type.
func Annotate(err error, fallback ErrorType, rule Rule, typeName string) error {
	if err == nil {
		return nil
	}
	var ge *GeneralError
	if errors.As(err, &ge) && ge == err {
		if ge.rule == 0 {
			ge.rule = rule
		}
		return ge.In(typeName)
	}
	eType, ok := TypeOf(err)
	if !ok {
		eType = fallback
	}
	return Wrap(err).WithType(eType).WithRule(rule).In(typeName)
}

type ErrorList []error

func (el ErrorList) Error() string {
	if len(el) == 0 {
		return ""
	}
	if len(el) == 1 {
		return el[0].Error()
	}
	var s string
	for i, e := range el {
		if i > 0 {
			s += "; "
		}
		s += e.Error()
	}
	return s
}

func (el ErrorList) Unwrap() []error {
	return el
}

// Err returns nil for an empty list and the single error for a list of one.
func (el ErrorList) Err() error {
	switch len(el) {
	case 0:
		return nil
	case 1:
		return el[0]
	}
	return el
}
