package snmp

import (
	"fmt"
	"net"
	"strconv"
	"unicode/utf8"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type ValueType int

const (
	NullValue ValueType = iota
	StringValue
	CounterValue
	GaugeValue
	TimeTicksValue
	OidValue
	IntegerValue
	UnsignedValue
	IPValue
	OpaqueValue
	ExceptionValue
)

func (t ValueType) String() string {
	switch t {
	case NullValue:
		return "Null"
	case StringValue:
		return "String"
	case CounterValue:
		return "Counter"
	case GaugeValue:
		return "Gauge"
	case TimeTicksValue:
		return "TimeTicks"
	case OidValue:
		return "OID"
	case IntegerValue:
		return "Integer"
	case UnsignedValue:
		return "Unsigned"
	case IPValue:
		return "IP"
	case OpaqueValue:
		return "Opaque"
	case ExceptionValue:
		return "Exception"
	}
	return "Unknown"
}

var syntaxTypes = map[string]ValueType{
	Integer32.Attributes().Name:      IntegerValue,
	OctetString.Attributes().Name:    StringValue,
	ObjectID.Attributes().Name:       OidValue,
	Null.Attributes().Name:           NullValue,
	IpAddress.Attributes().Name:      IPValue,
	Counter32.Attributes().Name:      CounterValue,
	Counter64.Attributes().Name:      CounterValue,
	Gauge32.Attributes().Name:        GaugeValue,
	TimeTicks.Attributes().Name:      TimeTicksValue,
	Opaque.Attributes().Name:         OpaqueValue,
	NoSuchObject.Attributes().Name:   ExceptionValue,
	NoSuchInstance.Attributes().Name: ExceptionValue,
	EndOfMibView.Attributes().Name:   ExceptionValue,
}

// DecodeValue renders the value of a binding as text and classifies it.
func DecodeValue(vb *VarBind) (string, ValueType, error) {
	vt, ok := syntaxTypes[vb.Syntax]
	if !ok {
		if u, isUnknown := vb.Value.(*asn1value.Unknown); isUnknown {
			return fmt.Sprintf("% X", u.Raw), OpaqueValue, nil
		}
		return "", NullValue, fmt.Errorf("unsupported value syntax %q", vb.Syntax)
	}
	switch v := vb.Value.(type) {
	case asn1value.Null:
		if vt == ExceptionValue {
			return vb.Syntax, vt, nil
		}
		return "", vt, nil
	case asn1value.Integer:
		return strconv.FormatInt(int64(v), 10), vt, nil
	case asn1value.OID:
		return v.String(), vt, nil
	case asn1value.OctetString:
		switch {
		case vt == IPValue && len(v) == net.IPv4len:
			return net.IP(v).String(), vt, nil
		case vt == StringValue && utf8.Valid(v):
			return string(v), vt, nil
		}
		return fmt.Sprintf("% X", []byte(v)), vt, nil
	}
	return "", vt, fmt.Errorf("unexpected %T for %s", vb.Value, vb.Syntax)
}
