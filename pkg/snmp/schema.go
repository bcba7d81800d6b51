package snmp

import (
	"math"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
)

func app(n uint32, t asn1schema.Type, name string) asn1schema.Type {
	t = asn1schema.Retag(t, asn1core.Application(n), false)
	t.Attributes().Name = name
	return t
}

func ctx(n uint32, t asn1schema.Type, name string) asn1schema.Type {
	t = asn1schema.Retag(t, asn1core.Context(n), false)
	if name != "" {
		t.Attributes().Name = name
	}
	return t
}

func named[T asn1schema.Type](name string, t T) T {
	t.Attributes().Name = name
	return t
}

// The value syntaxes a variable binding may carry. Counter64 is limited to the int64 range.
var (
	Integer32   = named("Integer32", &asn1schema.Integer{Value: asn1schema.Range(math.MinInt32, math.MaxInt32)})
	OctetString = named("OctetString", &asn1schema.OctetString{})
	ObjectID    = named("ObjectID", &asn1schema.ObjectIdentifier{})
	Null        = named("Null", &asn1schema.Null{})
	IpAddress   = app(0, &asn1schema.OctetString{Size: asn1schema.Fixed(4)}, "IpAddress")
	Counter32   = app(1, &asn1schema.Integer{Value: asn1schema.Range(0, math.MaxUint32)}, "Counter32")
	Gauge32     = app(2, &asn1schema.Integer{Value: asn1schema.Range(0, math.MaxUint32)}, "Gauge32")
	TimeTicks   = app(3, &asn1schema.Integer{Value: asn1schema.Range(0, math.MaxUint32)}, "TimeTicks")
	Opaque      = app(4, &asn1schema.OctetString{}, "Opaque")
	Counter64   = app(6, &asn1schema.Integer{Value: asn1schema.AtLeast(0)}, "Counter64")

	NoSuchObject   = ctx(0, &asn1schema.Null{}, "noSuchObject")
	NoSuchInstance = ctx(1, &asn1schema.Null{}, "noSuchInstance")
	EndOfMibView   = ctx(2, &asn1schema.Null{}, "endOfMibView")
)

// ValueSyntaxes are the candidates of the VarBind value, told apart by their tags.
var ValueSyntaxes = asn1schema.Candidates{
	Integer32, OctetString, ObjectID, Null,
	IpAddress, Counter32, Gauge32, TimeTicks, Opaque, Counter64,
	NoSuchObject, NoSuchInstance, EndOfMibView,
}

var (
	VarBindType = asn1schema.NewSequence("VarBind", asn1schema.NewComponents(
		asn1schema.Field("name", ObjectID),
		asn1schema.Field("value", &asn1schema.Open{Table: ValueSyntaxes}),
	))
	VarBindListType = asn1schema.NewSequenceOf("VarBindList", VarBindType, nil)

	PDUSequenceType = asn1schema.NewSequence("PDU", asn1schema.NewComponents(
		asn1schema.Field("request-id", &asn1schema.Integer{}),
		asn1schema.Field("error-status", &asn1schema.Integer{}),
		asn1schema.Field("error-index", &asn1schema.Integer{}),
		asn1schema.Field("variable-bindings", VarBindListType),
	))
	BulkPDUType = asn1schema.NewSequence("BulkPDU", asn1schema.NewComponents(
		asn1schema.Field("request-id", &asn1schema.Integer{}),
		asn1schema.Field("non-repeaters", &asn1schema.Integer{Value: asn1schema.AtLeast(0)}),
		asn1schema.Field("max-repetitions", &asn1schema.Integer{Value: asn1schema.AtLeast(0)}),
		asn1schema.Field("variable-bindings", VarBindListType),
	))
	TrapPDUType = asn1schema.NewSequence("Trap-PDU", asn1schema.NewComponents(
		asn1schema.Field("enterprise", ObjectID),
		asn1schema.Field("agent-addr", IpAddress),
		asn1schema.Field("generic-trap", &asn1schema.Integer{Value: asn1schema.Range(0, 6)}),
		asn1schema.Field("specific-trap", &asn1schema.Integer{}),
		asn1schema.Field("time-stamp", TimeTicks),
		asn1schema.Field("variable-bindings", VarBindListType),
	))

	PDUsType = asn1schema.NewChoice("PDUs", asn1schema.NewComponents(
		asn1schema.Field(string(GET), ctx(0, PDUSequenceType, "")),
		asn1schema.Field(string(GET_NEXT), ctx(1, PDUSequenceType, "")),
		asn1schema.Field(string(RESPONSE), ctx(2, PDUSequenceType, "")),
		asn1schema.Field(string(SET), ctx(3, PDUSequenceType, "")),
		asn1schema.Field(string(TRAP), ctx(4, TrapPDUType, "")),
		asn1schema.Field(string(GET_BULK), ctx(5, BulkPDUType, "")),
		asn1schema.Field(string(INFORM), ctx(6, PDUSequenceType, "")),
		asn1schema.Field(string(TRAP_V2), ctx(7, PDUSequenceType, "")),
		asn1schema.Field(string(REPORT), ctx(8, PDUSequenceType, "")),
	))

	MessageType = asn1schema.NewSequence("Message", asn1schema.NewComponents(
		asn1schema.Field("version", &asn1schema.Integer{}),
		asn1schema.Field("community", OctetString),
		asn1schema.Field("data", PDUsType),
	))
)

// Module registers the SNMP message types for name lookups.
var Module = asn1schema.NewModule("SNMPv2").MustAdd(
	MessageType, PDUsType, PDUSequenceType, BulkPDUType, TrapPDUType, VarBindListType, VarBindType,
	Integer32, OctetString, ObjectID, Null, IpAddress, Counter32, Gauge32, TimeTicks, Opaque,
	Counter64, NoSuchObject, NoSuchInstance, EndOfMibView,
)
