// Package asn1schema describes ASN.1 types as a graph of Type nodes carrying already resolved
// constraints. The codecs in asn1codec walk this graph alongside an asn1value.Value.
package asn1schema

import "github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"

type Kind int

const (
	KindBoolean Kind = iota + 1
	KindInteger
	KindEnumerated
	KindNull
	KindObjectIdentifier
	KindBitString
	KindOctetString
	KindString
	KindChoice
	KindSequence
	KindSet
	KindSequenceOf
	KindSetOf
	KindOpen
)

var kindMap asn1core.Mapping[Kind]

func init() {
	kindMap.Add("BOOLEAN", KindBoolean)
	kindMap.Add("INTEGER", KindInteger)
	kindMap.Add("ENUMERATED", KindEnumerated)
	kindMap.Add("NULL", KindNull)
	kindMap.Add("OBJECT IDENTIFIER", KindObjectIdentifier)
	kindMap.AddAlias("OBJECT IDENTIFIER", "OID")
	kindMap.Add("BIT STRING", KindBitString)
	kindMap.Add("OCTET STRING", KindOctetString)
	kindMap.Add("STRING", KindString)
	kindMap.Add("CHOICE", KindChoice)
	kindMap.Add("SEQUENCE", KindSequence)
	kindMap.Add("SET", KindSet)
	kindMap.Add("SEQUENCE OF", KindSequenceOf)
	kindMap.Add("SET OF", KindSetOf)
	kindMap.Add("OPEN", KindOpen)
	kindMap.AddAlias("OPEN", "ANY")
}

func (k Kind) String() string {
	return kindMap.String(k)
}

func ParseKind(s string) (Kind, error) {
	return kindMap.Value(s)
}
