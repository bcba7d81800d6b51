package asn1core

import (
	"fmt"
	"strconv"
	"strings"
)

// Universal tag numbers.
const (
	TagEOC              = uint32(0x00)
	TagBoolean          = uint32(0x01)
	TagInteger          = uint32(0x02)
	TagBitString        = uint32(0x03)
	TagOctetString      = uint32(0x04)
	TagNull             = uint32(0x05)
	TagOID              = uint32(0x06)
	TagObjectDescriptor = uint32(0x07)
	TagExternal         = uint32(0x08)
	TagReal             = uint32(0x09)
	TagEnumerated       = uint32(0x0A)
	TagEmbeddedPDV      = uint32(0x0B)
	TagUTF8String       = uint32(0x0C)
	TagRelativeOID      = uint32(0x0D)
	TagTime             = uint32(0x0E)
	TagSequence         = uint32(0x10)
	TagSet              = uint32(0x11)
	TagNumericString    = uint32(0x12)
	TagPrintableString  = uint32(0x13)
	TagTeletexString    = uint32(0x14)
	TagVideotexString   = uint32(0x15)
	TagIA5String        = uint32(0x16)
	TagUTCTime          = uint32(0x17)
	TagGeneralizedTime  = uint32(0x18)
	TagGraphicString    = uint32(0x19)
	TagVisibleString    = uint32(0x1A)
	TagGeneralString    = uint32(0x1B)
	TagUniversalString  = uint32(0x1C)
	TagCharacterString  = uint32(0x1D)
	TagBMPString        = uint32(0x1E)
	TagDate             = uint32(0x1F)
)

var tagMap mapping[uint32]

func init() {
	tagMap.Add("EOC", TagEOC)
	tagMap.Add("BOOLEAN", TagBoolean)
	tagMap.Add("INTEGER", TagInteger)
	tagMap.Add("BIT STRING", TagBitString)
	tagMap.Add("OCTET STRING", TagOctetString)
	tagMap.Add("NULL", TagNull)
	tagMap.Add("OBJECT IDENTIFIER", TagOID)
	tagMap.Add("ObjectDescriptor", TagObjectDescriptor)
	tagMap.Add("EXTERNAL", TagExternal)
	tagMap.Add("REAL", TagReal)
	tagMap.Add("ENUMERATED", TagEnumerated)
	tagMap.Add("EMBEDDED PDV", TagEmbeddedPDV)
	tagMap.Add("UTF8String", TagUTF8String)
	tagMap.Add("RELATIVE-OID", TagRelativeOID)
	tagMap.Add("TIME", TagTime)
	tagMap.Add("SEQUENCE", TagSequence)
	tagMap.Add("SET", TagSet)
	tagMap.Add("NumericString", TagNumericString)
	tagMap.Add("PrintableString", TagPrintableString)
	tagMap.Add("TeletexString", TagTeletexString)
	tagMap.Add("VideotexString", TagVideotexString)
	tagMap.Add("IA5String", TagIA5String)
	tagMap.Add("UTCTime", TagUTCTime)
	tagMap.Add("GeneralizedTime", TagGeneralizedTime)
	tagMap.Add("GraphicString", TagGraphicString)
	tagMap.Add("VisibleString", TagVisibleString)
	tagMap.Add("GeneralString", TagGeneralString)
	tagMap.Add("UniversalString", TagUniversalString)
	tagMap.Add("CHARACTER STRING", TagCharacterString)
	tagMap.Add("BMPString", TagBMPString)
	tagMap.Add("DATE", TagDate)
	tagMap.AddAlias("OBJECT IDENTIFIER", "OID")
	tagMap.AddAlias("TeletexString", "T61String")
	tagMap.AddAlias("VisibleString", "ISO646String")
}

// UniversalName returns the ASN.1 name of a universal tag number.
func UniversalName(n uint32) (string, error) {
	return tagMap.Name(n)
}

// Tag is the identifier triple carried on the wire by tag based encodings.
type Tag struct {
	Class       Class
	Constructed bool
	Number      uint32
}

func Universal(n uint32) Tag   { return Tag{Class: ClassUniversal, Number: n} }
func Application(n uint32) Tag { return Tag{Class: ClassApplication, Number: n} }
func Context(n uint32) Tag     { return Tag{Class: ClassContextSpecific, Number: n} }
func Private(n uint32) Tag     { return Tag{Class: ClassPrivate, Number: n} }

// Equal compares class and number only.
func (t Tag) Equal(o Tag) bool {
	return t.Class == o.Class && t.Number == o.Number
}

// Less orders tags canonically: by class (universal, application, context, private) then number.
func (t Tag) Less(o Tag) bool {
	if t.Class != o.Class {
		return t.Class < o.Class
	}
	return t.Number < o.Number
}

// Key drops the constructed flag so tags can be used as map keys.
func (t Tag) Key() Tag {
	t.Constructed = false
	return t
}

func (t Tag) WithConstructed(c bool) Tag {
	t.Constructed = c
	return t
}

func (t Tag) String() string {
	switch t.Class {
	case ClassUniversal:
		if name, err := tagMap.Name(t.Number); err == nil {
			return "[UNIVERSAL " + strconv.FormatUint(uint64(t.Number), 10) + " " + name + "]"
		}
		return fmt.Sprintf("[UNIVERSAL %d]", t.Number)
	case ClassApplication:
		return fmt.Sprintf("[APPLICATION %d]", t.Number)
	case ClassPrivate:
		return fmt.Sprintf("[PRIVATE %d]", t.Number)
	}
	return fmt.Sprintf("[%d]", t.Number)
}

// ParseTag reads the notation produced by Tag.String.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return Tag{}, NewErrorf("malformed tag %q", s)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	if len(fields) == 0 {
		return Tag{}, NewErrorf("malformed tag %q", s)
	}
	t := Tag{Class: ClassContextSpecific}
	numberField := fields[0]
	if len(fields) > 1 {
		switch strings.ToUpper(fields[0]) {
		case "UNIVERSAL":
			t.Class = ClassUniversal
		case "APPLICATION":
			t.Class = ClassApplication
		case "PRIVATE":
			t.Class = ClassPrivate
		default:
			return Tag{}, NewErrorf("unknown tag class in %q", s)
		}
		numberField = fields[1]
	}
	n, err := strconv.ParseUint(numberField, 10, 32)
	if err != nil {
		return Tag{}, NewErrorf("malformed tag number in %q", s).WithCause(err)
	}
	t.Number = uint32(n)
	return t, nil
}
