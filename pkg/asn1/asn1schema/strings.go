package asn1schema

import (
	"math"
	"unicode/utf8"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// StringKind selects one of the restricted character string types.
type StringKind int

const (
	UTF8String StringKind = iota + 1
	NumericString
	PrintableString
	TeletexString
	VideotexString
	IA5String
	UTCTime
	GeneralizedTime
	GraphicString
	VisibleString
	GeneralString
	UniversalString
	BMPString
	ObjectDescriptor
)

type stringKindInfo struct {
	tag uint32
	// alphabet is the full character set of a known-multiplier kind with a small repertoire.
	alphabet *Alphabet
	// count and max describe the repertoire of a known-multiplier kind; count 0 means the kind
	// is carried as octets from codec.
	count uint64
	max   rune
	codec encoding.Encoding
	// unsupported kinds have no byte codec.
	unsupported bool
}

var (
	stringKindMap   asn1core.Mapping[StringKind]
	stringKindInfos = map[StringKind]*stringKindInfo{}
)

func addStringKind(name string, kind StringKind, info *stringKindInfo) {
	stringKindMap.Add(name, kind)
	if info.alphabet != nil {
		info.count = uint64(info.alphabet.Len())
		info.max = info.alphabet.Max()
	}
	stringKindInfos[kind] = info
}

func init() {
	visible := AlphabetRange(0x20, 0x7E)
	addStringKind("UTF8String", UTF8String, &stringKindInfo{tag: asn1core.TagUTF8String})
	addStringKind("NumericString", NumericString, &stringKindInfo{
		tag:      asn1core.TagNumericString,
		alphabet: NewAlphabet(" 0123456789", false),
	})
	addStringKind("PrintableString", PrintableString, &stringKindInfo{
		tag:      asn1core.TagPrintableString,
		alphabet: NewAlphabet("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 '()+,-./:=?", false),
	})
	addStringKind("TeletexString", TeletexString, &stringKindInfo{tag: asn1core.TagTeletexString, unsupported: true})
	stringKindMap.AddAlias("TeletexString", "T61String")
	addStringKind("VideotexString", VideotexString, &stringKindInfo{tag: asn1core.TagVideotexString, unsupported: true})
	addStringKind("IA5String", IA5String, &stringKindInfo{
		tag:      asn1core.TagIA5String,
		alphabet: AlphabetRange(0, 0x7F),
	})
	addStringKind("UTCTime", UTCTime, &stringKindInfo{tag: asn1core.TagUTCTime, alphabet: visible})
	addStringKind("GeneralizedTime", GeneralizedTime, &stringKindInfo{tag: asn1core.TagGeneralizedTime, alphabet: visible})
	addStringKind("GraphicString", GraphicString, &stringKindInfo{tag: asn1core.TagGraphicString, codec: charmap.ISO8859_1})
	addStringKind("VisibleString", VisibleString, &stringKindInfo{tag: asn1core.TagVisibleString, alphabet: visible})
	stringKindMap.AddAlias("VisibleString", "ISO646String")
	addStringKind("GeneralString", GeneralString, &stringKindInfo{tag: asn1core.TagGeneralString, codec: charmap.ISO8859_1})
	addStringKind("UniversalString", UniversalString, &stringKindInfo{
		tag:   asn1core.TagUniversalString,
		count: math.MaxUint32 + 1,
		max:   math.MaxInt32,
		codec: utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM),
	})
	addStringKind("BMPString", BMPString, &stringKindInfo{
		tag:   asn1core.TagBMPString,
		count: 1 << 16,
		max:   0xFFFF,
		codec: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	})
	addStringKind("ObjectDescriptor", ObjectDescriptor, &stringKindInfo{tag: asn1core.TagObjectDescriptor, codec: charmap.ISO8859_1})
}

func (k StringKind) String() string {
	return stringKindMap.String(k)
}

func ParseStringKind(s string) (StringKind, error) {
	return stringKindMap.Value(s)
}

func (k StringKind) info() *stringKindInfo {
	if info, ok := stringKindInfos[k]; ok {
		return info
	}
	return stringKindInfos[UTF8String]
}

// Tag is the universal tag number of the kind.
func (k StringKind) Tag() uint32 {
	return k.info().tag
}

// KnownMultiplier reports whether every character has a fixed width code, so that PER packs
// characters rather than octets.
func (k StringKind) KnownMultiplier() bool {
	return k.info().count > 0
}

// Alphabet is the full character set for known-multiplier kinds with a small repertoire, nil
// for BMPString and UniversalString.
func (k StringKind) Alphabet() *Alphabet {
	return k.info().alphabet
}

// Repertoire returns the number of characters and the largest character code.
func (k StringKind) Repertoire() (uint64, rune) {
	info := k.info()
	return info.count, info.max
}

// Valid reports whether r belongs to the character set of the kind.
func (k StringKind) Valid(r rune) bool {
	info := k.info()
	switch {
	case info.alphabet != nil:
		return info.alphabet.Contains(r)
	case k == BMPString:
		return r <= 0xFFFF && (r < 0xD800 || r > 0xDFFF)
	case k == GraphicString || k == GeneralString || k == ObjectDescriptor:
		return r <= 0xFF
	}
	return utf8.ValidRune(r)
}

func (k StringKind) checkCodec() error {
	if k.info().unsupported {
		return asn1core.NewUnimplementedError("%s character encoding", k).WithCause(asn1core.ErrCharCodec)
	}
	return nil
}

// Encode returns the content octets of s in the byte form of the kind.
func (k StringKind) Encode(s string) ([]byte, error) {
	if err := k.checkCodec(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(s) {
		return nil, asn1core.EncodeErrorf("invalid UTF-8 in %s value", k).WithCause(asn1core.ErrInvalidChar)
	}
	for _, r := range s {
		if !k.Valid(r) {
			return nil, asn1core.EncodeErrorf("character %q not permitted in %s", r, k).WithCause(asn1core.ErrInvalidChar)
		}
	}
	codec := k.info().codec
	if codec == nil {
		return []byte(s), nil
	}
	b, err := codec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, asn1core.EncodeErrorf("%s encoding", k).WithCause(asn1core.ErrCharCodec)
	}
	return b, nil
}

// Decode converts content octets of the kind to a string.
func (k StringKind) Decode(b []byte) (string, error) {
	if err := k.checkCodec(); err != nil {
		return "", err
	}
	s := string(b)
	if codec := k.info().codec; codec != nil {
		if k == BMPString && len(b)%2 != 0 || k == UniversalString && len(b)%4 != 0 {
			return "", asn1core.DecodeErrorf("%s content of %d octets", k, len(b)).WithCause(asn1core.ErrCharCodec)
		}
		out, err := codec.NewDecoder().Bytes(b)
		if err != nil {
			return "", asn1core.DecodeErrorf("%s decoding", k).WithCause(asn1core.ErrCharCodec)
		}
		s = string(out)
	} else if !utf8.ValidString(s) {
		return "", asn1core.DecodeErrorf("invalid UTF-8 in %s", k).WithCause(asn1core.ErrInvalidChar)
	}
	for _, r := range s {
		if !k.Valid(r) {
			return "", asn1core.DecodeErrorf("character %q not permitted in %s", r, k).WithCause(asn1core.ErrInvalidChar)
		}
	}
	return s, nil
}
