package asn1core

import "fmt"

// Rule selects one wire encoding.
type Rule int

const (
	BER Rule = iota + 1
	CER
	DER
	UPER
	APER
	OER
	COER
	JER
)

// Family groups rules that share a primitive library.
type Family int

const (
	FamilyBER Family = iota + 1
	FamilyPER
	FamilyOER
	FamilyJER
)

var ruleMap mapping[Rule]

func init() {
	ruleMap.Add("BER", BER)
	ruleMap.Add("CER", CER)
	ruleMap.Add("DER", DER)
	ruleMap.Add("UPER", UPER)
	ruleMap.Add("APER", APER)
	ruleMap.Add("OER", OER)
	ruleMap.Add("COER", COER)
	ruleMap.Add("JER", JER)
	ruleMap.AddAlias("UPER", "per-unaligned")
	ruleMap.AddAlias("APER", "per", "per-aligned")
	ruleMap.AddAlias("JER", "json")
}

func (r Rule) String() string {
	name, err := ruleMap.Name(r)
	if err == nil {
		return name
	}
	return fmt.Sprintf("rule=%d", int(r))
}

func ParseRule(s string) (Rule, error) {
	return ruleMap.Value(s)
}

// Rules lists every supported encoding rule.
func Rules() []Rule {
	return []Rule{BER, CER, DER, UPER, APER, OER, COER, JER}
}

func (r Rule) Family() Family {
	switch r {
	case BER, CER, DER:
		return FamilyBER
	case UPER, APER:
		return FamilyPER
	case OER, COER:
		return FamilyOER
	case JER:
		return FamilyJER
	}
	return 0
}

// Canonical rules drop members equal to their default value.
func (r Rule) Canonical() bool {
	switch r {
	case CER, DER, UPER, APER, COER:
		return true
	}
	return false
}

func (r Rule) Aligned() bool {
	return r == APER
}

func (f Family) String() string {
	switch f {
	case FamilyBER:
		return "BER"
	case FamilyPER:
		return "PER"
	case FamilyOER:
		return "OER"
	case FamilyJER:
		return "JER"
	}
	return fmt.Sprintf("family=%d", int(f))
}
