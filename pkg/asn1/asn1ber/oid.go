package asn1ber

import (
	"strconv"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

// AppendOID appends the content octets of an object identifier.
func AppendOID(b []byte, oid []uint64) ([]byte, error) {
	if len(oid) < 2 {
		return b, asn1core.NewUnexpectedError(2, len(oid), "OID prefix").WithUnits("arcs").WithType(asn1core.EncodeError)
	}
	if oid[0] > 2 || oid[0] < 2 && oid[1] > 39 {
		return b, asn1core.EncodeErrorf("%w: OID root arcs %d.%d", asn1core.ErrConstraint, oid[0], oid[1])
	}
	b = AppendBase128(b, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		b = AppendBase128(b, arc)
	}
	return b, nil
}

// ParseOID decodes object identifier content octets.
func ParseOID(content []byte) ([]uint64, error) {
	if len(content) < 1 {
		return nil, asn1core.NewUnexpectedError(1, len(content), "OID prefix").WithUnits("bytes")
	}
	oid := make([]uint64, 0, 10)
	for i := 0; i < len(content); {
		n, used, err := ParseBase128(content[i:])
		if err != nil {
			return nil, err
		}
		if i == 0 {
			switch {
			case n < 40:
				oid = append(oid, 0, n)
			case n < 80:
				oid = append(oid, 1, n-40)
			default:
				oid = append(oid, 2, n-80)
			}
		} else {
			oid = append(oid, n)
		}
		i += used
	}
	return oid, nil
}

func FormatOID(oid []uint64) string {
	sb := strings.Builder{}
	for i, v := range oid {
		if i != 0 {
			sb.WriteString(".")
		}
		sb.WriteString(strconv.FormatUint(v, 10))
	}
	return sb.String()
}

func ParseOIDString(s string) ([]uint64, error) {
	parts := strings.Split(s, ".")
	oid := make([]uint64, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, asn1core.NewErrorf("OID element %d of %q is empty", i, s).WithType(asn1core.ValueShapeError)
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, asn1core.NewErrorf("OID element %d of %q is not a number", i, s).WithType(asn1core.ValueShapeError)
		}
		oid = append(oid, n)
	}
	return oid, nil
}
