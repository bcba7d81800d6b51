package asn1codec

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

func TestLimits(t *testing.T) {
	nested := asn1schema.Type(&asn1schema.Integer{})
	value := asn1value.Value(asn1value.Integer(1))
	for i := 0; i < 4; i++ {
		nested = asn1schema.NewSequence("", asn1schema.NewComponents(asn1schema.Field("x", nested)))
		value = seqOf("x", value)
	}
	extSeq := asn1schema.NewSequence("E", asn1schema.NewComponents(
		asn1schema.Field("a", small()),
	).Extend(asn1schema.Optional("b", small())))
	long := append(mustHex(t, "04 82 01 00"), make([]byte, 256)...)
	perLong := append(mustHex(t, "81 00"), make([]byte, 256)...)
	flags := asn1schema.NewSequenceOf("Flags", &asn1schema.Boolean{}, nil)
	nulls := asn1schema.NewSequenceOf("Nulls", &asn1schema.Null{}, nil)

	t.Run("encoded length", func(t *testing.T) {
		_, err := New(asn1core.BER, Options{MaxEncodedLength: 4}).Encode(&asn1schema.OctetString{}, make(asn1value.OctetString, 10))
		if !errors.Is(err, asn1core.ErrEncodedLimit) {
			t.Errorf("got %v, want %v", err, asn1core.ErrEncodedLimit)
		}
	})

	decodes := []struct {
		name string
		rule asn1core.Rule
		opts Options
		typ  asn1schema.Type
		data []byte
		want error
	}{
		{"ber length", asn1core.BER, Options{MaxLength: 100}, &asn1schema.OctetString{}, long, asn1core.ErrLengthLimit},
		{"uper length", asn1core.UPER, Options{MaxLength: 100}, &asn1schema.OctetString{}, perLong, asn1core.ErrLengthLimit},
		{"ber depth", asn1core.BER, Options{MaxDepth: 3}, nested, mustHex(t, "30 09 30 07 30 05 30 03 02 01 01"), asn1core.ErrDepthLimit},
		{"der trailing", asn1core.DER, Options{}, &asn1schema.Integer{}, mustHex(t, "02 01 05 00"), asn1core.ErrTrailingData},
		{"oer trailing", asn1core.OER, Options{}, byteInt(), mustHex(t, "05 00"), asn1core.ErrTrailingData},
		{"der truncated", asn1core.DER, Options{}, &asn1schema.Integer{}, mustHex(t, "02 02 01"), asn1core.ErrTruncated},
		{"cer missing eoc", asn1core.CER, Options{}, asn1schema.NewSequence("", asn1schema.NewComponents(asn1schema.Field("a", &asn1schema.Integer{}))), mustHex(t, "30 80 02 01 05"), asn1core.ErrMissingEOC},
		{"uper empty bitmap", asn1core.UPER, Options{}, extSeq, mustHex(t, "90 00"), asn1core.ErrInvalidBitmap},
		{"oer quantity", asn1core.OER, Options{}, flags, mustHex(t, "03 FF FF FF"), asn1core.ErrLengthLimit},
		{"oer elements", asn1core.OER, Options{MaxElements: 2}, flags, mustHex(t, "01 03 FF FF FF"), asn1core.ErrLengthLimit},
		{"uper empty elements", asn1core.UPER, Options{MaxElements: 100000}, nulls, mustHex(t, "C4 C4 00"), asn1core.ErrLengthLimit},
		{"ber elements", asn1core.BER, Options{MaxElements: 1}, flags, mustHex(t, "30 06 01 01 FF 01 01 00"), asn1core.ErrLengthLimit},
	}
	for _, tt := range decodes {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rule, tt.opts).Decode(tt.typ, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if et, _ := asn1core.TypeOf(err); et != asn1core.DecodeError {
				t.Errorf("got error type %v, want %v", et, asn1core.DecodeError)
			}
		})
	}

	if _, err := New(asn1core.DER, Options{MaxDepth: 3}).Encode(nested, value); !errors.Is(err, asn1core.ErrDepthLimit) {
		t.Errorf("got %v, want %v", err, asn1core.ErrDepthLimit)
	}
	if _, err := Encode(asn1core.UPER, byteInt(), asn1value.Integer(256)); !errors.Is(err, asn1core.ErrConstraint) {
		t.Errorf("got %v, want %v", err, asn1core.ErrConstraint)
	}
	if _, err := Encode(asn1core.DER, byteInt(), asn1value.Boolean(true)); err == nil {
		t.Errorf("mismatched value shape encoded without error")
	}
}

func TestFragmentation(t *testing.T) {
	typ := asn1schema.NewSequenceOf("Flags", &asn1schema.Boolean{}, nil)
	tests := []struct {
		n     int
		first byte
	}{
		{16383, 0xBF},
		{16384, 0xC1},
		{16385, 0xC1},
		{65536, 0xC4},
		{65537, 0xC4},
	}
	for _, tt := range tests {
		list := make(asn1value.List, tt.n)
		for i := range list {
			list[i] = asn1value.Boolean(i%3 == 0)
		}
		for _, rule := range []asn1core.Rule{asn1core.UPER, asn1core.APER} {
			t.Run(rule.String()+"/"+strconv.Itoa(tt.n), func(t *testing.T) {
				b := roundTrip(t, rule, typ, list)
				if b[0] != tt.first {
					t.Errorf("%d elements: got first octet %02X, want %02X", tt.n, b[0], tt.first)
				}
				if rule == asn1core.UPER && tt.n == 16384 && len(b) != 2050 {
					t.Errorf("got %d octets, want 2050", len(b))
				}
			})
		}
	}
}

func TestTrace(t *testing.T) {
	optSeq := asn1schema.NewSequence("S", asn1schema.NewComponents(
		asn1schema.Field("a", byteInt()),
		asn1schema.Optional("b", &asn1schema.Boolean{}),
	))
	extSeq := asn1schema.NewSequence("E", asn1schema.NewComponents(
		asn1schema.Field("a", small()),
	).Extend(asn1schema.Optional("b", ctx(small(), 0))))
	der := asn1schema.NewSequence("D", asn1schema.NewComponents(asn1schema.Field("a", &asn1schema.Integer{})))

	tests := []struct {
		name           string
		rule           asn1core.Rule
		typ            asn1schema.Type
		data           string
		field          string
		offset, length uint64
	}{
		{"uper member", asn1core.UPER, optSeq, "02 80", "a", 1, 8},
		{"uper bitmap", asn1core.UPER, optSeq, "02 80", "presence bitmap", 0, 1},
		{"uper open type member", asn1core.UPER, extSeq, "90 10 14 00", "b", 20, 8},
		{"der member", asn1core.DER, der, "30 03 02 01 05", "a", 16, 24},
		{"der header", asn1core.DER, der, "30 03 02 01 05", "header", 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, trace, err := New(tt.rule, Options{}).DecodeTrace(tt.typ, mustHex(t, tt.data))
			if err != nil {
				t.Fatal(err)
			}
			f := trace.Find(tt.field)
			if f == nil {
				t.Fatalf("no field %q in trace", tt.field)
			}
			if f.Offset != tt.offset || f.Length != tt.length {
				t.Errorf("got %d+%d, want %d+%d", f.Offset, f.Length, tt.offset, tt.length)
			}
		})
	}

	// positions inside an open type are absolute
	_, trace, err := New(asn1core.UPER, Options{}).DecodeTrace(extSeq, mustHex(t, "90 10 14 00"))
	if err != nil {
		t.Fatal(err)
	}
	b := trace.Find("b")
	if len(b.Children) == 0 || b.Children[0].Offset != 20 || b.Children[0].Length != 3 {
		t.Errorf("unexpected open type content fields: %+v", b.Children)
	}
	var out bytes.Buffer
	if err := trace.Dump(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "extension bitmap") {
		t.Errorf("dump lacks the extension bitmap:\n%s", out.String())
	}
}

func TestConcurrentCalls(t *testing.T) {
	typ := recordType()
	c := New(asn1core.APER, Options{})
	v := seqOf(
		"id", asn1value.Integer(1),
		"name", asn1value.String("x"),
		"flags", asn1value.BitString{},
		"kind", asn1value.Enumerated("y"),
		"labels", asn1value.List{asn1value.String("a")},
		"body", asn1value.NewChoice("num", asn1value.Integer(3)),
		"oid", asn1value.OID{1, 2},
		"done", asn1value.Null{},
	)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.Encode(typ, v)
			if err == nil {
				_, err = c.Decode(typ, b)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
