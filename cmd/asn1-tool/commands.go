package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// codecFlags are the flags shared by the single value commands.
type codecFlags struct {
	fs       *flag.FlagSet
	typeName string
	rule     string
	in, out  string
	hex      bool
}

func newCodecFlags(e *env, name string) *codecFlags {
	f := &codecFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.SetOutput(e.stderr)
	f.fs.StringVar(&f.typeName, "type", "", "name of the type")
	f.fs.StringVar(&f.rule, "rule", e.cfg.DefaultRule().String(), "encoding rule")
	f.fs.StringVar(&f.in, "in", "-", "input file")
	f.fs.StringVar(&f.out, "out", "-", "output file")
	f.fs.BoolVar(&f.hex, "hex", false, "encodings are hex text")
	return f
}

func (f *codecFlags) parse(e *env, args []string) (asn1schema.Type, asn1core.Rule, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, 0, err
	}
	rule, err := asn1core.ParseRule(f.rule)
	if err != nil {
		return nil, 0, err
	}
	t, err := lookupType(e, f.typeName)
	return t, rule, err
}

func lookupType(e *env, name string) (asn1schema.Type, error) {
	if name == "" {
		return nil, fmt.Errorf("-type is required")
	}
	t, ok := e.resolver.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}

func readInput(e *env, path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(e *env, path string, b []byte) error {
	if path == "-" || path == "" {
		_, err := e.stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func parseHexText(b []byte) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(string(b)), ""))
}

// readEncoding reads an encoding, hex text when asHex is set. JER input is always text.
func readEncoding(e *env, path string, asHex bool, rule asn1core.Rule) ([]byte, error) {
	b, err := readInput(e, path)
	if err != nil || !asHex || rule == asn1core.JER {
		return b, err
	}
	return parseHexText(b)
}

func formatEncoding(b []byte, asHex bool, rule asn1core.Rule) []byte {
	if rule == asn1core.JER {
		return append(b, '\n')
	}
	if asHex {
		return []byte(fmt.Sprintf("% X\n", b))
	}
	return b
}

func (e *env) codec(rule asn1core.Rule) *asn1codec.Codec {
	return e.cfg.Codec(rule, e.resolver, e.log)
}

func (e *env) jer(t asn1schema.Type, v asn1value.Value) ([]byte, error) {
	return e.codec(asn1core.JER).Encode(t, v)
}

func runEncode(ctx context.Context, e *env, args []string) error {
	f := newCodecFlags(e, "encode")
	t, rule, err := f.parse(e, args)
	if err != nil {
		return err
	}
	text, err := readInput(e, f.in)
	if err != nil {
		return err
	}
	v, err := e.codec(asn1core.JER).Decode(t, bytes.TrimSpace(text))
	if err != nil {
		return err
	}
	b, err := e.codec(rule).Encode(t, v)
	if err != nil {
		return err
	}
	return writeOutput(e, f.out, formatEncoding(b, f.hex, rule))
}

func runDecode(ctx context.Context, e *env, args []string) error {
	f := newCodecFlags(e, "decode")
	t, rule, err := f.parse(e, args)
	if err != nil {
		return err
	}
	data, err := readEncoding(e, f.in, f.hex, rule)
	if err != nil {
		return err
	}
	v, err := e.codec(rule).Decode(t, data)
	if err != nil {
		return err
	}
	text, err := e.jer(t, v)
	if err != nil {
		return err
	}
	return writeOutput(e, f.out, append(text, '\n'))
}

func runTrace(ctx context.Context, e *env, args []string) error {
	f := newCodecFlags(e, "trace")
	t, rule, err := f.parse(e, args)
	if err != nil {
		return err
	}
	data, err := readEncoding(e, f.in, f.hex, rule)
	if err != nil {
		return err
	}
	_, trace, err := e.codec(rule).DecodeTrace(t, data)
	if trace != nil {
		if dumpErr := trace.Dump(e.stdout); dumpErr != nil {
			return dumpErr
		}
	}
	return err
}

type transcodeFlags struct {
	*codecFlags
	from, to string
}

func newTranscodeFlags(e *env, name string) *transcodeFlags {
	f := &transcodeFlags{codecFlags: newCodecFlags(e, name)}
	f.fs.StringVar(&f.from, "from", e.cfg.DefaultRule().String(), "rule of the input")
	f.fs.StringVar(&f.to, "to", "", "rule of the output")
	return f
}

func (f *transcodeFlags) parse(e *env, args []string) (t asn1schema.Type, from, to asn1core.Rule, err error) {
	if t, _, err = f.codecFlags.parse(e, args); err != nil {
		return nil, 0, 0, err
	}
	if from, err = asn1core.ParseRule(f.from); err != nil {
		return nil, 0, 0, err
	}
	if f.to == "" {
		return nil, 0, 0, fmt.Errorf("-to is required")
	}
	if to, err = asn1core.ParseRule(f.to); err != nil {
		return nil, 0, 0, err
	}
	return t, from, to, nil
}

// transcode decodes data under from and encodes the value under to.
func (e *env) transcode(t asn1schema.Type, from, to asn1core.Rule, data []byte) ([]byte, error) {
	v, err := e.codec(from).Decode(t, data)
	if err != nil {
		return nil, err
	}
	return e.codec(to).Encode(t, v)
}

func runTranscode(ctx context.Context, e *env, args []string) error {
	f := newTranscodeFlags(e, "transcode")
	t, from, to, err := f.parse(e, args)
	if err != nil {
		return err
	}
	data, err := readEncoding(e, f.in, f.hex, from)
	if err != nil {
		return err
	}
	b, err := e.transcode(t, from, to, data)
	if err != nil {
		return err
	}
	return writeOutput(e, f.out, formatEncoding(b, f.hex, to))
}
