package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
)

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader("rule: uper\nworkers: 1000\nread_timeout: 5s\nlog_level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.DefaultRule() != asn1core.UPER {
		t.Errorf("got %q, want %q", c.DefaultRule(), asn1core.UPER)
	}
	if c.Workers != maxWorkers {
		t.Errorf("got %d workers, want %d", c.Workers, maxWorkers)
	}
	if c.ReadTimeoutDuration() != 5*time.Second {
		t.Errorf("got %v, want 5s", c.ReadTimeoutDuration())
	}
	var buf bytes.Buffer
	c.Logger(&buf).Debug("written")
	if !strings.Contains(buf.String(), "written") {
		t.Errorf("got %q, want the debug record", buf.String())
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"bad rule", "rule: xer\n", "rule"},
		{"bad duration", "read_timeout: soon\n", "timeout"},
		{"bad level", "log_level: loud\n", "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want an error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestLoadResolvesSchemas(t *testing.T) {
	dir := t.TempDir()
	schema := "types:\n  - {name: Flag, kind: BOOLEAN}\n"
	if err := os.WriteFile(filepath.Join(dir, "flag.yaml"), []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "asn1rt.yaml")
	if err := os.WriteFile(cfgPath, []byte("schemas: [flag.yaml]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	r, err := c.Resolver()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Flag", "Message"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("type %s not resolvable", name)
		}
	}
	if got := Default().DefaultRule(); got != asn1core.BER {
		t.Errorf("got %q, want %q", got, asn1core.BER)
	}
}
