// Package config holds the settings shared by asn1-tool and asn1-server.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/davidjspooner/asn1rt/internal/genericutils"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1module"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/logevent"
	"github.com/davidjspooner/asn1rt/pkg/snmp"
	"gopkg.in/yaml.v3"
)

const maxWorkers = 256

type Config struct {
	Schemas          []string `yaml:"schemas"`
	Rule             string   `yaml:"rule"`
	MaxLength        uint64   `yaml:"max_length"`
	MaxElements      uint64   `yaml:"max_elements"`
	MaxDepth         int      `yaml:"max_depth"`
	MaxEncodedLength int      `yaml:"max_encoded_length"`
	LogLevel         string   `yaml:"log_level"`
	Workers          int      `yaml:"workers"`
	Listen           string   `yaml:"listen"`
	ReadTimeout      string   `yaml:"read_timeout"`

	rule        asn1core.Rule
	level       slog.Level
	readTimeout time.Duration
}

func Default() *Config {
	c := &Config{}
	if err := c.resolve(); err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML config. Schema paths are relative to the config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i, s := range c.Schemas {
		if !filepath.IsAbs(s) {
			c.Schemas[i] = filepath.Join(dir, s)
		}
	}
	return c, nil
}

func Read(r io.Reader) (*Config, error) {
	c := &Config{}
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && err != io.EOF {
		return nil, err
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) resolve() error {
	if c.Rule == "" {
		c.Rule = asn1core.BER.String()
	}
	rule, err := asn1core.ParseRule(c.Rule)
	if err != nil {
		return fmt.Errorf("could not parse rule: %s", err)
	}
	c.rule = rule

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.level, err = logevent.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("could not parse log level: %s", err)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	c.Workers = genericutils.Min(c.Workers, maxWorkers)

	if c.Listen == "" {
		c.Listen = ":8001"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "30s"
	}
	if c.readTimeout, err = time.ParseDuration(c.ReadTimeout); err != nil {
		return fmt.Errorf("could not parse read timeout: %s", err)
	}
	return nil
}

// SetRule overrides the configured rule, as command line flags do.
func (c *Config) SetRule(s string) error {
	rule, err := asn1core.ParseRule(s)
	if err != nil {
		return err
	}
	c.Rule, c.rule = rule.String(), rule
	return nil
}

func (c *Config) DefaultRule() asn1core.Rule {
	return c.rule
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	return c.readTimeout
}

// Logger returns a logger counting codec events and writing records at the configured level
// to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(logevent.NewWriterHandler(w, &slog.HandlerOptions{Level: c.level}))
}

// Resolver loads the configured schema files. The SNMP message types are always available.
func (c *Config) Resolver() (asn1schema.Resolvers, error) {
	loaded, err := asn1module.LoadFiles(c.Schemas...)
	if err != nil {
		return nil, err
	}
	return append(loaded, snmp.Module), nil
}

// Codec returns a codec for rule with the configured limits.
func (c *Config) Codec(rule asn1core.Rule, resolver asn1schema.Resolver, log *slog.Logger) *asn1codec.Codec {
	return asn1codec.New(rule, asn1codec.Options{
		MaxLength:        c.MaxLength,
		MaxElements:      c.MaxElements,
		MaxDepth:         c.MaxDepth,
		MaxEncodedLength: c.MaxEncodedLength,
		Resolver:         resolver,
		Logger:           log,
	})
}
