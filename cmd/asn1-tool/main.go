package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/davidjspooner/asn1rt/internal/config"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// env is what every command sees: the loaded config and schemas plus the standard streams.
type env struct {
	cfg      *config.Config
	resolver asn1schema.Resolvers
	log      *slog.Logger
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"encode":    {"-type T [-rule R] [-in f] [-out f] [-hex]   JER value to encoding", runEncode},
	"decode":    {"-type T [-rule R] [-in f] [-hex]            encoding to JER value", runDecode},
	"trace":     {"-type T [-rule R] [-in f] [-hex]            dump the decode trace", runTrace},
	"transcode": {"-type T -from R1 -to R2 [-in f] [-out f]    re-encode under another rule", runTranscode},
	"batch":     {"-type T -from R1 -to R2 -dir D [-workers N] transcode every file in D", runBatch},
	"replay":    {"-pcap F [-port 161]                         decode SNMP frames from a capture", runReplay},
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: asn1-tool [-config file] [-schema file.yaml]... <command> [flags]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].usage)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("asn1-tool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	var schemas stringList
	fs.Var(&schemas, "schema", "schema module to load (repeatable)")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return errUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	cfg.Schemas = append(cfg.Schemas, schemas...)
	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}
	e := &env{
		cfg:      cfg,
		resolver: resolver,
		log:      cfg.Logger(stderr),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
	return cmd.run(ctx, e, fs.Args()[1:])
}

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "asn1-tool: %v\n", err)
		os.Exit(1)
	}
}
