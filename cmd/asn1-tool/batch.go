package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/davidjspooner/dsflow/pkg/job"
)

func runBatch(ctx context.Context, e *env, args []string) error {
	f := newTranscodeFlags(e, "batch")
	var dir string
	workers := e.cfg.Workers
	f.fs.StringVar(&dir, "dir", "", "directory of encodings")
	f.fs.IntVar(&workers, "workers", workers, "concurrent transcodes")
	t, from, to, err := f.parse(e, args)
	if err != nil {
		return err
	}
	if dir == "" {
		return fmt.Errorf("-dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, entry.Name())
		}
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var done atomic.Int64
	executer := job.NewExecuter[string](log.New(e.stderr, "", log.LstdFlags))
	executer.Start(ctx, workers, func(ctx context.Context, name string) error {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		b, err := e.transcode(t, from, to, data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, name), b, 0o644); err != nil {
			return err
		}
		done.Add(1)
		return nil
	}, files)

	err = executer.WaitForCompletion()
	e.log.Info("batch finished", "files", len(files), "transcoded", done.Load(), "from", from.String(), "to", to.String())
	return err
}
