package logevent

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerCountsEvents(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewWriterHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})).WithGroup("codec")

	counter := eventCounter.WithLabelValues("DEBUG", "/codec/", "unknown-extension")
	before := testutil.ToFloat64(counter)

	log.Debug("skipped", EventAttrKey, "unknown-extension", "type", "Record")
	log.Debug("skipped", EventAttrKey, "unknown-extension", "type", "Record")
	log.Info("written", "type", "Record")

	if got, want := testutil.ToFloat64(counter)-before, 2.0; got != want {
		t.Errorf("got %v events, want %v", got, want)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"written"`) || !strings.Contains(lines[0], `"/codec/"`) {
		t.Errorf("got %q, want the info record under /codec/", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("got nil error for an unknown level")
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Errorf("empty context should give the default logger")
	}
	log := slog.New(NewWriterHandler(&bytes.Buffer{}, nil))
	if got := LoggerFromContext(WithLogger(context.Background(), log)); got != log {
		t.Errorf("got %p, want %p", got, log)
	}
}
