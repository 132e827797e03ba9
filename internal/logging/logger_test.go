package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"mediabrief/internal/services"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("stage started", String(FieldComponent, "pipeline"), Int64(FieldJobID, 7))

	line := buf.String()
	if !strings.Contains(line, "INFO [pipeline] stage started") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "job_id=7") {
		t.Fatalf("expected job_id attribute in line: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "dedupe")
	ctx = services.WithRequestID(ctx, "req-1")

	WithContext(ctx, base).Info("progress persisted")

	line := buf.String()
	for _, want := range []string{"job_id=42", "stage=dedupe", "correlation_id=req-1"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in log line %q", want, line)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
}
