package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.Uint64("issue_id", 1))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("len(attrs) = %d, want 2", len(attrs))
	}
	if attrs[0].Value.String() != "b" {
		t.Fatalf("component = %q, want b", attrs[0].Value.String())
	}
}

func TestLogUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(&buf, "info", "json"))
	ctx = WithAttrs(ctx, slog.String("component", "test"))

	Info(ctx, "hello", slog.Int("n", 3))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["msg"] != "hello" || line["component"] != "test" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(&buf, "warn", "text"))

	Info(ctx, "dropped")
	Warn(ctx, "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestWithRequestSkipsEmpty(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-1", 0)
	attrs := Attrs(ctx)
	if len(attrs) != 1 || attrs[0].Key != "request_id" {
		t.Fatalf("attrs = %v", attrs)
	}

	ctx = WithRequest(ctx, "", 42)
	attrs = Attrs(ctx)
	if len(attrs) != 2 || attrs[1].Key != "issue_id" {
		t.Fatalf("attrs = %v", attrs)
	}
}
