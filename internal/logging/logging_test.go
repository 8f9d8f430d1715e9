package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestNewRedactsAPIKeyInAttribute(t *testing.T) {
	out := captureStdout(t, func() {
		log := New(Config{Format: "json"})
		log.Info("provider error", "key", "sk-ant-"+strings.Repeat("a", 95))
	})
	if strings.Contains(out, "sk-ant-") {
		t.Fatalf("expected API key redacted, got: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction marker, got: %s", out)
	}
}

func TestNewDefaultsToInfoAndJSON(t *testing.T) {
	out := captureStdout(t, func() {
		log := New(Config{})
		log.Debug("should not appear")
		log.Info("should appear", "k", "v")
	})
	if strings.Contains(out, "should not appear") {
		t.Fatal("expected debug level suppressed by default info level")
	}
	var rec map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("expected valid JSON log line, got %q: %v", line, err)
		}
	}
	if rec["msg"] != "should appear" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestNewTextFormat(t *testing.T) {
	out := captureStdout(t, func() {
		log := New(Config{Format: "text"})
		log.Info("hello")
	})
	if !strings.Contains(out, "msg=hello") {
		t.Fatalf("expected text handler output, got: %s", out)
	}
}

func TestWithEngagementAddsFieldAndContextValue(t *testing.T) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	ctx, scoped := WithEngagement(context.Background(), base, "eng-123")

	if EngagementID(ctx) != "eng-123" {
		t.Fatalf("EngagementID(ctx) = %q, want eng-123", EngagementID(ctx))
	}
	if scoped == base {
		t.Fatal("expected a distinct scoped logger")
	}
}

func TestEngagementIDMissingReturnsEmpty(t *testing.T) {
	if id := EngagementID(context.Background()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
