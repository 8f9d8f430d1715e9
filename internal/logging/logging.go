// Package logging wires the engagement's structured logger: JSON output for
// production, human-readable text for development, and redaction of
// credentials that might otherwise leak into a tool's raw output or an LLM
// provider's request body.
package logging

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Config configures the logger built by New.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Format is "json" or "text". Defaults to "json".
	Format string
	// AddSource includes the file:line of the log call site.
	AddSource bool
	// RedactPatterns supplements DefaultRedactPatterns with engagement-specific
	// secrets (e.g. a custom provider API key shape).
	RedactPatterns []string
}

// DefaultRedactPatterns covers the credential shapes this system handles
// directly: provider API keys, guardian-audited shell commands that may
// embed a token, and bearer/JWT auth headers.
var DefaultRedactPatterns = []string{
	`sk-ant-[a-zA-Z0-9_-]{90,}`,
	`sk-[a-zA-Z0-9]{40,}`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-.]{16,})`,
	`(?i)(api[_-]?key|secret|password|passwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
}

// New builds a slog.Logger per cfg. A zero Config produces a sane default:
// info level, JSON output to stdout, no source location.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var base slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		base = slog.NewTextHandler(os.Stdout, opts)
	} else {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}

	patterns := append(append([]string{}, DefaultRedactPatterns...), cfg.RedactPatterns...)
	return slog.New(newRedactingHandler(base, patterns))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactingHandler wraps a slog.Handler, scrubbing matched secrets from the
// record message and every string-valued attribute before delegating.
type redactingHandler struct {
	next     slog.Handler
	patterns []*regexp.Regexp
}

func newRedactingHandler(next slog.Handler, patterns []string) *redactingHandler {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return &redactingHandler{next: next, patterns: compiled}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, h.redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(out), patterns: h.patterns}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), patterns: h.patterns}
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, h.redact(a.Value.String()))
	}
	return a
}

func (h *redactingHandler) redact(s string) string {
	for _, re := range h.patterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// contextKey namespaces engagement-scoped context values this package knows
// how to thread into log records via WithEngagement.
type contextKey string

const engagementIDKey contextKey = "engagement_id"

// WithEngagement returns a context carrying engagementID, and a Logger
// pre-populated with it as a field — the domain analogue of the teacher's
// request-id correlation.
func WithEngagement(ctx context.Context, log *slog.Logger, engagementID string) (context.Context, *slog.Logger) {
	ctx = context.WithValue(ctx, engagementIDKey, engagementID)
	return ctx, log.With("engagement_id", engagementID)
}

// EngagementID extracts the engagement id stored by WithEngagement, if any.
func EngagementID(ctx context.Context) string {
	id, _ := ctx.Value(engagementIDKey).(string)
	return id
}
