package security

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger: a text or JSON handler on w at level,
// wrapped so every record passes through r. Format "json" selects JSON; any
// other value selects text.
func NewLogger(w io.Writer, format string, level slog.Level, r *Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	if r == nil {
		r = NewRedactor()
	}
	return slog.New(NewRedactingHandler(inner, r))
}

// RedactingHandler runs the message and every attribute of a record
// through a Redactor before the inner handler sees it.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps inner.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

// Enabled delegates to the inner handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs redacts attrs once, up front.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redact(a)
	}
	return NewRedactingHandler(h.inner.WithAttrs(clean), h.redactor)
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return NewRedactingHandler(h.inner.WithGroup(name), h.redactor)
}

// redact resolves a and rewrites its string form. Groups are walked;
// errors and other values are redacted through their String form.
func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = h.redact(ga)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		if s := a.Value.String(); h.redactor.Redact(s) != s {
			a.Value = slog.StringValue(h.redactor.Redact(s))
		}
	}
	return a
}
