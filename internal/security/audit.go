package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// EventType names what an audit record is about.
type EventType string

// Audit event types.
const (
	EventAuthSuccess     EventType = "auth_success"
	EventAuthFailure     EventType = "auth_failure"
	EventRateLimit       EventType = "rate_limit"
	EventOverridesReload EventType = "overrides_reload"
)

// AuditEvent is one security-relevant occurrence, serialized as a JSONL line.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger. All fields are optional.
type AuditLoggerConfig struct {
	// Writer receives one JSON object per event.
	Writer io.Writer

	// Redactor scrubs Detail and Metadata values.
	Redactor *Redactor

	// OnEvent sees every event after redaction.
	OnEvent func(AuditEvent)

	// Now stamps events. Defaults to time.Now.
	Now func() time.Time
}

// AuditLogger records audit events. A nil *AuditLogger discards everything,
// so callers need not check whether auditing is configured.
type AuditLogger struct {
	cfg AuditLoggerConfig

	mu     sync.Mutex
	enc    *json.Encoder
	failed atomic.Int64
}

// NewAuditLogger returns a logger for cfg.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &AuditLogger{cfg: cfg}
	if cfg.Writer != nil {
		l.enc = json.NewEncoder(cfg.Writer)
	}
	return l
}

// Log stamps, redacts and records e. The caller's Metadata map is copied,
// never modified.
func (l *AuditLogger) Log(e AuditEvent) {
	if l == nil {
		return
	}
	e.Timestamp = l.cfg.Now()
	e.Metadata = maps.Clone(e.Metadata)
	if r := l.cfg.Redactor; r != nil {
		e.Detail = r.Redact(e.Detail)
		for k, v := range e.Metadata {
			e.Metadata[k] = r.Redact(v)
		}
	}

	// One lock for both sinks keeps them in the same order.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.OnEvent != nil {
		l.cfg.OnEvent(e)
	}
	if l.enc != nil && l.enc.Encode(e) != nil {
		l.failed.Add(1)
	}
}

// WriteErrors counts events the Writer rejected.
func (l *AuditLogger) WriteErrors() int64 {
	if l == nil {
		return 0
	}
	return l.failed.Load()
}
