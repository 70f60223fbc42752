// Package security holds the secret redactor applied to every log record,
// request throttling and validation for the HTTP gateway, and a JSONL
// audit log for authentication events.
package security

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// dataURIPattern matches inline base64 media. The payload is replaced by its
// length.
var dataURIPattern = regexp.MustCompile(`(data:[a-zA-Z0-9.+/-]+;base64,)[A-Za-z0-9+/=]{16,}`)

// keyPatterns match credential formats that reach this service: model
// provider keys in config or per-call headers, and gateway auth headers.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-or-v1-[a-fA-F0-9]{32,}`),
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	regexp.MustCompile(`(Bearer|Basic) [A-Za-z0-9\-._~+/]{12,}=*`),
}

// Redactor replaces secrets in strings. Known key formats are matched by
// pattern; credentials loaded from configuration are added as literals.
// Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	literals []string
}

// NewRedactor creates a Redactor with no literals.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// AddLiteral registers a value to redact wherever it appears. Empty
// strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact returns s with secrets replaced by RedactPlaceholder and inline
// base64 payloads shortened to their size.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	literals := r.literals
	r.mu.RUnlock()

	// A configured key may be longer than what a pattern would match.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range keyPatterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return elideDataURIs(s)
}

func elideDataURIs(s string) string {
	if !strings.Contains(s, ";base64,") {
		return s
	}
	return dataURIPattern.ReplaceAllStringFunc(s, func(m string) string {
		prefix := dataURIPattern.FindStringSubmatch(m)[1]
		return prefix + "<" + strconv.Itoa(len(m)-len(prefix)) + " bytes>"
	})
}
