package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flemzord/ctxpack/internal/provider"
)

// apiError is the error body OpenRouter returns, both as a whole HTTP
// response and as an in-stream event.
type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"` // string or int depending on upstream
}

type apiErrorBody struct {
	Error apiError `json:"error"`
}

// Message fragments OpenRouter and upstream providers use for errors that
// have a provider sentinel.
var (
	contextLengthHints    = []string{"context length", "context_length", "maximum context", "token limit"}
	unsupportedInputHints = []string{"support image input", "support file input", "support pdf", "does not support image", "modality"}
	rateLimitHints        = []string{"rate limit", "rate-limit"}
)

// httpError reads an error response and wraps the matching sentinel.
func httpError(status int, body io.Reader) error {
	var eb apiErrorBody
	if data, err := io.ReadAll(io.LimitReader(body, 4096)); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &eb)
	}
	msg := eb.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return wrap(msg, classify(status, msg))
}

// streamError converts an error event received after a 200 response.
func streamError(e apiError) error {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	sentinel := classify(0, msg)
	if sentinel == nil {
		sentinel = provider.ErrProviderDown
	}
	return wrap(msg, sentinel)
}

// classify picks the sentinel for an error. Message hints win over the
// status: OpenRouter answers 404 both for unknown models and for models
// with no endpoint accepting the request's media. status 0 means no HTTP
// status is known.
func classify(status int, msg string) error {
	switch {
	case containsAny(msg, unsupportedInputHints):
		return provider.ErrUnsupportedInput
	case containsAny(msg, contextLengthHints):
		return provider.ErrContextLength
	case status == http.StatusTooManyRequests || containsAny(msg, rateLimitHints):
		return provider.ErrRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.ErrUnauthorized
	case status == http.StatusNotFound:
		return provider.ErrModelNotFound
	case status >= 500:
		return provider.ErrProviderDown
	}
	return nil
}

func wrap(msg string, sentinel error) error {
	if sentinel == nil {
		return fmt.Errorf("openrouter: %s", msg)
	}
	return fmt.Errorf("openrouter: %s: %w", msg, sentinel)
}

func containsAny(msg string, hints []string) bool {
	lower := strings.ToLower(msg)
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
