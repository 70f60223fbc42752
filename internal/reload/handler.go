package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/ctxpack/internal/security"
)

// Reloader re-reads capability overrides from disk.
type Reloader interface {
	ReloadOverrides() error
}

// Handler reloads overrides when the watched file changes or SIGHUP
// arrives, and records each attempt in the audit log.
type Handler struct {
	target Reloader
	audit  *security.AuditLogger
	logger *slog.Logger
}

// NewHandler creates a reload handler. audit may be nil.
func NewHandler(target Reloader, audit *security.AuditLogger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{target: target, audit: audit, logger: logger}
}

// HandleReload reloads once. trigger names the cause in logs and audit
// events.
func (h *Handler) HandleReload(ctx context.Context, trigger string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	err := h.target.ReloadOverrides()
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	h.audit.Log(security.AuditEvent{
		Type:     security.EventOverridesReload,
		Detail:   detail,
		Metadata: map[string]string{"trigger": trigger},
	})
	if err != nil {
		return fmt.Errorf("reloading overrides: %w", err)
	}

	h.logger.Info("capability overrides reloaded", "trigger", trigger)
	return nil
}

// Run reloads on every watcher event and every value received on hup
// until ctx is done. w and hup may be nil.
func (h *Handler) Run(ctx context.Context, w *Watcher, hup <-chan os.Signal) {
	var events <-chan Event
	if w != nil {
		events = w.Events()
	}
	for {
		var trigger string
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			trigger = "file " + string(evt.Type)
		case <-hup:
			trigger = "signal"
		}
		if err := h.HandleReload(ctx, trigger); err != nil {
			h.logger.Warn("capability overrides reload failed", "trigger", trigger, "error", err)
		}
	}
}
