package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/ctxpack/internal/cron"
	"github.com/flemzord/ctxpack/internal/security"
)

// handleReloadOverrides re-reads the capability override file.
func (g *Gateway) handleReloadOverrides() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Overrides == nil {
			writeError(w, http.StatusNotImplemented, "overrides reload not available")
			return
		}

		err := g.deps.Overrides.ReloadOverrides()
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		g.deps.Audit.Log(security.AuditEvent{
			Type:     security.EventOverridesReload,
			Detail:   detail,
			Metadata: map[string]string{"remote_addr": r.RemoteAddr, "trigger": "admin api"},
		})
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		g.logger.Info("capability overrides reloaded via admin API")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// handleRunJob triggers a scheduled job by name and waits for it.
func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Jobs == nil {
			writeError(w, http.StatusNotImplemented, "scheduler not running")
			return
		}

		name := chi.URLParam(r, "name")
		if err := g.deps.Jobs.RunNow(r.Context(), name); err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, cron.ErrUnknownJob):
				status = http.StatusNotFound
			case errors.Is(err, cron.ErrJobRunning):
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "done", "job": name})
	}
}
