package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime         int64                    `json:"uptime_seconds"`
	StartedAt      time.Time                `json:"started_at"`
	Bind           string                   `json:"bind"`
	AuthEnabled    bool                     `json:"auth_enabled"`
	RateLimited    bool                     `json:"rate_limited"`
	MetadataSource *capability.SourceStatus `json:"metadata_source,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:      int64(time.Since(g.startedAt).Truncate(time.Second).Seconds()),
			StartedAt:   g.startedAt.UTC(),
			Bind:        g.config.Bind,
			AuthEnabled: g.config.Auth.IsConfigured(),
			RateLimited: g.limiter != nil,
		}
		if g.deps.Monitor != nil {
			st := g.deps.Monitor.SourceStatus()
			resp.MetadataSource = &st
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
