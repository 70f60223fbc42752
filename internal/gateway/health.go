package gateway

import (
	"net/http"

	"github.com/flemzord/ctxpack/internal/capability"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status         string                   `json:"status"` // "ok" or "degraded"
	MetadataSource *capability.SourceStatus `json:"metadata_source,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the metadata source is usable, 503 while it cools down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.deps.Monitor != nil {
			st := g.deps.Monitor.SourceStatus()
			resp.MetadataSource = &st
			if st.Configured && !st.Available {
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
