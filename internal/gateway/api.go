package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/ctxpack/internal/pipeline"
	"github.com/flemzord/ctxpack/internal/provider"
	"github.com/flemzord/ctxpack/internal/security"
)

// apiKeyHeader carries a caller's own OpenRouter key for metadata lookups.
const apiKeyHeader = "X-OpenRouter-Key"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a size- and depth-limited JSON body into v, writing the
// error response itself on failure.
func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := security.ReadBody(r.Body, g.config.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, security.ErrBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		}
		return false
	}
	if err := security.ValidateJSONDepth(data, 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// fail maps pipeline and provider errors onto HTTP statuses.
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoStreamer):
		status = http.StatusNotImplemented
	case errors.Is(err, provider.ErrRateLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, provider.ErrContextLength), errors.Is(err, provider.ErrUnsupportedInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, provider.ErrModelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, provider.ErrUnauthorized), errors.Is(err, provider.ErrProviderDown):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		g.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

// handleBuild serves POST /v1/envelopes.
func (g *Gateway) handleBuild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.BuildRequest
		if !g.decode(w, r, &req) {
			return
		}
		env, err := g.deps.Pipeline.Build(r.Context(), req)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, env)
	}
}

// handleBudget serves POST /v1/budget.
func (g *Gateway) handleBudget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.BudgetRequest
		if !g.decode(w, r, &req) {
			return
		}
		env, err := g.deps.Pipeline.Budget(r.Context(), req)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, env)
	}
}

// handleTransform serves POST /v1/transform.
func (g *Gateway) handleTransform() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.TransformRequest
		if !g.decode(w, r, &req) {
			return
		}
		req.APIKey = r.Header.Get(apiKeyHeader)
		res, err := g.deps.Pipeline.Transform(r.Context(), req)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleCapabilities serves GET /v1/capabilities?model=provider/model.
func (g *Gateway) handleCapabilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := r.URL.Query().Get("model")
		if model == "" {
			writeError(w, http.StatusBadRequest, "model query parameter is required")
			return
		}
		writeJSON(w, http.StatusOK, g.deps.Pipeline.Capabilities(r.Context(), model, r.Header.Get(apiKeyHeader)))
	}
}

// handlePrepare serves POST /v1/prepare.
func (g *Gateway) handlePrepare() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.PrepareRequest
		if !g.decode(w, r, &req) {
			return
		}
		req.APIKey = r.Header.Get(apiKeyHeader)
		res, err := g.deps.Pipeline.Prepare(r.Context(), req)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleComplete serves POST /v1/complete.
func (g *Gateway) handleComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.CompleteRequest
		if !g.decode(w, r, &req) {
			return
		}
		req.APIKey = r.Header.Get(apiKeyHeader)
		res, err := g.deps.Pipeline.Complete(r.Context(), req)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
