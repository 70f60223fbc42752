// Package gateway exposes the context pipeline over HTTP: envelope
// building, budgeting, capability lookups, message transformation and
// end-to-end preparation, plus health, metrics and admin endpoints. It binds
// to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/pipeline"
	"github.com/flemzord/ctxpack/internal/security"
	"github.com/flemzord/ctxpack/internal/telemetry"
)

// SourceMonitor reports the health of the remote metadata source.
// *capability.Resolver satisfies it.
type SourceMonitor interface {
	SourceStatus() capability.SourceStatus
}

// OverridesReloader re-reads the capability override file.
type OverridesReloader interface {
	ReloadOverrides() error
}

// JobRunner runs a scheduled job immediately. *cron.Scheduler satisfies it.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// Deps are the collaborators of a Gateway. Only Pipeline is required.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Monitor   SourceMonitor
	Overrides OverridesReloader
	Jobs      JobRunner
	Metrics   *telemetry.Metrics
	Audit     *security.AuditLogger
	Logger    *slog.Logger
}

// Gateway is the HTTP server.
type Gateway struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	limiter   *security.RateLimiter
	server    *http.Server
	handler   http.Handler
	startedAt time.Time
	addr      net.Addr
}

// New creates a Gateway. Defaults are applied to cfg.
func New(cfg Config, deps Deps) (*Gateway, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Pipeline == nil {
		return nil, errors.New("gateway: pipeline is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	g := &Gateway{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}
	if cfg.RateLimit.RequestsPerMin > 0 || cfg.RateLimit.AuthFailuresPerMin > 0 {
		g.limiter = security.NewRateLimiter(cfg.RateLimit)
	}
	g.handler = g.buildRouter()
	return g, nil
}

// Handler returns the routed HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.handler,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.addr = ln.Addr()
	g.startedAt = time.Now()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
