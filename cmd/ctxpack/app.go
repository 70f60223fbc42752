package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/config"
	"github.com/flemzord/ctxpack/internal/pipeline"
	"github.com/flemzord/ctxpack/internal/security"
	"github.com/flemzord/ctxpack/internal/telemetry"
	"github.com/flemzord/ctxpack/internal/transform"
	"github.com/flemzord/ctxpack/modules/catalog/sqlite"
	"github.com/flemzord/ctxpack/modules/provider/openrouter"
)

// app holds the components built from a Config.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	redactor   *security.Redactor
	metrics    *telemetry.Metrics
	openrouter *openrouter.OpenRouter
	store      *sqlite.Store
	resolver   *capability.Resolver
	pipeline   *pipeline.Pipeline
}

// newApp wires the pipeline. Logs go to logOut. Metrics are collected only
// when withMetrics is set.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, withMetrics bool) (*app, error) {
	a := &app{cfg: cfg, redactor: security.NewRedactor()}
	for _, secret := range []string{cfg.OpenRouter.APIKey, cfg.Gateway.Auth.BearerToken, cfg.Gateway.Auth.BasicPass} {
		if secret != "" {
			a.redactor.AddLiteral(secret)
		}
	}
	a.logger = security.NewLogger(logOut, cfg.Log.Format, cfg.Log.SlogLevel(), a.redactor)

	estimator, err := cfg.Tokenizer.Estimator()
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	a.openrouter, err = openrouter.New(cfg.OpenRouter)
	if err != nil {
		return nil, err
	}

	var cache capability.MetadataCache
	if cfg.Catalog.Enabled {
		a.store, err = sqlite.Open(ctx, cfg.Catalog.Config)
		if err != nil {
			return nil, err
		}
		cache = a.store
	}

	if withMetrics {
		a.metrics = telemetry.NewMetrics()
	}

	a.resolver = capability.NewResolver(cfg.Capabilities, a.openrouter, cache, a.logger.With("component", "capability"))

	a.pipeline = pipeline.New(pipeline.Config{
		Engine:           cfg.Budget.Config,
		DefaultMaxTokens: cfg.Budget.MaxTokens,
		Order:            transform.ParseOrder(cfg.Transform.Order),
	}, pipeline.Deps{
		Estimator: estimator,
		Resolver:  a.resolver,
		Streamer:  a.openrouter,
		Metrics:   a.metrics,
		Logger:    a.logger.With("component", "pipeline"),
	})
	return a, nil
}

// apiKey returns the key for metadata lookups: the flag value, else the
// configured key.
func (a *app) apiKey(flag string) string {
	if flag != "" {
		a.redactor.AddLiteral(flag)
		return flag
	}
	return a.cfg.OpenRouter.APIKey
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing catalog", "error", err)
		}
	}
}
