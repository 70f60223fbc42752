// Package openrouter talks to the OpenRouter API: it streams chat
// completions built from canonical messages and reports model metadata
// for capability resolution.
package openrouter

import (
	"context"
	"net"
	"net/http"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/provider"
)

// Interface guards.
var (
	_ provider.Provider        = (*OpenRouter)(nil)
	_ provider.HealthChecker   = (*OpenRouter)(nil)
	_ capability.CatalogSource = (*OpenRouter)(nil)
)

// OpenRouter is a provider.Provider and capability.MetadataSource backed by
// the OpenRouter API.
type OpenRouter struct {
	config Config
	client *http.Client
}

// New validates cfg and creates the client. Only connection setup is
// timed; stream bodies end with their context.
func New(cfg Config) (*OpenRouter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	timeout := cfg.Timeout

	return &OpenRouter{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
	}, nil
}

// ModelName returns the resolved default model identifier.
func (o *OpenRouter) ModelName() string {
	return o.config.model()
}

// HealthCheck verifies connectivity by listing the model catalog.
func (o *OpenRouter) HealthCheck(ctx context.Context) error {
	_, err := o.fetchModels(ctx, o.config.APIKey)
	return err
}
