package capability

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/ctxpack/internal/provider"
)

const tracerName = "github.com/flemzord/ctxpack/internal/capability"

// Config holds resolver settings.
type Config struct {
	// OverridesPath is the JSON override file. Empty disables overrides.
	OverridesPath string `yaml:"overrides_path"`

	// MetadataProviders lists the providers whose models are looked up
	// remotely. Default: ["openrouter"].
	MetadataProviders []string `yaml:"metadata_providers"`

	// CacheTTL bounds the age of cached metadata. Default: 24h.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// MissTTL is how long a model the source does not know is not asked
	// for again. Default: 10m.
	MissTTL time.Duration `yaml:"miss_ttl"`

	// Health controls the backoff applied after remote lookup failures.
	Health provider.HealthConfig `yaml:"health"`
}

func (cfg Config) withDefaults() Config {
	if len(cfg.MetadataProviders) == 0 {
		cfg.MetadataProviders = []string{"openrouter"}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.MissTTL <= 0 {
		cfg.MissTTL = 10 * time.Minute
	}
	return cfg
}

// Resolver resolves model capabilities. The override file is loaded once
// at construction; call ReloadOverrides to pick up edits. Safe for
// concurrent use.
type Resolver struct {
	cfg    Config
	source MetadataSource
	cache  MetadataCache
	logger *slog.Logger
	tracer trace.Tracer
	health *provider.HealthTracker

	// OnResolve, when set, observes every resolution.
	OnResolve func(Resolution)

	mu        sync.RWMutex
	overrides Overrides

	missMu sync.Mutex
	misses map[string]time.Time

	now func() time.Time
}

// NewResolver creates a Resolver. source and cache may be nil, which
// disables remote lookups or caching respectively.
func NewResolver(cfg Config, source MetadataSource, cache MetadataCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	r := &Resolver{
		cfg:    cfg,
		source: source,
		cache:  cache,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		health: provider.NewHealthTracker(cfg.Health),
		misses: make(map[string]time.Time),
		now:    time.Now,
	}
	r.health.OnStateChange = func(from, to provider.HealthState) {
		logger.Info("capability metadata source state changed", "from", from.String(), "to", to.String())
	}
	_ = r.ReloadOverrides()
	return r
}

// ReloadOverrides re-reads the override file. On failure the resolver
// keeps working with no overrides and the error is returned.
func (r *Resolver) ReloadOverrides() error {
	o, err := LoadOverrides(r.cfg.OverridesPath)
	if err != nil {
		r.logger.Warn("ignoring capability overrides", "path", r.cfg.OverridesPath, "error", err)
	}
	r.mu.Lock()
	r.overrides = o
	r.mu.Unlock()
	return err
}

// SetOverrides replaces the loaded overrides.
func (r *Resolver) SetOverrides(o Overrides) {
	if o == nil {
		o = Overrides{}
	}
	r.mu.Lock()
	r.overrides = o
	r.mu.Unlock()
}

// Capabilities is Resolve without the provenance.
func (r *Resolver) Capabilities(ctx context.Context, sel Selector, apiKey string) ModelCapabilities {
	return r.Resolve(ctx, sel, apiKey).Capabilities
}

// Resolve returns the capabilities of sel from the first layer that knows
// the model: override (merged over the provider default), static table,
// remote metadata, provider default. Remote failures are logged and fall
// through; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, sel Selector, apiKey string) Resolution {
	ctx, span := r.tracer.Start(ctx, "capability.Resolve", trace.WithAttributes(
		attribute.String("capability.provider", sel.Provider),
		attribute.String("capability.model", sel.Model),
	))
	defer span.End()

	res := r.resolve(ctx, sel, apiKey)
	span.SetAttributes(attribute.String("capability.source", string(res.Source)))

	r.logger.Debug("capabilities resolved", "selector", sel.String(), "source", string(res.Source))
	if r.OnResolve != nil {
		r.OnResolve(res)
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, sel Selector, apiKey string) Resolution {
	res := Resolution{Selector: sel}

	if o, ok := r.override(sel); ok {
		res.Capabilities = o.Apply(ProviderDefault(sel.Provider))
		res.Source = SourceOverride
		return res
	}

	if c, ok := lookupStatic(sel.Model); ok {
		res.Capabilities = c
		res.Source = SourceStatic
		return res
	}

	if r.isMetadataProvider(sel.Provider) {
		if md := r.remote(ctx, sel.Model, apiKey); md != nil {
			res.Capabilities = FromMetadata(*md)
			res.Source = SourceRemote
			return res
		}
	}

	res.Capabilities = ProviderDefault(sel.Provider)
	res.Source = SourceDefault
	return res
}

func (r *Resolver) override(sel Selector) (Override, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.overrides[sel.Model]; ok {
		return o, true
	}
	o, ok := r.overrides[sel.String()]
	return o, ok
}

func (r *Resolver) isMetadataProvider(p string) bool {
	for _, mp := range r.cfg.MetadataProviders {
		if strings.EqualFold(mp, p) {
			return true
		}
	}
	return false
}

// remote returns metadata from the cache when fresh, otherwise from the
// source. A stale cache entry is used when the source is unavailable.
func (r *Resolver) remote(ctx context.Context, model, apiKey string) *ModelMetadata {
	span := trace.SpanFromContext(ctx)

	var stale *ModelMetadata
	if r.cache != nil {
		md, err := r.cache.Get(ctx, model)
		switch {
		case err != nil:
			r.logger.Debug("capability cache read failed", "model", model, "error", err)
		case md != nil && r.now().Sub(md.FetchedAt) < r.cfg.CacheTTL:
			span.SetAttributes(attribute.Bool("capability.cache_hit", true))
			return md
		case md != nil:
			stale = md
		}
	}

	if r.source == nil {
		return stale
	}
	if r.recentMiss(model) {
		span.SetAttributes(attribute.Bool("capability.known_miss", true))
		return stale
	}
	if !r.health.Available() {
		r.logger.Debug("capability metadata source cooling down", "model", model)
		return stale
	}

	md, stored, err := r.fetch(ctx, model, apiKey)
	if err != nil {
		r.health.RecordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata lookup failed")
		r.logger.Warn("capability metadata lookup failed", "model", model, "error", err)
		return stale
	}
	r.health.RecordSuccess()
	if md == nil {
		r.recordMiss(model)
		return nil
	}

	if md.FetchedAt.IsZero() {
		md.FetchedAt = r.now()
	}
	if r.cache != nil && !stored {
		if err := r.cache.Put(ctx, *md); err != nil {
			r.logger.Debug("capability cache write failed", "model", model, "error", err)
		}
	}
	return md
}

// fetch asks the source for model. When the source and the cache both deal
// in whole catalogs, the full catalog is fetched and stored in one go and
// stored reports that the cache already holds the result.
func (r *Resolver) fetch(ctx context.Context, model, apiKey string) (md *ModelMetadata, stored bool, err error) {
	cs, ok := r.source.(CatalogSource)
	cc, cok := r.cache.(CatalogCache)
	if !ok || !cok {
		md, err = r.source.ModelMetadata(ctx, model, apiKey)
		return md, false, err
	}

	models, err := cs.Catalog(ctx, apiKey)
	if err != nil {
		return nil, false, err
	}
	now := r.now()
	for i := range models {
		if models[i].FetchedAt.IsZero() {
			models[i].FetchedAt = now
		}
		if models[i].ID == model {
			found := models[i]
			md = &found
		}
	}
	if err := cc.PutAll(ctx, models); err != nil {
		r.logger.Debug("capability catalog write failed", "models", len(models), "error", err)
		return md, false, nil
	}
	return md, true, nil
}

func (r *Resolver) recentMiss(model string) bool {
	r.missMu.Lock()
	defer r.missMu.Unlock()
	at, ok := r.misses[model]
	if ok && r.now().Sub(at) >= r.cfg.MissTTL {
		delete(r.misses, model)
		return false
	}
	return ok
}

func (r *Resolver) recordMiss(model string) {
	r.missMu.Lock()
	r.misses[model] = r.now()
	r.missMu.Unlock()
}

// SourceStatus describes the remote metadata source as seen by a Resolver.
type SourceStatus struct {
	Configured bool   `json:"configured"`
	Available  bool   `json:"available"`
	State      string `json:"state"`
	Failures   int    `json:"failures"`
	// RetryAt is set while the source is cooling down.
	RetryAt *time.Time `json:"retry_at,omitempty"`
}

// SourceStatus reports whether remote lookups are currently attempted.
func (r *Resolver) SourceStatus() SourceStatus {
	snap := r.health.Snapshot()
	st := SourceStatus{
		Configured: r.source != nil,
		Available:  r.health.Available(),
		State:      snap.State.String(),
		Failures:   snap.Failures,
	}
	if snap.State == provider.StateCooldown {
		st.RetryAt = &snap.RetryAt
	}
	return st
}
