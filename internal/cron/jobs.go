package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
)

// CatalogLister lists the metadata of every model a backend offers.
type CatalogLister interface {
	ListModels(ctx context.Context) ([]capability.ModelMetadata, error)
}

// CatalogStore is the subset of the catalog cache the refresh job writes to.
type CatalogStore interface {
	PutAll(ctx context.Context, models []capability.ModelMetadata) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// CatalogRefreshJob copies the remote model catalog into the local cache so
// capability lookups rarely hit the network, then drops entries older than
// MaxAge.
type CatalogRefreshJob struct {
	Lister       CatalogLister
	Store        CatalogStore
	MaxAge       time.Duration // 0 = never prune
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 */6 * * *"
}

// Compile-time interface check.
var _ Job = (*CatalogRefreshJob)(nil)

// Name implements Job.
func (j *CatalogRefreshJob) Name() string { return "catalog_refresh" }

// Schedule implements Job.
func (j *CatalogRefreshJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 */6 * * *"
}

// Run fetches the catalog and stores it.
func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	models, err := j.Lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("cron: listing models: %w", err)
	}
	if err := j.Store.PutAll(ctx, models); err != nil {
		return fmt.Errorf("cron: storing models: %w", err)
	}

	var pruned int64
	if j.MaxAge > 0 {
		if pruned, err = j.Store.Prune(ctx, time.Now().Add(-j.MaxAge)); err != nil {
			return fmt.Errorf("cron: pruning catalog: %w", err)
		}
	}

	j.logger().Info("cron: catalog refreshed", "models", len(models), "pruned", pruned)
	return nil
}

func (j *CatalogRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// OverridesReloader re-reads capability overrides from disk.
type OverridesReloader interface {
	ReloadOverrides() error
}

// OverridesReloadJob periodically picks up edits to the override file.
type OverridesReloadJob struct {
	Resolver     OverridesReloader
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*OverridesReloadJob)(nil)

// Name implements Job.
func (j *OverridesReloadJob) Name() string { return "overrides_reload" }

// Schedule implements Job.
func (j *OverridesReloadJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run reloads the overrides. The resolver keeps serving without overrides
// when the file is malformed; the error is still reported.
func (j *OverridesReloadJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: overrides reload cancelled: %w", ctx.Err())
	}
	if err := j.Resolver.ReloadOverrides(); err != nil {
		return fmt.Errorf("cron: reloading overrides: %w", err)
	}
	return nil
}
