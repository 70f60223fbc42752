package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxpack/internal/config"
	"github.com/flemzord/ctxpack/internal/cron"
	"github.com/flemzord/ctxpack/internal/gateway"
	"github.com/flemzord/ctxpack/internal/reload"
	"github.com/flemzord/ctxpack/internal/security"
	"github.com/flemzord/ctxpack/internal/telemetry"
)

const stopTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled maintenance jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}

			sched, err := newScheduler(a)
			if err != nil {
				return err
			}

			auditOut, err := openAuditFile(cfg.Log.AuditFile)
			if err != nil {
				return err
			}
			if auditOut != nil {
				defer auditOut.Close()
			}
			audit := security.NewAuditLogger(security.AuditLoggerConfig{
				Writer:   auditWriter(auditOut),
				Redactor: a.redactor,
				OnEvent: func(e security.AuditEvent) {
					a.logger.Info("audit", "type", string(e.Type), "detail", e.Detail, "metadata", e.Metadata)
				},
			})

			gw, err := gateway.New(cfg.Gateway, gateway.Deps{
				Pipeline:  a.pipeline,
				Monitor:   a.resolver,
				Overrides: a.resolver,
				Jobs:      sched,
				Metrics:   a.metrics,
				Audit:     audit,
				Logger:    a.logger.With("component", "gateway"),
			})
			if err != nil {
				return err
			}

			if err := sched.Start(); err != nil {
				return err
			}
			if err := gw.Start(ctx); err != nil {
				_ = sched.Stop(context.Background())
				return err
			}
			if a.store != nil {
				go warmCatalog(ctx, a, sched)
			}
			if path := cfg.Capabilities.OverridesPath; path != "" {
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, syscall.SIGHUP)
				defer signal.Stop(hup)

				var watcher *reload.Watcher
				if cfg.Catalog.OverridesWatch >= 0 {
					watcher = reload.NewWatcher(reload.WatcherConfig{Path: path, PollInterval: cfg.Catalog.OverridesWatch})
					watcher.Start(ctx)
					defer watcher.Stop()
				}
				go reload.NewHandler(a.resolver, audit, a.logger.With("component", "reload")).Run(ctx, watcher, hup)
			}

			a.logger.Info("ctxpack started", "version", version, "addr", gw.Addr().String())
			<-ctx.Done()
			a.logger.Info("received shutdown signal")

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return errors.Join(
				gw.Stop(stopCtx),
				sched.Stop(stopCtx),
				shutdownTracing(stopCtx),
			)
		},
	}
}

// newScheduler registers the maintenance jobs enabled by configuration.
func newScheduler(a *app) (*cron.Scheduler, error) {
	sched := cron.NewScheduler(a.logger.With("component", "cron"))
	sched.OnResult = a.metrics.ObserveJob

	if a.store != nil && a.cfg.Catalog.Schedule != config.ScheduleOff {
		err := sched.RegisterJob(&cron.CatalogRefreshJob{
			Lister:       a.openrouter,
			Store:        a.store,
			MaxAge:       a.cfg.Catalog.MaxAge,
			Logger:       a.logger.With("component", "cron"),
			ScheduleExpr: a.cfg.Catalog.Schedule,
		})
		if err != nil {
			return nil, err
		}
	}

	if a.cfg.Capabilities.OverridesPath != "" && a.cfg.Catalog.OverridesSchedule != config.ScheduleOff {
		err := sched.RegisterJob(&cron.OverridesReloadJob{
			Resolver:     a.resolver,
			ScheduleExpr: a.cfg.Catalog.OverridesSchedule,
		})
		if err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// warmCatalog fills an empty catalog right away instead of waiting for the
// first scheduled refresh.
func warmCatalog(ctx context.Context, a *app, sched *cron.Scheduler) {
	n, err := a.store.Len(ctx)
	if err != nil || n > 0 {
		return
	}
	if err := sched.RunNow(ctx, "catalog_refresh"); err != nil && !errors.Is(err, cron.ErrUnknownJob) {
		a.logger.Warn("initial catalog refresh failed", "error", err)
	}
}

// openAuditFile opens path for appending. An empty path yields nil.
func openAuditFile(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	return f, nil
}

// auditWriter keeps a nil *os.File out of the io.Writer interface.
func auditWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}
