// Package maintenance runs periodic background work: the legacy event-code
// sweep as a Go ticker, and daily occurrence materialization on a cron
// schedule. All scheduled work is driven from Go since the API is already a
// persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/clubpulse/clubpulse-data/internal/series"
)

// Config controls maintenance task scheduling. A zero interval or empty
// cron spec disables the task.
type Config struct {
	LegacySweepInterval time.Duration // rewrite persisted legacy event codes
	MaterializeCron     string        // cron spec for occurrence materialization
	MaterializeWindow   int           // days ahead to materialize
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		LegacySweepInterval: 1 * time.Hour,
		MaterializeCron:     "0 5 * * *",
		MaterializeWindow:   28,
	}
}

// Start launches all configured maintenance work. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, seriesStore *series.Store, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance started",
		"legacy_sweep", cfg.LegacySweepInterval,
		"materialize_cron", cfg.MaterializeCron,
		"materialize_window_days", cfg.MaterializeWindow)

	if cfg.LegacySweepInterval > 0 {
		t := time.NewTicker(cfg.LegacySweepInterval)
		defer t.Stop()
		go runLoop(ctx, t.C, func() {
			r := LegacySweep(ctx, pool)
			if r.Err != nil {
				logger.Warn("Legacy sweep failed", "error", r.Err)
			} else if r.Rewritten > 0 {
				logger.Info("Legacy sweep complete", "summary", r.Summary())
			}
		})
	}

	if cfg.MaterializeCron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.MaterializeCron, func() {
			r := Materialize(ctx, pool, seriesStore, cfg.MaterializeWindow)
			logger.Info("Occurrence materialization complete", "summary", r.Summary())
		})
		if err != nil {
			logger.Error("Invalid materialize cron spec",
				"spec", cfg.MaterializeCron, "error", err)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	<-ctx.Done()
	logger.Info("Maintenance stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
