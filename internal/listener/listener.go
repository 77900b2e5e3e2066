// Package listener provides a Postgres LISTEN/NOTIFY consumer for engagement
// and series change events. It holds a dedicated pgx connection (not from the
// pool) listening on the `engagement_changed` and `series_changed` channels.
//
// The engagement store fires pg_notify after every committed write. The
// consumer materializes the occurrence row on first engagement (so the feed
// can see lazily-created occurrences) and drops the cached views that the
// write invalidated. Series change events drop the cached series start date
// so reconciled dates follow a reschedule immediately instead of after the
// cache TTL.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Start opens a dedicated connection and listens on the engagement_changed
// and series_changed channels. It reconnects automatically on connection
// loss. Blocks until ctx is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, pool *pgxpool.Pool, appCache *cache.Cache, dates *reconcile.View, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, pool, appCache, dates, logger)
		if ctx.Err() != nil {
			logger.Info("Change listener stopped (context cancelled)")
			return
		}

		logger.Error("Change listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, pool *pgxpool.Pool, appCache *cache.Cache, dates *reconcile.View, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	for _, channel := range []string{engagement.NotifyChannel, series.NotifyChannel} {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return fmt.Errorf("LISTEN %s: %w", channel, err)
		}
	}
	logger.Info("Change listener connected",
		"channels", []string{engagement.NotifyChannel, series.NotifyChannel})

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		switch notification.Channel {
		case engagement.NotifyChannel:
			var change engagement.ChangeEvent
			if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
				logger.Warn("Failed to parse engagement change",
					"payload", notification.Payload, "error", err)
				continue
			}
			// Process asynchronously to avoid blocking the listener
			go handleChange(ctx, pool, appCache, change, logger)

		case series.NotifyChannel:
			var change series.ChangeEvent
			if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
				logger.Warn("Failed to parse series change",
					"payload", notification.Payload, "error", err)
				continue
			}
			handleSeriesChange(appCache, dates, change, logger)
		}
	}
}

// handleChange materializes the occurrence row (first engagement write is
// what brings a lazily-addressed occurrence into existence) and invalidates
// every cached view the write touched.
func handleChange(ctx context.Context, pool *pgxpool.Pool, appCache *cache.Cache, change engagement.ChangeEvent, logger *slog.Logger) {
	id, err := occurrence.Parse(change.OccurrenceID)
	if err != nil {
		logger.Warn("Engagement change with malformed occurrence id",
			"occurrence_id", change.OccurrenceID, "error", err)
		return
	}

	var date *time.Time
	if id.Dated() {
		d := id.Date
		date = &d
	}
	if _, err := pool.Exec(ctx, "materialize_occurrence",
		change.OccurrenceID, id.Series, date); err != nil {
		logger.Warn("Failed to materialize occurrence",
			"occurrence_id", change.OccurrenceID, "error", err)
	}

	appCache.DeletePrefix("occ:" + change.OccurrenceID)
	appCache.DeletePrefix("feed:")

	logger.Info("Engagement change processed",
		"occurrence_id", change.OccurrenceID, "kind", change.Kind)
}

// handleSeriesChange drops the cached start date of the edited series and
// every feed view derived from it. The next ActualDate call re-reads the
// series table, so a rescheduled series reconciles to its new date without
// waiting out the cache TTL.
func handleSeriesChange(appCache *cache.Cache, dates *reconcile.View, change series.ChangeEvent, logger *slog.Logger) {
	if change.SeriesID == "" {
		logger.Warn("Series change without series id")
		return
	}

	dates.InvalidateSeries(change.SeriesID)
	appCache.DeletePrefix("feed:")

	logger.Info("Series change processed",
		"series_id", change.SeriesID, "kind", change.Kind)
}
