package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubpulse/clubpulse-data/internal/series"
)

// --------------------------------------------------------------------------
// Legacy event-code sweep
// --------------------------------------------------------------------------

// SweepResult tracks one legacy sweep run.
type SweepResult struct {
	Rewritten int64
	Duration  time.Duration
	Err       error
}

// Summary returns a human-readable summary.
func (r SweepResult) Summary() string {
	return fmt.Sprintf("rewritten=%d dur=%s", r.Rewritten, r.Duration.Round(time.Millisecond))
}

// legacyRewrites mirrors the read/write normalizer. The normalizer keeps the
// data correct without this sweep; rewriting at rest is storage hygiene so
// ad-hoc SQL against the table stops seeing retired codes.
var legacyRewrites = map[string]string{
	"yellow": "yellow_card",
	"red":    "red_card",
}

// LegacySweep rewrites persisted legacy event codes to canonical form.
func LegacySweep(ctx context.Context, pool *pgxpool.Pool) SweepResult {
	start := time.Now()
	var result SweepResult

	for legacy, canonical := range legacyRewrites {
		tag, err := pool.Exec(ctx,
			`UPDATE match_events SET event_type = $1 WHERE event_type = $2`,
			canonical, legacy)
		if err != nil {
			result.Err = fmt.Errorf("rewrite %s: %w", legacy, err)
			result.Duration = time.Since(start)
			return result
		}
		result.Rewritten += tag.RowsAffected()
	}

	result.Duration = time.Since(start)
	return result
}

// --------------------------------------------------------------------------
// Occurrence materialization
// --------------------------------------------------------------------------

// MaterializeResult tracks one materialization run.
type MaterializeResult struct {
	SeriesFound int
	Created     int
	Skipped     int
	Duration    time.Duration
	Errors      []string
}

// Summary returns a human-readable summary.
func (r MaterializeResult) Summary() string {
	return fmt.Sprintf("series=%d created=%d skipped=%d errors=%d dur=%s",
		r.SeriesFound, r.Created, r.Skipped, len(r.Errors),
		r.Duration.Round(time.Millisecond))
}

// Materialize pre-creates occurrence rows for the upcoming window of every
// active recurring series. Occurrences stay lazy for correctness —
// engagement writes create them on demand — this only warms the feed and
// reconciliation views. Idempotent: existing rows are skipped.
func Materialize(ctx context.Context, pool *pgxpool.Pool, store *series.Store, windowDays int) MaterializeResult {
	start := time.Now()
	var result MaterializeResult

	if windowDays <= 0 {
		windowDays = 28
	}

	active, err := store.ListActiveRecurring(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}
	result.SeriesFound = len(active)

	now := time.Now().UTC()
	until := now.AddDate(0, 0, windowDays)

	for _, sr := range active {
		ids, err := series.Expand(sr, now, until)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		for _, id := range ids {
			var date *time.Time
			if id.Dated() {
				d := id.Date
				date = &d
			}
			tag, err := pool.Exec(ctx, "materialize_occurrence", id.String(), id.Series, date)
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("occurrence %s: %v", id.String(), err))
				continue
			}
			if tag.RowsAffected() > 0 {
				result.Created++
			} else {
				result.Skipped++
			}
		}
	}

	result.Duration = time.Since(start)
	return result
}
