// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubpulse/clubpulse-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers every statement the engagement core
// issues per request. Prepared statements eliminate parse overhead on the
// hot read paths.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Series / roster
		"series_by_id": `
			SELECT id, title, activity_type, recurrence, weekdays,
			       start_time, duration_minutes, end_date, location,
			       created_by, active, created_at
			FROM activity_series WHERE id = $1`,
		"series_start_time": "SELECT start_time FROM activity_series WHERE id = $1",
		"series_exists":     "SELECT EXISTS(SELECT 1 FROM activity_series WHERE id = $1 AND active)",
		"guardian_check":    "SELECT EXISTS(SELECT 1 FROM guardians WHERE parent_id = $1 AND player_id = $2)",

		// Match events
		"list_events": `
			SELECT id, event_type, player_id, half, minute, created_by, created_at
			FROM match_events
			WHERE occurrence_id = $1
			ORDER BY id`,
		"insert_event": `
			INSERT INTO match_events (occurrence_id, event_type, player_id, half, minute, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,

		// Presence responses
		"list_presence": `
			SELECT player_id, parent_id, status, reason, created_at, updated_at
			FROM presence_responses
			WHERE occurrence_id = $1
			ORDER BY player_id`,
		"upsert_presence": `
			INSERT INTO presence_responses (occurrence_id, player_id, parent_id, status, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (occurrence_id, player_id, parent_id)
			DO UPDATE SET status = EXCLUDED.status,
			              reason = EXCLUDED.reason,
			              updated_at = NOW()
			RETURNING created_at, updated_at`,

		// Occurrence materialization
		"materialize_occurrence": `
			INSERT INTO occurrences (occurrence_id, series_id, occurrence_date)
			VALUES ($1, $2, $3)
			ON CONFLICT (occurrence_id) DO NOTHING`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
