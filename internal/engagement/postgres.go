package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// NotifyChannel is the Postgres NOTIFY channel fired after successful
// engagement writes. The listener package consumes it.
const NotifyChannel = "engagement_changed"

// ChangeEvent is the JSON payload sent on NotifyChannel.
type ChangeEvent struct {
	OccurrenceID string `json:"occurrence_id"`
	Kind         string `json:"kind"` // "events" or "presence"
	Timestamp    int64  `json:"ts"`
}

// PostgresStore is the pgx-backed Store. All single statements go through
// prepared statements registered at connect time; the event replace runs as
// one transaction so no reader ever observes the window between delete and
// insert.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListEvents returns the raw event rows for an occurrence in insertion
// order. Normalization and chronology belong to the service layer.
func (s *PostgresStore) ListEvents(ctx context.Context, occ occurrence.ID) ([]event.MatchEvent, error) {
	rows, err := s.pool.Query(ctx, "list_events", occ.String())
	if err != nil {
		return nil, transient(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var out []event.MatchEvent
	for rows.Next() {
		e, err := scanEvent(rows, occ)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReplaceEvents deletes and re-inserts the occurrence's events in one
// transaction, then fires the change notification from inside the same
// transaction so consumers only hear about committed state.
func (s *PostgresStore) ReplaceEvents(ctx context.Context, occ occurrence.ID, events []event.MatchEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transient(fmt.Errorf("begin replace: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM match_events WHERE occurrence_id = $1`, occ.String()); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}

	for i, e := range events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO match_events (occurrence_id, event_type, player_id, half, minute, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			occ.String(), e.Type, e.PlayerID, nullHalf(e), nullMinute(e), e.CreatedBy,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := notifyTx(ctx, tx, occ, "events"); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return transient(fmt.Errorf("commit replace: %w", err))
	}
	return nil
}

// InsertEvent appends one event row.
func (s *PostgresStore) InsertEvent(ctx context.Context, e event.MatchEvent) (event.MatchEvent, error) {
	err := s.pool.QueryRow(ctx, "insert_event",
		e.Occurrence.String(), e.Type, e.PlayerID, nullHalf(e), nullMinute(e), e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return event.MatchEvent{}, transient(fmt.Errorf("insert event: %w", err))
	}
	return e, nil
}

// ListPresence returns all presence rows for an occurrence.
func (s *PostgresStore) ListPresence(ctx context.Context, occ occurrence.ID) ([]PresenceResponse, error) {
	rows, err := s.pool.Query(ctx, "list_presence", occ.String())
	if err != nil {
		return nil, transient(fmt.Errorf("list presence: %w", err))
	}
	defer rows.Close()

	var out []PresenceResponse
	for rows.Next() {
		p := PresenceResponse{Occurrence: occ}
		var reason *string
		if err := rows.Scan(&p.PlayerID, &p.ParentID, &p.Status, &reason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		if reason != nil {
			p.Reason = *reason
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPresence inserts or updates the single row for the
// (occurrence, player, parent) triple and fires the change notification.
func (s *PostgresStore) UpsertPresence(ctx context.Context, p PresenceResponse) (PresenceResponse, error) {
	var reason *string
	if p.Reason != "" {
		reason = &p.Reason
	}
	err := s.pool.QueryRow(ctx, "upsert_presence",
		p.Occurrence.String(), p.PlayerID, p.ParentID, p.Status, reason,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PresenceResponse{}, transient(fmt.Errorf("upsert presence: %w", err))
	}

	if err := s.notify(ctx, p.Occurrence, "presence"); err != nil {
		// The row is committed; a lost signal only delays feed refresh.
		return p, nil
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *PostgresStore) notify(ctx context.Context, occ occurrence.ID, kind string) error {
	payload, _ := json.Marshal(ChangeEvent{
		OccurrenceID: occ.String(),
		Kind:         kind,
		Timestamp:    time.Now().Unix(),
	})
	_, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload))
	return err
}

func notifyTx(ctx context.Context, tx pgx.Tx, occ occurrence.ID, kind string) error {
	payload, _ := json.Marshal(ChangeEvent{
		OccurrenceID: occ.String(),
		Kind:         kind,
		Timestamp:    time.Now().Unix(),
	})
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func scanEvent(rows pgx.Rows, occ occurrence.ID) (event.MatchEvent, error) {
	e := event.MatchEvent{Occurrence: occ}
	var (
		half   *string
		minute *int32
	)
	if err := rows.Scan(&e.ID, &e.Type, &e.PlayerID, &half, &minute, &e.CreatedBy, &e.CreatedAt); err != nil {
		return event.MatchEvent{}, fmt.Errorf("scan event: %w", err)
	}
	if half != nil {
		e.Half = event.Half(*half)
	}
	if minute != nil {
		e.Minute = int(*minute)
	}
	return e, nil
}

func nullHalf(e event.MatchEvent) *string {
	if !e.Timed() {
		return nil
	}
	h := string(e.Half)
	return &h
}

func nullMinute(e event.MatchEvent) *int32 {
	if !e.Timed() {
		return nil
	}
	m := int32(e.Minute)
	return &m
}

// transient tags connectivity-class failures so the service layer can apply
// its single-retry policy. pgconn.SafeToRetry is true exactly when the
// server never received the statement.
func transient(err error) error {
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
