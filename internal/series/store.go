package series

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound reports that no series exists for the requested id.
var ErrNotFound = errors.New("series not found")

// NotifyChannel is the Postgres NOTIFY channel fired when a series definition
// changes. The surrounding application's series CRUD is expected to fire the
// same channel on edits; the listener drops cached series dates on it so a
// rescheduled series reconciles to its new date immediately instead of after
// the cache TTL.
const NotifyChannel = "series_changed"

// ChangeEvent is the JSON payload sent on NotifyChannel.
type ChangeEvent struct {
	SeriesID  string `json:"series_id"`
	Kind      string `json:"kind"` // "updated" or "deactivated"
	Timestamp int64  `json:"ts"`
}

// Store reads series definitions and guardianship relations. The engagement
// core only reads from these tables; series CRUD belongs to the surrounding
// application.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a series store backed by the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetByID returns one series definition.
func (s *Store) GetByID(ctx context.Context, id string) (*ActivitySeries, error) {
	var (
		sr       ActivitySeries
		weekdays []int16
		duration int32
	)
	err := s.pool.QueryRow(ctx, "series_by_id", id).Scan(
		&sr.ID, &sr.Title, &sr.Type, &sr.Recurrence, &weekdays,
		&sr.StartTime, &duration, &sr.EndDate, &sr.Location,
		&sr.CreatedBy, &sr.Active, &sr.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get series %s: %w", id, err)
	}
	sr.Duration = time.Duration(duration) * time.Minute
	for _, d := range weekdays {
		sr.Weekdays = append(sr.Weekdays, time.Weekday(d))
	}
	return &sr, nil
}

// StartDate returns the scheduled start time of a series. Used by the date
// reconciliation view as the fallback when an activity id carries no date
// suffix.
func (s *Store) StartDate(ctx context.Context, id string) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, "series_start_time", id).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("series start time %s: %w", id, err)
	}
	return t, nil
}

// ListActiveRecurring returns all active series with a repeat rule, for the
// occurrence materializer.
func (s *Store) ListActiveRecurring(ctx context.Context) ([]*ActivitySeries, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, activity_type, recurrence, weekdays,
		       start_time, duration_minutes, end_date, location,
		       created_by, active, created_at
		FROM activity_series
		WHERE active = true AND recurrence <> 'none'`)
	if err != nil {
		return nil, fmt.Errorf("list recurring series: %w", err)
	}
	defer rows.Close()

	var out []*ActivitySeries
	for rows.Next() {
		var (
			sr       ActivitySeries
			weekdays []int16
			duration int32
		)
		if err := rows.Scan(
			&sr.ID, &sr.Title, &sr.Type, &sr.Recurrence, &weekdays,
			&sr.StartTime, &duration, &sr.EndDate, &sr.Location,
			&sr.CreatedBy, &sr.Active, &sr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		sr.Duration = time.Duration(duration) * time.Minute
		for _, d := range weekdays {
			sr.Weekdays = append(sr.Weekdays, time.Weekday(d))
		}
		out = append(out, &sr)
	}
	return out, rows.Err()
}

// Deactivate soft-deletes a series. Series rows are never hard-deleted while
// occurrences reference them; engagement data is only removed by the
// cascading delete of the whole series.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE activity_series SET active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate series %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("series %s: %w", id, ErrNotFound)
	}

	payload, _ := json.Marshal(ChangeEvent{
		SeriesID:  id,
		Kind:      "deactivated",
		Timestamp: time.Now().Unix(),
	})
	if _, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil {
		// The update is committed; a lost signal only delays cache refresh.
		return nil
	}
	return nil
}

// SeriesExists reports whether an active series exists for id. Deactivated
// series reject new engagement writes but keep their historical data.
func (s *Store) SeriesExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, "series_exists", id).Scan(&ok); err != nil {
		return false, fmt.Errorf("series exists %s: %w", id, err)
	}
	return ok, nil
}

// IsGuardian reports whether parentID has a custody/guardianship relation to
// playerID.
func (s *Store) IsGuardian(ctx context.Context, parentID, playerID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, "guardian_check", parentID, playerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("guardian check: %w", err)
	}
	return ok, nil
}
