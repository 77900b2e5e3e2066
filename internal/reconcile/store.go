package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendanceRecord is an external attendance row enriched with its
// reconciled date. The stored activity_id may or may not carry a date
// suffix depending on when it was written.
type AttendanceRecord struct {
	ID         int64        `json:"id"`
	ActivityID string       `json:"activity_id"`
	PlayerID   string       `json:"player_id"`
	CreatedAt  time.Time    `json:"created_at"`
	ActualDate ActivityDate `json:"actual_activity_date"`
}

// BulkView answers date-reconciled attendance and feed queries. It is a pure
// derivation over existing rows — never a source of truth.
type BulkView struct {
	pool *pgxpool.Pool
	view *View
}

// NewBulkView creates the bulk reconciliation view.
func NewBulkView(pool *pgxpool.Pool, view *View) *BulkView {
	return &BulkView{pool: pool, view: view}
}

// Attendance returns attendance records whose reconciled date falls within
// [from, to]. The filter runs after derivation: the stored activity_id alone
// cannot be filtered by calendar date in SQL.
func (b *BulkView) Attendance(ctx context.Context, from, to time.Time) ([]AttendanceRecord, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id, activity_id, player_id, created_at
		FROM attendance_records
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.ID, &r.ActivityID, &r.PlayerID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		r.ActualDate, err = b.view.ActualDate(ctx, r.ActivityID)
		if err != nil {
			return nil, err
		}
		if !r.ActualDate.Known() {
			out = append(out, r)
			continue
		}
		if d := r.ActualDate.Date; !d.Before(dateOf(from)) && !d.After(dateOf(to)) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// Feed returns the cross-occurrence activity feed, most recent first.
func (b *BulkView) Feed(ctx context.Context, limit int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := b.pool.Query(ctx, `
		SELECT o.occurrence_id, o.series_id, s.title, o.created_at
		FROM occurrences o
		JOIN activity_series s ON s.id = o.series_id
		ORDER BY o.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	var items []FeedItem
	for rows.Next() {
		var it FeedItem
		if err := rows.Scan(&it.OccurrenceID, &it.SeriesID, &it.Title, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		it.Date, err = b.view.ActualDate(ctx, it.OccurrenceID)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortFeed(items)
	return items, nil
}
