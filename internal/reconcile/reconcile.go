// Package reconcile derives the true calendar date of any activity or
// attendance row, regardless of whether its stored activity id carries a
// date suffix.
//
// The derivation is read-time only. It is never persisted as a column, so a
// later edit of the series start time changes the result on re-evaluation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

// DateSource says where an activity date came from.
type DateSource string

const (
	// SourceSuffix: the date was extracted from the occurrence id itself.
	SourceSuffix DateSource = "suffix"
	// SourceSeries: the id was a base series id; the series' scheduled
	// start time supplied the date.
	SourceSeries DateSource = "series"
	// SourceUnknown: the id was corrupted or references no known series.
	// List and report views degrade gracefully instead of failing.
	SourceUnknown DateSource = "unknown"
)

// ActivityDate is the reconciled calendar date of one activity id.
type ActivityDate struct {
	Date   time.Time  `json:"date,omitzero"`
	Source DateSource `json:"source"`
}

// Known reports whether a real date could be derived.
func (d ActivityDate) Known() bool {
	return d.Source != SourceUnknown
}

// SeriesDates supplies scheduled start times for base series ids.
type SeriesDates interface {
	StartDate(ctx context.Context, seriesID string) (time.Time, error)
}

// View computes actual activity dates, caching series start-time lookups.
type View struct {
	dates SeriesDates
	cache *cache.Cache
}

// NewView creates a reconciliation view.
func NewView(dates SeriesDates, c *cache.Cache) *View {
	return &View{dates: dates, cache: c}
}

// ActualDate resolves one activity id to its calendar date.
//
// Dated ids resolve from the suffix without touching the series table. Base
// ids fall back to the series' scheduled start time. Corrupted ids and ids
// of unknown series resolve to SourceUnknown, never to an error — this view
// feeds list UIs that must keep rendering.
func (v *View) ActualDate(ctx context.Context, activityID string) (ActivityDate, error) {
	id, err := occurrence.Parse(activityID)
	if err != nil {
		return ActivityDate{Source: SourceUnknown}, nil
	}
	if id.Dated() {
		return ActivityDate{Date: id.Date, Source: SourceSuffix}, nil
	}

	if d, ok := v.cachedDate(id.Series); ok {
		return ActivityDate{Date: d, Source: SourceSeries}, nil
	}

	start, err := v.dates.StartDate(ctx, id.Series)
	if errors.Is(err, series.ErrNotFound) {
		return ActivityDate{Source: SourceUnknown}, nil
	}
	if err != nil {
		return ActivityDate{}, fmt.Errorf("reconcile %s: %w", activityID, err)
	}

	d := dateOf(start)
	v.storeDate(id.Series, d)
	return ActivityDate{Date: d, Source: SourceSeries}, nil
}

// InvalidateSeries drops the cached start date for a series, e.g. after a
// series edit notification.
func (v *View) InvalidateSeries(seriesID string) {
	if v.cache != nil {
		v.cache.Delete(seriesDateKey(seriesID))
	}
}

func (v *View) cachedDate(seriesID string) (time.Time, bool) {
	if v.cache == nil {
		return time.Time{}, false
	}
	data, _, ok := v.cache.Get(seriesDateKey(seriesID))
	if !ok {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(occurrence.DateLayout, string(data), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (v *View) storeDate(seriesID string, d time.Time) {
	if v.cache != nil {
		v.cache.Set(seriesDateKey(seriesID), []byte(d.Format(occurrence.DateLayout)), cache.TTLSeriesDate)
	}
}

func seriesDateKey(seriesID string) string {
	return "series_date:" + seriesID
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --------------------------------------------------------------------------
// Cross-occurrence ordering
// --------------------------------------------------------------------------

// FeedItem is one activity in a team's feed.
type FeedItem struct {
	OccurrenceID string       `json:"occurrence_id"`
	SeriesID     string       `json:"series_id"`
	Title        string       `json:"title"`
	Date         ActivityDate `json:"actual_activity_date"`
	CreatedAt    time.Time    `json:"created_at"`
}

// SortFeed orders items most-recent-first by reconciled date, ties broken by
// the creation timestamp of the underlying activity row. Items without a
// known date sink to the end.
func SortFeed(items []FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date.Known() != b.Date.Known() {
			return a.Date.Known()
		}
		if !a.Date.Date.Equal(b.Date.Date) {
			return a.Date.Date.After(b.Date.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
