// Package series models recurring activity definitions and expands them into
// dated occurrences.
package series

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// Expansion cap per series — guards against unbounded rules (e.g. a weekly
// series with no end date expanded over a careless window).
const defaultMaxOccurrences = 500

// ActivityType classifies a series.
type ActivityType string

const (
	Training   ActivityType = "training"
	Game       ActivityType = "game"
	Tournament ActivityType = "tournament"
)

// Recurrence is the repeat rule of a series.
type Recurrence string

const (
	None    Recurrence = "none"
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

// ActivitySeries is the recurring definition. A one-off activity is a series
// with Recurrence None; its occurrence id is the bare series id.
type ActivitySeries struct {
	ID         string
	Title      string
	Type       ActivityType
	Recurrence Recurrence
	// Weekdays restricts Daily/Weekly rules to the given days. Empty means
	// every day (daily) or the weekday of StartTime (weekly).
	Weekdays  []time.Weekday
	StartTime time.Time
	Duration  time.Duration
	EndDate   *time.Time
	Location  string
	CreatedBy string
	Active    bool
	CreatedAt time.Time
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Expand returns the occurrence ids of s that fall within [from, to],
// inclusive, in chronological order. Non-recurring series yield at most one
// id — the bare series id — when their start date is inside the window.
func Expand(s *ActivitySeries, from, to time.Time) ([]occurrence.ID, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("expand series %s: window end before start", s.ID)
	}

	if s.Recurrence == None || s.Recurrence == "" {
		d := dateOf(s.StartTime)
		if d.Before(dateOf(from)) || d.After(dateOf(to)) {
			return nil, nil
		}
		return []occurrence.ID{{Series: s.ID}}, nil
	}

	opt := rrule.ROption{Dtstart: s.StartTime}
	switch s.Recurrence {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("expand series %s: unknown recurrence %q", s.ID, s.Recurrence)
	}
	for _, wd := range s.Weekdays {
		rwd, ok := rruleWeekdays[wd]
		if !ok {
			return nil, fmt.Errorf("expand series %s: invalid weekday %d", s.ID, wd)
		}
		opt.Byweekday = append(opt.Byweekday, rwd)
	}
	if s.EndDate != nil {
		opt.Until = *s.EndDate
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("expand series %s: %w", s.ID, err)
	}

	times := rule.Between(startOfDay(from), endOfDay(to), true)
	if len(times) > defaultMaxOccurrences {
		times = times[:defaultMaxOccurrences]
	}

	ids := make([]occurrence.ID, 0, len(times))
	for _, t := range times {
		id, err := occurrence.Derive(s.ID, t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
