// Package occurrence defines the composite identity that addresses one dated
// instance of a recurring activity series.
//
// Historically the identity was a single string — the series UUID, with
// "-YYYYMMDD" appended for a dated instance — and callers sliced it apart
// with string positions. That encoding survives only at serialization
// boundaries; inside the service the key is the structured ID type below, so
// a series id that happens to contain a date-like substring can never be
// misread as a dated occurrence.
package occurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date suffix format in occurrence id strings.
const DateLayout = "20060102"

// ErrInvalidOccurrenceID reports a malformed occurrence id: a date marker is
// present but the suffix is not 8 digits or not a real calendar date.
// Callers must surface this error rather than fall back to the base series
// id — reassigning engagement data to the wrong occurrence silently orphans
// it.
var ErrInvalidOccurrenceID = errors.New("invalid occurrence id")

// ID is the structured occurrence key. A zero Date means the id addresses
// the base series itself (a one-off or non-recurring activity).
type ID struct {
	Series string
	Date   time.Time
}

// Derive returns the occurrence ID for one calendar date of a series.
// If seriesID already carries a valid date suffix it is stripped first, so
// passing a dated id by mistake cannot produce a double suffix.
func Derive(seriesID string, date time.Time) (ID, error) {
	if seriesID == "" {
		return ID{}, fmt.Errorf("%w: empty series id", ErrInvalidOccurrenceID)
	}
	if base, err := Parse(seriesID); err == nil {
		seriesID = base.Series
	}
	return ID{Series: seriesID, Date: truncate(date)}, nil
}

// Parse splits an occurrence id string into its structured form.
//
// Detection rule: the id is dated when its final hyphen-separated group is
// exactly 8 digits beginning "20". A trailing digit group that does not
// start with "20" is treated as part of the base id (UUID segments are hex
// and may be all-numeric). A group that looks like a date marker but fails
// calendar validation is ErrInvalidOccurrenceID, never a base id.
func Parse(s string) (ID, error) {
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty id", ErrInvalidOccurrenceID)
	}

	i := strings.LastIndexByte(s, '-')
	if i < 0 || i == len(s)-1 {
		return ID{Series: s}, nil
	}
	suffix := s[i+1:]
	if !isDateMarker(suffix) {
		return ID{Series: s}, nil
	}

	d, err := time.ParseInLocation(DateLayout, suffix, time.UTC)
	if err != nil {
		return ID{}, fmt.Errorf("%w: suffix %q is not a calendar date", ErrInvalidOccurrenceID, suffix)
	}
	base := s[:i]
	if base == "" {
		return ID{}, fmt.Errorf("%w: date suffix without series id", ErrInvalidOccurrenceID)
	}
	return ID{Series: base, Date: d}, nil
}

// String renders the serialized form: "series" or "series-YYYYMMDD".
func (id ID) String() string {
	if !id.Dated() {
		return id.Series
	}
	return id.Series + "-" + id.Date.Format(DateLayout)
}

// Dated reports whether the id addresses a specific calendar date.
func (id ID) Dated() bool {
	return !id.Date.IsZero()
}

// isDateMarker reports whether suffix is exactly 8 digits beginning "20".
func isDateMarker(suffix string) bool {
	if len(suffix) != 8 {
		// Shorter/longer groups starting "20" followed by digits only are
		// malformed markers, e.g. "abc-2024" or "abc-202406155".
		if len(suffix) >= 4 && strings.HasPrefix(suffix, "20") && allDigits(suffix) {
			return true
		}
		return false
	}
	return strings.HasPrefix(suffix, "20") && allDigits(suffix)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
