// Package event defines the match-event vocabulary, normalization of legacy
// event codes, and the chronological ordering used for display and reports.
package event

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// Type is a canonical match-event code.
type Type string

// The five canonical event types. Legacy short codes ("yellow", "red") are
// accepted on read and rewritten on write, never persisted going forward.
const (
	Goal          Type = "goal"
	Assist        Type = "assist"
	YellowCard    Type = "yellow_card"
	RedCard       Type = "red_card"
	ManOfTheMatch Type = "man_of_the_match"
)

// Half identifies the match half an event belongs to.
type Half string

const (
	FirstHalf  Half = "first"
	SecondHalf Half = "second"
)

// ErrUnknownEventType reports an event code outside the known
// legacy+canonical vocabulary. Unknown codes are an error: the old behavior
// of defaulting them to "goal" miscategorized data and is not preserved.
var ErrUnknownEventType = errors.New("unknown event type")

// legacyTypes maps retired short codes to their canonical form.
var legacyTypes = map[Type]Type{
	"yellow": YellowCard,
	"red":    RedCard,
}

// Normalize maps a legacy or canonical event code to its canonical form.
// It is idempotent and total over the known vocabulary; anything else is
// ErrUnknownEventType.
func Normalize(t Type) (Type, error) {
	switch t {
	case Goal, Assist, YellowCard, RedCard, ManOfTheMatch:
		return t, nil
	}
	if c, ok := legacyTypes[t]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventType, t)
}

// MatchEvent is one recorded event within an occurrence. Half and Minute are
// unset for man_of_the_match, which has no position in match time.
type MatchEvent struct {
	ID         int64         `json:"id"`
	Occurrence occurrence.ID `json:"-"`
	Type       Type          `json:"event_type"`
	PlayerID   string        `json:"player_id"`
	Half       Half          `json:"half,omitempty"`
	Minute     int           `json:"minute,omitempty"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Timed reports whether the event carries a half/minute position.
func (e MatchEvent) Timed() bool {
	return e.Type != ManOfTheMatch
}

// Validate checks the event's structural invariants after normalization.
func (e MatchEvent) Validate() error {
	if e.PlayerID == "" {
		return errors.New("match event: missing player id")
	}
	if !e.Timed() {
		return nil
	}
	if e.Half != FirstHalf && e.Half != SecondHalf {
		return fmt.Errorf("match event: invalid half %q", e.Half)
	}
	if e.Minute < 0 {
		return fmt.Errorf("match event: negative minute %d", e.Minute)
	}
	return nil
}

// halfOrder positions halves for sorting; anything unexpected sorts last.
func halfOrder(h Half) int {
	switch h {
	case FirstHalf:
		return 0
	case SecondHalf:
		return 1
	}
	return 2
}

// SortChronological orders events in place for display: man_of_the_match as
// a leading group in insertion order, then timed events by (half, minute)
// with first < second. Equal keys keep insertion order — the tie-break
// carries no business meaning.
func SortChronological(events []MatchEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Timed() != b.Timed() {
			return !a.Timed()
		}
		if !a.Timed() {
			return false
		}
		if ha, hb := halfOrder(a.Half), halfOrder(b.Half); ha != hb {
			return ha < hb
		}
		return a.Minute < b.Minute
	})
}
