// Package engagement reads and writes presence responses and match events,
// always scoped to a single occurrence.
//
// Every write takes an explicit Actor — the core never consults session
// state to decide who is acting. Event codes are normalized on both the read
// and the write path, so persisted data converges to canonical form without
// requiring a one-time migration for correctness.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotFound reports that the addressed occurrence's series does not
	// exist (or is deactivated).
	ErrNotFound = errors.New("occurrence not found")

	// ErrNotAuthorized reports a write by an actor without the required
	// role or guardianship relation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrTransient wraps storage connectivity failures that are safe to
	// retry. Single-row reads and appends are retried once; batch replaces
	// never are.
	ErrTransient = errors.New("transient storage error")

	// ErrInvalidInput reports a structurally invalid write payload (bad
	// half, negative minute, missing player, unknown presence status).
	ErrInvalidInput = errors.New("invalid input")

	// ErrPartialWrite reports that a batch replace could not complete. The
	// transaction was rolled back — readers still see the pre-call state —
	// but the caller must re-fetch and decide whether to resubmit rather
	// than retry blindly.
	ErrPartialWrite = errors.New("event replace did not complete")
)

// --------------------------------------------------------------------------
// Actors
// --------------------------------------------------------------------------

// Role is the acting user's role, supplied by the identity collaborator.
type Role string

const (
	RoleParent Role = "parent"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

// Actor identifies who performs a write. The core trusts the supplied id; it
// does not implement login.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) canEditEvents() bool {
	return a.Role == RoleCoach || a.Role == RoleAdmin
}

// --------------------------------------------------------------------------
// Presence
// --------------------------------------------------------------------------

// PresenceStatus is a parent's answer for one player and occurrence.
type PresenceStatus string

const (
	Going    PresenceStatus = "going"
	NotGoing PresenceStatus = "not-going"
)

// PresenceResponse is one stored answer. At most one row exists per
// (occurrence, player, parent) triple — writes are upserts, never appends.
type PresenceResponse struct {
	Occurrence occurrence.ID  `json:"-"`
	PlayerID   string         `json:"player_id"`
	ParentID   string         `json:"parent_id"`
	Status     PresenceStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// --------------------------------------------------------------------------
// Store contracts
// --------------------------------------------------------------------------

// Store is the persistence contract for engagement rows. ReplaceEvents must
// be atomic: on failure, readers observe the pre-call event list unchanged.
type Store interface {
	ListEvents(ctx context.Context, occ occurrence.ID) ([]event.MatchEvent, error)
	ReplaceEvents(ctx context.Context, occ occurrence.ID, events []event.MatchEvent) error
	InsertEvent(ctx context.Context, e event.MatchEvent) (event.MatchEvent, error)
	ListPresence(ctx context.Context, occ occurrence.ID) ([]PresenceResponse, error)
	UpsertPresence(ctx context.Context, p PresenceResponse) (PresenceResponse, error)
}

// Roster supplies the series existence and guardianship lookups this core
// reads but does not own.
type Roster interface {
	SeriesExists(ctx context.Context, seriesID string) (bool, error)
	IsGuardian(ctx context.Context, parentID, playerID string) (bool, error)
}

// Service applies normalization, ordering, and authorization on top of a
// Store.
type Service struct {
	store  Store
	roster Roster
	logger *slog.Logger
}

// NewService wires the engagement service.
func NewService(store Store, roster Roster, logger *slog.Logger) *Service {
	return &Service{store: store, roster: roster, logger: logger}
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// GetEvents returns all events for one occurrence, normalized and in
// chronological order (man of the match leading, then by half and minute).
func (s *Service) GetEvents(ctx context.Context, occ occurrence.ID) ([]event.MatchEvent, error) {
	events, err := retryOnce(ctx, func() ([]event.MatchEvent, error) {
		return s.store.ListEvents(ctx, occ)
	})
	if err != nil {
		return nil, err
	}
	return normalizeAndSort(events)
}

// ReplaceEvents swaps the full event list of an occurrence in a single
// transaction and returns the re-fetched authoritative list. Transient
// failures are never retried here — a half-applied batch would risk
// duplicate inserts on replay.
func (s *Service) ReplaceEvents(ctx context.Context, actor Actor, occ occurrence.ID, events []event.MatchEvent) ([]event.MatchEvent, error) {
	if !actor.canEditEvents() {
		return nil, fmt.Errorf("replace events: role %q: %w", actor.Role, ErrNotAuthorized)
	}
	if err := s.requireSeries(ctx, occ); err != nil {
		return nil, err
	}

	prepared := make([]event.MatchEvent, 0, len(events))
	for _, e := range events {
		p, err := s.prepare(actor, occ, e)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}

	if err := s.store.ReplaceEvents(ctx, occ, prepared); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartialWrite, err)
	}

	s.logger.Info("Match report replaced",
		"occurrence", occ.String(), "events", len(prepared), "actor", actor.ID)

	// Re-fetch rather than echo the input back.
	return s.GetEvents(ctx, occ)
}

// AppendEvent inserts a single event without touching existing ones — the
// live-match case of logging one goal or card.
func (s *Service) AppendEvent(ctx context.Context, actor Actor, occ occurrence.ID, e event.MatchEvent) (event.MatchEvent, error) {
	if !actor.canEditEvents() {
		return event.MatchEvent{}, fmt.Errorf("append event: role %q: %w", actor.Role, ErrNotAuthorized)
	}
	if err := s.requireSeries(ctx, occ); err != nil {
		return event.MatchEvent{}, err
	}
	p, err := s.prepare(actor, occ, e)
	if err != nil {
		return event.MatchEvent{}, err
	}

	stored, err := retryOnce(ctx, func() (event.MatchEvent, error) {
		return s.store.InsertEvent(ctx, p)
	})
	if err != nil {
		return event.MatchEvent{}, err
	}

	s.logger.Info("Match event appended",
		"occurrence", occ.String(), "type", stored.Type, "player", stored.PlayerID)
	return stored, nil
}

// prepare normalizes and validates an incoming event and stamps its
// occurrence and author.
func (s *Service) prepare(actor Actor, occ occurrence.ID, e event.MatchEvent) (event.MatchEvent, error) {
	t, err := event.Normalize(e.Type)
	if err != nil {
		return event.MatchEvent{}, err
	}
	e.Type = t
	e.Occurrence = occ
	e.CreatedBy = actor.ID
	if !e.Timed() {
		e.Half, e.Minute = "", 0
	}
	if err := e.Validate(); err != nil {
		return event.MatchEvent{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return e, nil
}

// --------------------------------------------------------------------------
// Presence
// --------------------------------------------------------------------------

// GetPresence returns one entry per player who has responded for the
// occurrence.
func (s *Service) GetPresence(ctx context.Context, occ occurrence.ID) (map[string]PresenceResponse, error) {
	rows, err := retryOnce(ctx, func() ([]PresenceResponse, error) {
		return s.store.ListPresence(ctx, occ)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]PresenceResponse, len(rows))
	for _, r := range rows {
		out[r.PlayerID] = r
	}
	return out, nil
}

// UpsertPresence records or updates a parent's answer for one player. The
// parent must hold a guardianship relation to the player; a second call for
// the same (occurrence, player, parent) triple updates in place.
func (s *Service) UpsertPresence(ctx context.Context, actor Actor, occ occurrence.ID, playerID string, status PresenceStatus, reason string) (PresenceResponse, error) {
	if status != Going && status != NotGoing {
		return PresenceResponse{}, fmt.Errorf("%w: presence status %q", ErrInvalidInput, status)
	}
	if status == Going {
		reason = ""
	}
	if err := s.requireSeries(ctx, occ); err != nil {
		return PresenceResponse{}, err
	}

	guardian, err := s.roster.IsGuardian(ctx, actor.ID, playerID)
	if err != nil {
		return PresenceResponse{}, err
	}
	if !guardian && actor.Role != RoleAdmin {
		return PresenceResponse{}, fmt.Errorf("upsert presence: %s is no guardian of %s: %w",
			actor.ID, playerID, ErrNotAuthorized)
	}

	stored, err := s.store.UpsertPresence(ctx, PresenceResponse{
		Occurrence: occ,
		PlayerID:   playerID,
		ParentID:   actor.ID,
		Status:     status,
		Reason:     reason,
	})
	if err != nil {
		return PresenceResponse{}, err
	}

	s.logger.Info("Presence recorded",
		"occurrence", occ.String(), "player", playerID, "status", status)
	return stored, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *Service) requireSeries(ctx context.Context, occ occurrence.ID) error {
	ok, err := s.roster.SeriesExists(ctx, occ.Series)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("series %s: %w", occ.Series, ErrNotFound)
	}
	return nil
}

func normalizeAndSort(events []event.MatchEvent) ([]event.MatchEvent, error) {
	for i := range events {
		t, err := event.Normalize(events[i].Type)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", events[i].ID, err)
		}
		events[i].Type = t
	}
	event.SortChronological(events)
	return events, nil
}

// retryOnce runs fn and retries exactly once if the failure is transient.
func retryOnce[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !errors.Is(err, ErrTransient) || ctx.Err() != nil {
		return v, err
	}
	return fn()
}
