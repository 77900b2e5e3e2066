package engagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// fakeStore is an in-memory Store with the same atomicity contract as the
// Postgres implementation: a failing ReplaceEvents mutates nothing.
type fakeStore struct {
	events   map[string][]event.MatchEvent
	presence map[string]PresenceResponse // key: occ|player|parent
	nextID   int64

	failReplace  error
	failInsert   []error // consumed one per call
	replaceCalls int
	insertCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:   make(map[string][]event.MatchEvent),
		presence: make(map[string]PresenceResponse),
	}
}

func (f *fakeStore) ListEvents(ctx context.Context, occ occurrence.ID) ([]event.MatchEvent, error) {
	out := make([]event.MatchEvent, len(f.events[occ.String()]))
	copy(out, f.events[occ.String()])
	return out, nil
}

func (f *fakeStore) ReplaceEvents(ctx context.Context, occ occurrence.ID, events []event.MatchEvent) error {
	f.replaceCalls++
	if f.failReplace != nil {
		return f.failReplace
	}
	stored := make([]event.MatchEvent, 0, len(events))
	for _, e := range events {
		f.nextID++
		e.ID = f.nextID
		e.CreatedAt = time.Now()
		stored = append(stored, e)
	}
	f.events[occ.String()] = stored
	return nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, e event.MatchEvent) (event.MatchEvent, error) {
	f.insertCalls++
	if len(f.failInsert) > 0 {
		err := f.failInsert[0]
		f.failInsert = f.failInsert[1:]
		if err != nil {
			return event.MatchEvent{}, err
		}
	}
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	f.events[e.Occurrence.String()] = append(f.events[e.Occurrence.String()], e)
	return e, nil
}

func (f *fakeStore) ListPresence(ctx context.Context, occ occurrence.ID) ([]PresenceResponse, error) {
	var out []PresenceResponse
	for _, p := range f.presence {
		if p.Occurrence.String() == occ.String() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertPresence(ctx context.Context, p PresenceResponse) (PresenceResponse, error) {
	key := fmt.Sprintf("%s|%s|%s", p.Occurrence.String(), p.PlayerID, p.ParentID)
	now := time.Now()
	if existing, ok := f.presence[key]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	f.presence[key] = p
	return p, nil
}

// fakeRoster knows one series and one guardianship pair.
type fakeRoster struct {
	seriesID string
	parentID string
	playerID string
}

func (f *fakeRoster) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	return seriesID == f.seriesID, nil
}

func (f *fakeRoster) IsGuardian(ctx context.Context, parentID, playerID string) (bool, error) {
	return parentID == f.parentID && playerID == f.playerID, nil
}

func newTestService(store *fakeStore) *Service {
	roster := &fakeRoster{seriesID: "s1", parentID: "parent1", playerID: "kid1"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, roster, logger)
}

func occ(t *testing.T) occurrence.ID {
	t.Helper()
	id, err := occurrence.Derive("s1", time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

var coach = Actor{ID: "coach1", Role: RoleCoach}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

func TestReplaceEventsReturnsAuthoritativeList(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	events, err := svc.ReplaceEvents(context.Background(), coach, occ(t), []event.MatchEvent{
		{Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 12},
		{Type: "yellow", PlayerID: "kid2", Half: event.SecondHalf, Minute: 70},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Legacy code normalized on the write path.
	if events[1].Type != event.YellowCard {
		t.Errorf("legacy code persisted: %q", events[1].Type)
	}
	if events[0].ID == 0 || events[1].ID == 0 {
		t.Error("returned events missing stored ids, input echoed back?")
	}
}

func TestReplaceEventsEmptyClearsOccurrence(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	o := occ(t)

	if _, err := svc.AppendEvent(context.Background(), coach, o, event.MatchEvent{
		Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 3,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ReplaceEvents(context.Background(), coach, o, nil); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetEvents(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("occurrence still has %d events after empty replace", len(got))
	}
}

func TestReplaceEventsFailureLeavesStateUntouched(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	o := occ(t)

	if _, err := svc.AppendEvent(context.Background(), coach, o, event.MatchEvent{
		Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 3,
	}); err != nil {
		t.Fatal(err)
	}

	store.failReplace = errors.New("connection reset")
	_, err := svc.ReplaceEvents(context.Background(), coach, o, []event.MatchEvent{
		{Type: "goal", PlayerID: "kid2", Half: event.SecondHalf, Minute: 50},
	})
	if !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("got %v, want ErrPartialWrite", err)
	}

	got, err := svc.GetEvents(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PlayerID != "kid1" {
		t.Errorf("pre-call state not preserved: %+v", got)
	}
}

func TestReplaceEventsNeverRetried(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	store.failReplace = fmt.Errorf("%w: conn refused", ErrTransient)

	_, err := svc.ReplaceEvents(context.Background(), coach, occ(t), nil)
	if !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("got %v, want ErrPartialWrite", err)
	}
	if store.replaceCalls != 1 {
		t.Errorf("replace attempted %d times, want 1", store.replaceCalls)
	}
}

func TestAppendEventRetriesTransientOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	store.failInsert = []error{fmt.Errorf("%w: conn refused", ErrTransient)}

	stored, err := svc.AppendEvent(context.Background(), coach, occ(t), event.MatchEvent{
		Type: "red", PlayerID: "kid1", Half: event.SecondHalf, Minute: 88,
	})
	if err != nil {
		t.Fatal(err)
	}
	if store.insertCalls != 2 {
		t.Errorf("insert attempted %d times, want 2", store.insertCalls)
	}
	if stored.Type != event.RedCard {
		t.Errorf("legacy code not normalized: %q", stored.Type)
	}
}

func TestAppendEventTransientSurfacesAfterRetry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	transient := fmt.Errorf("%w: conn refused", ErrTransient)
	store.failInsert = []error{transient, transient}

	_, err := svc.AppendEvent(context.Background(), coach, occ(t), event.MatchEvent{
		Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 1,
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("got %v, want ErrTransient", err)
	}
	if store.insertCalls != 2 {
		t.Errorf("insert attempted %d times, want 2", store.insertCalls)
	}
}

func TestLegacyCodeReadBackCanonical(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	o := occ(t)

	// A legacy row already at rest, as written by the old system.
	store.events[o.String()] = []event.MatchEvent{
		{ID: 1, Occurrence: o, Type: "red", PlayerID: "kid1", Half: event.SecondHalf, Minute: 60},
	}

	got, err := svc.GetEvents(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Type != event.RedCard {
		t.Errorf("read returned legacy code %q", got[0].Type)
	}
}

func TestGetEventsOrdered(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	o := occ(t)

	for _, e := range []event.MatchEvent{
		{Type: "goal", PlayerID: "a", Half: event.SecondHalf, Minute: 10},
		{Type: "goal", PlayerID: "b", Half: event.FirstHalf, Minute: 80},
		{Type: "goal", PlayerID: "c", Half: event.FirstHalf, Minute: 5},
	} {
		if _, err := svc.AppendEvent(context.Background(), coach, o, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.GetEvents(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	order := []string{got[0].PlayerID, got[1].PlayerID, got[2].PlayerID}
	if order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("wrong order: %v", order)
	}
}

func TestEventWriteRequiresCoachOrAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	parent := Actor{ID: "parent1", Role: RoleParent}

	if _, err := svc.ReplaceEvents(context.Background(), parent, occ(t), nil); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("replace by parent: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.AppendEvent(context.Background(), parent, occ(t), event.MatchEvent{
		Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 1,
	}); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("append by parent: got %v, want ErrNotAuthorized", err)
	}
}

func TestWriteUnknownSeriesNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	unknown := occurrence.ID{Series: "ghost"}

	if _, err := svc.AppendEvent(context.Background(), coach, unknown, event.MatchEvent{
		Type: "goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 1,
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUnknownEventTypeRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.AppendEvent(context.Background(), coach, occ(t), event.MatchEvent{
		Type: "own_goal", PlayerID: "kid1", Half: event.FirstHalf, Minute: 1,
	})
	if !errors.Is(err, event.ErrUnknownEventType) {
		t.Errorf("got %v, want ErrUnknownEventType", err)
	}
	if store.insertCalls != 0 {
		t.Error("unknown event type reached the store")
	}
}

// --------------------------------------------------------------------------
// Presence
// --------------------------------------------------------------------------

func TestUpsertPresenceSingleRowPerTriple(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	o := occ(t)
	parent := Actor{ID: "parent1", Role: RoleParent}

	if _, err := svc.UpsertPresence(context.Background(), parent, o, "kid1", Going, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpsertPresence(context.Background(), parent, o, "kid1", NotGoing, "sick"); err != nil {
		t.Fatal(err)
	}

	presence, err := svc.GetPresence(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	if len(presence) != 1 {
		t.Fatalf("got %d rows, want 1", len(presence))
	}
	got := presence["kid1"]
	if got.Status != NotGoing || got.Reason != "sick" {
		t.Errorf("latest status not reflected: %+v", got)
	}
}

func TestUpsertPresenceNonGuardianRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	stranger := Actor{ID: "stranger", Role: RoleParent}

	_, err := svc.UpsertPresence(context.Background(), stranger, occ(t), "kid1", Going, "")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}
	if len(store.presence) != 0 {
		t.Error("unauthorized presence row stored")
	}
}

func TestUpsertPresenceInvalidStatus(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	parent := Actor{ID: "parent1", Role: RoleParent}

	_, err := svc.UpsertPresence(context.Background(), parent, occ(t), "kid1", "maybe", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestUpsertPresenceGoingDropsReason(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	parent := Actor{ID: "parent1", Role: RoleParent}

	stored, err := svc.UpsertPresence(context.Background(), parent, occ(t), "kid1", Going, "leftover reason")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Reason != "" {
		t.Errorf("reason kept on a going response: %q", stored.Reason)
	}
}
