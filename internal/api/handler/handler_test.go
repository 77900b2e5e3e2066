package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// memStore is an in-memory engagement.Store tracking read counts, so the
// tests can tell a cache hit from a store round trip.
type memStore struct {
	events       map[string][]event.MatchEvent
	presence     map[string][]engagement.PresenceResponse
	listEvents   int
	listPresence int
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string][]event.MatchEvent),
		presence: make(map[string][]engagement.PresenceResponse),
	}
}

func (m *memStore) ListEvents(ctx context.Context, occ occurrence.ID) ([]event.MatchEvent, error) {
	m.listEvents++
	out := make([]event.MatchEvent, len(m.events[occ.String()]))
	copy(out, m.events[occ.String()])
	return out, nil
}

func (m *memStore) ReplaceEvents(ctx context.Context, occ occurrence.ID, events []event.MatchEvent) error {
	stored := make([]event.MatchEvent, 0, len(events))
	for _, e := range events {
		m.nextID++
		e.ID = m.nextID
		e.CreatedAt = time.Now()
		stored = append(stored, e)
	}
	m.events[occ.String()] = stored
	return nil
}

func (m *memStore) InsertEvent(ctx context.Context, e event.MatchEvent) (event.MatchEvent, error) {
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	m.events[e.Occurrence.String()] = append(m.events[e.Occurrence.String()], e)
	return e, nil
}

func (m *memStore) ListPresence(ctx context.Context, occ occurrence.ID) ([]engagement.PresenceResponse, error) {
	m.listPresence++
	return m.presence[occ.String()], nil
}

func (m *memStore) UpsertPresence(ctx context.Context, p engagement.PresenceResponse) (engagement.PresenceResponse, error) {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.presence[p.Occurrence.String()] = append(m.presence[p.Occurrence.String()], p)
	return p, nil
}

// allowRoster accepts every series and guardianship pair.
type allowRoster struct{}

func (allowRoster) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	return true, nil
}

func (allowRoster) IsGuardian(ctx context.Context, parentID, playerID string) (bool, error) {
	return true, nil
}

func newTestRouter(store *memStore) (*chi.Mux, *Handler) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Handler{
		cache:      cache.New(true),
		engagement: engagement.NewService(store, allowRoster{}, logger),
	}
	r := chi.NewRouter()
	r.Route("/occurrences/{occurrenceID}", func(r chi.Router) {
		r.Get("/events", h.GetEvents)
		r.Put("/events", h.ReplaceEvents)
		r.Get("/presence", h.GetPresence)
	})
	return r, h
}

func seededStore(t *testing.T) (*memStore, string) {
	t.Helper()
	store := newMemStore()
	id, err := occurrence.Derive("s1", time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	store.events[id.String()] = []event.MatchEvent{
		{ID: 1, Occurrence: id, Type: event.Goal, PlayerID: "p1", Half: event.FirstHalf, Minute: 12},
	}
	return store, id.String()
}

func TestGetEventsCachedUntilWrite(t *testing.T) {
	store, occID := seededStore(t)
	router, _ := newTestRouter(store)

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/occurrences/"+occID+"/events", nil))
		return w
	}

	first := get()
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first read: code %d, X-Cache %q", first.Code, first.Header().Get("X-Cache"))
	}
	second := get()
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second read: X-Cache %q, want HIT", second.Header().Get("X-Cache"))
	}
	if store.listEvents != 1 {
		t.Errorf("store queried %d times across two reads, want 1", store.listEvents)
	}

	// A replace drops the cached view.
	put := httptest.NewRequest(http.MethodPut, "/occurrences/"+occID+"/events",
		strings.NewReader(`[{"event_type":"goal","player_id":"p2","half":"second","minute":70}]`))
	put.Header.Set("X-Actor-ID", "coach1")
	put.Header.Set("X-Actor-Role", "coach")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, put)
	if w.Code != http.StatusOK {
		t.Fatalf("replace: code %d, body %s", w.Code, w.Body.String())
	}

	after := get()
	if after.Header().Get("X-Cache") != "MISS" {
		t.Errorf("read after write: X-Cache %q, want MISS", after.Header().Get("X-Cache"))
	}
	if !strings.Contains(after.Body.String(), `"p2"`) {
		t.Errorf("read after write serves stale events: %s", after.Body.String())
	}
}

func TestGetEventsNotModified(t *testing.T) {
	store, occID := seededStore(t)
	router, _ := newTestRouter(store)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/occurrences/"+occID+"/events", nil))
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on first response")
	}

	r := httptest.NewRequest(http.MethodGet, "/occurrences/"+occID+"/events", nil)
	r.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotModified {
		t.Errorf("got %d, want 304", w.Code)
	}
}

func TestGetPresenceCached(t *testing.T) {
	store, occID := seededStore(t)
	router, _ := newTestRouter(store)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/occurrences/"+occID+"/presence", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("read %d: code %d", i, w.Code)
		}
	}
	if store.listPresence != 1 {
		t.Errorf("store queried %d times across two reads, want 1", store.listPresence)
	}
}

func TestFeedLimitNormalized(t *testing.T) {
	cases := map[string]int{
		"/feed":           50,
		"/feed?limit=0":   50,
		"/feed?limit=-5":  50,
		"/feed?limit=abc": 50,
		"/feed?limit=25":  25,
	}
	for url, want := range cases {
		r := httptest.NewRequest(http.MethodGet, url, nil)
		if got := feedLimit(r); got != want {
			t.Errorf("feedLimit(%s) = %d, want %d", url, got, want)
		}
	}
}
