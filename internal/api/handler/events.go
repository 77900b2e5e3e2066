package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubpulse/clubpulse-data/internal/api/respond"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// eventPayload is the wire form of one match event on write.
type eventPayload struct {
	EventType string `json:"event_type"`
	PlayerID  string `json:"player_id"`
	Half      string `json:"half,omitempty"`
	Minute    int    `json:"minute"`
}

func (p eventPayload) toEvent() event.MatchEvent {
	return event.MatchEvent{
		Type:     event.Type(p.EventType),
		PlayerID: p.PlayerID,
		Half:     event.Half(p.Half),
		Minute:   p.Minute,
	}
}

// GetEvents lists the match events of one occurrence.
// @Summary List match events
// @Description Returns all events for the occurrence, legacy codes normalized, ordered chronologically (man of the match first, then by half and minute).
// @Tags events
// @Produce json
// @Param occurrenceID path string true "Occurrence id (seriesID or seriesID-YYYYMMDD)"
// @Success 200 {array} event.MatchEvent
// @Failure 400 {object} respond.ErrorResponse
// @Router /occurrences/{occurrenceID}/events [get]
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	occ, err := occurrence.Parse(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	key := "occ:" + occ.String() + ":events"
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.NotModified(w, etag)
			return
		}
		respond.Cached(w, data, etag, cache.TTLEvents, true)
		return
	}

	events, err := h.engagement.GetEvents(r.Context(), occ)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if events == nil {
		events = []event.MatchEvent{}
	}

	data, err := json.Marshal(events)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	etag := h.cache.Set(key, data, cache.TTLEvents)
	respond.Cached(w, data, etag, cache.TTLEvents, false)
}

// ReplaceEvents swaps the full match report of an occurrence.
// @Summary Replace all match events
// @Description Atomically replaces the occurrence's event list and returns the new authoritative list. Requires coach or admin role.
// @Tags events
// @Accept json
// @Produce json
// @Param occurrenceID path string true "Occurrence id"
// @Param events body []handler.eventPayload true "Replacement event list (may be empty)"
// @Success 200 {array} event.MatchEvent
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /occurrences/{occurrenceID}/events [put]
func (h *Handler) ReplaceEvents(w http.ResponseWriter, r *http.Request) {
	occ, err := occurrence.Parse(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var payload []eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON array of events")
		return
	}
	events := make([]event.MatchEvent, 0, len(payload))
	for _, p := range payload {
		events = append(events, p.toEvent())
	}

	stored, err := h.engagement.ReplaceEvents(r.Context(), actor(r), occ, events)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if stored == nil {
		stored = []event.MatchEvent{}
	}

	h.cache.DeletePrefix("occ:" + occ.String())
	respond.JSON(w, http.StatusOK, stored)
}

// AppendEvent logs a single event without touching existing ones.
// @Summary Append one match event
// @Description Inserts one event — the live-match path for logging a goal or card. Requires coach or admin role.
// @Tags events
// @Accept json
// @Produce json
// @Param occurrenceID path string true "Occurrence id"
// @Param event body handler.eventPayload true "Event to append"
// @Success 201 {object} event.MatchEvent
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Router /occurrences/{occurrenceID}/events [post]
func (h *Handler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	occ, err := occurrence.Parse(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON event object")
		return
	}

	stored, err := h.engagement.AppendEvent(r.Context(), actor(r), occ, payload.toEvent())
	if err != nil {
		writeCoreError(w, err)
		return
	}

	h.cache.DeletePrefix("occ:" + occ.String())
	respond.JSON(w, http.StatusCreated, stored)
}
