package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubpulse/clubpulse-data/internal/api/respond"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
)

// presencePayload is the wire form of a presence answer.
type presencePayload struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// GetPresence lists presence responses for one occurrence.
// @Summary Get presence responses
// @Description Returns one entry per player who has responded, keyed by player id.
// @Tags presence
// @Produce json
// @Param occurrenceID path string true "Occurrence id"
// @Success 200 {object} map[string]engagement.PresenceResponse
// @Failure 400 {object} respond.ErrorResponse
// @Router /occurrences/{occurrenceID}/presence [get]
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	occ, err := occurrence.Parse(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	key := "occ:" + occ.String() + ":presence"
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.NotModified(w, etag)
			return
		}
		respond.Cached(w, data, etag, cache.TTLPresence, true)
		return
	}

	presence, err := h.engagement.GetPresence(r.Context(), occ)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	data, err := json.Marshal(presence)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	etag := h.cache.Set(key, data, cache.TTLPresence)
	respond.Cached(w, data, etag, cache.TTLPresence, false)
}

// UpsertPresence records or updates a parent's answer for one player.
// @Summary Upsert a presence response
// @Description Inserts or updates the single row for the (occurrence, player, acting parent) triple. The actor must be a guardian of the player.
// @Tags presence
// @Accept json
// @Produce json
// @Param occurrenceID path string true "Occurrence id"
// @Param response body handler.presencePayload true "Presence answer"
// @Success 200 {object} engagement.PresenceResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /occurrences/{occurrenceID}/presence [put]
func (h *Handler) UpsertPresence(w http.ResponseWriter, r *http.Request) {
	occ, err := occurrence.Parse(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var payload presencePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON presence object")
		return
	}

	stored, err := h.engagement.UpsertPresence(r.Context(), actor(r), occ,
		payload.PlayerID, engagement.PresenceStatus(payload.Status), payload.Reason)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	h.cache.DeletePrefix("occ:" + occ.String())
	respond.JSON(w, http.StatusOK, stored)
}
