package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clubpulse/clubpulse-data/internal/api/respond"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

// GetActualDate resolves the true calendar date of an activity id.
// @Summary Reconcile an activity date
// @Description Derives actual_activity_date from the id's date suffix, or from the series start time for base ids. Unknown series degrade to source "unknown".
// @Tags reconciliation
// @Produce json
// @Param occurrenceID path string true "Activity / occurrence id"
// @Success 200 {object} reconcile.ActivityDate
// @Router /occurrences/{occurrenceID}/date [get]
func (h *Handler) GetActualDate(w http.ResponseWriter, r *http.Request) {
	d, err := h.dates.ActualDate(r.Context(), chi.URLParam(r, "occurrenceID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// ListSeriesOccurrences expands a series' recurrence rule into dated
// occurrence ids.
// @Summary Expand series occurrences
// @Description Expands the series recurrence rule within [from, to] (YYYY-MM-DD, default: next 28 days) into occurrence ids.
// @Tags series
// @Produce json
// @Param seriesID path string true "Series id"
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /series/{seriesID}/occurrences [get]
func (h *Handler) ListSeriesOccurrences(w http.ResponseWriter, r *http.Request) {
	sr, err := h.seriesRepo.GetByID(r.Context(), chi.URLParam(r, "seriesID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	now := time.Now().UTC()
	from := queryDate(r, "from", now)
	to := queryDate(r, "to", now.AddDate(0, 0, 28))

	ids, err := series.Expand(sr, from, to)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"series_id":   sr.ID,
		"occurrences": out,
	})
}

// Feed returns the cross-occurrence activity feed, most recent first.
// @Summary Activity feed
// @Description Occurrences ordered by reconciled calendar date descending, ties broken by row creation time.
// @Tags reconciliation
// @Produce json
// @Param limit query int false "Max items (default 50)"
// @Success 200 {array} reconcile.FeedItem
// @Router /feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := feedLimit(r)
	key := "feed:" + strconv.Itoa(limit)

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.NotModified(w, etag)
			return
		}
		respond.Cached(w, data, etag, cache.TTLFeed, true)
		return
	}

	items, err := h.bulk.Feed(r.Context(), limit)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if items == nil {
		items = []reconcile.FeedItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	etag := h.cache.Set(key, data, cache.TTLFeed)
	respond.Cached(w, data, etag, cache.TTLFeed, false)
}

// Attendance lists attendance records with reconciled dates.
// @Summary Date-reconciled attendance
// @Description Attendance rows whose reconciled actual_activity_date falls within [from, to].
// @Tags reconciliation
// @Produce json
// @Param from query string false "Window start (YYYY-MM-DD, default 90 days back)"
// @Param to query string false "Window end (YYYY-MM-DD, default today)"
// @Success 200 {array} reconcile.AttendanceRecord
// @Router /attendance [get]
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := queryDate(r, "from", now.AddDate(0, 0, -90))
	to := queryDate(r, "to", now)

	records, err := h.bulk.Attendance(r.Context(), from, to)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, records)
}

// feedLimit normalizes the limit query parameter before it becomes part of
// the cache key, so the default and an explicit limit=50 share one entry.
func feedLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	return limit
}

func queryDate(r *http.Request, key string, fallback time.Time) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return fallback
	}
	return d
}
