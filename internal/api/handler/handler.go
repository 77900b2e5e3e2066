// Package handler provides HTTP handlers for the engagement API. Handlers
// parse the composite occurrence id at the boundary and hand the structured
// key to the core; core error kinds map onto HTTP statuses here and nowhere
// else.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/clubpulse/clubpulse-data/internal/api/respond"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/config"
	"github.com/clubpulse/clubpulse-data/internal/db"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/event"
	"github.com/clubpulse/clubpulse-data/internal/occurrence"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

// Actor headers supplied by the identity collaborator in front of this
// service. The core trusts them; it does not implement login.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool       *db.Pool
	cache      *cache.Cache
	cfg        *config.Config
	engagement *engagement.Service
	seriesRepo *series.Store
	dates      *reconcile.View
	bulk       *reconcile.BulkView
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, c *cache.Cache, cfg *config.Config, svc *engagement.Service, seriesRepo *series.Store, dates *reconcile.View, bulk *reconcile.BulkView) *Handler {
	return &Handler{
		pool:       pool,
		cache:      c,
		cfg:        cfg,
		engagement: svc,
		seriesRepo: seriesRepo,
		dates:      dates,
		bulk:       bulk,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"name":    "ClubPulse Engagement API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --------------------------------------------------------------------------
// Shared request plumbing
// --------------------------------------------------------------------------

// actor reads the acting user from the trusted identity headers.
func actor(r *http.Request) engagement.Actor {
	return engagement.Actor{
		ID:   r.Header.Get(headerActorID),
		Role: engagement.Role(r.Header.Get(headerActorRole)),
	}
}

// writeCoreError maps the core's error kinds onto HTTP responses.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, occurrence.ErrInvalidOccurrenceID):
		respond.ErrorDetail(w, http.StatusBadRequest, "INVALID_OCCURRENCE_ID",
			"Malformed occurrence id", err.Error())
	case errors.Is(err, event.ErrUnknownEventType):
		respond.ErrorDetail(w, http.StatusBadRequest, "UNKNOWN_EVENT_TYPE",
			"Unrecognized event type", err.Error())
	case errors.Is(err, engagement.ErrNotAuthorized):
		respond.Error(w, http.StatusForbidden, "NOT_AUTHORIZED",
			"Actor is not allowed to perform this operation")
	case errors.Is(err, engagement.ErrNotFound), errors.Is(err, series.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND",
			"Occurrence or series does not exist")
	case errors.Is(err, engagement.ErrPartialWrite):
		respond.ErrorDetail(w, http.StatusInternalServerError, "PARTIAL_WRITE",
			"Event replace did not complete; re-fetch before resubmitting", err.Error())
	case errors.Is(err, engagement.ErrInvalidInput):
		respond.ErrorDetail(w, http.StatusBadRequest, "INVALID_INPUT",
			"Invalid request payload", err.Error())
	case errors.Is(err, engagement.ErrTransient):
		respond.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
			"Temporary storage failure")
	default:
		respond.Error(w, http.StatusInternalServerError, "INTERNAL", "Internal error")
	}
}
