package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/clubpulse/clubpulse-data/internal/api/handler"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/config"
	"github.com/clubpulse/clubpulse-data/internal/db"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(pool *db.Pool, appCache *cache.Cache, cfg *config.Config, svc *engagement.Service, seriesRepo *series.Store, dates *reconcile.View, bulk *reconcile.BulkView) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control", "X-Actor-ID", "X-Actor-Role"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, appCache, cfg, svc, seriesRepo, dates, bulk)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Engagement, scoped to one occurrence
		r.Route("/occurrences/{occurrenceID}", func(r chi.Router) {
			r.Get("/events", h.GetEvents)
			r.Put("/events", h.ReplaceEvents)
			r.Post("/events", h.AppendEvent)
			r.Get("/presence", h.GetPresence)
			r.Put("/presence", h.UpsertPresence)
			r.Get("/date", h.GetActualDate)
		})

		// Series expansion
		r.Get("/series/{seriesID}/occurrences", h.ListSeriesOccurrences)

		// Cross-occurrence views
		r.Get("/feed", h.Feed)
		r.Get("/attendance", h.Attendance)
	})

	return r
}
