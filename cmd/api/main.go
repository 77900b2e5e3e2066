// Command api is the ClubPulse engagement API server.
//
// Usage:
//
//	clubpulse-api
//	API_PORT=8080 clubpulse-api

// @title ClubPulse Engagement API
// @version 1.0.0
// @description Recurring-activity occurrence identity and engagement API: presence responses, match events, and date reconciliation for club activities.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name ClubPulse
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubpulse/clubpulse-data/internal/api"
	"github.com/clubpulse/clubpulse-data/internal/cache"
	"github.com/clubpulse/clubpulse-data/internal/config"
	"github.com/clubpulse/clubpulse-data/internal/db"
	"github.com/clubpulse/clubpulse-data/internal/engagement"
	"github.com/clubpulse/clubpulse-data/internal/listener"
	"github.com/clubpulse/clubpulse-data/internal/maintenance"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"

	_ "github.com/clubpulse/clubpulse-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Wire the engagement core
	seriesStore := series.NewStore(pool.Pool)
	store := engagement.NewPostgresStore(pool.Pool)
	svc := engagement.NewService(store, seriesStore, logger)
	dates := reconcile.NewView(seriesStore, appCache)
	bulk := reconcile.NewBulkView(pool.Pool, dates)

	// Start LISTEN/NOTIFY consumer for engagement and series change events
	go listener.Start(ctx, cfg.DatabaseURL, pool.Pool, appCache, dates, logger)

	// Start maintenance (legacy sweep ticker, materialization cron)
	go maintenance.Start(ctx, pool.Pool, seriesStore, maintenance.Config{
		LegacySweepInterval: cfg.LegacySweepInterval,
		MaterializeCron:     cfg.MaterializeCron,
		MaterializeWindow:   cfg.MaterializeWindowDays,
	}, logger)

	// Create router
	router := api.NewRouter(pool, appCache, cfg, svc, seriesStore, dates, bulk)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting ClubPulse Engagement API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
