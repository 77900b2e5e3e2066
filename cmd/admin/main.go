// Command admin is the ClubPulse operations CLI.
//
// Usage:
//
//	clubpulse-admin migrate up
//	clubpulse-admin migrate down --steps 1
//	clubpulse-admin events normalize
//	clubpulse-admin occurrences materialize --days 28
//	clubpulse-admin reconcile audit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clubpulse/clubpulse-data/internal/config"
	"github.com/clubpulse/clubpulse-data/internal/db"
	"github.com/clubpulse/clubpulse-data/internal/maintenance"
	"github.com/clubpulse/clubpulse-data/internal/reconcile"
	"github.com/clubpulse/clubpulse-data/internal/series"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "clubpulse-admin",
		Short: "ClubPulse engagement operations CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(occurrencesCmd())
	root.AddCommand(reconcileCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Up(); err != nil && err != migrate.ErrNoChange {
				return fmt.Errorf("migrate up: %w", err)
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
				return fmt.Errorf("migrate down: %w", err)
			}
			logger.Info("Migrations rolled back", "steps", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}

// newMigrator builds a golang-migrate instance on the pgx stdlib driver.
func newMigrator() (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// The pgx/v5 migrate driver registers under the pgx5 scheme.
	dbURL := cfg.DatabaseURL
	if strings.HasPrefix(dbURL, "postgres://") {
		dbURL = "pgx5://" + strings.TrimPrefix(dbURL, "postgres://")
	} else if strings.HasPrefix(dbURL, "postgresql://") {
		dbURL = "pgx5://" + strings.TrimPrefix(dbURL, "postgresql://")
	}
	m, err := migrate.New("file://"+cfg.MigrationsPath, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	return m, nil
}

// --------------------------------------------------------------------------
// events command
// --------------------------------------------------------------------------

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Match event maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "normalize",
		Short: "Rewrite persisted legacy event codes to canonical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				result := maintenance.LegacySweep(ctx, pool.Pool)
				if result.Err != nil {
					return result.Err
				}
				logger.Info("Legacy normalize finished", "summary", result.Summary())
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// occurrences command
// --------------------------------------------------------------------------

func occurrencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "Occurrence maintenance",
	}
	cmd.AddCommand(occurrencesMaterializeCmd())
	return cmd
}

func occurrencesMaterializeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Pre-create occurrence rows for the upcoming window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := series.NewStore(pool.Pool)
				start := time.Now()
				result := maintenance.Materialize(ctx, pool.Pool, store, days)
				logger.Info("Materialize finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("materialize error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 28, "Days ahead to materialize")
	return cmd
}

// --------------------------------------------------------------------------
// reconcile command
// --------------------------------------------------------------------------

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Date reconciliation tooling",
	}
	cmd.AddCommand(reconcileAuditCmd())
	return cmd
}

// reconcileAuditCmd lists attendance rows whose activity id resolves to no
// known date — orphaned or corrupted ids that need operator attention.
func reconcileAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "List attendance rows with unresolvable activity dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				seriesStore := series.NewStore(pool.Pool)
				view := reconcile.NewView(seriesStore, nil)
				bulk := reconcile.NewBulkView(pool.Pool, view)

				records, err := bulk.Attendance(ctx,
					time.Time{}, time.Now().UTC().AddDate(10, 0, 0))
				if err != nil {
					return err
				}

				orphans := 0
				for _, r := range records {
					if r.ActualDate.Known() {
						continue
					}
					orphans++
					logger.Warn("Unresolvable activity date",
						"attendance_id", r.ID, "activity_id", r.ActivityID)
				}
				logger.Info("Reconcile audit finished",
					"records", len(records), "orphans", orphans)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithPool handles config loading, DB connection, and context cancellation.
func runWithPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
