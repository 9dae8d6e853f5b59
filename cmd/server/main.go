// Package main implements the entry point for the omnimedia API server,
// which accepts media generation requests and streams task progress to
// connected clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/phrazzld/omnimedia-api/internal/config"
	"github.com/phrazzld/omnimedia-api/internal/platform/logger"
	"github.com/phrazzld/omnimedia-api/internal/platform/postgres"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	ctx := context.Background()
	if *migrateOnly {
		if err := runMigrations(ctx, cfg, l); err != nil {
			l.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		return
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"task_store", cfg.Task.Store,
		"provider", cfg.Generation.Provider)

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

// runMigrations applies pending migrations to the configured database.
func runMigrations(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required for -migrate")
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, l)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return postgres.Migrate(ctx, db, l)
}
