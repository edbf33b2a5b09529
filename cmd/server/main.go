// Package main implements the entry point for the TaskHub API server,
// a team task-tracking service with role-gated status transitions, a live
// activity feed, and asynchronous email notifications.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cmorrow/taskhub-api/internal/config"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("taskhub-api: %v", err)
	}
}

// run loads configuration, wires the application, and serves until a
// shutdown signal arrives.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"email_enabled", cfg.Email.Host != "")

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if os.Getenv("SKIP_MIGRATIONS") == "" {
		if err := runMigrations(db, appLogger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
