package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/platform/postgres"
)

// handleMigrations opens the configured database and runs one goose command
// against the embedded migrations.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", "error", err)
		}
	}()

	logger.Info("executing migrations", "command", command)
	return postgres.Migrate(ctx, db, command, logger)
}
