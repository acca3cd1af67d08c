// Package main implements the entry point for the StudyCycle API server,
// which schedules personalized reviews, calibrates each learner's forgetting
// rate and generates review variants with an LLM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/platform/tracing"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrateCmd); err != nil {
		log.Fatalf("studycycle-api: %v", err)
	}
}

// run loads configuration, sets up logging and tracing, then either executes
// a migration command or serves the API until ctx is cancelled.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"redis_configured", cfg.Redis.Addr != "",
		"llm_configured", cfg.LLM.GeminiAPIKey != "")

	if migrateCmd != "" {
		return handleMigrations(ctx, cfg, migrateCmd, l)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, l)
	if err != nil {
		l.Warn("tracing setup failed, continuing without export", "error", err)
	}
	defer func() {
		// The run context is already cancelled at this point.
		if err := shutdownTracing(context.Background()); err != nil {
			l.Error("tracing shutdown failed", "error", err)
		}
	}()

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

