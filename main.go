package main

import (
	"context"
	"log"
	"voice-assistant/internal/bootstrap"
	"voice-assistant/internal/config"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/server"
)

func main() {
	ctx := context.Background()

	// Initialize logger
	logger := observability.NewLogger()
	defer logger.Sync() //nolint:errcheck

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize dependencies
	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize dependencies", err)
	}

	srv := server.New(cfg, deps, logger)
	srv.Setup()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start server", err)
	}

	if err := srv.WaitForShutdown(ctx); err != nil {
		logger.Fatal(ctx, "failed to shut down server", err)
	}
}
