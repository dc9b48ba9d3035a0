package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/koopa0/recall/internal/app"
	"github.com/koopa0/recall/internal/config"
)

// runIndex embeds every message whose embedding is still missing.
func runIndex() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	count, err := a.Index.Backfill(ctx)
	if err != nil {
		return fmt.Errorf("embedding backfill: %w", err)
	}

	logger.Info("embedding backfill completed", "embedded", count)
	fmt.Printf("Embedded %d messages\n", count)
	return nil
}
