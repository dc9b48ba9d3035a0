package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/koopa0/recall/internal/cache"
	"github.com/koopa0/recall/internal/config"
)

// runSweep clears expired and corrupt response cache records. It works
// directly on the cache directory, so only the cache settings are validated;
// no database or AI provider is touched.
func runSweep() error {
	cfg, err := config.LoadCache()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	store, err := cache.New(cfg.CacheDir, ttl, slog.Default())
	if err != nil {
		return fmt.Errorf("opening response cache: %w", err)
	}

	cleared, err := store.ClearExpired()
	if err != nil {
		return fmt.Errorf("sweeping cache: %w", err)
	}

	fmt.Printf("Cleared %d cache records\n", cleared)
	return nil
}
