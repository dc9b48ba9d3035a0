// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: Genkit, the
// database pool, the message index, the response cache, the answer generator
// and the chat notifier. Setup builds them in dependency order; Close
// releases them in reverse.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/recall/internal/answer"
	"github.com/koopa0/recall/internal/cache"
	"github.com/koopa0/recall/internal/config"
	"github.com/koopa0/recall/internal/index"
	"github.com/koopa0/recall/internal/notify"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Index     *index.Store
	Cache     *cache.Store
	Generator *answer.Generator
	Notifier  *notify.ChatNotifier

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App (Setup calls it on failure).
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
