package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/internal/config"
	"github.com/forgehq/sidecar/internal/hitl"
	"github.com/forgehq/sidecar/internal/store"
)

// runMigrate opens and closes every configured backend. Each backend's
// constructor (NewSQLiteStore, NewPostgresStore, NewSQLiteCatalog, ...)
// creates its own schema idempotently, so there is no up/down ladder to
// drive here — just a connectivity and schema smoke test, plus seeding
// config-declared agents, an operator can run before the first `serve`.
func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	convStore, err := retryOpen(ctx, "open conversation store", func() (store.Store, error) {
		return store.Open(storeConfig(cfg))
	})
	if err != nil {
		return err
	}
	if err := convStore.Close(); err != nil {
		return fmt.Errorf("close conversation store: %w", err)
	}
	slog.Info("conversation store schema ready", "kind", cfg.Conversation.Store)

	if _, err := retryOpen(ctx, "open hitl engine", func() (*hitl.Engine, error) {
		return hitl.Open(hitlConfig(cfg))
	}); err != nil {
		return err
	}
	slog.Info("hitl pause store schema ready")

	catalog, err := retryOpen(ctx, "open agent catalog", func() (agent.Catalog, error) {
		return agent.Open(catalogConfig(cfg))
	})
	if err != nil {
		return err
	}
	defer catalog.Close()
	slog.Info("agent catalog schema ready", "type", cfg.Database.Type)

	if err := seedAgentsFromConfig(ctx, catalog, cfg); err != nil {
		return fmt.Errorf("seed agents from config: %w", err)
	}
	slog.Info("agents seeded from config", "count", len(cfg.Agents))

	return nil
}
