package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/internal/api"
	"github.com/forgehq/sidecar/internal/auth"
	"github.com/forgehq/sidecar/internal/config"
	"github.com/forgehq/sidecar/internal/hitl"
	"github.com/forgehq/sidecar/internal/observability"
	"github.com/forgehq/sidecar/internal/ratelimit"
	"github.com/forgehq/sidecar/internal/reactloop"
	"github.com/forgehq/sidecar/internal/store"
	"github.com/forgehq/sidecar/internal/verifier"
	"github.com/forgehq/sidecar/pkg/models"
)

// runServe loads configuration, wires every backend and provider, and
// serves the HTTP API until SIGINT/SIGTERM.
func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting sidecar", "version", version, "commit", commit, "config", configPath)

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
	defer convStore.Close()

	hitlEngine, err := retryOpen(ctx, "open hitl engine", func() (*hitl.Engine, error) {
		return hitl.Open(hitlConfig(cfg))
	})
	if err != nil {
		return err
	}

	catalog, err := retryOpen(ctx, "open agent catalog", func() (agent.Catalog, error) {
		return agent.Open(catalogConfig(cfg))
	})
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := seedAgentsFromConfig(ctx, catalog, cfg); err != nil {
		return fmt.Errorf("seed agents from config: %w", err)
	}

	providers, err := buildProviders()
	if err != nil {
		return err
	}

	var pool *verifier.WorkerPool
	if cfg.Verification.Sandbox {
		pool, err = verifier.NewWorkerPool(verifier.WorkerPoolConfig{
			WorkerCommand: verifierWorkerCommand(),
			PoolSize:      verificationPoolSize(cfg),
			CustomTimeout: time.Duration(cfg.Verification.CustomTimeout) * time.Millisecond,
			MaxQueueDepth: cfg.Verification.MaxQueueDepth,
		})
		if err != nil {
			return fmt.Errorf("start verifier worker pool: %w", err)
		}
		defer pool.Close()
	}

	loop := &reactloop.Loop{
		Providers:  providers,
		Verifiers:  verifier.NewPipeline(pool),
		Hitl:       hitlEngine,
		Store:      convStore,
		Dispatcher: reactloop.NewHTTPDispatcher(30 * time.Second),
	}

	authService := auth.NewService(auth.Config{
		Mode:       auth.Mode(cfg.Auth.Mode),
		SigningKey: cfg.Auth.SigningKey,
		ClaimsPath: cfg.Auth.ClaimsPath,
		AdminKey:   cfg.AdminKey,
	})

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:     cfg.RateLimit.Enabled,
		WindowMs:    cfg.RateLimit.WindowMs,
		MaxRequests: cfg.RateLimit.MaxRequests,
	}, ratelimit.NewMemoryStore())

	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: logLevel, Format: "json"})
	metrics := observability.NewMetrics()

	addr := fmt.Sprintf(":%d", cfg.Sidecar.Port)
	server := api.NewServer(api.Config{
		Addr:    addr,
		Auth:    authService,
		Limiter: limiter,
		Overlay: config.NewOverlay(cfg),
		Catalog: catalog,
		Store:   convStore,
		Hitl:    hitlEngine,
		Loop:    loop,
		Metrics: metrics,
		Logger:  logger,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return err
	}

	slog.Info("sidecar listening", "addr", addr)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("sidecar stopped gracefully")
	return nil
}

// seedAgentsFromConfig upserts every `agents:` entry from the YAML file into
// the catalog on startup, so an operator can define agents declaratively
// without a separate bootstrap step. SeededFromConfig marks rows an admin
// API write should feel free to overwrite on the next config reload.
func seedAgentsFromConfig(ctx context.Context, catalog agent.Catalog, cfg *config.Config) error {
	for _, a := range cfg.Agents {
		allowlist, err := toolAllowlistRaw(a.ToolAllowlist)
		if err != nil {
			return fmt.Errorf("agent %q: %w", a.ID, err)
		}

		row := models.Agent{
			ID:                   a.ID,
			DisplayName:          a.DisplayName,
			AllowUserModelSelect: boolOr(a.AllowUserModelSelect, cfg.AllowUserModelSelect),
			AllowUserHitlConfig:  boolOr(a.AllowUserHitlConfig, cfg.AllowUserHitlConfig),
			ToolAllowlistRaw:     allowlist,
			MaxTurns:             a.MaxTurns,
			MaxTokens:            a.MaxTokens,
			Enabled:              true,
			IsDefault:            a.IsDefault,
			SeededFromConfig:     true,
		}
		if a.SystemPrompt != "" {
			row.SystemPrompt = &a.SystemPrompt
		}
		if a.DefaultModel != "" {
			row.DefaultModel = &a.DefaultModel
		}
		if a.DefaultHitlLevel != "" {
			level := models.HitlLevel(a.DefaultHitlLevel)
			row.DefaultHitlLevel = &level
		}

		if err := catalog.UpsertAgent(ctx, row); err != nil {
			return fmt.Errorf("agent %q: %w", a.ID, err)
		}
	}
	return nil
}

func boolOr(override *bool, fallback bool) bool {
	if override != nil {
		return *override
	}
	return fallback
}

// verificationPoolSize reads Verification.WorkerPoolSize, defaulting to 1
// (WorkerPoolConfig.normalized already does this, but resolving it here
// keeps the *int-vs-int conversion in one place).
func verificationPoolSize(cfg *config.Config) int {
	if cfg.Verification.WorkerPoolSize != nil {
		return *cfg.Verification.WorkerPoolSize
	}
	return 1
}

// verifierWorkerCommand locates the verifier-worker binary next to the
// running sidecar binary, overridable for non-standard layouts.
func verifierWorkerCommand() []string {
	if custom := os.Getenv("SIDECAR_VERIFIER_WORKER_BIN"); custom != "" {
		return []string{custom}
	}
	exe, err := os.Executable()
	if err != nil {
		return []string{"verifier-worker"}
	}
	return []string{filepath.Join(filepath.Dir(exe), "verifier-worker")}
}
