package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/codewarden/internal/analysis"
	"github.com/sevigo/codewarden/internal/budget"
	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/db"
	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/ratelimit"
	"github.com/sevigo/codewarden/internal/storage"
)

// cliDeps bundles the subset of Code Warden's components a one-shot CLI
// invocation needs, without the HTTP server, scheduler, or dispatcher.
type cliDeps struct {
	store    storage.Store
	analysis *analysis.Service
	cleanup  func()
}

func newCLIDeps(cfg *config.Config, logger *slog.Logger) (*cliDeps, error) {
	if cfg.Database.Database == "" {
		return nil, fmt.Errorf("database.database is required")
	}

	dbConn, cleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := storage.NewStore(dbConn.DB)

	configHash, err := cfg.ConfigHash()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to compute configuration hash: %w", err)
	}

	registry := llm.NewRegistry(cfg.LLM.Model)
	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	limiter := ratelimit.New(cfg.RateLimit)
	caller := llm.NewCaller(cfg.LLM, limiter, logger.With("component", "llm"))
	if err := budget.SeedPrices(context.Background(), store, cfg.Budget.Price); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to seed model price table: %w", err)
	}
	ledger := budget.New(store, cfg.Budget, logger.With("component", "budget"))

	svc := analysis.NewService(store, registry, promptMgr, ledger, caller, configHash, logger.With("component", "analysis"))

	return &cliDeps{store: store, analysis: svc, cleanup: cleanup}, nil
}

func buildRegistry(cfg *config.Config) *llm.Registry {
	return llm.NewRegistry(cfg.LLM.Model)
}
