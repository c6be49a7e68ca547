// Package app initializes and orchestrates the main components of Code
// Warden. It wires together configuration, storage, the read-through
// analysis path, the background scanner/scheduler, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/codewarden/internal/analysis"
	"github.com/sevigo/codewarden/internal/budget"
	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/db"
	"github.com/sevigo/codewarden/internal/gitutil"
	"github.com/sevigo/codewarden/internal/jobs"
	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/queue"
	"github.com/sevigo/codewarden/internal/ratelimit"
	"github.com/sevigo/codewarden/internal/scanner"
	"github.com/sevigo/codewarden/internal/scheduler"
	"github.com/sevigo/codewarden/internal/server"
	"github.com/sevigo/codewarden/internal/storage"
)

// App holds the main application components.
type App struct {
	Store     storage.Store
	Analysis  *analysis.Service
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
	Cfg       *config.Config

	logger     *slog.Logger
	httpServer *server.Server
	dispatcher core.JobDispatcher
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Info("initializing Code Warden application",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"scanner_max_concurrent", cfg.Scanner.MaxConcurrent,
	)

	dbConn, dbCleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := storage.NewStore(dbConn.DB)

	configHash, err := cfg.ConfigHash()
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to compute configuration hash: %w", err)
	}

	registry := llm.NewRegistry(cfg.LLM.Model)
	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	limiter := ratelimit.New(cfg.RateLimit)
	caller := llm.NewCaller(cfg.LLM, limiter, logger.With("component", "llm"))

	if err := budget.SeedPrices(ctx, store, cfg.Budget.Price); err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to seed model price table: %w", err)
	}
	ledger := budget.New(store, cfg.Budget, logger.With("component", "budget"))

	analysisSvc := analysis.NewService(store, registry, promptMgr, ledger, caller, configHash, logger.With("component", "analysis"))

	gitClient := gitutil.NewClient(logger.With("component", "gitutil"))
	changeDetector := gitutil.NewChangeDetector(gitClient, cfg.Scanner.FileExtensions)

	cacheTypeOrder, err := registry.Ordered(cfg.Scanner.CacheTypeOrder)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("invalid scanner.cache_type_order: %w", err)
	}
	repoScanner := scanner.New(store, changeDetector, analysisSvc, cacheTypeOrder, logger.With("component", "scanner"))

	scanJob := jobs.NewScanJob(store, repoScanner, logger.With("component", "jobs"))
	dispatcher := jobs.NewDispatcher(scanJob, cfg.Scanner.MaxConcurrent, logger.With("component", "dispatcher"))

	sched := scheduler.New(store, dispatcher, logger.With("component", "scheduler"))
	q := queue.New(store)

	httpServer := server.NewServer(ctx, cfg, analysisSvc, store, q, sched, logger.With("component", "server"))

	logger.Info("Code Warden application initialized successfully")
	return &App{
			Store:      store,
			Analysis:   analysisSvc,
			Queue:      q,
			Scheduler:  sched,
			Cfg:        cfg,
			logger:     logger,
			httpServer: httpServer,
			dispatcher: dispatcher,
		}, func() {
			dbCleanup()
		}, nil
}

// Start runs the background scheduler and the HTTP server. It blocks until
// the HTTP server stops.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting Code Warden", "server_port", a.Cfg.Server.Port)

	if a.Cfg.Scanner.Enabled {
		a.Scheduler.Start(ctx)
	} else {
		a.logger.Info("scanner disabled via configuration, scheduler will not run")
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	var shutdownErr error
	a.logger.Info("shutting down Code Warden services")

	if a.Cfg.Scanner.Enabled {
		a.Scheduler.Stop()
	}

	a.dispatcher.Stop()

	if err := a.httpServer.Stop(); err != nil {
		a.logger.Error("error during HTTP server shutdown", "error", err)
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if shutdownErr != nil {
		a.logger.Error("Code Warden stopped with errors", "error", shutdownErr)
	} else {
		a.logger.Info("Code Warden stopped successfully")
	}
	return shutdownErr
}
