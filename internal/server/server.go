// Package server implements the JSON HTTP API exposed to the CLI and any
// other external collaborator.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/codewarden/internal/analysis"
	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/queue"
	"github.com/sevigo/codewarden/internal/scheduler"
	"github.com/sevigo/codewarden/internal/storage"
)

// Server wraps an HTTP server with graceful shutdown capabilities.
type Server struct {
	ctx    context.Context
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server exposing analysis, cache, queue, and
// scan-control endpoints over the given dependencies.
func NewServer(
	ctx context.Context,
	cfg *config.Config,
	analysisSvc *analysis.Service,
	store storage.Store,
	q *queue.Queue,
	sched *scheduler.Scheduler,
	logger *slog.Logger,
) *Server {
	router := NewRouter(analysisSvc, store, q, sched, logger)

	return &Server{
		ctx: ctx,
		server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server with a 30-second timeout.
func (s *Server) Stop() error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
