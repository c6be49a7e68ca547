package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/app"
	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background scanner/scheduler in the foreground",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.ValidateForServer(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log := logger.NewLogger(cfg.Logging, os.Stderr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		application, cleanup, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer cleanup()

		go func() {
			if err := application.Start(ctx); err != nil {
				log.Error("server error", "error", err)
				cancel()
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			log.Info("received shutdown signal")
		case <-ctx.Done():
		}

		return application.Stop()
	},
}
