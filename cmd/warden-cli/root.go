package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "warden-cli",
	Short: "warden-cli is a CLI tool for Code Warden",
	Long:  `A command-line interface for interacting with the Code Warden cache, scanner, and work queue.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads and validates configuration for one-shot CLI use.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateForCLI(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.NewLogger(cfg.Logging, os.Stderr)
	return cfg, log, nil
}
