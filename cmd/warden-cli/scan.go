package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/gitutil"
	"github.com/sevigo/codewarden/internal/hash"
	"github.com/sevigo/codewarden/internal/scanner"
	"github.com/sevigo/codewarden/internal/storage"
)

var scanCmd = &cobra.Command{
	Use:   "scan [repo-path]",
	Short: "Detect changed files in a local repository and refresh its cache entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		repoPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving repo path: %w", err)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		repo, err := deps.store.GetRepositoryByPath(ctx, repoPath)
		if errors.Is(err, storage.ErrNotFound) {
			repo, err = registerRepository(ctx, deps.store, repoPath, cfg.Scanner.DefaultIntervalMinutes)
		}
		if err != nil {
			return fmt.Errorf("resolving repository record: %w", err)
		}

		gitClient := gitutil.NewClient(logger.With("component", "gitutil"))
		changeDetector := gitutil.NewChangeDetector(gitClient, cfg.Scanner.FileExtensions)

		registry := buildRegistry(cfg)
		cacheTypeOrder, err := registry.Ordered(cfg.Scanner.CacheTypeOrder)
		if err != nil {
			return fmt.Errorf("invalid scanner.cache_type_order: %w", err)
		}

		s := scanner.New(deps.store, changeDetector, deps.analysis, cacheTypeOrder, logger.With("component", "scanner"))

		color.New(color.FgCyan).Printf("scanning %s...\n", repoPath)
		result, err := s.Scan(ctx, repo)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		color.New(color.FgGreen).Printf("scan complete: %d files changed, %d issues found, %d errors\n",
			result.FilesChanged, result.IssuesFound, result.Errors)
		return nil
	},
}

func registerRepository(ctx context.Context, store storage.Store, repoPath string, intervalMinutes int) (*storage.Repository, error) {
	_, shortHash := hash.NewPathHasher(nil).Hash(repoPath)
	repo := &storage.Repository{
		Path:                repoPath,
		PathHash:            shortHash,
		Name:                filepath.Base(repoPath),
		Status:              "active",
		AutoScanEnabled:     true,
		ScanIntervalMinutes: intervalMinutes,
	}
	if err := store.CreateRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("registering repository: %w", err)
	}
	return store.GetRepositoryByPath(ctx, repoPath)
}
