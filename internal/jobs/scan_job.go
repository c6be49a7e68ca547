package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/scanner"
	"github.com/sevigo/codewarden/internal/storage"
)

// repoScanner is the subset of *scanner.Scanner ScanJob needs.
type repoScanner interface {
	Scan(ctx context.Context, repo *storage.Repository) (scanner.Result, error)
}

// ScanJob adapts a repository Scanner to core.Job, the shape the dispatcher
// drives.
type ScanJob struct {
	store   storage.Store
	scanner repoScanner
	logger  *slog.Logger
}

func NewScanJob(store storage.Store, scanner repoScanner, logger *slog.Logger) *ScanJob {
	return &ScanJob{store: store, scanner: scanner, logger: logger}
}

func (j *ScanJob) Run(ctx context.Context, task *core.ScanTask) error {
	repo, err := j.store.GetRepositoryByID(ctx, task.RepositoryID)
	if err != nil {
		return fmt.Errorf("loading repository %d: %w", task.RepositoryID, err)
	}

	result, err := j.scanner.Scan(ctx, repo)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", repo.Path, err)
	}

	j.logger.Info("scan finished", "repo", repo.Path,
		"files_changed", result.FilesChanged, "issues_found", result.IssuesFound, "errors", result.Errors)
	return nil
}
