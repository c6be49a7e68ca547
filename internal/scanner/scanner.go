// Package scanner keeps one repository's cache warm: it detects changed
// files and runs AnalysisService over each for every enabled cache-type.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/metrics"
	"github.com/sevigo/codewarden/internal/storage"
)

// changeDetector is the subset of gitutil.ChangeDetector the Scanner needs.
// Changed compares the working tree to the index (used the first time a
// repository is scanned, or whenever no prior commit has been recorded).
// ChangedSince compares two commits directly and is used on every
// subsequent tick once a repository has a recorded last-scanned commit.
type changeDetector interface {
	Changed(ctx context.Context, repoPath string) ([]string, error)
	ChangedSince(ctx context.Context, repoPath, sinceSHA string) (files []string, headSHA string, err error)
	Head(ctx context.Context, repoPath string) (string, error)
}

// analyzer is the subset of analysis.Service the Scanner needs.
type analyzer interface {
	Analyze(ctx context.Context, cacheType llm.CacheType, repoPath, filePath string) (json.RawMessage, error)
}

// Scanner drives AnalysisService across every changed file of a single
// repository, in the configured cache-type order. It is a pure function of
// (repository, current time, cache state, config): it does not itself
// enforce that two scans of the same repository never overlap — that is
// left to the Scheduler, which stamps last_scan_check when it dispatches.
type Scanner struct {
	store     storage.Store
	detector  changeDetector
	analysis  analyzer
	cacheTypes []llm.CacheType
	logger    *slog.Logger
}

func New(store storage.Store, detector changeDetector, analysis analyzer, cacheTypes []llm.CacheType, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:      store,
		detector:   detector,
		analysis:   analysis,
		cacheTypes: cacheTypes,
		logger:     logger,
	}
}

// Result summarizes a single scan run, used for logging and tests.
type Result struct {
	FilesChanged int
	IssuesFound  int
	Errors       int
}

// Scan runs one pass over repo: detect changed files, analyze each for
// every configured cache-type, and append scan-event rows throughout.
func (s *Scanner) Scan(ctx context.Context, repo *storage.Repository) (Result, error) {
	start := time.Now()

	if err := s.appendEvent(ctx, repo.ID, "scan_start", "info", "scan started", 0, 0, 0); err != nil {
		s.logger.Warn("failed to append scan_start event", "error", err, "repo", repo.Path)
	}

	changed, headSHA, err := s.detectChanges(ctx, repo)
	if err != nil {
		if evErr := s.appendEvent(ctx, repo.ID, "scan_error", "error", err.Error(), 0, 0, time.Since(start)); evErr != nil {
			s.logger.Warn("failed to append scan_error event", "error", evErr)
		}
		return Result{}, fmt.Errorf("detecting changes in %s: %w", repo.Path, err)
	}

	if len(changed) == 0 {
		s.recordBaseline(ctx, repo, headSHA)
		if err := s.appendEvent(ctx, repo.ID, "scan_complete", "info", "no changed files", 0, 0, time.Since(start)); err != nil {
			s.logger.Warn("failed to append scan_complete event", "error", err)
		}
		return Result{}, nil
	}

	var result Result
	var analyzedAny bool
	for _, file := range changed {
		result.FilesChanged++
		for _, cacheType := range s.cacheTypes {
			payload, err := s.analysis.Analyze(ctx, cacheType, repo.Path, file)
			if err != nil {
				result.Errors++
				metrics.ScanErrorsTotal.WithLabelValues(repo.Path).Inc()
				s.logger.Warn("analysis failed", "repo", repo.Path, "file", file, "cache_type", cacheType, "error", err)
				if evErr := s.appendEvent(ctx, repo.ID, "scan_error", "error",
					fmt.Sprintf("%s: %s: %v", file, cacheType, err), 1, 0, 0); evErr != nil {
					s.logger.Warn("failed to append scan_error event", "error", evErr)
				}
				continue
			}
			analyzedAny = true
			result.IssuesFound += countIssues(payload)
		}
	}

	if analyzedAny {
		repo.LastAnalyzed.Time = time.Now()
		repo.LastAnalyzed.Valid = true
	}
	s.recordBaseline(ctx, repo, headSHA)

	duration := time.Since(start)
	metrics.ScanDuration.WithLabelValues(repo.Path).Observe(duration.Seconds())
	metrics.ScanFilesChanged.WithLabelValues(repo.Path).Add(float64(result.FilesChanged))
	if err := s.appendEvent(ctx, repo.ID, "scan_complete", "info", "scan complete",
		result.FilesChanged, result.IssuesFound, duration); err != nil {
		s.logger.Warn("failed to append scan_complete event", "error", err)
	}

	return result, nil
}

// detectChanges picks the commit-diff path once a repository has a recorded
// last-scanned commit, and falls back to a working-tree status comparison
// for a repository's first scan. It returns the files to analyze and the
// HEAD SHA to record as the new baseline.
func (s *Scanner) detectChanges(ctx context.Context, repo *storage.Repository) ([]string, string, error) {
	if repo.LastScanSHA.Valid {
		return s.detector.ChangedSince(ctx, repo.Path, repo.LastScanSHA.String)
	}

	changed, err := s.detector.Changed(ctx, repo.Path)
	if err != nil {
		return nil, "", err
	}
	headSHA, err := s.detector.Head(ctx, repo.Path)
	if err != nil {
		s.logger.Warn("failed to resolve HEAD, baseline not recorded", "repo", repo.Path, "error", err)
		return changed, "", nil
	}
	return changed, headSHA, nil
}

// recordBaseline persists the scan timestamp and, when resolved, the new
// commit baseline for the next scan's ChangedSince comparison.
func (s *Scanner) recordBaseline(ctx context.Context, repo *storage.Repository, headSHA string) {
	repo.LastScanCheck.Time = time.Now()
	repo.LastScanCheck.Valid = true
	if headSHA != "" {
		repo.LastScanSHA.String = headSHA
		repo.LastScanSHA.Valid = true
	}
	if err := s.store.UpdateRepository(ctx, repo); err != nil {
		s.logger.Error("failed to update repository after scan", "repo", repo.Path, "error", err)
	}
}

func (s *Scanner) appendEvent(ctx context.Context, repoID int64, kind, level, message string, fileCount, issueCount int, duration time.Duration) error {
	ev := &storage.ScanEvent{
		RepositoryID: repoID,
		Kind:         kind,
		Level:        level,
		Message:      message,
	}
	ev.FileCount.Int64, ev.FileCount.Valid = int64(fileCount), true
	ev.IssueCount.Int64, ev.IssueCount.Valid = int64(issueCount), true
	ev.DurationMS.Int64, ev.DurationMS.Valid = duration.Milliseconds(), true
	return s.store.AppendScanEvent(ctx, ev)
}

// countIssues is a best-effort heuristic over the decoded payload shape used
// purely for the scan-event summary; it never fails a scan.
func countIssues(payload []byte) int {
	var probe struct {
		Smells []any `json:"smells"`
		Todos  []any `json:"todos"`
		Issues []any `json:"issues"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0
	}
	return len(probe.Smells) + len(probe.Todos) + len(probe.Issues)
}
