// Package scheduler drives all enabled repositories on their configured
// cadence under a global concurrency cap (spec.md §4.10).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/storage"
)

const tickInterval = 1 * time.Minute

// Scheduler runs a single cooperative loop that wakes once per tick,
// queries for due repositories, and submits one Scanner task per repository
// to the bounded dispatcher. It never runs two scans of the same repository
// concurrently: last_scan_check is stamped synchronously at dispatch time,
// before the scan itself (which runs asynchronously in the dispatcher's
// worker pool) has even started, so a repository whose scan outlives a
// single tick is not "due" again until its next configured interval.
type Scheduler struct {
	store      storage.Store
	dispatcher core.JobDispatcher
	logger     *slog.Logger

	tickInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	once         sync.Once
}

func New(store storage.Store, dispatcher core.JobDispatcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		logger:       logger,
		tickInterval: tickInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine; Stop blocks until it
// exits.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	due, err := s.store.ListDueRepositories(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due repositories", "error", err)
		return
	}

	for _, repo := range due {
		task := &core.ScanTask{
			RepositoryID: repo.ID,
			RepoPath:     repo.Path,
			EnqueuedAt:   now,
		}
		if err := s.dispatcher.Dispatch(ctx, task); err != nil {
			s.logger.Warn("deferring repository to next tick", "repo", repo.Path, "error", err)
			continue
		}

		// Stamp last_scan_check now, synchronously, so this repository does
		// not look "due" again to the next tick while its scan is still
		// running in the dispatcher's worker pool.
		repo.LastScanCheck.Time = now
		repo.LastScanCheck.Valid = true
		if err := s.store.UpdateRepository(ctx, repo); err != nil {
			s.logger.Error("failed to stamp last_scan_check at dispatch", "repo", repo.Path, "error", err)
		}
	}
}

// ForceScan marks repoID as due immediately, so the next tick picks it up.
// It never bypasses the dispatcher's semaphore.
func (s *Scheduler) ForceScan(ctx context.Context, repoID int64) error {
	return s.store.ForceScan(ctx, repoID)
}

// Stop signals the tick loop to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	<-s.doneCh
}
