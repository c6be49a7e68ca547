// Package jobs implements the bounded executor that turns queued
// background tasks into running scans.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sevigo/codewarden/internal/core"
)

// dispatcher implements core.JobDispatcher. It accepts ScanTasks onto a
// buffered queue and runs them with no more than maxConcurrent in flight at
// once, enforced by a weighted semaphore rather than a fixed worker pool, so
// that a burst of forced scans never exceeds the configured cap.
type dispatcher struct {
	scanJob       core.Job
	taskQueue     chan *core.ScanTask
	sem           *semaphore.Weighted
	maxConcurrent int64
	wg            sync.WaitGroup
	dispatchDone  chan struct{}
	logger        *slog.Logger
}

// NewDispatcher initializes a dispatcher bounded to maxConcurrent
// simultaneously running scans. If maxConcurrent is 0 or negative, it
// defaults to 1.
func NewDispatcher(scanJob core.Job, maxConcurrent int, logger *slog.Logger) core.JobDispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &dispatcher{
		scanJob:       scanJob,
		maxConcurrent: int64(maxConcurrent),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		taskQueue:     make(chan *core.ScanTask, 100),
		dispatchDone:  make(chan struct{}),
		logger:        logger,
	}
	go d.run()
	return d
}

// run drains the task queue, acquiring the semaphore before spawning each
// scan so that at no instant do more than maxConcurrent run simultaneously.
func (d *dispatcher) run() {
	defer close(d.dispatchDone)
	for task := range d.taskQueue {
		if err := d.sem.Acquire(context.Background(), 1); err != nil {
			d.logger.Error("failed to acquire scan semaphore", "error", err)
			continue
		}

		d.wg.Add(1)
		go func(task *core.ScanTask) {
			defer d.wg.Done()
			defer d.sem.Release(1)

			d.logger.Info("running scan job", "repo", task.RepoPath, "forced", task.Forced)
			if err := d.scanJob.Run(context.Background(), task); err != nil {
				d.logger.Error("scan job failed", "repo", task.RepoPath, "error", err)
			}
		}(task)
	}
}

// Dispatch queues a ScanTask for processing. Returns an error if the queue
// is full.
func (d *dispatcher) Dispatch(ctx context.Context, task *core.ScanTask) error {
	d.logger.InfoContext(ctx, "queuing scan task", "repo", task.RepoPath)
	select {
	case d.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("scan task queue is full, deferring repo %q to next tick", task.RepoPath)
	}
}

// Stop gracefully shuts down the dispatcher, waiting for all in-flight scans
// to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping scan dispatcher and waiting for jobs to finish")
	close(d.taskQueue)
	<-d.dispatchDone
	d.wg.Wait()
	d.logger.Info("all scan jobs have finished")
}
