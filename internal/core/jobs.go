package core

import (
	"context"
	"time"
)

// ScanTask describes one repository's turn at the scanner, as submitted by
// the Scheduler to the bounded executor. It carries only the identifiers a
// Job needs to run; the Job implementation owns resolving the repository
// row, invoking ChangeDetector, and driving AnalysisService.
type ScanTask struct {
	RepositoryID int64
	RepoPath     string
	// Forced marks a task as an out-of-cadence scan. The Scheduler never
	// sets it: Scheduler.ForceScan only clears last_scan_check, and the
	// repository is then dispatched by the next tick like any due one.
	Forced bool
	// EnqueuedAt records when the Scheduler handed the task to the
	// dispatcher, used for scheduler-cadence diagnostics.
	EnqueuedAt time.Time
}

// JobDispatcher accepts ScanTasks and queues them for asynchronous
// processing. This interface decouples the task source (the Scheduler's
// tick loop or a forced scan request) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch queues a ScanTask for processing. It returns an error if the
	// task cannot be queued, for example if the queue is full, providing a
	// mechanism for backpressure.
	Dispatch(ctx context.Context, task *ScanTask) error
	// Stop gracefully shuts down the dispatcher, waiting for in-flight jobs
	// to finish.
	Stop()
}

// Job represents a single, executable unit of work that can be processed by
// the application's job dispatcher. Each job is triggered by a ScanTask and
// performs a repository scan.
type Job interface {
	// Run executes the job's logic. It receives a context for managing its
	// lifecycle and a ScanTask describing which repository to scan.
	Run(ctx context.Context, task *ScanTask) error
}
