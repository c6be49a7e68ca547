// Package core defines the essential interfaces, data structures, and error
// kinds that form the backbone of the application. These components are
// designed to be abstract, allowing for flexible and decoupled
// implementations of the application's logic.
package core

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. AnalysisService, Scanner and Scheduler classify
// failures against these rather than inspecting driver-specific errors.
var (
	// ErrNotFound is returned by CacheStore.Get when no row matches the
	// requested composite key. Handled locally as a cache miss; never
	// propagated to a user.
	ErrNotFound = errors.New("cache: no entry for key")

	// ErrTransient marks a failure that may succeed on retry (network
	// errors, HTTP 429/5xx, timeouts). Retried inside LLMCaller; once the
	// retry policy is exhausted it is wrapped as ErrUpstream.
	ErrTransient = errors.New("llm: transient failure")

	// ErrUpstream marks a permanent or retry-exhausted external-service
	// failure. Surfaced to the caller and recorded at level error in the
	// scan-event log; does not abort a scan or scheduler tick.
	ErrUpstream = errors.New("llm: upstream failure")

	// ErrInvalid marks a file that could not be read, a path that could not
	// be canonicalized, or a response that failed to parse. Logged and
	// skipped at the file level; never crashes the scanner.
	ErrInvalid = errors.New("invalid input")

	// ErrConflict marks a schema-version mismatch detected at store open.
	// Fatal at startup; the process refuses to serve.
	ErrConflict = errors.New("schema version conflict")
)

// BudgetExceededError is returned when the budget ledger refuses a call. It
// carries the attempted and allowed cost so a caller can report both.
type BudgetExceededError struct {
	CacheType     string
	EstimatedCost float64
	SpendUSD      float64
	MonthlyUSD    float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %.4f spent of %.2f monthly ceiling, projected +%.4f for %s",
		e.SpendUSD, e.MonthlyUSD, e.EstimatedCost, e.CacheType)
}

// IsBudgetExceeded reports whether err is (or wraps) a *BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var target *BudgetExceededError
	return errors.As(err, &target)
}
