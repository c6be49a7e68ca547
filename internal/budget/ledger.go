// Package budget implements BudgetLedger: cumulative token and cost
// accounting against a configured monthly ceiling, consulted before every
// paid LLM call.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/metrics"
	"github.com/sevigo/codewarden/internal/storage"
)

// State is the ledger's coarse utilization signal.
type State int

const (
	StateOK State = iota
	StateWarn
	StateExceeded
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateWarn:
		return "warn"
	case StateExceeded:
		return "exceeded"
	default:
		return "unknown"
	}
}

const warnThresholdPercent = 80.0

// Ledger enforces a monthly cost ceiling and surfaces remaining budget. It
// is a process-wide singleton, internally synchronized (spec.md §5).
type Ledger struct {
	store    storage.Store
	cfg      config.BudgetConfig
	location *time.Location
	logger   *slog.Logger

	mu sync.Mutex
}

// New constructs a Ledger against the given store and configuration. The
// configured timezone resolves the month boundary (spec.md §9 open
// question, resolved via configuration); an unrecognized zone falls back to
// UTC and logs a warning.
func New(store storage.Store, cfg config.BudgetConfig, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unrecognized budget.timezone, defaulting to UTC", "configured", cfg.Timezone, "error", err)
		loc = time.UTC
	}
	return &Ledger{store: store, cfg: cfg, location: loc, logger: logger}
}

// Check asks whether a projected call of estimatedCost USD is permissible.
// It rolls the period forward first if the current instant has crossed the
// next month boundary. Returns a *core.BudgetExceededError when refused.
func (l *Ledger) Check(ctx context.Context, cacheType string, estimatedCost float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.currentState(ctx)
	if err != nil {
		return err
	}

	if state.SpendUSD+estimatedCost > l.cfg.MonthlyUSD {
		metrics.BudgetExceededTotal.Inc()
		return &core.BudgetExceededError{
			CacheType:     cacheType,
			EstimatedCost: estimatedCost,
			SpendUSD:      state.SpendUSD,
			MonthlyUSD:    l.cfg.MonthlyUSD,
		}
	}
	return nil
}

// Record reports actual usage after a paid call and adds
// tokens_in*price_in + tokens_out*price_out to the running spend, using the
// model's price table.
func (l *Ledger) Record(ctx context.Context, model string, tokensIn, tokensOut int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	price, err := l.store.GetModelPrice(ctx, model)
	if err != nil {
		l.logger.Warn("no price table entry for model, recording zero cost", "model", model)
		return nil
	}

	cost := float64(tokensIn)/1_000_000*price.InputPerMTok + float64(tokensOut)/1_000_000*price.OutputPerMTok
	periodStart, err := l.currentPeriodStart(ctx)
	if err != nil {
		return err
	}
	if err := l.store.RecordSpend(ctx, cost, periodStart); err != nil {
		return fmt.Errorf("budget: failed to record spend: %w", err)
	}

	if updated, err := l.store.GetBudgetState(ctx); err == nil {
		metrics.BudgetSpendUSD.Set(updated.SpendUSD)
		if l.cfg.MonthlyUSD > 0 {
			metrics.BudgetUtilization.Set(updated.SpendUSD / l.cfg.MonthlyUSD)
		}
	}
	return nil
}

// SeedPrices persists the statically configured per-model price table
// (budget.price.<model> in configuration) into the store's model_prices
// table, so Record can resolve a real cost instead of falling back to zero
// on every call. Intended to run once at startup, after the store is
// available and before the first Analyze call.
func SeedPrices(ctx context.Context, store storage.Store, prices map[string]config.ModelPrice) error {
	for model, price := range prices {
		err := store.SetModelPrice(ctx, &storage.ModelPrice{
			Model:         model,
			InputPerMTok:  price.InputPerMTok,
			OutputPerMTok: price.OutputPerMTok,
		})
		if err != nil {
			return fmt.Errorf("budget: failed to seed price for model %q: %w", model, err)
		}
	}
	return nil
}

// EstimatedState is the projected utilization snapshot returned by Status.
type EstimatedState struct {
	State      State
	SpendUSD   float64
	MonthlyUSD float64
	Utilization float64 // spend / monthly, as a fraction
}

// Status reports the ledger's current state: OK (<80%), Warn (80-100%), or
// Exceeded (>=100%).
func (l *Ledger) Status(ctx context.Context) (EstimatedState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.currentState(ctx)
	if err != nil {
		return EstimatedState{}, err
	}

	var utilization float64
	if l.cfg.MonthlyUSD > 0 {
		utilization = raw.SpendUSD / l.cfg.MonthlyUSD
	}

	state := StateOK
	switch {
	case utilization >= 1.0:
		state = StateExceeded
	case utilization*100 >= warnThresholdPercent:
		state = StateWarn
	}

	return EstimatedState{
		State:       state,
		SpendUSD:    raw.SpendUSD,
		MonthlyUSD:  l.cfg.MonthlyUSD,
		Utilization: utilization,
	}, nil
}

// currentState rolls the budget period forward if necessary and returns the
// (possibly just-reset) persisted state. If no row has ever been written
// (a fresh database, before the first Record), it seeds one against the
// current period rather than failing the read.
func (l *Ledger) currentState(ctx context.Context) (*storage.BudgetState, error) {
	state, err := l.store.GetBudgetState(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		periodStart := startOfMonth(time.Now().In(l.location), l.location)
		if err := l.store.EnsureBudgetState(ctx, l.cfg.MonthlyUSD, periodStart); err != nil {
			return nil, fmt.Errorf("budget: failed to initialize state: %w", err)
		}
		state, err = l.store.GetBudgetState(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("budget: failed to read state: %w", err)
	}

	boundary := nextMonthBoundary(state.PeriodStart, l.location)
	now := time.Now().In(l.location)
	if !now.Before(boundary) {
		newPeriodStart := startOfMonth(now, l.location)
		if err := l.store.ResetBudgetPeriod(ctx, newPeriodStart); err != nil {
			return nil, fmt.Errorf("budget: failed to reset period: %w", err)
		}
		return &storage.BudgetState{MonthlyUSD: l.cfg.MonthlyUSD, SpendUSD: 0, PeriodStart: newPeriodStart}, nil
	}
	return state, nil
}

func (l *Ledger) currentPeriodStart(ctx context.Context) (time.Time, error) {
	state, err := l.currentState(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return state.PeriodStart, nil
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func nextMonthBoundary(periodStart time.Time, loc *time.Location) time.Time {
	local := periodStart.In(loc)
	return startOfMonth(local, loc).AddDate(0, 1, 0)
}
