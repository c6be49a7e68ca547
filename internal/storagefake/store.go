// Package storagefake provides an in-memory storage.Store used by unit
// tests across the module, standing in for the Postgres-backed store
// without requiring a live database.
package storagefake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/storage"
)

// Store is a goroutine-safe, in-memory implementation of storage.Store.
type Store struct {
	mu sync.Mutex

	entries  map[string]*storage.CacheEntry
	hits     int64
	misses   int64
	repos    map[int64]*storage.Repository
	nextRepo int64
	budget   *storage.BudgetState
	prices   map[string]*storage.ModelPrice
	queue    map[uuid.UUID]*storage.QueueItem
	events   []*storage.ScanEvent
	nextEvt  int64
}

// New returns an empty fake store.
func New() *Store {
	return &Store{
		entries: make(map[string]*storage.CacheEntry),
		repos:   make(map[int64]*storage.Repository),
		prices:  make(map[string]*storage.ModelPrice),
		queue:   make(map[uuid.UUID]*storage.QueueItem),
		budget:  &storage.BudgetState{PeriodStart: time.Now()},
	}
}

func (s *Store) GetCacheEntry(_ context.Context, cacheKey string) (*storage.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[cacheKey]
	if !ok {
		s.misses++
		return nil, core.ErrNotFound
	}
	s.hits++
	e.AccessCount++
	e.LastAccessed = time.Now()
	copyEntry := *e
	return &copyEntry, nil
}

func (s *Store) SetCacheEntry(_ context.Context, entry *storage.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[entry.CacheKey]
	stored := *entry
	if ok {
		stored.AccessCount = existing.AccessCount
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = time.Now()
		stored.AccessCount = 1
	}
	stored.LastAccessed = time.Now()
	s.entries[entry.CacheKey] = &stored
	return nil
}

func (s *Store) CacheStats(_ context.Context) (*storage.CacheStatsReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &storage.CacheStatsReport{
		CacheStats:     storage.CacheStats{Hits: s.hits, Misses: s.misses},
		EntriesPerType: map[string]int64{},
	}
	for _, e := range s.entries {
		report.EntriesPerType[e.CacheType]++
		report.TotalEntries++
		if e.TokensUsed.Valid {
			report.TotalTokens += e.TokensUsed.Int64
		}
	}
	return report, nil
}

func (s *Store) ClearCache(_ context.Context, cacheType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for k, e := range s.entries {
		if cacheType == "" || e.CacheType == cacheType {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) PruneCache(_ context.Context, policy storage.PrunePolicy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, e := range s.entries {
		total += int64(len(e.Payload))
	}
	var removed int64
	for total > policy.TargetBytes && len(s.entries) > 0 {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, e := range s.entries {
			cmp := e.CreatedAt
			if policy.Strategy == storage.StrategyLRU {
				cmp = e.LastAccessed
			}
			if first || cmp.Before(oldestTime) {
				oldestKey, oldestTime, first = k, cmp, false
			}
		}
		total -= int64(len(s.entries[oldestKey].Payload))
		delete(s.entries, oldestKey)
		removed++
	}
	return removed, nil
}

func (s *Store) CreateRepository(_ context.Context, repo *storage.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRepo++
	repo.ID = s.nextRepo
	repo.CreatedAt = time.Now()
	repo.UpdatedAt = time.Now()
	cp := *repo
	s.repos[repo.ID] = &cp
	return nil
}

func (s *Store) GetRepositoryByPath(_ context.Context, path string) (*storage.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.repos {
		if r.Path == path {
			cp := *r
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetRepositoryByID(_ context.Context, id int64) (*storage.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.repos[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRepositories(_ context.Context) ([]*storage.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.Repository
	for _, r := range s.repos {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListDueRepositories(_ context.Context, now time.Time) ([]*storage.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.Repository
	for _, r := range s.repos {
		if !r.AutoScanEnabled || r.Status != "active" {
			continue
		}
		due := !r.LastScanCheck.Valid ||
			now.Sub(r.LastScanCheck.Time) >= time.Duration(r.ScanIntervalMinutes)*time.Minute
		if due {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateRepository(_ context.Context, repo *storage.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[repo.ID]; !ok {
		return core.ErrNotFound
	}
	repo.UpdatedAt = time.Now()
	cp := *repo
	s.repos[repo.ID] = &cp
	return nil
}

func (s *Store) ForceScan(_ context.Context, repoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.repos[repoID]
	if !ok {
		return core.ErrNotFound
	}
	r.LastScanCheck.Valid = false
	return nil
}

// ClearBudgetState drops the seeded budget row, so tests can exercise the
// not-yet-initialized path the real store starts in before the first
// EnsureBudgetState/RecordSpend call.
func (s *Store) ClearBudgetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = nil
}

func (s *Store) GetBudgetState(_ context.Context) (*storage.BudgetState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		return nil, core.ErrNotFound
	}
	cp := *s.budget
	return &cp, nil
}

func (s *Store) EnsureBudgetState(_ context.Context, monthlyUSD float64, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		s.budget = &storage.BudgetState{MonthlyUSD: monthlyUSD, PeriodStart: periodStart}
	}
	return nil
}

func (s *Store) RecordSpend(_ context.Context, amountUSD float64, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		s.budget = &storage.BudgetState{PeriodStart: periodStart}
	}
	s.budget.SpendUSD += amountUSD
	s.budget.PeriodStart = periodStart
	return nil
}

func (s *Store) ResetBudgetPeriod(_ context.Context, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		s.budget = &storage.BudgetState{}
	}
	s.budget.SpendUSD = 0
	s.budget.PeriodStart = periodStart
	return nil
}

func (s *Store) GetModelPrice(_ context.Context, model string) (*storage.ModelPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prices[model]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) SetModelPrice(_ context.Context, price *storage.ModelPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *price
	s.prices[price.Model] = &cp
	return nil
}

func (s *Store) AddQueueItem(_ context.Context, item *storage.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Stage == "" {
		item.Stage = "inbox"
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	cp := *item
	s.queue[item.ID] = &cp
	return nil
}

func (s *Store) ListQueueItems(_ context.Context, filter storage.QueueFilter) ([]*storage.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.QueueItem
	for _, it := range s.queue {
		if filter.Stage != "" && it.Stage != filter.Stage {
			continue
		}
		if filter.RepoPath != "" && (!it.RepoPath.Valid || it.RepoPath.String != filter.RepoPath) {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) AdvanceQueueItem(_ context.Context, id uuid.UUID, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.queue[id]
	if !ok {
		return core.ErrNotFound
	}
	it.Stage = stage
	it.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteQueueItem(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.queue, id)
	return nil
}

func (s *Store) AppendScanEvent(_ context.Context, ev *storage.ScanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEvt++
	ev.ID = s.nextEvt
	ev.CreatedAt = time.Now()
	cp := *ev
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) ListScanEvents(_ context.Context, repoID int64, limit int) ([]*storage.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.ScanEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].RepositoryID == repoID {
			cp := *s.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
