// Package storage implements CacheStore: durable, concurrent-safe storage
// of cache entries, repository metadata, the work queue, and the
// scan-event log, backed by Postgres through sqlx.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sevigo/codewarden/internal/core"
)

// ErrNotFound is returned when a requested record is not found in the
// database. AnalysisService treats a cache-entry ErrNotFound as a miss.
var ErrNotFound = core.ErrNotFound

// Repository represents a tracked working directory (spec.md §3).
type Repository struct {
	ID                  int64          `db:"id"`
	Path                string         `db:"path"`
	PathHash            string         `db:"path_hash"`
	Name                string         `db:"name"`
	Status              string         `db:"status"`
	AutoScanEnabled     bool           `db:"auto_scan_enabled"`
	ScanIntervalMinutes int            `db:"scan_interval_minutes"`
	LastScanCheck       sql.NullTime   `db:"last_scan_check"`
	LastAnalyzed        sql.NullTime   `db:"last_analyzed"`
	LastScanSHA         sql.NullString `db:"last_scan_sha"`
	Metadata            []byte         `db:"metadata"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// CacheEntry is the unit of stored LLM output (spec.md §3).
type CacheEntry struct {
	CacheKey      string    `db:"cache_key"`
	CacheType     string    `db:"cache_type"`
	RepoPath      string    `db:"repo_path"`
	FilePath      string    `db:"file_path"`
	FileHash      string    `db:"file_hash"`
	Provider      string    `db:"provider"`
	Model         string    `db:"model"`
	PromptHash    string    `db:"prompt_hash"`
	SchemaVersion int       `db:"schema_version"`
	ConfigHash    string    `db:"config_hash"`
	Payload       []byte    `db:"payload"` // gzip-compressed JSON on disk; decompressed before being handed back
	TokensUsed    sql.NullInt64 `db:"tokens_used"`
	FileSize      int64     `db:"file_size"`
	CreatedAt     time.Time `db:"created_at"`
	LastAccessed  time.Time `db:"last_accessed"`
	AccessCount   int       `db:"access_count"`
}

// CacheStats is the singleton cumulative hit/miss counter row.
type CacheStats struct {
	Hits      int64     `db:"hits"`
	Misses    int64     `db:"misses"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CacheStatsReport is the richer stats()-operation result from spec.md §4.3:
// per-type counts, total entries, total tokens, estimated cost, alongside
// the raw hit/miss counters.
type CacheStatsReport struct {
	CacheStats
	TotalEntries   int64
	TotalTokens    int64
	EstimatedCost  float64
	EntriesPerType map[string]int64
}

// BudgetState is the singleton budget-ledger row.
type BudgetState struct {
	MonthlyUSD  float64   `db:"monthly_usd"`
	SpendUSD    float64   `db:"spend_usd"`
	PeriodStart time.Time `db:"period_start"`
}

// ModelPrice is a row of the model_prices side table.
type ModelPrice struct {
	Model         string  `db:"model"`
	InputPerMTok  float64 `db:"input_per_mtok"`
	OutputPerMTok float64 `db:"output_per_mtok"`
}

// QueueItem is a persistent, priority-ordered work item (spec.md §3).
type QueueItem struct {
	ID        uuid.UUID      `db:"id"`
	Title     string         `db:"title"`
	Body      string         `db:"body"`
	Source    string         `db:"source"`
	Priority  int            `db:"priority"`
	Stage     string         `db:"stage"`
	RepoPath  sql.NullString `db:"repo_path"`
	FilePath  sql.NullString `db:"file_path"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// ScanEvent is an append-only scan-event-log row (spec.md §3).
type ScanEvent struct {
	ID           int64         `db:"id"`
	RepositoryID int64         `db:"repository_id"`
	Kind         string        `db:"kind"`
	Level        string        `db:"level"`
	Message      string        `db:"message"`
	FileCount    sql.NullInt64 `db:"file_count"`
	IssueCount   sql.NullInt64 `db:"issue_count"`
	DurationMS   sql.NullInt64 `db:"duration_ms"`
	CreatedAt    time.Time     `db:"created_at"`
}

// PrunePolicy selects which rows CacheStore.Prune removes first when the
// store is over its size cap.
type PrunePolicy struct {
	// Strategy is one of "oldest" (created_at ascending), "lru"
	// (last_accessed ascending), or "cheapest" (tokens_used ascending,
	// nulls last).
	Strategy string
	// TargetBytes is the low-water mark the store prunes down to.
	TargetBytes int64
}

const (
	StrategyOldest   = "oldest"
	StrategyLRU      = "lru"
	StrategyCheapest = "cheapest"
)

// QueueFilter narrows List to a stage and/or repository.
type QueueFilter struct {
	Stage    string
	RepoPath string
}

// Store defines the interface for all database operations backing
// CacheStore, the Repository table, Queue, and the scan-event log.
type Store interface {
	// Cache entries
	GetCacheEntry(ctx context.Context, cacheKey string) (*CacheEntry, error)
	SetCacheEntry(ctx context.Context, entry *CacheEntry) error
	CacheStats(ctx context.Context) (*CacheStatsReport, error)
	ClearCache(ctx context.Context, cacheType string) (int64, error)
	PruneCache(ctx context.Context, policy PrunePolicy) (int64, error)

	// Repositories
	CreateRepository(ctx context.Context, repo *Repository) error
	GetRepositoryByPath(ctx context.Context, path string) (*Repository, error)
	GetRepositoryByID(ctx context.Context, id int64) (*Repository, error)
	ListRepositories(ctx context.Context) ([]*Repository, error)
	ListDueRepositories(ctx context.Context, now time.Time) ([]*Repository, error)
	UpdateRepository(ctx context.Context, repo *Repository) error
	ForceScan(ctx context.Context, repoID int64) error

	// Budget
	GetBudgetState(ctx context.Context) (*BudgetState, error)
	EnsureBudgetState(ctx context.Context, monthlyUSD float64, periodStart time.Time) error
	RecordSpend(ctx context.Context, amountUSD float64, periodStart time.Time) error
	ResetBudgetPeriod(ctx context.Context, periodStart time.Time) error
	GetModelPrice(ctx context.Context, model string) (*ModelPrice, error)
	SetModelPrice(ctx context.Context, price *ModelPrice) error

	// Queue
	AddQueueItem(ctx context.Context, item *QueueItem) error
	ListQueueItems(ctx context.Context, filter QueueFilter) ([]*QueueItem, error)
	AdvanceQueueItem(ctx context.Context, id uuid.UUID, stage string) error
	DeleteQueueItem(ctx context.Context, id uuid.UUID) error

	// Scan events
	AppendScanEvent(ctx context.Context, ev *ScanEvent) error
	ListScanEvents(ctx context.Context, repoID int64, limit int) ([]*ScanEvent, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// GetCacheEntry looks up a cache row by its composite key. On a hit it
// atomically increments access_count and bumps last_accessed in the same
// statement so concurrent hits cannot lose updates (spec.md §4.3
// concurrency contract), then increments the cumulative hits counter. A
// miss increments the cumulative misses counter and returns ErrNotFound.
func (s *postgresStore) GetCacheEntry(ctx context.Context, cacheKey string) (*CacheEntry, error) {
	query := `
		UPDATE cache_entries
		SET access_count = access_count + 1, last_accessed = NOW()
		WHERE cache_key = $1
		RETURNING cache_key, cache_type, repo_path, file_path, file_hash, provider,
			model, prompt_hash, schema_version, config_hash, payload, tokens_used,
			file_size, created_at, last_accessed, access_count`

	var entry CacheEntry
	err := s.db.GetContext(ctx, &entry, query, cacheKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if bumpErr := s.bumpStats(ctx, 0, 1); bumpErr != nil {
				slog.ErrorContext(ctx, "failed to record cache miss", "error", bumpErr)
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry %s: %w", cacheKey, err)
	}

	decoded, err := decompressPayload(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cache entry %s: %w", cacheKey, err)
	}
	entry.Payload = decoded

	if err := s.bumpStats(ctx, 1, 0); err != nil {
		slog.ErrorContext(ctx, "failed to record cache hit", "error", err)
	}
	return &entry, nil
}

// SetCacheEntry persists a new cache row, or is a no-op overwrite if the
// composite key already exists: payload and tokens_used are refreshed but
// access_count is left untouched, matching the idempotence contract of
// spec.md §4.3/§8.
func (s *postgresStore) SetCacheEntry(ctx context.Context, entry *CacheEntry) error {
	compressed, err := compressPayload(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to compress payload for %s: %w", entry.CacheKey, err)
	}

	query := `
		INSERT INTO cache_entries (
			cache_key, cache_type, repo_path, file_path, file_hash, provider,
			model, prompt_hash, schema_version, config_hash, payload, tokens_used, file_size
		) VALUES (
			:cache_key, :cache_type, :repo_path, :file_path, :file_hash, :provider,
			:model, :prompt_hash, :schema_version, :config_hash, :payload, :tokens_used, :file_size
		)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			tokens_used = EXCLUDED.tokens_used,
			last_accessed = NOW()`

	row := *entry
	row.Payload = compressed

	_, err = s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			slog.ErrorContext(ctx, "postgres error during set cache entry", "code", pqErr.Code, "message", pqErr.Message)
		}
		return fmt.Errorf("failed to set cache entry %s: %w", entry.CacheKey, err)
	}
	return nil
}

func (s *postgresStore) bumpStats(ctx context.Context, hits, misses int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_stats SET hits = hits + $1, misses = misses + $2, updated_at = NOW() WHERE id = 1`,
		hits, misses)
	return err
}

// CacheStats returns the stats() operation result from spec.md §4.3: raw
// hit/miss counters plus per-type counts, total entries, total tokens, and
// an estimated cost derived from the model price table.
func (s *postgresStore) CacheStats(ctx context.Context) (*CacheStatsReport, error) {
	var raw CacheStats
	if err := s.db.GetContext(ctx, &raw, `SELECT hits, misses, updated_at FROM cache_stats WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("failed to read cache_stats: %w", err)
	}

	report := &CacheStatsReport{CacheStats: raw, EntriesPerType: map[string]int64{}}

	type typeCount struct {
		CacheType string `db:"cache_type"`
		Count     int64  `db:"count"`
	}
	var counts []typeCount
	if err := s.db.SelectContext(ctx, &counts,
		`SELECT cache_type, COUNT(*) AS count FROM cache_entries GROUP BY cache_type`); err != nil {
		return nil, fmt.Errorf("failed to aggregate cache entries by type: %w", err)
	}
	for _, c := range counts {
		report.EntriesPerType[c.CacheType] = c.Count
		report.TotalEntries += c.Count
	}

	var totals struct {
		TotalTokens   sql.NullInt64   `db:"total_tokens"`
		EstimatedCost sql.NullFloat64 `db:"estimated_cost"`
	}
	err := s.db.GetContext(ctx, &totals, `
		SELECT
			COALESCE(SUM(ce.tokens_used), 0) AS total_tokens,
			COALESCE(SUM(ce.tokens_used * mp.input_per_mtok / 1000000.0), 0) AS estimated_cost
		FROM cache_entries ce
		LEFT JOIN model_prices mp ON mp.model = ce.model`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate token usage: %w", err)
	}
	report.TotalTokens = totals.TotalTokens.Int64
	report.EstimatedCost = totals.EstimatedCost.Float64

	return report, nil
}

// ClearCache removes rows, optionally filtered by cache-type, and returns
// the number of rows removed.
func (s *postgresStore) ClearCache(ctx context.Context, cacheType string) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if cacheType == "" {
		result, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		result, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_type = $1`, cacheType)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache entries: %w", err)
	}
	return result.RowsAffected()
}

// PruneCache removes rows per policy.Strategy until the total payload size
// falls to policy.TargetBytes, and returns the number of rows removed.
func (s *postgresStore) PruneCache(ctx context.Context, policy PrunePolicy) (int64, error) {
	orderBy := "created_at ASC"
	switch policy.Strategy {
	case StrategyLRU:
		orderBy = "last_accessed ASC"
	case StrategyCheapest:
		orderBy = "tokens_used ASC NULLS LAST, created_at ASC"
	case StrategyOldest, "":
		orderBy = "created_at ASC"
	}

	var totalBytes int64
	if err := s.db.GetContext(ctx, &totalBytes,
		`SELECT COALESCE(SUM(pg_column_size(payload)), 0) FROM cache_entries`); err != nil {
		return 0, fmt.Errorf("failed to compute current cache size: %w", err)
	}
	if totalBytes <= policy.TargetBytes {
		return 0, nil
	}

	type candidate struct {
		CacheKey string `db:"cache_key"`
		Size     int64  `db:"size"`
	}
	var rows []candidate
	query := fmt.Sprintf(
		`SELECT cache_key, pg_column_size(payload) AS size FROM cache_entries ORDER BY %s`, orderBy)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return 0, fmt.Errorf("failed to list prune candidates: %w", err)
	}

	var toDelete []string
	for _, r := range rows {
		if totalBytes <= policy.TargetBytes {
			break
		}
		toDelete = append(toDelete, r.CacheKey)
		totalBytes -= r.Size
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	delQuery, args, err := sqlx.In(`DELETE FROM cache_entries WHERE cache_key IN (?)`, toDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to build prune delete query: %w", err)
	}
	delQuery = s.db.Rebind(delQuery)
	result, err := s.db.ExecContext(ctx, delQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache entries: %w", err)
	}
	return result.RowsAffected()
}

// CreateRepository inserts a new repository row.
func (s *postgresStore) CreateRepository(ctx context.Context, repo *Repository) error {
	query := `
		INSERT INTO repositories (path, path_hash, name, status, auto_scan_enabled, scan_interval_minutes, metadata)
		VALUES (:path, :path_hash, :name, :status, :auto_scan_enabled, :scan_interval_minutes, :metadata)
		RETURNING id, created_at, updated_at`
	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for creating repository: %w", err)
	}
	defer stmt.Close()
	return stmt.QueryRowContext(ctx, repo).Scan(&repo.ID, &repo.CreatedAt, &repo.UpdatedAt)
}

// GetRepositoryByPath retrieves a repository by its canonical path.
func (s *postgresStore) GetRepositoryByPath(ctx context.Context, path string) (*Repository, error) {
	var repo Repository
	err := s.db.GetContext(ctx, &repo, `SELECT * FROM repositories WHERE path = $1`, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get repository by path %s: %w", path, err)
	}
	return &repo, nil
}

// GetRepositoryByID retrieves a repository by its numeric id.
func (s *postgresStore) GetRepositoryByID(ctx context.Context, id int64) (*Repository, error) {
	var repo Repository
	err := s.db.GetContext(ctx, &repo, `SELECT * FROM repositories WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get repository %d: %w", id, err)
	}
	return &repo, nil
}

// ListRepositories returns every tracked repository.
func (s *postgresStore) ListRepositories(ctx context.Context) ([]*Repository, error) {
	var repos []*Repository
	if err := s.db.SelectContext(ctx, &repos, `SELECT * FROM repositories ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repos, nil
}

// ListDueRepositories returns repositories with auto-scan enabled whose
// interval has elapsed, per the Scheduler's tick query (spec.md §4.10).
func (s *postgresStore) ListDueRepositories(ctx context.Context, now time.Time) ([]*Repository, error) {
	query := `
		SELECT * FROM repositories
		WHERE status = 'active'
		  AND auto_scan_enabled = TRUE
		  AND (last_scan_check IS NULL OR $1 - last_scan_check >= (scan_interval_minutes || ' minutes')::interval)
		ORDER BY last_scan_check ASC NULLS FIRST`
	var repos []*Repository
	if err := s.db.SelectContext(ctx, &repos, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due repositories: %w", err)
	}
	return repos, nil
}

// UpdateRepository persists mutable repository fields (scan bookkeeping,
// status, metadata).
func (s *postgresStore) UpdateRepository(ctx context.Context, repo *Repository) error {
	query := `
		UPDATE repositories SET
			name = :name,
			status = :status,
			auto_scan_enabled = :auto_scan_enabled,
			scan_interval_minutes = :scan_interval_minutes,
			last_scan_check = :last_scan_check,
			last_analyzed = :last_analyzed,
			last_scan_sha = :last_scan_sha,
			metadata = :metadata,
			updated_at = NOW()
		WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, query, repo)
	if err != nil {
		return fmt.Errorf("failed to update repository %q: %w", repo.Path, err)
	}
	return nil
}

// ForceScan clears last_scan_check so the next scheduler tick picks the
// repository up immediately, without bypassing the concurrency semaphore.
func (s *postgresStore) ForceScan(ctx context.Context, repoID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET last_scan_check = NULL, updated_at = NOW() WHERE id = $1`, repoID)
	if err != nil {
		return fmt.Errorf("failed to force scan for repository %d: %w", repoID, err)
	}
	return nil
}

// GetBudgetState returns the singleton budget row.
func (s *postgresStore) GetBudgetState(ctx context.Context) (*BudgetState, error) {
	var state BudgetState
	err := s.db.GetContext(ctx, &state, `SELECT monthly_usd, spend_usd, period_start FROM budget_state WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get budget state: %w", err)
	}
	return &state, nil
}

// EnsureBudgetState seeds the singleton budget row if it does not already
// exist, so a fresh database has something for Check/Record to read before
// any spend has ever been recorded.
func (s *postgresStore) EnsureBudgetState(ctx context.Context, monthlyUSD float64, periodStart time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_state (id, monthly_usd, spend_usd, period_start)
		VALUES (1, $1, 0, $2)
		ON CONFLICT (id) DO NOTHING`, monthlyUSD, periodStart)
	if err != nil {
		return fmt.Errorf("failed to seed budget state: %w", err)
	}
	return nil
}

// RecordSpend adds amountUSD to the running spend, establishing the row on
// first use.
func (s *postgresStore) RecordSpend(ctx context.Context, amountUSD float64, periodStart time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_state (id, monthly_usd, spend_usd, period_start)
		VALUES (1, 0, $1, $2)
		ON CONFLICT (id) DO UPDATE SET spend_usd = budget_state.spend_usd + EXCLUDED.spend_usd`,
		amountUSD, periodStart)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	return nil
}

// ResetBudgetPeriod zeroes spend and advances period_start when the current
// instant crosses a month boundary.
func (s *postgresStore) ResetBudgetPeriod(ctx context.Context, periodStart time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE budget_state SET spend_usd = 0, period_start = $1 WHERE id = 1`, periodStart)
	if err != nil {
		return fmt.Errorf("failed to reset budget period: %w", err)
	}
	return nil
}

// GetModelPrice looks up the configured per-million-token price for model.
func (s *postgresStore) GetModelPrice(ctx context.Context, model string) (*ModelPrice, error) {
	var price ModelPrice
	err := s.db.GetContext(ctx, &price, `SELECT * FROM model_prices WHERE model = $1`, model)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get model price for %s: %w", model, err)
	}
	return &price, nil
}

// SetModelPrice upserts the price table entry for a model.
func (s *postgresStore) SetModelPrice(ctx context.Context, price *ModelPrice) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO model_prices (model, input_per_mtok, output_per_mtok)
		VALUES (:model, :input_per_mtok, :output_per_mtok)
		ON CONFLICT (model) DO UPDATE SET
			input_per_mtok = EXCLUDED.input_per_mtok,
			output_per_mtok = EXCLUDED.output_per_mtok`, price)
	if err != nil {
		return fmt.Errorf("failed to set model price for %s: %w", price.Model, err)
	}
	return nil
}

// AddQueueItem inserts a new work item at the given stage, or at "inbox"
// when item.Stage is empty.
func (s *postgresStore) AddQueueItem(ctx context.Context, item *QueueItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Stage == "" {
		item.Stage = "inbox"
	}
	query := `
		INSERT INTO queue_items (id, title, body, source, priority, stage, repo_path, file_path)
		VALUES (:id, :title, :body, :source, :priority, :stage, :repo_path, :file_path)
		RETURNING created_at, updated_at`
	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for adding queue item: %w", err)
	}
	defer stmt.Close()
	return stmt.QueryRowContext(ctx, item).Scan(&item.CreatedAt, &item.UpdatedAt)
}

// ListQueueItems returns work items ordered priority ASC, created_at ASC,
// optionally narrowed by stage and/or repository.
func (s *postgresStore) ListQueueItems(ctx context.Context, filter QueueFilter) ([]*QueueItem, error) {
	query := `SELECT * FROM queue_items WHERE TRUE`
	var args []any
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		query += fmt.Sprintf(" AND stage = $%d", len(args))
	}
	if filter.RepoPath != "" {
		args = append(args, filter.RepoPath)
		query += fmt.Sprintf(" AND repo_path = $%d", len(args))
	}
	query += " ORDER BY priority ASC, created_at ASC"

	var items []*QueueItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	return items, nil
}

// AdvanceQueueItem moves a work item to a new stage. The store persists any
// stage it is given; neither it nor Queue.Advance checks the
// inbox -> pending -> processing -> {completed, failed} progression, so a
// backward or unknown stage is accepted.
func (s *postgresStore) AdvanceQueueItem(ctx context.Context, id uuid.UUID, stage string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET stage = $1, updated_at = NOW() WHERE id = $2`, stage, id)
	if err != nil {
		return fmt.Errorf("failed to advance queue item %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQueueItem removes a work item.
func (s *postgresStore) DeleteQueueItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item %s: %w", id, err)
	}
	return nil
}

// AppendScanEvent writes an immutable scan-event-log row.
func (s *postgresStore) AppendScanEvent(ctx context.Context, ev *ScanEvent) error {
	query := `
		INSERT INTO scan_events (repository_id, kind, level, message, file_count, issue_count, duration_ms)
		VALUES (:repository_id, :kind, :level, :message, :file_count, :issue_count, :duration_ms)
		RETURNING id, created_at`
	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for appending scan event: %w", err)
	}
	defer stmt.Close()
	return stmt.QueryRowContext(ctx, ev).Scan(&ev.ID, &ev.CreatedAt)
}

// ListScanEvents returns the most recent scan events for a repository.
func (s *postgresStore) ListScanEvents(ctx context.Context, repoID int64, limit int) ([]*ScanEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []*ScanEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM scan_events WHERE repository_id = $1 ORDER BY created_at DESC LIMIT $2`, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan events for repo %d: %w", repoID, err)
	}
	return events, nil
}
