// Package analysis implements the read-through cache path: given a
// cache-type, repository, and file, return a cached artifact or produce one
// by calling the LLM.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sevigo/codewarden/internal/budget"
	"github.com/sevigo/codewarden/internal/cachekey"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/hash"
	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/metrics"
	"github.com/sevigo/codewarden/internal/storage"
)

// caller is the subset of *llm.Caller that Service depends on, narrowed so
// tests can substitute a stub without spinning up an HTTP server.
type caller interface {
	Call(ctx context.Context, req llm.Request) (llm.Result, error)
}

// Service is the read-through cache path shared by the Scanner and any
// direct CLI/HTTP caller. It is safe for concurrent use.
type Service struct {
	store         storage.Store
	contentHasher *hash.ContentHasher
	registry      *llm.Registry
	prompts       *llm.PromptManager
	ledger        *budget.Ledger
	caller        caller
	configHash    string
	logger        *slog.Logger
}

func NewService(
	store storage.Store,
	registry *llm.Registry,
	prompts *llm.PromptManager,
	ledger *budget.Ledger,
	llmCaller caller,
	configHash string,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         store,
		contentHasher: hash.NewContentHasher(),
		registry:      registry,
		prompts:       prompts,
		ledger:        ledger,
		caller:        llmCaller,
		configHash:    configHash,
		logger:        logger,
	}
}

// Analyze runs the ten-step read-through algorithm for a single (cacheType,
// repoPath, filePath) triple, returning the decoded JSON payload.
func (s *Service) Analyze(ctx context.Context, cacheType llm.CacheType, repoPath, filePath string) (json.RawMessage, error) {
	typeCfg, err := s.registry.Lookup(cacheType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalid, err)
	}

	absPath := filepath.Join(repoPath, filePath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrInvalid, absPath, err)
	}
	fileHash := s.contentHasher.Hash(content)

	model := typeCfg.DefaultModel
	promptHash := s.contentHasher.HashString(string(typeCfg.PromptKey))

	key, err := cachekey.Compute(cachekey.Components{
		FileHash:      fileHash,
		Model:         model,
		PromptHash:    promptHash,
		SchemaVersion: typeCfg.SchemaVersion,
		ConfigHash:    s.configHash,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: computing cache key: %v", core.ErrInvalid, err)
	}

	if entry, err := s.store.GetCacheEntry(ctx, key); err == nil {
		metrics.CacheHitsTotal.WithLabelValues(string(cacheType)).Inc()
		return json.RawMessage(entry.Payload), nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	metrics.CacheMissesTotal.WithLabelValues(string(cacheType)).Inc()

	if err := s.ledger.Check(ctx, string(cacheType), estimateCost(typeCfg)); err != nil {
		return nil, err
	}

	prompt, err := s.prompts.Render(typeCfg.PromptKey, llm.DefaultProvider, llm.PromptData{
		FilePath: filePath,
		Content:  string(content),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rendering prompt: %v", core.ErrInvalid, err)
	}

	callStart := time.Now()
	result, err := s.caller.Call(ctx, llm.Request{
		Model:        model,
		SystemPrompt: fmt.Sprintf("You are the %s analysis assistant.", cacheType),
		UserPrompt:   prompt,
	})
	metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(callStart).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
		return nil, err
	}

	payload, err := validatePayload(result.Text)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(model, "success").Inc()

	tokensUsed := result.Usage.InputTokens + result.Usage.OutputTokens
	entry := &storage.CacheEntry{
		CacheKey:      key,
		CacheType:     string(cacheType),
		RepoPath:      repoPath,
		FilePath:      filePath,
		FileHash:      fileHash,
		Provider:      model,
		Model:         model,
		PromptHash:    promptHash,
		SchemaVersion: typeCfg.SchemaVersion,
		ConfigHash:    s.configHash,
		Payload:       payload,
		FileSize:      int64(len(content)),
	}
	entry.TokensUsed.Int64 = tokensUsed
	entry.TokensUsed.Valid = true

	if err := s.store.SetCacheEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("writing cache entry: %w", err)
	}

	if err := s.ledger.Record(ctx, model, result.Usage.InputTokens, result.Usage.OutputTokens); err != nil {
		s.logger.Warn("failed to record spend", "error", err, "model", model)
	}

	return payload, nil
}

func estimateCost(typeCfg llm.TypeConfig) float64 {
	// Per-call estimate: the nominal token count at a flat assumed price of
	// 3 USD per million tokens. The model price table is not consulted here;
	// the actual spend is recorded from the reported usage after the call.
	const assumedPerMTokUSD = 3.0
	return float64(typeCfg.NominalTokens) / 1_000_000 * assumedPerMTokUSD
}

func validatePayload(text string) (json.RawMessage, error) {
	trimmed := []byte(text)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty LLM response")
	}
	var probe any
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return json.RawMessage(trimmed), nil
}
