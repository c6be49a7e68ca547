package analysis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/budget"
	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/storagefake"
)

type stubCaller struct {
	calls  int
	result llm.Result
	err    error
}

func (s *stubCaller) Call(_ context.Context, _ llm.Request) (llm.Result, error) {
	s.calls++
	return s.result, s.err
}

func newTestService(t *testing.T, store *storagefake.Store, stub *stubCaller) *Service {
	t.Helper()

	pm, err := llm.NewPromptManager()
	require.NoError(t, err)

	registry := llm.NewRegistry("test-model")
	ledger := budget.New(store, config.BudgetConfig{MonthlyUSD: 100, Timezone: "UTC"}, slog.Default())

	return NewService(store, registry, pm, ledger, stub, "test-config-hash", slog.Default())
}

func writeTestFile(t *testing.T, content string) (repoDir, relPath string) {
	t.Helper()
	dir := t.TempDir()
	rel := "src/lib.rs"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))
	return dir, rel
}

func TestAnalyze_FirstCallRecordsOneCacheRowWithTokensAndAccessCount(t *testing.T) {
	store := storagefake.New()
	stub := &stubCaller{result: llm.Result{
		Text:  `{"smells":[]}`,
		Usage: llm.Usage{InputTokens: 120, OutputTokens: 8},
	}}
	svc := newTestService(t, store, stub)
	repoDir, rel := writeTestFile(t, "fn main(){}")

	payload, err := svc.Analyze(context.Background(), llm.CacheTypeRefactor, repoDir, rel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"smells":[]}`, string(payload))
	assert.Equal(t, 1, stub.calls)

	stats, err := store.CacheStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalEntries)
	assert.EqualValues(t, 128, stats.TotalTokens)
}

func TestAnalyze_SecondCallIsACacheHitAndSkipsTheLLM(t *testing.T) {
	store := storagefake.New()
	stub := &stubCaller{result: llm.Result{
		Text:  `{"smells":["long function"]}`,
		Usage: llm.Usage{InputTokens: 50, OutputTokens: 10},
	}}
	svc := newTestService(t, store, stub)
	repoDir, rel := writeTestFile(t, "fn main(){}")

	first, err := svc.Analyze(context.Background(), llm.CacheTypeTodos, repoDir, rel)
	require.NoError(t, err)

	second, err := svc.Analyze(context.Background(), llm.CacheTypeTodos, repoDir, rel)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls, "second call must be a cache hit")
	assert.JSONEq(t, string(first), string(second))
}

func TestAnalyze_ChangedFileContentProducesANewRowRatherThanOverwriting(t *testing.T) {
	store := storagefake.New()
	stub := &stubCaller{result: llm.Result{Text: `{"todos":[]}`}}
	svc := newTestService(t, store, stub)
	repoDir, rel := writeTestFile(t, "fn main(){}")

	_, err := svc.Analyze(context.Background(), llm.CacheTypeTodos, repoDir, rel)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, rel), []byte("fn main(){ changed(); }"), 0o644))

	_, err = svc.Analyze(context.Background(), llm.CacheTypeTodos, repoDir, rel)
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls)
	stats, err := store.CacheStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalEntries)
}

func TestAnalyze_RefusesWhenBudgetIsExhausted(t *testing.T) {
	store := storagefake.New()
	require.NoError(t, store.RecordSpend(context.Background(), 100, time.Now()))
	stub := &stubCaller{result: llm.Result{Text: `{}`}}
	svc := newTestService(t, store, stub)
	repoDir, rel := writeTestFile(t, "fn main(){}")

	_, err := svc.Analyze(context.Background(), llm.CacheTypeDocs, repoDir, rel)
	require.Error(t, err)
	assert.True(t, core.IsBudgetExceeded(err))
	assert.Equal(t, 0, stub.calls, "must not call the LLM once the budget is exhausted")
}

func TestAnalyze_MalformedLLMResponseIsNotCached(t *testing.T) {
	store := storagefake.New()
	stub := &stubCaller{result: llm.Result{Text: "not json"}}
	svc := newTestService(t, store, stub)
	repoDir, rel := writeTestFile(t, "fn main(){}")

	_, err := svc.Analyze(context.Background(), llm.CacheTypeAnalysis, repoDir, rel)
	require.Error(t, err)

	stats, err := store.CacheStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalEntries)
}

