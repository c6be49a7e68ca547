package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/llm"
	"github.com/sevigo/codewarden/internal/storage"
	"github.com/sevigo/codewarden/internal/storagefake"
)

type stubDetector struct {
	files        []string
	err          error
	head         string
	headErr      error
	sinceFiles   []string
	sinceErr     error
	sinceCalls   []string
}

func (d *stubDetector) Changed(_ context.Context, _ string) ([]string, error) {
	return d.files, d.err
}

func (d *stubDetector) Head(_ context.Context, _ string) (string, error) {
	return d.head, d.headErr
}

func (d *stubDetector) ChangedSince(_ context.Context, _, sinceSHA string) ([]string, string, error) {
	d.sinceCalls = append(d.sinceCalls, sinceSHA)
	return d.sinceFiles, d.head, d.sinceErr
}

type stubAnalyzer struct {
	payload json.RawMessage
	failOn  map[string]bool
	calls   []string
}

func (a *stubAnalyzer) Analyze(_ context.Context, cacheType llm.CacheType, _, filePath string) (json.RawMessage, error) {
	a.calls = append(a.calls, filePath+":"+string(cacheType))
	if a.failOn[filePath] {
		return nil, errors.New("simulated analysis failure")
	}
	return a.payload, nil
}

func newRepo(t *testing.T, store *storagefake.Store, path string) *storage.Repository {
	t.Helper()
	repo := &storage.Repository{Path: path, Name: "test-repo", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(context.Background(), repo))
	return repo
}

func TestScan_NoChangedFilesAppendsOnlyStartAndComplete(t *testing.T) {
	store := storagefake.New()
	repo := newRepo(t, store, "/repos/a")
	detector := &stubDetector{}
	analyzer := &stubAnalyzer{}

	s := New(store, detector, analyzer, []llm.CacheType{llm.CacheTypeTodos}, slog.Default())
	result, err := s.Scan(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesChanged)
	assert.Empty(t, analyzer.calls)

	events, err := store.ListScanEvents(context.Background(), repo.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestScan_RunsEveryCacheTypeInOrderForEachChangedFile(t *testing.T) {
	store := storagefake.New()
	repo := newRepo(t, store, "/repos/b")
	detector := &stubDetector{files: []string{"a.go", "b.go"}}
	analyzer := &stubAnalyzer{payload: json.RawMessage(`{"todos":["x"]}`)}

	order := []llm.CacheType{llm.CacheTypeTodos, llm.CacheTypeRefactor, llm.CacheTypeDocs}
	s := New(store, detector, analyzer, order, slog.Default())
	result, err := s.Scan(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesChanged)
	assert.Equal(t, []string{
		"a.go:todos", "a.go:refactor", "a.go:docs",
		"b.go:todos", "b.go:refactor", "b.go:docs",
	}, analyzer.calls)

	updated, err := store.GetRepositoryByPath(context.Background(), "/repos/b")
	require.NoError(t, err)
	assert.True(t, updated.LastScanCheck.Valid)
	assert.True(t, updated.LastAnalyzed.Valid)
}

func TestScan_FirstScanRecordsHeadAsBaseline(t *testing.T) {
	store := storagefake.New()
	repo := newRepo(t, store, "/repos/d")
	detector := &stubDetector{files: []string{"a.go"}, head: "deadbeef"}
	analyzer := &stubAnalyzer{payload: json.RawMessage(`{}`)}

	s := New(store, detector, analyzer, []llm.CacheType{llm.CacheTypeTodos}, slog.Default())
	_, err := s.Scan(context.Background(), repo)
	require.NoError(t, err)

	updated, err := store.GetRepositoryByPath(context.Background(), "/repos/d")
	require.NoError(t, err)
	require.True(t, updated.LastScanSHA.Valid)
	assert.Equal(t, "deadbeef", updated.LastScanSHA.String)
}

func TestScan_SubsequentScanUsesChangedSinceRecordedBaseline(t *testing.T) {
	store := storagefake.New()
	repo := newRepo(t, store, "/repos/e")
	repo.LastScanSHA.String, repo.LastScanSHA.Valid = "abc123", true
	require.NoError(t, store.UpdateRepository(context.Background(), repo))
	repo, err := store.GetRepositoryByPath(context.Background(), "/repos/e")
	require.NoError(t, err)

	detector := &stubDetector{sinceFiles: []string{"b.go"}, head: "fedcba"}
	analyzer := &stubAnalyzer{payload: json.RawMessage(`{}`)}

	s := New(store, detector, analyzer, []llm.CacheType{llm.CacheTypeTodos}, slog.Default())
	result, err := s.Scan(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, []string{"abc123"}, detector.sinceCalls)
	assert.Equal(t, 1, result.FilesChanged)

	updated, err := store.GetRepositoryByPath(context.Background(), "/repos/e")
	require.NoError(t, err)
	assert.Equal(t, "fedcba", updated.LastScanSHA.String)
}

func TestScan_FileLevelFailureDoesNotAbortTheScan(t *testing.T) {
	store := storagefake.New()
	repo := newRepo(t, store, "/repos/c")
	detector := &stubDetector{files: []string{"bad.go", "good.go"}}
	analyzer := &stubAnalyzer{
		payload: json.RawMessage(`{}`),
		failOn:  map[string]bool{"bad.go": true},
	}

	s := New(store, detector, analyzer, []llm.CacheType{llm.CacheTypeTodos}, slog.Default())
	result, err := s.Scan(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesChanged)
	assert.Equal(t, 1, result.Errors)
	assert.Contains(t, analyzer.calls, "good.go:todos")

	events, err := store.ListScanEvents(context.Background(), repo.ID, 0)
	require.NoError(t, err)
	var sawError bool
	for _, ev := range events {
		if ev.Kind == "scan_error" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}
