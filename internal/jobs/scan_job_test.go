package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/scanner"
	"github.com/sevigo/codewarden/internal/storage"
	"github.com/sevigo/codewarden/internal/storagefake"
)

type stubScanner struct {
	result scanner.Result
	err    error
	calls  int
}

func (s *stubScanner) Scan(_ context.Context, _ *storage.Repository) (scanner.Result, error) {
	s.calls++
	return s.result, s.err
}

func TestScanJob_Run_LoadsRepositoryAndInvokesScanner(t *testing.T) {
	store := storagefake.New()
	repo := &storage.Repository{Path: "/repos/a", Name: "a", Status: "active"}
	require.NoError(t, store.CreateRepository(context.Background(), repo))

	sc := &stubScanner{result: scanner.Result{FilesChanged: 2, IssuesFound: 1}}
	job := NewScanJob(store, sc, slog.Default())

	err := job.Run(context.Background(), &core.ScanTask{RepositoryID: repo.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, sc.calls)
}

func TestScanJob_Run_UnknownRepositoryReturnsError(t *testing.T) {
	store := storagefake.New()
	sc := &stubScanner{}
	job := NewScanJob(store, sc, slog.Default())

	err := job.Run(context.Background(), &core.ScanTask{RepositoryID: 999})
	require.Error(t, err)
	assert.Equal(t, 0, sc.calls)
}

func TestScanJob_Run_PropagatesScanError(t *testing.T) {
	store := storagefake.New()
	repo := &storage.Repository{Path: "/repos/b", Name: "b", Status: "active"}
	require.NoError(t, store.CreateRepository(context.Background(), repo))

	sc := &stubScanner{err: errors.New("boom")}
	job := NewScanJob(store, sc, slog.Default())

	err := job.Run(context.Background(), &core.ScanTask{RepositoryID: repo.ID})
	require.Error(t, err)
}
