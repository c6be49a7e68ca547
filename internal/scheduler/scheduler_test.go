package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/storage"
	"github.com/sevigo/codewarden/internal/storagefake"
)

type stubDispatcher struct {
	dispatched []*core.ScanTask
	err        error
}

func (d *stubDispatcher) Dispatch(_ context.Context, task *core.ScanTask) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, task)
	return nil
}

func (d *stubDispatcher) Stop() {}

func TestTick_DispatchesOnlyDueEnabledRepositories(t *testing.T) {
	store := storagefake.New()
	ctx := context.Background()

	due := &storage.Repository{Path: "/repos/due", Name: "due", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(ctx, due))

	notDue := &storage.Repository{Path: "/repos/fresh", Name: "fresh", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(ctx, notDue))
	notDue.LastScanCheck.Time = time.Now()
	notDue.LastScanCheck.Valid = true
	require.NoError(t, store.UpdateRepository(ctx, notDue))

	disabled := &storage.Repository{Path: "/repos/disabled", Name: "disabled", Status: "active", AutoScanEnabled: false, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(ctx, disabled))

	dispatcher := &stubDispatcher{}
	s := New(store, dispatcher, slog.Default())

	s.tick(ctx, time.Now())

	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, due.ID, dispatcher.dispatched[0].RepositoryID)
}

func TestTick_DoesNotRedispatchARepositoryStillRunningFromThePriorTick(t *testing.T) {
	store := storagefake.New()
	ctx := context.Background()

	repo := &storage.Repository{Path: "/repos/slow", Name: "slow", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(ctx, repo))

	dispatcher := &stubDispatcher{}
	s := New(store, dispatcher, slog.Default())

	now := time.Now()
	s.tick(ctx, now)
	require.Len(t, dispatcher.dispatched, 1, "first tick dispatches the repository")

	// The scan is still "running" in the dispatcher's worker pool (no
	// completion has happened), but a second tick one minute later must not
	// dispatch it again since its interval has not elapsed.
	s.tick(ctx, now.Add(1*time.Minute))
	assert.Len(t, dispatcher.dispatched, 1, "second tick must not redispatch an in-flight repository")
}

func TestTick_LeavesRepositoryDueWhenDispatchFails(t *testing.T) {
	store := storagefake.New()
	ctx := context.Background()

	repo := &storage.Repository{Path: "/repos/full-queue", Name: "full-queue", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 10}
	require.NoError(t, store.CreateRepository(ctx, repo))

	dispatcher := &stubDispatcher{err: errors.New("queue full")}
	s := New(store, dispatcher, slog.Default())

	s.tick(ctx, time.Now())
	assert.Empty(t, dispatcher.dispatched)

	updated, err := store.GetRepositoryByPath(ctx, "/repos/full-queue")
	require.NoError(t, err)
	assert.False(t, updated.LastScanCheck.Valid, "a failed dispatch must not stamp last_scan_check")
}

func TestForceScan_ClearsLastScanCheck(t *testing.T) {
	store := storagefake.New()
	ctx := context.Background()

	repo := &storage.Repository{Path: "/repos/a", Name: "a", Status: "active", AutoScanEnabled: true, ScanIntervalMinutes: 60}
	require.NoError(t, store.CreateRepository(ctx, repo))
	repo.LastScanCheck.Time = time.Now()
	repo.LastScanCheck.Valid = true
	require.NoError(t, store.UpdateRepository(ctx, repo))

	dispatcher := &stubDispatcher{}
	s := New(store, dispatcher, slog.Default())
	require.NoError(t, s.ForceScan(ctx, repo.ID))

	s.tick(ctx, time.Now())
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, repo.ID, dispatcher.dispatched[0].RepositoryID)
}

func TestStartStop_StopsCleanly(t *testing.T) {
	store := storagefake.New()
	s := New(store, &stubDispatcher{}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Stop()
}
