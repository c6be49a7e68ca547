package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/storage"
	"github.com/sevigo/codewarden/internal/storagefake"
)

func TestAdd_DefaultsToNormalPriority(t *testing.T) {
	store := storagefake.New()
	q := New(store)

	item := &storage.QueueItem{Title: "investigate flaky test"}
	require.NoError(t, q.Add(context.Background(), item))
	assert.Equal(t, PriorityNormal, item.Priority)
	assert.NotEqual(t, item.ID.String(), "")
}

func TestAdd_RejectsOutOfRangePriority(t *testing.T) {
	q := New(storagefake.New())
	err := q.Add(context.Background(), &storage.QueueItem{Title: "x", Priority: 9})
	assert.Error(t, err)
}

func TestList_OrdersByPriorityThenCreatedAt(t *testing.T) {
	store := storagefake.New()
	q := New(store)

	low := &storage.QueueItem{Title: "low", Priority: PriorityLow}
	urgent := &storage.QueueItem{Title: "urgent", Priority: PriorityUrgent}
	normal := &storage.QueueItem{Title: "normal", Priority: PriorityNormal}

	require.NoError(t, q.Add(context.Background(), urgent))
	require.NoError(t, q.Add(context.Background(), low))
	require.NoError(t, q.Add(context.Background(), normal))

	items, err := q.List(context.Background(), storage.QueueFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "low", items[0].Title)
	assert.Equal(t, "normal", items[1].Title)
	assert.Equal(t, "urgent", items[2].Title)
}

func TestAdvanceAndDelete(t *testing.T) {
	store := storagefake.New()
	q := New(store)

	item := &storage.QueueItem{Title: "task"}
	require.NoError(t, q.Add(context.Background(), item))

	require.NoError(t, q.Advance(context.Background(), item.ID, "in_progress"))
	items, err := q.List(context.Background(), storage.QueueFilter{Stage: "in_progress"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, q.Delete(context.Background(), item.ID))
	items, err = q.List(context.Background(), storage.QueueFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}
