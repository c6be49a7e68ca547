// Package queue is a thin, priority-ordering wrapper over the persistent
// work-item storage operations (spec.md §4.11).
package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sevigo/codewarden/internal/metrics"
	"github.com/sevigo/codewarden/internal/storage"
)

// Priority levels, ascending urgency matching the queue_items check
// constraint (1-4).
const (
	PriorityLow      = 1
	PriorityNormal   = 2
	PriorityHigh     = 3
	PriorityUrgent   = 4
)

// Queue exposes add/list/advance/delete over a repository's or the system's
// shared work-item list.
type Queue struct {
	store storage.Store
}

func New(store storage.Store) *Queue {
	return &Queue{store: store}
}

// Add inserts a new item, defaulting Priority to PriorityNormal when unset.
func (q *Queue) Add(ctx context.Context, item *storage.QueueItem) error {
	if item.Priority == 0 {
		item.Priority = PriorityNormal
	}
	if item.Priority < PriorityLow || item.Priority > PriorityUrgent {
		return fmt.Errorf("invalid priority %d", item.Priority)
	}
	return q.store.AddQueueItem(ctx, item)
}

// List returns items matching filter, ordered by priority ascending then
// created_at ascending within a priority.
func (q *Queue) List(ctx context.Context, filter storage.QueueFilter) ([]*storage.QueueItem, error) {
	items, err := q.store.ListQueueItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if filter.Stage != "" {
		metrics.QueueDepth.WithLabelValues(filter.Stage).Set(float64(len(items)))
	}
	return items, nil
}

// Advance moves item id to a new stage. Stage transitions are otherwise
// unconstrained by the queue; callers enforce any monotonicity they need.
func (q *Queue) Advance(ctx context.Context, id uuid.UUID, stage string) error {
	return q.store.AdvanceQueueItem(ctx, id, stage)
}

func (q *Queue) Delete(ctx context.Context, id uuid.UUID) error {
	return q.store.DeleteQueueItem(ctx, id)
}
