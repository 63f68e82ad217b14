// Package snapshot keeps a bounded, persisted history of past documents used
// for rollback around conflict resolution.
package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jos-todo/todosync/internal/model"
)

// DefaultCapacity is the number of snapshots retained.
const DefaultCapacity = 5

// Persister loads and saves the full snapshot list.
type Persister interface {
	Snapshots() []model.Snapshot
	SaveSnapshots([]model.Snapshot) error
}

// Ring is a newest-first list of snapshots truncated to a fixed capacity.
type Ring struct {
	mu       sync.Mutex
	store    Persister
	capacity int
	items    []model.Snapshot
	now      func() time.Time
}

// New loads the persisted list and returns a ring over it. A capacity of
// zero or less uses DefaultCapacity.
func New(store Persister, capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	items := store.Snapshots()
	if len(items) > capacity {
		items = items[:capacity]
	}
	return &Ring{
		store:    store,
		capacity: capacity,
		items:    items,
		now:      time.Now,
	}
}

// Push records doc at the head of the ring, evicting the oldest entry on
// overflow, and persists the full list. The stored copy is independent of doc.
func (r *Ring) Push(reason model.SnapshotReason, doc model.Document, summary *model.ConflictSummary) (model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := model.Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: r.now().UTC(),
		Reason:    reason,
		State:     doc.Clone(),
	}
	if summary != nil {
		s := *summary
		snap.Summary = &s
	}

	next := make([]model.Snapshot, 0, r.capacity)
	next = append(next, snap)
	next = append(next, r.items...)
	if len(next) > r.capacity {
		next = next[:r.capacity]
	}

	if err := r.store.SaveSnapshots(next); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to persist snapshots: %w", err)
	}
	r.items = next
	return snap, nil
}

// List returns the snapshots newest first.
func (r *Ring) List() []model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Snapshot, len(r.items))
	for i, s := range r.items {
		s.State = s.State.Clone()
		out[i] = s
	}
	return out
}

// Get returns the snapshot with the given id.
func (r *Ring) Get(id string) (model.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.items {
		if s.ID == id {
			s.State = s.State.Clone()
			return s, true
		}
	}
	return model.Snapshot{}, false
}

// Len returns the number of retained snapshots.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
