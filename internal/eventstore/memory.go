package eventstore

import (
	"context"
	"sync"
)

// MemoryStore is a simple in-memory Store, useful for tests and as a
// reference implementation of the append-only/optimistic-concurrency
// contract; internal/store's SQLite-backed Store follows the same
// invariants against durable storage.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string][]Event
	snapshots map[string][]Event
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    map[string][]Event{},
		snapshots: map[string][]Event{},
	}
}

func (s *MemoryStore) Append(ctx context.Context, taskID string, expectedVersion uint64, events []Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := uint64(len(s.events[taskID]))
	if have != expectedVersion {
		return 0, &VersionConflict{TaskID: taskID, Have: have, Expected: expectedVersion}
	}

	seq := have
	for i := range events {
		seq++
		events[i].TaskID = taskID
		events[i].Sequence = seq
		s.events[taskID] = append(s.events[taskID], events[i])
	}
	return seq, nil
}

func (s *MemoryStore) Load(ctx context.Context, taskID string, since uint64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, ev := range s.events[taskID] {
		if ev.Sequence > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutSnapshot(ctx context.Context, taskID string, snap Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[taskID] = append(s.snapshots[taskID], snap)
	return nil
}

func (s *MemoryStore) GetLatestSnapshot(ctx context.Context, taskID string, maxSequence uint64) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best Event
	found := false
	for _, snap := range s.snapshots[taskID] {
		if maxSequence != 0 && snap.Sequence > maxSequence {
			continue
		}
		if !found || snap.Sequence > best.Sequence {
			best = snap
			found = true
		}
	}
	return best, found, nil
}
