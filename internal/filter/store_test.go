package filter

import (
	"context"
	"sync"
)

// memoryStore is a plain SeenStore without atomic claiming.
type memoryStore struct {
	mu     sync.Mutex
	seen   map[int64]bool
	checks int
	marks  int
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seen: map[int64]bool{}}
}

func (s *memoryStore) IsProcessed(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	if s.err != nil {
		return false, s.err
	}
	return s.seen[id], nil
}

func (s *memoryStore) MarkProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks++
	if s.err != nil {
		return s.err
	}
	s.seen[id] = true
	return nil
}

func (s *memoryStore) processed(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[id]
}

// claimingStore additionally implements ports.SeenClaimer.
type claimingStore struct {
	*memoryStore
	claims int
}

func (s *claimingStore) ClaimProcessed(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	if s.err != nil {
		return false, s.err
	}
	if s.seen[id] {
		return false, nil
	}
	s.seen[id] = true
	return true, nil
}
