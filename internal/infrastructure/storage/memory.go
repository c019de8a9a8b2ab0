package storage

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps processed ids in process memory. Ids are forgotten on restart and,
// with a positive TTL, after the TTL elapsed.
type MemoryStore struct {
	cache *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an in-memory store; ttl <= 0 keeps ids forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemoryStore{cache: gocache.New(ttl, ttl/2)}
}

// IsProcessed implements ports.SeenStore.
func (m *MemoryStore) IsProcessed(_ context.Context, id int64) (bool, error) {
	_, found := m.cache.Get(memoryKey(id))
	return found, nil
}

// MarkProcessed implements ports.SeenStore.
func (m *MemoryStore) MarkProcessed(_ context.Context, id int64) error {
	m.cache.SetDefault(memoryKey(id), struct{}{})
	return nil
}

// ClaimProcessed implements ports.SeenClaimer.
func (m *MemoryStore) ClaimProcessed(_ context.Context, id int64) (bool, error) {
	if err := m.cache.Add(memoryKey(id), struct{}{}, gocache.DefaultExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

// Len returns the number of remembered ids, including expired ones not yet evicted.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

// Close drops every remembered id.
func (m *MemoryStore) Close() error {
	m.cache.Flush()
	return nil
}

func memoryKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
