package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is an in-memory LRU store.
// Expired entries are kept until evicted by the LRU cap: they remain
// eligible for stale-serving when the upstream fails. Keys are
// request-shaped and TTLs short, so the cap bounds memory well enough
// without an expiry sweeper.
type MemoryStore struct {
	cache *lru.Cache[string, *Entry]
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store holding at most size entries
func NewMemoryStore(size int) (*MemoryStore, error) {
	cache, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: cache}, nil
}

// Lookup retrieves an entry and reports its freshness
func (ms *MemoryStore) Lookup(_ context.Context, key string) (*Entry, LookupStatus) {
	ms.mu.RLock()
	entry, ok := ms.cache.Get(key)
	ms.mu.RUnlock()

	if !ok {
		return nil, LookupMiss
	}
	if !entry.Fresh(time.Now()) {
		return entry, LookupStale
	}
	return entry, LookupFresh
}

// Put stores an entry, replacing any previous one for the key
func (ms *MemoryStore) Put(_ context.Context, key string, entry *Entry) {
	ms.mu.Lock()
	ms.cache.Add(key, entry)
	ms.mu.Unlock()
}

// Close releases the store
func (ms *MemoryStore) Close() {}
