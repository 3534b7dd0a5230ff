package cache

import (
	"context"
	"time"
)

// Entry is a cached upstream response. Entries are immutable once stored:
// they are only ever replaced wholesale by a fresh successful fetch, so
// readers never observe a partial write.
type Entry struct {
	StatusCode  int           `json:"statusCode"`
	ContentType string        `json:"contentType"`
	Body        []byte        `json:"body"`
	StoredAt    time.Time     `json:"storedAt"`
	TTL         time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is still within its TTL
func (e *Entry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// LookupStatus describes the result of a store lookup
type LookupStatus int

const (
	// LookupMiss - no entry for the key
	LookupMiss LookupStatus = iota
	// LookupFresh - entry exists and is within its TTL
	LookupFresh
	// LookupStale - entry exists but its TTL has elapsed; still usable
	// when the upstream is unavailable
	LookupStale
)

// Store is the cache entry storage backend.
// Implementations must retain logically expired entries (reporting
// LookupStale) rather than deleting them on read, so stale-serving works.
type Store interface {
	// Lookup retrieves an entry by key along with its freshness
	Lookup(ctx context.Context, key string) (*Entry, LookupStatus)

	// Put stores an entry. The caller must not mutate the entry afterwards.
	Put(ctx context.Context, key string, entry *Entry)

	// Close releases any resources held by the store
	Close()
}
