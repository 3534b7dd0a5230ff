package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_LookupStates(t *testing.T) {
	store, err := NewMemoryStore(16)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, st := store.Lookup(ctx, "missing"); st != LookupMiss {
		t.Errorf("status = %v, want miss", st)
	}

	store.Put(ctx, "k", &Entry{
		StatusCode: 200,
		Body:       []byte(`{"result":"0x1"}`),
		StoredAt:   time.Now(),
		TTL:        time.Hour,
	})
	entry, st := store.Lookup(ctx, "k")
	if st != LookupFresh {
		t.Errorf("status = %v, want fresh", st)
	}
	if string(entry.Body) != `{"result":"0x1"}` {
		t.Errorf("body = %s", entry.Body)
	}

	// Expired entries must remain available as stale, not vanish.
	store.Put(ctx, "old", &Entry{
		StatusCode: 200,
		Body:       []byte(`{"result":"0x2"}`),
		StoredAt:   time.Now().Add(-time.Minute),
		TTL:        time.Second,
	})
	entry, st = store.Lookup(ctx, "old")
	if st != LookupStale {
		t.Errorf("status = %v, want stale", st)
	}
	if entry == nil || string(entry.Body) != `{"result":"0x2"}` {
		t.Error("stale entry body lost")
	}
}

func TestMemoryStore_Replacement(t *testing.T) {
	store, err := NewMemoryStore(16)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	store.Put(ctx, "k", &Entry{StatusCode: 200, Body: []byte("v1"), StoredAt: time.Now(), TTL: time.Hour})
	store.Put(ctx, "k", &Entry{StatusCode: 200, Body: []byte("v2"), StoredAt: time.Now(), TTL: time.Hour})

	entry, st := store.Lookup(ctx, "k")
	if st != LookupFresh || string(entry.Body) != "v2" {
		t.Errorf("entry = %v %s", st, entry.Body)
	}
}

func TestMemoryStore_EvictsAtCap(t *testing.T) {
	store, err := NewMemoryStore(2)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	store.Put(ctx, "a", &Entry{StatusCode: 200, StoredAt: now, TTL: time.Hour})
	store.Put(ctx, "b", &Entry{StatusCode: 200, StoredAt: now, TTL: time.Hour})
	store.Put(ctx, "c", &Entry{StatusCode: 200, StoredAt: now, TTL: time.Hour})

	if _, st := store.Lookup(ctx, "a"); st != LookupMiss {
		t.Errorf("oldest entry not evicted, status = %v", st)
	}
	if _, st := store.Lookup(ctx, "c"); st != LookupFresh {
		t.Errorf("newest entry missing, status = %v", st)
	}
}
