package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Requires a running redis instance; set REDIS_ADDR to enable.
func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	key := "test-roundtrip"
	store.Put(ctx, key, &Entry{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"result":"0x1"}`),
		StoredAt:    time.Now(),
		TTL:         time.Minute,
	})

	entry, st := store.Lookup(ctx, key)
	if st != LookupFresh {
		t.Fatalf("status = %v, want fresh", st)
	}
	if string(entry.Body) != `{"result":"0x1"}` {
		t.Errorf("body = %s", entry.Body)
	}

	// A logically expired entry must still come back as stale.
	store.Put(ctx, "test-stale", &Entry{
		StatusCode: 200,
		Body:       []byte(`old`),
		StoredAt:   time.Now().Add(-time.Hour),
		TTL:        time.Second,
	})
	if _, st := store.Lookup(ctx, "test-stale"); st != LookupStale {
		t.Errorf("status = %v, want stale", st)
	}
}
