package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Status is the cache outcome reported for a served request
type Status string

const (
	StatusHit      Status = "HIT"
	StatusMiss     Status = "MISS"
	StatusCoalesce Status = "COALESCE"
	StatusStale    Status = "STALE"
	StatusBypass   Status = "BYPASS"
)

// FetchFunc performs the upstream call when the coordinator decides a fetch
// is required. It returns an entry for any authoritative upstream answer and
// an error only for retryable failures (transport errors, 5xx).
type FetchFunc func(ctx context.Context) (*Entry, error)

// Result is the outcome of coordinating one request
type Result struct {
	Entry  *Entry
	Status Status
}

// Coordinator owns the fingerprint -> entry store and coalesces concurrent
// identical requests so only one fetch reaches the upstream at a time.
type Coordinator struct {
	store       Store
	flight      singleflight.Group
	lockTimeout time.Duration
	logger      zerolog.Logger
}

// NewCoordinator creates a Coordinator around the given store.
// lockTimeout bounds how long a coalesced request waits for the in-flight
// fetch before degrading to its own.
func NewCoordinator(store Store, lockTimeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		lockTimeout: lockTimeout,
		logger:      logger.With().Str("component", "coordinator").Logger(),
	}
}

// Serve resolves one request: fresh entry -> HIT; otherwise exactly one
// concurrent caller fetches (MISS) while the rest wait on its result
// (COALESCE). A fetch failure is answered from a logically expired entry
// when one exists (STALE); only fresh failures with nothing stale propagate.
func (c *Coordinator) Serve(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (Result, error) {
	entry, st := c.store.Lookup(ctx, key)
	if st == LookupFresh {
		return Result{Entry: entry, Status: StatusHit}, nil
	}
	var staleEntry *Entry
	if st == LookupStale {
		staleEntry = entry
	}

	// The leader's fetch runs detached from this caller's cancellation:
	// a client disconnecting mid-wait must not abort a fetch that other
	// waiters and future cache readers benefit from. The invoker's own
	// timeout still bounds it.
	leader := false
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		leader = true
		return c.fetchAndStore(context.WithoutCancel(ctx), key, ttl, fetch)
	})

	var fetched *Entry
	var err error
	coalesced := false

	timer := time.NewTimer(c.lockTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			err = res.Err
		} else {
			fetched = res.Val.(*Entry)
		}
		coalesced = !leader

	case <-timer.C:
		// Waited out the in-flight fetch; degrade to an independent one
		// rather than failing on lock contention.
		c.logger.Warn().
			Str("key", key).
			Dur("waited", c.lockTimeout).
			Msg("in-flight fetch wait timed out, fetching independently")
		fetched, err = c.fetchAndStore(ctx, key, ttl, fetch)

	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if err != nil {
		if staleEntry != nil {
			c.logger.Debug().Str("key", key).Err(err).Msg("upstream failed, serving stale entry")
			return Result{Entry: staleEntry, Status: StatusStale}, nil
		}
		return Result{}, err
	}

	status := StatusMiss
	if coalesced {
		status = StatusCoalesce
	}
	return Result{Entry: fetched, Status: status}, nil
}

// fetchAndStore performs the fetch and stores the entry when it is
// cache-valid. Only HTTP 200 answers are stored; everything else is
// returned to the caller uncached.
func (c *Coordinator) fetchAndStore(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (*Entry, error) {
	entry, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if entry.StatusCode == http.StatusOK && ttl > 0 {
		entry.StoredAt = time.Now()
		entry.TTL = ttl
		c.store.Put(ctx, key, entry)
	}
	return entry, nil
}
