package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rpcshield/internal/cache"
)

// windowSize is how many recent cache statuses the ratio covers
const windowSize = 1000

// RatioLogger keeps a rolling window of recent cache statuses and
// periodically logs the hit/miss breakdown.
type RatioLogger struct {
	mu       sync.Mutex
	window   [windowSize]cache.Status
	next     int
	count    int
	interval time.Duration
	logger   zerolog.Logger
}

// NewRatioLogger creates a RatioLogger logging at the given interval
func NewRatioLogger(interval time.Duration, logger zerolog.Logger) *RatioLogger {
	return &RatioLogger{
		interval: interval,
		logger:   logger.With().Str("component", "cache-ratio").Logger(),
	}
}

// Observe records one served request's cache status
func (rl *RatioLogger) Observe(status cache.Status) {
	rl.mu.Lock()
	rl.window[rl.next] = status
	rl.next = (rl.next + 1) % windowSize
	if rl.count < windowSize {
		rl.count++
	}
	rl.mu.Unlock()
}

// Run logs the ratio on each tick until the context is cancelled
func (rl *RatioLogger) Run(ctx context.Context) {
	if rl.interval <= 0 {
		return
	}
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.logRatio()
		}
	}
}

func (rl *RatioLogger) logRatio() {
	rl.mu.Lock()
	total := rl.count
	counts := make(map[cache.Status]int)
	for i := 0; i < rl.count; i++ {
		counts[rl.window[i]]++
	}
	rl.mu.Unlock()

	if total == 0 {
		return
	}

	pct := func(s cache.Status) float64 {
		return float64(counts[s]) / float64(total) * 100
	}

	rl.logger.Info().
		Int("requests", total).
		Float64("hitPct", pct(cache.StatusHit)).
		Float64("missPct", pct(cache.StatusMiss)).
		Float64("coalescePct", pct(cache.StatusCoalesce)).
		Float64("stalePct", pct(cache.StatusStale)).
		Msg("cache ratio")
}

// Snapshot returns the per-status counts over the current window
func (rl *RatioLogger) Snapshot() map[cache.Status]int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	counts := make(map[cache.Status]int)
	for i := 0; i < rl.count; i++ {
		counts[rl.window[i]]++
	}
	return counts
}
