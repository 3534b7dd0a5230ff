package telemetry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rpcshield/internal/cache"
)

func TestRatioLogger_Window(t *testing.T) {
	rl := NewRatioLogger(time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		rl.Observe(cache.StatusHit)
	}
	rl.Observe(cache.StatusMiss)

	counts := rl.Snapshot()
	if counts[cache.StatusHit] != 3 || counts[cache.StatusMiss] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRatioLogger_WindowRollsOver(t *testing.T) {
	rl := NewRatioLogger(time.Minute, zerolog.Nop())

	for i := 0; i < windowSize; i++ {
		rl.Observe(cache.StatusMiss)
	}
	// These displace the oldest misses.
	for i := 0; i < 10; i++ {
		rl.Observe(cache.StatusHit)
	}

	counts := rl.Snapshot()
	if counts[cache.StatusHit] != 10 {
		t.Errorf("hits = %d, want 10", counts[cache.StatusHit])
	}
	if total := counts[cache.StatusHit] + counts[cache.StatusMiss]; total != windowSize {
		t.Errorf("window total = %d, want %d", total, windowSize)
	}
}
