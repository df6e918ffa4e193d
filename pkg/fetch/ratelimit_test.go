package fetch

import (
	"testing"
	"time"
)

func TestApplyDelay_NoPriorRequest(t *testing.T) {
	rl := NewRateLimiter(testLogger())

	start := time.Now()
	rl.ApplyDelay("example.com", 500*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected no sleep for unseen host, slept %v", elapsed)
	}
}

func TestApplyDelay_EnforcesMinimumSpacing(t *testing.T) {
	rl := NewRateLimiter(testLogger())
	minDelay := 150 * time.Millisecond

	rl.UpdateLastRequestTime("example.com")
	start := time.Now()
	rl.ApplyDelay("example.com", minDelay)
	elapsed := time.Since(start)

	// Jitter can shave up to 10% off the nominal delay
	if elapsed < minDelay/2 {
		t.Errorf("expected a sleep near %v, slept only %v", minDelay, elapsed)
	}
}

func TestApplyDelay_ZeroDelayDisabled(t *testing.T) {
	rl := NewRateLimiter(testLogger())
	rl.UpdateLastRequestTime("example.com")

	start := time.Now()
	rl.ApplyDelay("example.com", 0)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no sleep with zero delay, slept %v", elapsed)
	}
}
