package fetch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests per host for politeness
type RateLimiter struct {
	hostLastRequest   map[string]time.Time
	hostLastRequestMu sync.Mutex
	log               *logrus.Logger
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(log *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		log:             log,
	}
}

// ApplyDelay sleeps if the time since the last request to the host is less
// than minDelay, with +/-10% jitter to desynchronize workers.
func (rl *RateLimiter) ApplyDelay(host string, minDelay time.Duration) {
	if minDelay <= 0 {
		return
	}

	rl.hostLastRequestMu.Lock()
	lastReqTime, exists := rl.hostLastRequest[host]
	rl.hostLastRequestMu.Unlock() // unlock before potentially sleeping

	if !exists {
		return
	}
	elapsed := time.Since(lastReqTime)
	if elapsed >= minDelay {
		return
	}

	sleepDuration := minDelay - elapsed
	var jitter time.Duration
	if jitterRange := int64(sleepDuration) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (sleepDuration / 10)
	}
	finalSleep := sleepDuration + jitter
	if finalSleep <= 0 {
		return
	}

	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": finalSleep, "required_delay": minDelay,
	}).Debug("Rate limit applying sleep")
	time.Sleep(finalSleep)
}

// UpdateLastRequestTime records the current time as the last request attempt
// time for the host. Call after each HTTP request attempt.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = time.Now()
	rl.hostLastRequestMu.Unlock()
}
