package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests to the same host
type RateLimiter struct {
	mu           sync.Mutex
	lastRequest  map[string]time.Time // host -> last request attempt
	defaultDelay time.Duration        // Used when the caller passes a non-positive delay
	log          *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		lastRequest:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// ApplyDelay blocks until at least minDelay (+/-10% jitter) has passed since
// the last recorded request to host, or ctx is done.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return nil
	}

	rl.mu.Lock()
	last, seen := rl.lastRequest[host]
	rl.mu.Unlock()
	if !seen {
		return nil
	}

	elapsed := time.Since(last)
	if elapsed >= minDelay {
		return nil
	}
	sleep := minDelay - elapsed
	if spread := int64(sleep) / 5; spread > 0 {
		sleep += time.Duration(rand.Int63n(spread)) - sleep/10
	}
	if sleep <= 0 {
		return nil
	}

	rl.log.WithFields(logrus.Fields{"host": host, "sleep": sleep, "required_delay": minDelay}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateLastRequestTime records now as the last request to host.
// Call it after the request attempt.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.mu.Lock()
	rl.lastRequest[host] = time.Now()
	rl.mu.Unlock()
}
