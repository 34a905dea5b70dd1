package llm

import (
	"sync"
	"time"
)

// Breaker is a per-provider circuit breaker. After a run of consecutive
// failures it opens and short-circuits calls for a cool-down window, then
// lets a single trial through.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. While open, only the first
// call after the cool-down is let through as a trial.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// Half-open: admit one trial. A success resets, a failure re-opens.
		b.openedAt = b.now()
		return true
	}
	return false
}

// Success resets the failure run.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records a failed call, opening the breaker at the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether calls are currently short-circuited.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}
