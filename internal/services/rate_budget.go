package services

import (
	"sync"
	"time"
)

// RateBudget caps how many trades may execute within a rolling window.
// Increments are serialized so concurrent execution attempts cannot exceed
// the cap; expired entries are pruned lazily as the window slides.
type RateBudget struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time
	now    func() time.Time
}

// NewRateBudget creates a budget of limit trades per window. A nil clock
// defaults to time.Now.
func NewRateBudget(limit int, window time.Duration, now func() time.Time) *RateBudget {
	if window <= 0 {
		window = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &RateBudget{limit: limit, window: window, now: now}
}

// TryAcquire consumes one slot if the rolling window has capacity.
func (b *RateBudget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()
	if len(b.events) >= b.limit {
		return false
	}
	b.events = append(b.events, b.now())
	return true
}

// Remaining returns the unused capacity in the current window.
func (b *RateBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()
	return b.limit - len(b.events)
}

// prune drops events that have slid out of the window. Callers hold the lock.
func (b *RateBudget) prune() {
	cutoff := b.now().Add(-b.window)
	i := 0
	for i < len(b.events) && !b.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.events = append(b.events[:0], b.events[i:]...)
	}
}
