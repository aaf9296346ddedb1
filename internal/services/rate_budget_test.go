package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type budgetClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *budgetClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *budgetClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRateBudgetEnforcesLimit(t *testing.T) {
	clock := &budgetClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewRateBudget(3, time.Hour, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, b.TryAcquire())
	}
	assert.False(t, b.TryAcquire())
	assert.Equal(t, 0, b.Remaining())
}

func TestRateBudgetWindowSlides(t *testing.T) {
	clock := &budgetClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewRateBudget(2, time.Hour, clock.Now)

	assert.True(t, b.TryAcquire())
	clock.Advance(30 * time.Minute)
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())

	// The first event slides out after an hour; one slot frees up.
	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, b.Remaining())
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())
}

func TestRateBudgetConcurrentAcquires(t *testing.T) {
	b := NewRateBudget(10, time.Hour, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryAcquire() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted, "concurrent attempts must never exceed the cap")
}
