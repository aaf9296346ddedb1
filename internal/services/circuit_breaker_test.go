package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbihedron/arbihedron-go/internal/exchange"
)

var errBoom = errors.New("boom")

func failingCall(ctx context.Context) error { return errBoom }
func okCall(ctx context.Context) error      { return nil }

func newTestBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		ResetTimeout:     time.Hour,
	}, testLogger())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, failingCall)
		assert.Equal(t, Closed, cb.GetState())
	}

	_ = cb.Execute(ctx, failingCall)
	assert.Equal(t, Open, cb.GetState())
}

func TestOpenBreakerRejectsWithoutCalling(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	require.Equal(t, Open, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, exchange.ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the function")
	assert.Equal(t, int64(1), cb.GetStats().RejectedRequests)
}

func TestHalfOpenTrialSuccessClosesBreaker(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	require.Equal(t, Open, cb.GetState())

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cb.Execute(ctx, okCall))
	assert.Equal(t, Closed, cb.GetState())

	// The failure counter was reset: one new failure must not re-open.
	_ = cb.Execute(ctx, failingCall)
	assert.Equal(t, Open, cb.GetState(), "threshold 1 re-opens immediately")
}

func TestHalfOpenTrialFailureReopensBreaker(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(ctx, failingCall)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, cb.GetState())

	// The recovery timeout restarted; an immediate call is rejected again.
	err = cb.Execute(ctx, okCall)
	assert.ErrorIs(t, err, exchange.ErrCircuitOpen)
}

func TestHalfOpenAdmitsExactlyOneTrial(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	time.Sleep(20 * time.Millisecond)

	// First call enters the half-open trial and blocks; a concurrent second
	// call must be rejected.
	release := make(chan struct{})
	trialRunning := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(ctx context.Context) error {
			close(trialRunning)
			<-release
			return nil
		})
	}()

	<-trialRunning
	err := cb.Execute(ctx, okCall)
	assert.ErrorIs(t, err, exchange.ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Closed, cb.GetState())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	_ = cb.Execute(ctx, failingCall)
	require.NoError(t, cb.Execute(ctx, okCall))

	// Two more failures stay under the threshold after the reset.
	_ = cb.Execute(ctx, failingCall)
	_ = cb.Execute(ctx, failingCall)
	assert.Equal(t, Closed, cb.GetState())

	_ = cb.Execute(ctx, failingCall)
	assert.Equal(t, Open, cb.GetState())
}

func TestQuietPeriodClearsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		ResetTimeout:     20 * time.Millisecond,
	}, testLogger())
	ctx := context.Background()

	_ = cb.Execute(ctx, failingCall)
	time.Sleep(30 * time.Millisecond)

	// The old failure has aged out; this one starts a fresh count.
	_ = cb.Execute(ctx, failingCall)
	assert.Equal(t, Closed, cb.GetState())
}

func TestBreakerManagerSharesInstancesByName(t *testing.T) {
	mgr := NewCircuitBreakerManager(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, testLogger())

	a := mgr.GetOrCreate("kraken:ticker")
	b := mgr.GetOrCreate("kraken:ticker")
	c := mgr.GetOrCreate("kraken:order")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	_ = a.Execute(context.Background(), failingCall)
	states := mgr.States()
	assert.Equal(t, "open", states["kraken:ticker"])
	assert.Equal(t, "closed", states["kraken:order"])

	mgr.ResetAll()
	assert.Equal(t, "closed", mgr.States()["kraken:ticker"])
}
