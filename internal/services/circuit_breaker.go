package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/exchange"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

// String returns the lowercase name of the state.
func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // Time to wait before the half-open trial
	ResetTimeout     time.Duration `json:"reset_timeout"`     // Quiet period after which the failure count resets
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	LastSuccessTime    time.Time `json:"last_success_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker stops calling a failing dependency until it has had time to
// recover. After RecoveryTimeout in the open state exactly one trial call is
// let through; its success closes the circuit, its failure re-opens it and
// restarts the timeout.
type CircuitBreaker struct {
	name            string
	config          CircuitBreakerConfig
	logger          *logrus.Logger
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	trialInFlight   bool
	lastFailureTime time.Time
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 300 * time.Second
	}

	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Execute runs the given function with circuit breaker protection. The
// function is invoked outside the breaker's lock so concurrent calls are not
// serialized behind each other's I/O.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

// beforeCall admits or rejects the call and moves the breaker to half-open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	now := time.Now()

	switch cb.state {
	case Closed:
		// A quiet period clears old failures.
		if cb.failureCount > 0 && now.Sub(cb.lastFailureTime) > cb.config.ResetTimeout {
			cb.failureCount = 0
		}
		return nil

	case Open:
		if now.Sub(cb.lastStateChange) > cb.config.RecoveryTimeout {
			cb.setState(HalfOpen)
			cb.trialInFlight = true
			return nil
		}
		cb.stats.RejectedRequests++
		return fmt.Errorf("%w: breaker %q open for another %s",
			exchange.ErrCircuitOpen, cb.name, cb.config.RecoveryTimeout-now.Sub(cb.lastStateChange))

	case HalfOpen:
		// Only the single trial call may proceed.
		if cb.trialInFlight {
			cb.stats.RejectedRequests++
			return fmt.Errorf("%w: breaker %q half-open, trial in flight", exchange.ErrCircuitOpen, cb.name)
		}
		cb.trialInFlight = true
		return nil

	default:
		cb.stats.RejectedRequests++
		return fmt.Errorf("%w: breaker %q in unknown state", exchange.ErrCircuitOpen, cb.name)
	}
}

// afterCall records the outcome of an admitted call.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.onSuccess()
	} else {
		cb.onFailure(err)
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.stats.SuccessfulRequests++
	cb.stats.LastSuccessTime = time.Now()

	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.trialInFlight = false
		cb.failureCount = 0
		cb.setState(Closed)
		cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker recovered, closing circuit")
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = time.Now()
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.name,
				"failure_count":   cb.failureCount,
				"error":           err.Error(),
			}).Error("Circuit breaker opened")
		}
	case HalfOpen:
		// The trial failed; re-open and restart the recovery timeout.
		cb.trialInFlight = false
		cb.failureCount++
		cb.setState(Open)
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"error":           err.Error(),
		}).Warn("Half-open trial failed, re-opening circuit")
	}
}

// setState changes the circuit breaker state. Callers hold the lock.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
		"failure_count":   cb.failureCount,
	}).Info("Circuit breaker state changed")
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a copy of the current statistics.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(Closed)
	cb.failureCount = 0
	cb.trialInFlight = false
	cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker manually reset")
}

// CircuitBreakerManager manages one breaker per (venue, operation-class).
type CircuitBreakerManager struct {
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
	logger   *logrus.Logger
	mu       sync.RWMutex
}

// NewCircuitBreakerManager creates a new circuit breaker manager.
func NewCircuitBreakerManager(config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one.
func (cbm *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	cbm.mu.RLock()
	breaker, exists := cbm.breakers[name]
	cbm.mu.RUnlock()
	if exists {
		return breaker
	}

	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	if breaker, exists = cbm.breakers[name]; exists {
		return breaker
	}
	breaker = NewCircuitBreaker(name, cbm.config, cbm.logger)
	cbm.breakers[name] = breaker
	return breaker
}

// States returns the current state of every managed breaker.
func (cbm *CircuitBreakerManager) States() map[string]string {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	states := make(map[string]string, len(cbm.breakers))
	for name, breaker := range cbm.breakers {
		states[name] = breaker.GetState().String()
	}
	return states
}

// GetAllStats returns statistics for all circuit breakers.
func (cbm *CircuitBreakerManager) GetAllStats() map[string]CircuitBreakerStats {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(cbm.breakers))
	for name, breaker := range cbm.breakers {
		stats[name] = breaker.GetStats()
	}
	return stats
}

// ResetAll resets all circuit breakers.
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	for _, breaker := range cbm.breakers {
		breaker.Reset()
	}
}
