package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/exchange"
)

// RetryPolicy defines retry behavior for failed operations. Only transient
// failure kinds are retried; everything else surfaces immediately.
type RetryPolicy struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryPolicy mirrors the gateway defaults: three retries with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 2.0
	}
	return p
}

// RetryTransient runs op, retrying transient failures with exponential
// backoff up to the policy's retry budget. Context cancellation aborts the
// wait between attempts.
func RetryTransient(ctx context.Context, policy RetryPolicy, logger *logrus.Logger, operation string, op func(context.Context) error) error {
	policy = policy.normalized()
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !exchange.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		logger.WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"max":       policy.MaxRetries,
			"delay":     delay.String(),
			"error":     lastErr.Error(),
		}).Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return lastErr
}
