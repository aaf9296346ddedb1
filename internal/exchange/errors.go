package exchange

import (
	"context"
	"errors"
	"net"
)

// Error kinds surfaced by the exchange connector and the gateway built on top
// of it. Callers dispatch with errors.Is; only transient kinds are retried.
var (
	// ErrNetworkTimeout covers timeouts and transport-level failures.
	ErrNetworkTimeout = errors.New("exchange: network timeout")
	// ErrRateLimited means the venue or the local limiter refused the call.
	ErrRateLimited = errors.New("exchange: rate limited")
	// ErrCircuitOpen means the gateway's breaker is rejecting calls.
	ErrCircuitOpen = errors.New("exchange: circuit open")
	// ErrExchangeRejected means the venue refused the request outright.
	ErrExchangeRejected = errors.New("exchange: rejected")
	// ErrSymbolNotFound means the venue does not trade the symbol.
	ErrSymbolNotFound = errors.New("exchange: symbol not found")
	// ErrInsufficientBalance means the account cannot fund the order.
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
)

// IsTransient reports whether the error is worth retrying. Validation-style
// failures (rejected, unknown symbol, no balance) never are, and neither is a
// tripped breaker.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetworkTimeout) {
		return true
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
