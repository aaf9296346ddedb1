package models

import "fmt"

// ValidationError reports a violated model invariant. Callers can pick it out
// of a wrapped chain with errors.As to distinguish bad input from transport
// failures.
type ValidationError struct {
	Subject string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}

func newValidationError(subject, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Subject: subject, Message: fmt.Sprintf(format, args...)}
}
