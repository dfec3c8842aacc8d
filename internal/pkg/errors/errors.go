package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ValidationError marks a malformed task or missing required field.
// Redelivering the same message can never succeed, so it is terminal.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConsentDeniedError is raised when a consent check blocks an operation.
// Terminal: the student's preference does not change on redelivery.
type ConsentDeniedError struct {
	Operation string
	Reason    string
}

func (e *ConsentDeniedError) Error() string {
	return fmt.Sprintf("consent denied for %s: %s", e.Operation, e.Reason)
}

func NewConsentDenied(operation, reason string) *ConsentDeniedError {
	return &ConsentDeniedError{Operation: operation, Reason: reason}
}

// InsufficientDataError means an aggregate could not be published because
// the consenting sample is below the privacy floor. Not a fault: callers
// treat it as "no result".
type InsufficientDataError struct {
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient sample: need %d, have %d", e.Needed, e.Got)
}

func NewInsufficientData(needed, got int) *InsufficientDataError {
	return &InsufficientDataError{Needed: needed, Got: got}
}

// TransientError wraps infrastructure failures (network, timeout, rate
// limit). Safe to retry via broker redelivery.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transient failure in %s", e.Op)
	}
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// Retryable reports whether a task failure should be left for broker
// redelivery. Unrecognized errors default to retryable: redelivery is
// cheaper than silent data loss.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var cd *ConsentDeniedError
	if errors.As(err, &cd) {
		return false
	}
	var id *InsufficientDataError
	if errors.As(err, &id) {
		return false
	}
	return true
}

// IsConsentDenied reports whether err (or anything it wraps) is a
// consent denial, surfaced to callers as an access-denied condition.
func IsConsentDenied(err error) bool {
	var cd *ConsentDeniedError
	return errors.As(err, &cd)
}

// IsInsufficientData reports whether err is a below-floor aggregate.
func IsInsufficientData(err error) bool {
	var id *InsufficientDataError
	return errors.As(err, &id)
}
