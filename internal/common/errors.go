// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Boundary errors: the identity gateway or document store could not be
	// reached. Callers must treat these as "unknown state", never as a
	// denial, and keep prior session state for retry.
	ErrStoreUnavailable   = errors.New("document store unavailable")
	ErrGatewayUnavailable = errors.New("identity gateway unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsBoundaryUnavailable reports whether err means an external collaborator
// (store or gateway) failed, as opposed to a confirmed domain outcome.
func IsBoundaryUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrGatewayUnavailable)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if IsBoundaryUnavailable(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
