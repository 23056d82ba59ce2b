// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Lifecycle errors.
	ErrAlreadyInitialized = errors.New("data manager already initialized")
	ErrUninitialized      = errors.New("data manager uninitialized")

	// Source data errors.
	ErrRawSourceMissing = errors.New("raw source file missing")
	ErrMalformedRow     = errors.New("malformed row")

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

// IsFatal reports whether err must stop startup instead of degrading to
// empty results.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRawSourceMissing) || errors.Is(err, ErrAlreadyInitialized)
}
