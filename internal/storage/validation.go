package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext  = errors.New("context cannot be nil")
	ErrEmptyString = errors.New("string parameter cannot be empty")
	ErrNoRows      = errors.New("no export runs recorded")
	ErrInvalidRun  = errors.New("invalid export run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateReport checks the fields every export run needs.
func validateReport(r *Report) error {
	if r == nil {
		return fmt.Errorf("%w: report is nil", ErrInvalidRun)
	}
	if r.GeneratedAt.IsZero() {
		return fmt.Errorf("%w: missing generation time", ErrInvalidRun)
	}
	if r.Rows < 0 {
		return fmt.Errorf("%w: negative row count %d", ErrInvalidRun, r.Rows)
	}
	return nil
}
