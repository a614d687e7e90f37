package search

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput  = errors.New("invalid search input")
	ErrMissingScope  = errors.New("hotel_id is required")
	ErrSearchBackend = errors.New("search backend failed")
	ErrSearchTimeout = errors.New("search timed out")
)

// InvalidInputError reports a malformed request field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// MissingScopeError is returned before any work when no hotel is given.
type MissingScopeError struct{}

func (e *MissingScopeError) Error() string        { return ErrMissingScope.Error() }
func (e *MissingScopeError) Is(target error) bool { return target == ErrMissingScope }

// SearchBackendError wraps the failure of the last strategy in the chain.
type SearchBackendError struct {
	Strategy string
	Err      error
}

func (e *SearchBackendError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s: %v", ErrSearchBackend, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrSearchBackend, e.Strategy, e.Err)
}

func (e *SearchBackendError) Unwrap() error        { return e.Err }
func (e *SearchBackendError) Is(target error) bool { return target == ErrSearchBackend }

type SearchTimeoutError struct {
	Budget time.Duration
	Err    error
}

func (e *SearchTimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrSearchTimeout, e.Budget)
}

func (e *SearchTimeoutError) Unwrap() error        { return e.Err }
func (e *SearchTimeoutError) Is(target error) bool { return target == ErrSearchTimeout }
