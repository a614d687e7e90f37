package embedding

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid embedding input")
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// InvalidInputError reports text that cannot be embedded.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrInvalidInput.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ModelUnavailableError reports a model that could not be loaded or queried.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	if e == nil {
		return ErrModelUnavailable.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (model=%s)", ErrModelUnavailable, e.Model)
	}
	return fmt.Sprintf("%s (model=%s): %v", ErrModelUnavailable, e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }
