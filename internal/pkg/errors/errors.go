// Package errors holds domain-neutral sentinels. Services wrap them with
// fmt.Errorf("%w") and the HTTP layer maps each to a status code.
package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden marks a valid caller acting outside its hotel.
	ErrForbidden = errors.New("forbidden")
)
