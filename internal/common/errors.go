// Package common defines shared constants and sentinel errors used across
// client and server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Token errors (malformed, badly signed or expired access token).
	ErrInvalidToken = errors.New("invalid token")
)

// Error kinds returned by the auth service. Every failure surfaced to a caller
// wraps exactly one of them.
var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBadRequest         = errors.New("bad request")
	ErrInternal           = errors.New("internal error")
)

// Error is a classified failure: Kind is one of the error kinds above and
// Message is the stable, caller-visible text.
type Error struct {
	Kind    error
	Message string
}

// NewError builds a classified error.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Unwrap makes errors.Is(err, ErrBadRequest) and friends work.
func (e *Error) Unwrap() error { return e.Kind }

// Internal returns the generic internal error. The underlying cause is never
// attached so it cannot leak to callers.
func Internal() *Error {
	return NewError(ErrInternal, "internal error")
}

// KindOf returns the error kind of err, or ErrInternal when err is not
// classified.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	return ErrInternal
}
