// Package common defines shared constants and sentinel errors used across
// the repository, service and transport layers of gophauth. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrStorageUnavailable wraps persistence failures (connection loss,
	// transaction conflicts). It is never retried by the service.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Authentication errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrRateLimited        = errors.New("too many login attempts")

	// Registration errors.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidInput marks requests with missing or unusable fields.
	ErrInvalidInput = errors.New("invalid input")
)

// IsAuthFailure reports whether err is one of the client-visible
// authentication failures that transports map to "unauthenticated".
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired)
}
