// Package common defines shared constants and sentinel errors used across
// client and server layers of GophVault. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Identity errors.
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPrincipalNotFound  = errors.New("principal not found")

	// Step-up errors.
	ErrInvalidSecondFactor = errors.New("invalid second factor code")

	// Assertion errors (invalid, malformed or expired token).
	ErrInvalidAssertion = errors.New("invalid assertion")
	ErrTokenExpired     = errors.New("token expired")

	// Payload errors.
	ErrDecryptionFailure = errors.New("decryption failure")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
)
