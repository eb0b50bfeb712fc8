// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input (bad name, pin, media key, progress...).
	ErrValidation = errors.New("validation")

	// ErrLastAdmin indicates the operation would leave the household without an admin.
	ErrLastAdmin = errors.New("cannot delete the last admin profile")

	// ErrInvalidPin indicates a PIN mismatch on profile selection.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrUnauthorized indicates a missing or invalid session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid token that lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)
