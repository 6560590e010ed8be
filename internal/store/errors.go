package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers any resource that is absent under the caller's
	// scope, including cross-owner access masked as absence.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCapability means a wheel key that resolves to no owner.
	ErrInvalidCapability = errors.New("invalid wheel key")

	// ErrInvalidCredentials covers unknown usernames and bad passwords
	// alike, so login failures do not leak which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// ValidationError is returned for malformed input values.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
