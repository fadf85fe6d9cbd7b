package services

import (
	"errors"
	"fmt"
)

// Error kinds returned by the services. Callers match them with errors.Is;
// the typed errors below unwrap to one of these.
var (
	ErrValidation           = errors.New("validation error")
	ErrIdentityConflict     = errors.New("identity conflict")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotFound             = errors.New("not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports that an identity field is already registered.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrIdentityConflict.Error()
	}
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrIdentityConflict }

// storageFailure wraps a directory error so the detail stays available to
// logs while callers only see ErrStorageUnavailable.
func storageFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
