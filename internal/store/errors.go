package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// ConflictError reports a uniqueness violation on a logical field
// ("email", "phone").
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%v: %s", ErrConflict, e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

const pqUniqueViolation = "23505"

// classifyUniqueViolation maps a Postgres unique violation to the logical
// field it guards.
func classifyUniqueViolation(err error) (*ConflictError, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}
	if pqErr.Code != pqUniqueViolation {
		return nil, false
	}

	constraint := strings.ToLower(pqErr.Constraint)
	switch constraint {
	case "users_email_key":
		return &ConflictError{Field: "email"}, true
	case "users_phone_key":
		return &ConflictError{Field: "phone"}, true
	}
	switch {
	case strings.Contains(constraint, "email"):
		return &ConflictError{Field: "email"}, true
	case strings.Contains(constraint, "phone"):
		return &ConflictError{Field: "phone"}, true
	default:
		return &ConflictError{}, true
	}
}
