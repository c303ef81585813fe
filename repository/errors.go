package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports an entity that is absent, or soft-deleted when the
// caller did not ask for deleted entities.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository: %s/%s not found", e.Collection, e.ID)
}

// ValidationError reports a write rejected before any mutation was attempted.
type ValidationError struct {
	Collection string
	// Missing lists required fields absent from the entity.
	Missing []string
	// Reserved lists metadata fields the caller tried to change directly.
	Reserved []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Reserved) > 0 {
		parts = append(parts, "reserved fields: "+strings.Join(e.Reserved, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid entity")
	}
	return fmt.Sprintf("repository: %s validation failed: %s", e.Collection, strings.Join(parts, "; "))
}

// ConflictError reports an optimistic concurrency check that failed. No write
// was performed.
type ConflictError struct {
	Collection string
	ID         string

	ExpectedVersion int64
	ActualVersion   int64

	// Set instead of the version pair when the check was timestamp based.
	ExpectedUpdatedAt *time.Time
	ActualUpdatedAt   *time.Time
}

func (e *ConflictError) Error() string {
	if e.ExpectedUpdatedAt != nil {
		actual := "none"
		if e.ActualUpdatedAt != nil {
			actual = e.ActualUpdatedAt.Format(time.RFC3339Nano)
		}
		return fmt.Sprintf("repository: %s/%s conflict: expected updatedAt %s, found %s",
			e.Collection, e.ID, e.ExpectedUpdatedAt.Format(time.RFC3339Nano), actual)
	}
	return fmt.Sprintf("repository: %s/%s conflict: expected version %d, found %d",
		e.Collection, e.ID, e.ExpectedVersion, e.ActualVersion)
}

// StoreError wraps a failure from the underlying document store. The
// original error is preserved for errors.Is/As.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("repository: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}
