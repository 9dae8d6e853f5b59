package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrDuplicate is returned when an entity with the same identifier
	// already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrUpdateFailed is returned when an update cannot be persisted.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is a duplicate entity error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
