package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrUserLambdaNotFound, ErrVariantNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a content item with the same ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrUserProfileNotFound indicates that the requested user profile does not exist in the store.
	ErrUserProfileNotFound = fmt.Errorf("%w: user profile", ErrNotFound)

	// ErrContentItemNotFound indicates that the requested content item does not exist in the store.
	ErrContentItemNotFound = fmt.Errorf("%w: content item", ErrNotFound)

	// ErrCoefficientsNotFound indicates that no trained coefficient set has been saved yet.
	ErrCoefficientsNotFound = fmt.Errorf("%w: model coefficients", ErrNotFound)

	// ErrUserLambdaNotFound indicates that the user has no stored forgetting rate.
	ErrUserLambdaNotFound = fmt.Errorf("%w: user lambda", ErrNotFound)

	// ErrVariantNotFound indicates that the requested review variant does not exist in the store.
	ErrVariantNotFound = fmt.Errorf("%w: review variant", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrContentItemExists indicates that a content item with the same ID already exists.
	ErrContentItemExists = fmt.Errorf("%w: content item", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// All entity-specific not found errors wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "user lambda", "review variant")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
