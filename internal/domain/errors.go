// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrValidation)

	// ErrOutOfRange is returned when a numeric field falls outside its allowed range.
	ErrOutOfRange = fmt.Errorf("%w: value out of range", ErrValidation)

	// ErrInvalidCorrectness is returned when a review event's correctness is not 0 or 1.
	ErrInvalidCorrectness = fmt.Errorf("%w: correctness must be 0 or 1", ErrValidation)

	// ErrInvalidLambdaSource is returned when a lambda source is not recognised.
	ErrInvalidLambdaSource = fmt.Errorf("%w: invalid lambda source", ErrValidation)

	// ErrInvalidVariantType is returned when a review variant type is not valid.
	ErrInvalidVariantType = fmt.Errorf("%w: invalid variant type", ErrValidation)

	// ErrInvalidVariantContent is returned when variant content is not valid JSON.
	ErrInvalidVariantContent = fmt.Errorf("%w: invalid variant content", ErrValidation)
)
