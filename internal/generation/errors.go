package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when variant generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate review items")

	// ErrInvalidResponse is returned when the model response cannot be used
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyContext is returned when there is no source text to generate from
	ErrEmptyContext = errors.New("generation context cannot be empty")
)
