package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/studycycle-api/internal/api/shared"
	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/domain/calibration"
	"github.com/phrazzld/studycycle-api/internal/generation"
	"github.com/phrazzld/studycycle-api/internal/service"
	"github.com/phrazzld/studycycle-api/internal/service/engine"
	"github.com/phrazzld/studycycle-api/internal/store"
	"github.com/phrazzld/studycycle-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// internal error types never reach clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Checked before not-found: it wraps the store error that caused it.
	case errors.Is(err, engine.ErrSuggestionUnavailable):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, calibration.ErrInsufficientData),
		errors.Is(err, generation.ErrEmptyContext):
		return http.StatusBadRequest

	case store.IsNotFoundError(err):
		return http.StatusNotFound

	case store.IsDuplicateError(err):
		return http.StatusConflict

	case errors.Is(err, generation.ErrContentBlocked):
		return http.StatusUnprocessableEntity

	case errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrTransientFailure):
		return http.StatusBadGateway

	case errors.Is(err, service.ErrNotInitialized),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err that leaks no
// internal detail.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, engine.ErrSuggestionUnavailable):
		return "Profile or content item not found"

	case errors.Is(err, calibration.ErrInsufficientData):
		return "Not enough events to adjust lambda"

	case errors.Is(err, generation.ErrEmptyContext):
		return "Content has no text to generate from"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, store.ErrUserProfileNotFound):
		return "User profile not found"

	case errors.Is(err, store.ErrContentItemNotFound):
		return "Content item not found"

	case errors.Is(err, store.ErrVariantNotFound):
		return "Review variant not found"

	case errors.Is(err, store.ErrUserLambdaNotFound):
		return "Lambda not found"

	case store.IsNotFoundError(err):
		return "Resource not found"

	case errors.Is(err, store.ErrContentItemExists):
		return "Content item already exists"

	case store.IsDuplicateError(err):
		return "Resource already exists"

	case errors.Is(err, generation.ErrContentBlocked):
		return "Content was blocked by the generator"

	case errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrTransientFailure):
		return "Failed to generate review items"

	case errors.Is(err, service.ErrNotInitialized),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a message naming the
// first failing field and rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "oneof":
		return "invalid value"
	case "gt", "gte", "min":
		return "too small"
	case "lt", "lte", "max":
		return "too large"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err. For
// 5xx responses fallback, when non-empty, replaces the generic message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
