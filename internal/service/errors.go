// Package service holds the error type shared by the application services in
// its subpackages.
package service

import (
	"errors"
	"fmt"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrNotInitialized is returned when a service is used before its
	// Initialize method has completed.
	ErrNotInitialized = errors.New("service not initialized")

	// ErrUnavailable indicates a required input for the operation is missing.
	// API layer should map this to HTTP 404 Not Found.
	ErrUnavailable = errors.New("required data unavailable")
)

// ServiceError records which operation failed and why, wrapping the cause.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, operation, message string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
