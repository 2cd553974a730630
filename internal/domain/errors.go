package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors for boundary mapping.
type ErrorType string

const (
	// ErrorTypeValidation marks malformed or empty input
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound marks a missing destination, user or post
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeProviderUnavailable marks a failed embedding, relevance or NL provider call
	ErrorTypeProviderUnavailable ErrorType = "PROVIDER_UNAVAILABLE"

	// ErrorTypeInvariant marks numeric or structural invariant violations
	ErrorTypeInvariant ErrorType = "INVARIANT_VIOLATION"
)

// ErrProviderUnavailable is matched with errors.Is on any provider failure.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrNotFound is matched with errors.Is on any missing entity.
var ErrNotFound = errors.New("not found")

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message, Err: ErrNotFound}
}

// NewProviderUnavailableError wraps a provider failure.
func NewProviderUnavailableError(provider string, err error) *AppError {
	if err == nil {
		err = ErrProviderUnavailable
	} else if !errors.Is(err, ErrProviderUnavailable) {
		err = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return &AppError{Type: ErrorTypeProviderUnavailable, Message: provider, Err: err}
}

// NewInvariantViolation creates an invariant violation error
func NewInvariantViolation(message string) *AppError {
	return &AppError{Type: ErrorTypeInvariant, Message: message}
}

// ErrorTypeOf returns the AppError type carried by err, or "" if none.
func ErrorTypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
