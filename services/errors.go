package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeEmpty        ErrorType = "empty"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeInterrupted  ErrorType = "interrupted"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error. Never call it on the package-level
// sentinels; build a fresh error with NewDomainError instead.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Store state, reported to the operator and never fatal
	ErrMissingStore = NewDomainError(ErrorTypeNotFound, "pending log not found", nil)
	ErrEmptyStore   = NewDomainError(ErrorTypeEmpty, "no prompts to review", nil)

	// Malformed pending log, fatal before any prompt
	ErrMalformedRow    = NewDomainError(ErrorTypeValidation, "malformed pending log row", nil)
	ErrMalformedHeader = NewDomainError(ErrorTypeValidation, "malformed pending log header", nil)

	// Operator input, always recoverable
	ErrInvalidDecision = NewDomainError(ErrorTypeInvalidInput, "invalid decision input", nil)

	// Operator interrupt or closed input
	ErrInterrupted = NewDomainError(ErrorTypeInterrupted, "review cancelled", nil)

	// Storage and runtime faults
	ErrInternal           = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrStoreRead          = NewDomainError(ErrorTypeInternal, "failed to read store", nil)
	ErrStoreWrite         = NewDomainError(ErrorTypeInternal, "failed to write store", nil)
	ErrHistoryUnavailable = NewDomainError(ErrorTypeExternal, "review history unavailable", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsEmptyError checks if an error signals an empty store
func IsEmptyError(err error) bool {
	return GetErrorType(err) == ErrorTypeEmpty
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsInvalidInputError checks if an error is a recoverable operator input error
func IsInvalidInputError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvalidInput
}

// IsInterruptedError checks if an error is an operator interrupt
func IsInterruptedError(err error) bool {
	return GetErrorType(err) == ErrorTypeInterrupted
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external dependency error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// IsNothingToReview reports the two non-fatal stop conditions of the log reader
func IsNothingToReview(err error) bool {
	return IsNotFoundError(err) || IsEmptyError(err)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external dependency error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
