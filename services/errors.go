package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// ErrorTypeUnauthenticated covers bad, missing, revoked, or expired
	// credentials. It deliberately never distinguishes which, to prevent
	// key enumeration.
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	// ErrorTypeRateLimited means the per-key quota was exceeded; recoverable
	// by the caller after the reported retry-after interval.
	ErrorTypeRateLimited ErrorType = "rate_limited"
	// ErrorTypeValidation means the payload itself is rejected (e.g. a
	// forbidden content field); the caller must fix the request.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnavailable means a backing store dependency failed. The
	// pipeline fails closed: never an allow.
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeInternal is an unexpected fault, surfaced generically.
	ErrorTypeInternal ErrorType = "internal"
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

// WithDetail adds a detail to the error
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
	// Authentication errors. All credential failures share one message so the
	// error surface leaks nothing about why verification failed.
	ErrUnauthenticated = NewDomainError(ErrorTypeUnauthenticated, "invalid API key", nil)

	// Rate limit errors
	ErrRateLimited = NewDomainError(ErrorTypeRateLimited, "rate limit exceeded", nil)

	// Validation errors
	ErrForbiddenField  = NewDomainError(ErrorTypeValidation, "request contains forbidden content field", nil)
	ErrInvalidEnvelope = NewDomainError(ErrorTypeValidation, "invalid request envelope", nil)

	// Dependency errors (fail closed)
	ErrStoreUnavailable = NewDomainError(ErrorTypeUnavailable, "backing store unavailable", nil)
	ErrNoActivePolicy   = NewDomainError(ErrorTypeUnavailable, "no active policy for customer", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Classification helpers used by the HTTP error mapper.

// IsUnauthenticatedError checks if an error is an authentication error
func IsUnauthenticatedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthenticated
	}
	return false
}

// IsRateLimitedError checks if an error is a rate limit error
func IsRateLimitedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRateLimited
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnavailableError checks if an error is a dependency-unavailable error
func IsUnavailableError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnavailable
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the error type, or ErrorTypeInternal for unknown errors
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails extracts structured details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
