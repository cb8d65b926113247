package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeUnavailable, "store down", baseErr)

	assert.Equal(t, ErrorTypeUnavailable, domainErr.Type)
	assert.Equal(t, "store down", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUnavailable,
				Message: "credential store unavailable",
				Err:     errors.New("db error"),
			},
			wantMsg: "unavailable: credential store unavailable (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
				Err:     nil,
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeUnauthenticated, "revoked", nil),
			target: ErrUnauthenticated,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrUnauthenticated,
			want:   false,
		},
		{
			name:   "non-domain target",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: errors.New("plain"),
			want:   false,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("context: %w", NewDomainError(ErrorTypeRateLimited, "slow down", nil)),
			target: ErrRateLimited,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeRateLimited, "rate limit exceeded", nil).
		WithDetail("retry_after", 3).
		WithDetail("key_id", "ak_1")

	assert.Equal(t, 3, err.Details["retry_after"])
	assert.Equal(t, "ak_1", err.Details["key_id"])
}

func TestDomainError_WithDetailNilMap(t *testing.T) {
	err := &DomainError{Type: ErrorTypeInternal, Message: "oops"}
	err = err.WithDetail("request_id", "req-1")

	assert.Equal(t, "req-1", err.Details["request_id"])
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name  string
		check func(error) bool
		err   error
		want  bool
	}{
		{"unauthenticated match", IsUnauthenticatedError, ErrUnauthenticated, true},
		{"unauthenticated wrapped", IsUnauthenticatedError, fmt.Errorf("verify: %w", ErrUnauthenticated), true},
		{"unauthenticated mismatch", IsUnauthenticatedError, ErrRateLimited, false},
		{"rate limited match", IsRateLimitedError, ErrRateLimited, true},
		{"validation match", IsValidationError, ErrForbiddenField, true},
		{"validation on envelope error", IsValidationError, ErrInvalidEnvelope, true},
		{"unavailable match", IsUnavailableError, ErrStoreUnavailable, true},
		{"unavailable on missing policy", IsUnavailableError, ErrNoActivePolicy, true},
		{"internal match", IsInternalError, ErrInternal, true},
		{"plain error matches nothing", IsInternalError, errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimited, GetErrorType(ErrRateLimited))
	assert.Equal(t, ErrorTypeRateLimited, GetErrorType(fmt.Errorf("wrap: %w", ErrRateLimited)))
	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("plain")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "forbidden field", nil).
		WithDetail("field", "prompt")

	details := GetErrorDetails(err)
	assert.Equal(t, "prompt", details["field"])

	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}
