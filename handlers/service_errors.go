package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/services"
	"github.com/upb/governance-gateway/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Every response
// carries the pipeline request id when present so callers can correlate
// failures with audit records.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsUnauthenticatedError(err):
		if err := utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid API key",
			Details: details,
		}); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsRateLimitedError(err):
		if retryAfter, ok := details["retry_after"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retryAfter)*time.Second).Unix(), 10))
		}
		if err := utils.WriteTooManyRequests(w, "rate limit exceeded", details); err != nil {
			logger.Error("failed to write rate limit response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, errMessage(err), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsUnavailableError(err):
		// Fail closed: a dependency outage blocks, it never allows.
		logger.Error("dependency unavailable", zap.Error(err))
		if err := utils.WriteServiceUnavailable(w, "", details); err != nil {
			logger.Error("failed to write unavailable response", zap.Error(err))
		}

	default:
		// Internal faults are logged with full detail but surfaced generically.
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalError(w, requestIDOnly(details)); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// errMessage prefers the domain message over the full error chain so
// wrapped causes never leak to the caller.
func errMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// requestIDOnly strips everything but the correlation id from internal
// error details.
func requestIDOnly(details map[string]interface{}) map[string]interface{} {
	if requestID, ok := details["request_id"]; ok {
		return map[string]interface{}{"request_id": requestID}
	}
	return nil
}
