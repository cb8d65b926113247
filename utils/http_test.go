package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	t.Run("writes status, content type, and body", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := WriteJSON(rec, http.StatusOK, map[string]string{"status": "ok"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("nil data writes an empty body", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := WriteJSON(rec, http.StatusOK, nil)

		require.NoError(t, err)
		assert.Empty(t, rec.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteOK(rec, map[string]string{"status": "healthy"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SuccessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestWriteBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteBadRequest(rec, "request contains forbidden content field", map[string]interface{}{
		"field": "prompt",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "request contains forbidden content field", resp.Message)
	assert.Equal(t, "prompt", resp.Details["field"])
}

func TestWriteUnauthorized(t *testing.T) {
	t.Run("default message", func(t *testing.T) {
		rec := httptest.NewRecorder()

		require.NoError(t, WriteUnauthorized(rec, ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "unauthorized", resp.Error)
		assert.Equal(t, "invalid API key", resp.Message)
	})

	t.Run("explicit message", func(t *testing.T) {
		rec := httptest.NewRecorder()

		require.NoError(t, WriteUnauthorized(rec, "invalid API key"))

		resp := decodeError(t, rec)
		assert.Equal(t, "invalid API key", resp.Message)
	})
}

func TestWriteTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteTooManyRequests(rec, "", map[string]interface{}{"retry_after": 12})

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
	assert.Equal(t, "rate limit exceeded", resp.Message)
	assert.Equal(t, float64(12), resp.Details["retry_after"])
}

func TestWriteServiceUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteServiceUnavailable(rec, "", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "unavailable", resp.Error)
	assert.Equal(t, "service temporarily unavailable", resp.Message)
}

func TestWriteInternalError(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteInternalError(rec, map[string]interface{}{"request_id": "req-1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Error)
	// The body never carries the underlying fault
	assert.Equal(t, "an internal error occurred", resp.Message)
	assert.Equal(t, "req-1", resp.Details["request_id"])
}
