package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"bad request", NewBadRequestError(nil, "bad"), 400},
		{"unauthorized", NewUnauthorizedError(nil, "no"), 401},
		{"not found", NewNotFoundError(nil, "gone"), 404},
		{"conflict", NewConflictError(nil, "clash"), 409},
		{"rate limited", NewRateLimitError("slow down", 30, nil), 429},
		{"internal", NewInternalError(nil, "boom"), 500},
		{"unavailable", NewServiceUnavailableError(nil, "later"), 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode)
		})
	}
}

func TestGetAppErrorUnwrapsChain(t *testing.T) {
	inner := NewNotFoundError(nil, "missing")
	wrapped := fmt.Errorf("loading entry: %w", inner)

	appErr, ok := GetAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)

	_, ok = GetAppError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = GetAppError(nil)
	assert.False(t, ok)
}

func TestRateLimitErrorCarriesRetryAfter(t *testing.T) {
	err := NewRateLimitError("wait", 42, map[string]int{"retryAfterSeconds": 42})
	assert.Equal(t, 42, err.RetryAfterSeconds)
	assert.Equal(t, "wait", err.Message)
	assert.NotNil(t, err.Data)
}

func TestAppErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewInternalError(cause, "database unavailable")

	assert.Equal(t, "database unavailable: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}
