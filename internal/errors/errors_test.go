package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	cause := errors.New("redis: connection refused")
	storeErr := NewStoreError(cause)
	wrapped := fmt.Errorf("handle event: %w", storeErr)

	assert.ErrorIs(t, wrapped, ErrStoreFailure)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrSendFailure)
	assert.True(t, HasCode(wrapped, CodeStore))
	assert.Contains(t, storeErr.Error(), "connection refused")
}

func TestSendErrors(t *testing.T) {
	permanent := NewSendError(errors.New("bad request"))
	transient := NewTransientSendError(errors.New("flood"), 3*time.Second)

	assert.ErrorIs(t, permanent, ErrSendFailure)
	assert.ErrorIs(t, transient, ErrSendFailure)
	assert.False(t, IsRetryable(permanent))
	assert.True(t, IsRetryable(transient))
	assert.Equal(t, 3*time.Second, transient.RetryAfter)
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError(1500 * time.Millisecond)

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "Too many requests. Try again in 2 seconds.", err.UserMessage)

	short := NewRateLimitError(0)
	assert.Equal(t, "Too many requests. Try again in 1 seconds.", short.UserMessage)
}

func TestNilAppError(t *testing.T) {
	var err *AppError
	assert.Equal(t, "", err.Error())
	assert.Nil(t, err.Unwrap())
}
