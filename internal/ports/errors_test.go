package ports

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifierError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewClassifierError("onnx:credibility", "Classify", ErrInvalidResponse)

		assert.Equal(t, "classifier error: backend=onnx:credibility, operation=Classify, err=invalid response", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &ClassifierError{
			Backend:    "openai:gpt-4o-mini",
			Operation:  "Classify",
			Err:        ErrRateLimited,
			RetryAfter: &retryAfter,
		}

		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewClassifierError("remote", "Classify", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		for _, baseErr := range []error{ErrInvalidResponse, ErrAuthenticationFailed, ErrUnsupportedInput} {
			err := NewClassifierError("remote", "Classify", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})
}

type retryableErr struct{ retry bool }

func (e retryableErr) Error() string     { return "custom" }
func (e retryableErr) IsRetryable() bool { return e.retry }

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrTimeout)))
	assert.True(t, IsRetryable(retryableErr{retry: true}))
	assert.False(t, IsRetryable(retryableErr{retry: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestCacheError(t *testing.T) {
	err := NewCacheError("classify:abc", "Get", ErrCacheCorrupted)
	assert.Equal(t, "cache error: operation=Get, key=classify:abc, err=cache corrupted", err.Error())
	assert.True(t, errors.Is(err, ErrCacheCorrupted))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreError("sqlite", "Save", "r-1", cause)
	assert.Equal(t, "store error: backend=sqlite, operation=Save, report=r-1, err=disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("providers.text_model.api_key_env", ErrConfigNotFound)
	assert.Equal(t, "config error: key=providers.text_model.api_key_env, err=configuration not found", err.Error())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
