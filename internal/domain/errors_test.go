package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientSignalsError(t *testing.T) {
	t.Run("no signals", func(t *testing.T) {
		err := NewInsufficientSignalsError(nil)
		assert.Equal(t, "insufficient signals: no signals supplied", err.Error())
		assert.True(t, errors.Is(err, ErrInsufficientSignals))
	})

	t.Run("lists attempted signals", func(t *testing.T) {
		err := NewInsufficientSignalsError([]SignalResult{
			Abstained(SignalDomainTrust, "unknown"),
			Unavailable(SignalTextModel, "timeout"),
		})
		assert.Equal(t, "insufficient signals: domain_trust=abstained, text_model=unavailable", err.Error())
	})
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError(SignalTextModel, "classify", cause)

	assert.Equal(t, "provider error: kind=text_model, operation=classify, err=connection refused", err.Error())
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.True(t, errors.Is(err, cause))

	var pe *ProviderError
	require.True(t, errors.As(error(err), &pe))
	assert.Equal(t, SignalTextModel, pe.Kind)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("analysis input")
		err.AddError("text is too short")

		assert.Equal(t, "validation error for analysis input: text is too short", err.Error())
		assert.True(t, err.HasErrors())
		assert.Len(t, err.Errors, 1)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("analysis input")
		err.AddError("text is too short")
		err.AddError("url is malformed")

		assert.Equal(t, "validation errors for analysis input: [text is too short url is malformed]", err.Error())
		assert.Len(t, err.Errors, 2)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("analysis input")
		assert.False(t, err.HasErrors())
		assert.Empty(t, err.Errors)
	})

	t.Run("input errors match ErrInvalidInput", func(t *testing.T) {
		err := NewValidationError("analysis input")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.NotErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("config errors match ErrInvalidConfiguration", func(t *testing.T) {
		err := NewConfigValidationError("config")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.NotErrorIs(t, err, ErrInvalidInput)
	})
}
