package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-verity/internal/ports"
)

func TestGoogleProvider_Construction(t *testing.T) {
	_, err := newGoogleProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = newGoogleProvider(ClientConfig{APIKey: "k", BaseURL: "not a url"})
	require.Error(t, err)

	p, err := newGoogleProvider(ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, GoogleDefaultModel, p.GetModel())
}

func TestGoogleProvider_HandleError(t *testing.T) {
	p := &googleProvider{classifier: ErrorClassifier{Provider: "google"}}

	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		sentinel error
	}{
		{
			name:     "quota",
			err:      genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"},
			wantType: ErrorTypeRateLimit,
			sentinel: ports.ErrRateLimited,
		},
		{
			name:     "safety block",
			err:      genai.APIError{Code: http.StatusBadRequest, Message: "Request blocked by safety settings"},
			wantType: ErrorTypeContentPolicy,
			sentinel: ports.ErrUnsupportedInput,
		},
		{
			name:     "googleapi error",
			err:      &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend"},
			wantType: ErrorTypeServerError,
			sentinel: ports.ErrServiceUnavailable,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			wantType: ErrorTypeTimeout,
			sentinel: ports.ErrTimeout,
		},
		{
			name:     "transport",
			err:      errors.New("connection reset"),
			wantType: ErrorTypeNetwork,
			sentinel: ports.ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.handleError(tt.err)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}
