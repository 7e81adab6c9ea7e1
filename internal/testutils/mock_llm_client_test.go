package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLLMClient_Complete(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		wantScore float64
	}{
		{name: "debunked claim", prompt: "ARTICLE TEXT:\nScientists confirm Earth is flat", wantScore: 0.05},
		{name: "attributed reporting", prompt: "Rates rose, according to the central bank.", wantScore: 0.86},
		{name: "fallback", prompt: "Local bakery opens a second shop.", wantScore: 0.5},
	}

	m := NewMockLLMClient("mock-model")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Complete(context.Background(), tt.prompt, nil)
			require.NoError(t, err)

			var v struct {
				Score float64 `json:"credibility_score"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &v))
			assert.InDelta(t, tt.wantScore, v.Score, 1e-9)
		})
	}
	assert.Equal(t, len(tests), m.Calls())
}

func TestMockLLMClient_Overrides(t *testing.T) {
	m := NewMockLLMClient("mock-model")

	m.AddResponse(MockResponse{Pattern: "bakery", Response: Verdict(0.9, 0.9, "local news")})
	out, err := m.Complete(context.Background(), "Local bakery opens", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "local news")
	assert.Equal(t, "Local bakery opens", m.LastPrompt())

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Complete(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.Calls())
	_, err = m.Complete(context.Background(), "anything", nil)
	assert.NoError(t, err)
}

func TestMockLLMClient_ContextAndEmptyPrompt(t *testing.T) {
	m := NewMockLLMClient("mock-model")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Complete(ctx, "prompt", nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.Complete(context.Background(), "", nil)
	assert.Error(t, err)

	n, err := m.EstimateTokens("twelve chars")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "mock-model", m.GetModel())
}
