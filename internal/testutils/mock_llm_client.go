// Package testutils provides deterministic fakes of the ports used across
// the service's tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-verity/internal/ports"
)

// MockLLMClient implements the LLMClient interface with deterministic
// credibility verdicts for consistent testing.
// It picks a pre-defined JSON verdict by matching substrings of the prompt,
// so a test controls the outcome through the article text it submits.
type MockLLMClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	fallback  string
	err       error
	calls     int
	prompts   []string
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// Verdict renders the JSON object the credibility prompt asks for.
func Verdict(score, confidence float64, reasoning string) string {
	return fmt.Sprintf(`{"credibility_score": %.2f, "confidence": %.2f, "claims": [], "red_flags": [], `+
		`"bias_detected": "none", "reasoning": %q}`, score, confidence, reasoning)
}

// NewMockLLMClient creates a MockLLMClient with verdicts for the common
// test articles.
// Debunked claims score low with high confidence, sourced reporting
// scores high, and anything else gets a neutral verdict.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{model: model}
	m.setupDefaultResponses()
	return m
}

func (m *MockLLMClient) setupDefaultResponses() {
	m.responses = []MockResponse{
		{Pattern: "earth is flat", Response: Verdict(0.05, 0.95, "Contradicts overwhelming scientific evidence.")},
		{Pattern: "vaccines cause autism", Response: Verdict(0.04, 0.95, "Repeatedly debunked medical claim.")},
		{Pattern: "according to", Response: Verdict(0.86, 0.8, "Claims are attributed to named sources.")},
	}
	m.fallback = Verdict(0.5, 0.6, "Not enough context to judge.")
	m.err = nil
	m.calls = 0
	m.prompts = nil
}

// AddResponse adds a response pattern. Later patterns take precedence.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{response}, m.responses...)
}

// SetFallback replaces the response used when no pattern matches.
func (m *MockLLMClient) SetFallback(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// SetError makes every call fail with err until it is reset with nil.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements the LLMClient.Complete method with deterministic
// responses based on prompt pattern matching.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, _ map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}

	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern != "" && strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return m.fallback, nil
}

// EstimateTokens implements the LLMClient.EstimateTokens method using
// roughly four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel implements the LLMClient.GetModel method returning the mock model identifier.
func (m *MockLLMClient) GetModel() string {
	return m.model
}

// Calls returns the number of Complete calls.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "" before the first call.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset restores the default responses and clears recorded calls.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupDefaultResponses()
}

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)
