// Package llm adapts hosted large language model APIs (OpenAI, Groq,
// Anthropic and Google Gemini) to the ports.LLMClient interface used by
// the credibility classifier.
//
// Every provider implements CoreLLM, the minimal request primitive, and is
// registered under a name by an init function. NewClient looks the name up,
// builds the provider and wraps it in a Client.
//
//	client, err := llm.NewClient("groq", llm.ClientConfig{
//	    APIKey: os.Getenv("GROQ_API_KEY"),
//	    Model:  "llama-3.3-70b-versatile",
//	})
//	reply, err := client.Complete(ctx, prompt, map[string]any{"json": true})
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
type CoreLLM interface {
	// DoRequest sends a prompt to the LLM provider and returns the response.
	// The opts parameter carries request options such as temperature,
	// max_tokens, system or json.
	// Returns the response text, input token count, output token count, and any error.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the configured model name.
	GetModel() string
}

// TokenEstimator estimates how many tokens a text occupies.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider.
	APIKey string

	// Model specifies which LLM model to use for requests.
	// Each provider supplies a default when empty.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// Timeout sets the maximum duration for individual HTTP requests.
	// Zero value means the SDK default.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic.
	// If nil, SimpleTokenEstimator is used.
	TokenEstimator TokenEstimator
}

// Client implements ports.LLMClient on top of a CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a new LLM client for the named provider.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := lookupProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", providerType, ProviderNames())
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	return NewClientFromCore(core, config.TokenEstimator), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is mainly useful in tests.
func NewClientFromCore(core CoreLLM, estimator TokenEstimator) *Client {
	if estimator == nil {
		estimator = SimpleTokenEstimator{}
	}
	return &Client{core: core, estimator: estimator}
}

// Complete sends a prompt to the LLM and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt to the LLM and returns token usage as well.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator assumes roughly 4 characters per token, which is
// close enough for English prose.
type SimpleTokenEstimator struct{}

// EstimateTokens returns ceil(len(text)/4).
func (SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory registers a provider under name. Registering
// the same name twice replaces the earlier factory.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[name] = factory
}

// ProviderNames returns the registered provider names in sorted order.
func ProviderNames() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupProviderFactory(name string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := providerFactories[name]
	return f, ok
}
