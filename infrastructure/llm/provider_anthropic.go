package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when no model is configured for "anthropic".
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for Anthropic's Messages API.
type anthropicProvider struct {
	client     anthropic.Client
	model      string
	classifier ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries are handled by the classifier middleware chain.
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		validated, err := validateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validated))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &anthropicProvider{
		client:     anthropic.NewClient(opts...),
		model:      model,
		classifier: ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends a single-turn message and concatenates the text blocks
// of the reply.
func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	system := options.System
	if options.JSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(options.Model),
		MaxTokens:   int64(options.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(options.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, NewProviderError("anthropic", ErrorTypeServerError, 0, "no text content returned", ErrEmptyResponse)
	}

	return content,
		tokenCount(int(message.Usage.InputTokens), prompt),
		tokenCount(int(message.Usage.OutputTokens), content),
		nil
}

func (p *anthropicProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.StatusCode, "messages request failed", err)
	}

	return NewProviderError("anthropic", ErrorTypeNetwork, 0, "request failed", err)
}

// GetModel returns the configured model name.
func (p *anthropicProvider) GetModel() string { return p.model }
