package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// OpenAIDefaultModel is used when no model is configured for "openai".
	OpenAIDefaultModel = "gpt-4o-mini"

	// GroqDefaultModel is used when no model is configured for "groq".
	GroqDefaultModel = "llama-3.3-70b-versatile"

	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

func init() {
	RegisterProviderFactory("openai", func(c ClientConfig) (CoreLLM, error) {
		return newOpenAICompatibleProvider("openai", OpenAIDefaultModel, "", c)
	})
	RegisterProviderFactory("groq", func(c ClientConfig) (CoreLLM, error) {
		return newOpenAICompatibleProvider("groq", GroqDefaultModel, GroqBaseURL, c)
	})
}

// openAIProvider implements CoreLLM for OpenAI's chat completions API and
// for services that speak the same protocol.
type openAIProvider struct {
	name       string
	model      string
	client     *openai.Client
	classifier ErrorClassifier
}

func newOpenAICompatibleProvider(name, defaultModel, defaultBaseURL string, config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		validated, err := validateBaseURL(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validated
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		name:       name,
		model:      model,
		client:     openai.NewClientWithConfig(clientConfig),
		classifier: ErrorClassifier{Provider: name},
	}, nil
}

// DoRequest sends a chat completion request and returns the first choice.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", 0, 0, NewProviderError(p.name, ErrorTypeServerError, 0, "no completion returned", ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	return content, tokenCount(resp.Usage.PromptTokens, prompt), tokenCount(resp.Usage.CompletionTokens, content), nil
}

func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    messages,
		MaxTokens:   options.MaxTokens,
		Temperature: float32(options.Temperature),
	}
	if options.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.classifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError(p.name, ErrorTypeNetwork, 0, "request failed", err)
}

// GetModel returns the configured model name.
func (p *openAIProvider) GetModel() string { return p.model }
