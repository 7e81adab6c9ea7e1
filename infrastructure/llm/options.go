package llm

import (
	"fmt"
	"net/url"
)

// Request defaults. Credibility scoring wants near-deterministic output.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

// RequestOptions is the provider-neutral form of the options map passed to
// DoRequest.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int
	// Model overrides the provider's configured model.
	Model string
	// Temperature controls sampling randomness.
	Temperature float64
	// System carries instructions for the model.
	System string
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// ParseRequestOptions extracts request parameters from opts, using
// defaults for any missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	return RequestOptions{
		MaxTokens:   optionInt(opts, "max_tokens", DefaultMaxTokens, func(v int) bool { return v > 0 }),
		Model:       optionString(opts, "model", defaultModel),
		Temperature: optionFloat(opts, "temperature", DefaultTemperature, func(v float64) bool { return v >= 0 && v <= 1 }),
		System:      optionString(opts, "system", ""),
		JSON:        optionBool(opts, "json"),
	}
}

func optionInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	v, ok := opts[key].(int)
	if !ok || (valid != nil && !valid(v)) {
		return def
	}
	return v
}

func optionString(opts map[string]any, key, def string) string {
	v, ok := opts[key].(string)
	if !ok || v == "" {
		return def
	}
	return v
}

func optionFloat(opts map[string]any, key string, def float64, valid func(float64) bool) float64 {
	var f float64
	switch v := opts[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return def
	}
	if valid != nil && !valid(f) {
		return def
	}
	return f
}

func optionBool(opts map[string]any, key string) bool {
	v, _ := opts[key].(bool)
	return v
}

// validateBaseURL ensures a base URL override is an absolute http(s) URL.
// An empty string means the provider default.
func validateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

func tokenCount(actual int, text string) int {
	if actual > 0 {
		return actual
	}
	return SimpleTokenEstimator{}.EstimateTokens(text)
}
