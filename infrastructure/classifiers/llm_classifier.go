package classifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/ahrav/go-verity/internal/ports"
)

const (
	// MaxLLMInputChars bounds how much of the text is sent to the model.
	MaxLLMInputChars = 4000

	// DefaultLLMConfidence is used when the model omits a confidence.
	DefaultLLMConfidence = 0.7

	llmSystemPrompt = "You are an expert fact-checker and media literacy analyst. " +
		"Analyze the given text for credibility, bias and factual accuracy. Return only valid JSON."
)

const defaultLLMPrompt = `Analyze the following article text for credibility and potential misinformation.
{{if .URL}}
Source URL: {{.URL}}
{{end}}
ARTICLE TEXT:
{{.Text}}

Respond with a JSON object with exactly these fields:
{
  "credibility_score": <float 0-1, where 1 is highly credible and 0 is likely false>,
  "confidence": <float 0-1, how certain you are of the score>,
  "claims": [<main factual claims>],
  "red_flags": [<clickbait, emotional manipulation, unsourced claims, logical fallacies>],
  "bias_detected": "<political or commercial bias, or none>",
  "reasoning": "<concise explanation of the score>"
}

Weigh verifiable facts against speculation, the quality of cited sources,
logical consistency and missing context.`

// llmVerdict is the JSON object the model is asked to return.
type llmVerdict struct {
	CredibilityScore *float64 `json:"credibility_score" validate:"required"`
	Confidence       *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
	Claims           []string `json:"claims"`
	RedFlags         []string `json:"red_flags"`
	BiasDetected     string   `json:"bias_detected"`
	Reasoning        string   `json:"reasoning"`
}

// LLMClassifierConfig configures an LLMClassifier.
type LLMClassifierConfig struct {
	// Prompt is a text/template with .Text and .URL. Empty uses the
	// built-in credibility prompt.
	Prompt      string  `yaml:"prompt" json:"prompt"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" validate:"omitempty,min=64,max=4096"`
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=1"`
}

// LLMClassifier scores text credibility by asking a language model for a
// structured verdict.
type LLMClassifier struct {
	client ports.LLMClient
	config LLMClassifierConfig
	prompt *template.Template
}

// NewLLMClassifier validates config and compiles the prompt template.
func NewLLMClassifier(client ports.LLMClient, config LLMClassifierConfig) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("llm classifier: client is required")
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("llm classifier: invalid configuration: %w", err)
	}

	src := config.Prompt
	if src == "" {
		src = defaultLLMPrompt
	}
	tmpl, err := template.New("credibilityPrompt").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("llm classifier: parse prompt: %w", err)
	}

	return &LLMClassifier{client: client, config: config, prompt: tmpl}, nil
}

// Name returns "llm:<model>".
func (c *LLMClassifier) Name() string { return "llm:" + c.client.GetModel() }

// Classify asks the model for a credibility verdict on in.Text.
func (c *LLMClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	if strings.TrimSpace(in.Text) == "" {
		return ports.Inference{}, ports.NewClassifierError(c.Name(), "classify",
			fmt.Errorf("%w: empty text", ports.ErrUnsupportedInput))
	}

	prompt, err := c.render(in)
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.Name(), "render_prompt", err)
	}

	opts := map[string]any{
		"system":      llmSystemPrompt,
		"json":        true,
		"temperature": c.config.Temperature,
	}
	if c.config.MaxTokens > 0 {
		opts["max_tokens"] = c.config.MaxTokens
	}

	response, err := c.client.Complete(ctx, prompt, opts)
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.Name(), "complete", err)
	}

	inf, err := c.parse(response)
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.Name(), "parse_response", err)
	}
	return inf, nil
}

func (c *LLMClassifier) render(in ports.ClassifierInput) (string, error) {
	var buf bytes.Buffer
	err := c.prompt.Execute(&buf, struct {
		Text string
		URL  string
	}{Text: truncateRunes(in.Text, MaxLLMInputChars), URL: in.SourceURL})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *LLMClassifier) parse(response string) (ports.Inference, error) {
	raw := extractJSON(response)
	if raw == "" {
		return ports.Inference{}, fmt.Errorf("%w: no JSON object in response (%d chars)",
			ports.ErrInvalidResponse, len(response))
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ports.Inference{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}
	if err := validate.Struct(v); err != nil {
		return ports.Inference{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}

	score, err := normalizeScore(*v.CredibilityScore)
	if err != nil {
		return ports.Inference{}, err
	}

	confidence := DefaultLLMConfidence
	if v.Confidence != nil {
		confidence = *v.Confidence
	}

	return ports.Inference{
		Probability: score,
		Confidence:  confidence,
		Rationale:   rationale(v),
	}, nil
}

func rationale(v llmVerdict) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(v.Reasoning))
	if len(v.RedFlags) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Red flags: ")
		b.WriteString(strings.Join(v.RedFlags, "; "))
		b.WriteString(".")
	}
	if bias := strings.TrimSpace(v.BiasDetected); bias != "" && !strings.EqualFold(bias, "none") {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Bias: ")
		b.WriteString(bias)
		b.WriteString(".")
	}
	return b.String()
}

// extractJSON pulls a JSON object out of a model reply that may wrap it in
// a fenced code block or surround it with prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			candidate := strings.TrimSpace(body[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// normalizeScore accepts a credibility score on the requested 0-1 scale or,
// since models sometimes answer in percent, on a 0-100 scale. Anything else
// is an invalid response.
func normalizeScore(v float64) (float64, error) {
	switch {
	case math.IsNaN(v) || v < 0 || v > 100:
		return 0, fmt.Errorf("%w: credibility_score %v outside [0, 1]", ports.ErrInvalidResponse, v)
	case v > 1:
		return v / 100, nil
	default:
		return v, nil
	}
}
