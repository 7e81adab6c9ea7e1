package classifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

// maxRemoteResponseBytes caps how much of a model server reply is read.
const maxRemoteResponseBytes = 1 << 20

// RemoteConfig points at a model server speaking the inference protocol:
// POST {"input", "media_url"} and a {"probability", "confidence",
// "rationale"} reply.
type RemoteConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" validate:"required,url"`
	APIKey   string        `yaml:"-" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// RequireMedia rejects inputs without a media URL before calling out.
	RequireMedia bool `yaml:"require_media" json:"require_media"`
}

type remoteRequest struct {
	Input    string `json:"input,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

type remoteResponse struct {
	Probability *float64 `json:"probability" validate:"required,min=0,max=1"`
	Confidence  *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
	Rationale   string   `json:"rationale"`
}

// RemoteClassifier calls an external model server over HTTP. It is how
// image and audio models are served.
type RemoteClassifier struct {
	name   string
	config RemoteConfig
	client *http.Client
}

// NewRemoteClassifier validates the endpoint. A nil client gets a
// dedicated http.Client with config.Timeout.
func NewRemoteClassifier(name string, config RemoteConfig, client *http.Client) (*RemoteClassifier, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("remote classifier %s: invalid configuration: %w", name, err)
	}
	u, err := url.Parse(config.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("remote classifier %s: endpoint must be http(s): %q", name, config.Endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &RemoteClassifier{name: name, config: config, client: client}, nil
}

// Name returns the configured classifier name.
func (c *RemoteClassifier) Name() string { return c.name }

// Classify posts the input to the model server.
func (c *RemoteClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	if c.config.RequireMedia && in.MediaURL == "" {
		return ports.Inference{}, ports.NewClassifierError(c.name, "classify",
			fmt.Errorf("%w: media url required", ports.ErrUnsupportedInput))
	}

	body, err := json.Marshal(remoteRequest{Input: in.Text, MediaURL: in.MediaURL})
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "encode", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "post", transportError(ctx, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseBytes))
	if err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "read", transportError(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := ports.NewClassifierError(c.name, "post", statusError(resp.StatusCode, raw))
		if d := retryAfter(resp.Header.Get("Retry-After")); d > 0 {
			cerr.RetryAfter = &d
		}
		return ports.Inference{}, cerr
	}

	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "decode",
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}
	if err := validate.Struct(out); err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "decode",
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}

	inf := ports.Inference{Probability: *out.Probability, Confidence: *out.Probability, Rationale: out.Rationale}
	if out.Confidence != nil {
		inf.Confidence = *out.Confidence
	} else if inf.Probability < 0.5 {
		inf.Confidence = 1 - inf.Probability
	}
	return inf, nil
}

// Ready reports whether the server answers a GET on its endpoint with
// anything but a 5xx.
func (c *RemoteClassifier) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// Close releases idle connections.
func (c *RemoteClassifier) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ports.ErrRateLimited, status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ports.ErrAuthenticationFailed, status, msg)
	case status == http.StatusUnsupportedMediaType || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", ports.ErrUnsupportedInput, status, msg)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ports.ErrServiceUnavailable, status, msg)
	default:
		return fmt.Errorf("model server returned status %d: %s", status, msg)
	}
}

func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
