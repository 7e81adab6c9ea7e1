package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-verity/internal/ports"
)

// Common errors returned by the LLM client and providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned no text.
	ErrEmptyResponse = errors.New("empty response from API")
)

// ErrorType represents the category of an error returned by an LLM provider.
type ErrorType int

const (
	// ErrorTypeUnknown indicates an error of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates an invalid or unauthorized API key.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates that a rate limit has been exceeded.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates a malformed request or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates that a model or endpoint could not be found.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a problem on the provider's end.
	ErrorTypeServerError
	// ErrorTypeContentPolicy indicates that the request was blocked by a content policy.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork indicates a client-side network problem or cancellation.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates that the request timed out.
	ErrorTypeTimeout
)

// String returns the snake_case name of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProviderError normalizes provider-specific errors into a common format.
// It matches the ports sentinel that corresponds to its type, so callers
// outside this package can decide retryability with errors.Is.
type ProviderError struct {
	// Type classifies the error into a standard category.
	Type ErrorType
	// Provider names the LLM provider that produced the error.
	Provider string
	// StatusCode holds the HTTP status code, if applicable.
	StatusCode int
	// Message contains the provider's error message.
	Message string
	// Err holds the original SDK error.
	Err error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	base := e.Provider + " error"
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	base += fmt.Sprintf(" [%s]", e.Type)
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

// Unwrap returns the ports sentinel for the error type, if any, and the
// original error.
func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *ProviderError) sentinel() error {
	switch e.Type {
	case ErrorTypeAuthentication:
		return ports.ErrAuthenticationFailed
	case ErrorTypeRateLimit:
		return ports.ErrRateLimited
	case ErrorTypeServerError, ErrorTypeNetwork:
		return ports.ErrServiceUnavailable
	case ErrorTypeTimeout:
		return ports.ErrTimeout
	case ErrorTypeContentPolicy:
		return ports.ErrUnsupportedInput
	default:
		return nil
	}
}

// IsRetryable reports whether the request may succeed when repeated.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Type:       errType,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ErrorClassifier turns SDK errors of one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError classifies an error by its HTTP status code.
func (ec ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		errType = ErrorTypeAuthentication
		message = ec.Provider + " authentication failed"
	case statusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
		message = ec.Provider + " rate limit exceeded"
	case statusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		errType = ErrorTypeTimeout
	case statusCode >= 500:
		errType = ErrorTypeServerError
	case statusCode >= 400:
		errType = ErrorTypeBadRequest
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies context cancellation and deadlines.
func (ec ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
