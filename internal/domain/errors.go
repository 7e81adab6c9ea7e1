package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during analysis.
var (
	// ErrInsufficientSignals indicates that no provider produced a score,
	// so no analysis is possible. It is distinct from a valid result with
	// a low trust score.
	ErrInsufficientSignals = errors.New("insufficient signals")

	// ErrInvalidInput indicates that a request was rejected before any
	// provider was invoked.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates that a requested report does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable indicates that a signal provider failed or
	// timed out. It is absorbed by the analyzer and never fails a request.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidScore indicates a score that is not a finite value in [0,1].
	ErrInvalidScore = errors.New("invalid score")

	// ErrDuplicateSignal indicates that two signals of the same kind were
	// supplied for one request.
	ErrDuplicateSignal = errors.New("duplicate signal kind")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// InsufficientSignalsError is returned by an Aggregator when none of the
// attempted signals carried a score. Attempted lists what was tried so
// callers can explain why nothing was available.
type InsufficientSignalsError struct {
	Attempted []SignalResult
}

// Error implements the error interface for InsufficientSignalsError.
func (e *InsufficientSignalsError) Error() string {
	if len(e.Attempted) == 0 {
		return "insufficient signals: no signals supplied"
	}
	parts := make([]string, 0, len(e.Attempted))
	for _, s := range e.Attempted {
		parts = append(parts, fmt.Sprintf("%s=%s", s.Kind, s.Status))
	}
	return "insufficient signals: " + strings.Join(parts, ", ")
}

// Unwrap returns ErrInsufficientSignals.
func (e *InsufficientSignalsError) Unwrap() error { return ErrInsufficientSignals }

// NewInsufficientSignalsError creates an InsufficientSignalsError.
func NewInsufficientSignalsError(attempted []SignalResult) *InsufficientSignalsError {
	return &InsufficientSignalsError{Attempted: attempted}
}

// ProviderError represents a failure of a single signal provider.
// It always matches ErrProviderUnavailable.
type ProviderError struct {
	// Kind is the signal kind of the failing provider.
	Kind SignalKind

	// Operation describes what the provider was doing.
	Operation string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: kind=%s, operation=%s, err=%v", e.Kind, e.Operation, e.Err)
}

// Unwrap returns the underlying error and ErrProviderUnavailable.
func (e *ProviderError) Unwrap() []error { return []error{ErrProviderUnavailable, e.Err} }

// NewProviderError creates a new ProviderError with the given details.
func NewProviderError(kind SignalKind, operation string, err error) *ProviderError {
	return &ProviderError{
		Kind:      kind,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures and matches either
// ErrInvalidInput or ErrInvalidConfiguration depending on how it was
// created.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	kind error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns the sentinel the error was created with.
func (e *ValidationError) Unwrap() error { return e.kind }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a ValidationError for rejected request input.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
		kind:   ErrInvalidInput,
	}
}

// NewConfigValidationError creates a ValidationError for invalid configuration.
func NewConfigValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
		kind:   ErrInvalidConfiguration,
	}
}
