package classifiers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call
// without reaching the backend.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed lets every call through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects every call until the cooldown has elapsed.
	StateOpen
	// StateHalfOpen lets a single trial call through to test recovery.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and stays
// open for the cooldown. The lock is never held while the protected
// function runs, so slow backends do not serialize callers.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         CircuitBreakerState
	failures      int
	maxFailures   int
	cooldown      time.Duration
	openedAt      time.Time
	trialInFlight bool
	now           func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// allow reports whether a call may proceed and whether it is the
// half-open trial call.
func (cb *CircuitBreaker) allow() (bool, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.trialInFlight = true
		return true, true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false, false
		}
		cb.trialInFlight = true
		return true, true
	default:
		return true, false
	}
}

func (cb *CircuitBreaker) record(trial bool, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialInFlight = false
	}
	if !failed {
		cb.failures = 0
		cb.state = StateClosed
		return
	}

	cb.failures++
	if trial || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// Call runs fn through the breaker. It returns ErrCircuitOpen without
// running fn when the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	ok, trial := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(trial, countsAsFailure(err))
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// countsAsFailure separates backend faults from rejections of the input
// itself and from callers abandoning the request.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ports.ErrUnsupportedInput), errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

type circuitBreakerClassifier struct {
	wrapped
	cb        *CircuitBreaker
	collector ports.MetricsCollector
}

// CircuitBreakerMiddleware trips after maxFailures consecutive backend
// failures and rejects calls with ErrCircuitOpen for the cooldown. State
// changes are reported as the classifier_circuit_state gauge when a
// collector is supplied.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, collector ports.MetricsCollector) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		return &circuitBreakerClassifier{
			wrapped:   wrapped{next: next},
			cb:        NewCircuitBreaker(maxFailures, cooldown),
			collector: collector,
		}
	}
}

func (c *circuitBreakerClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	var out ports.Inference
	err := c.cb.Call(func() error {
		var err error
		out, err = c.next.Classify(ctx, in)
		return err
	})

	if c.collector != nil {
		c.collector.RecordGauge("classifier_circuit_state", float64(c.cb.State()), map[string]string{
			"classifier": c.next.Name(),
		})
	}
	return out, err
}

// Ready reports false while the circuit is open.
func (c *circuitBreakerClassifier) Ready(context.Context) bool {
	return c.cb.State() != StateOpen
}
