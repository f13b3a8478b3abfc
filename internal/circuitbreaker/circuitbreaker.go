// Package circuitbreaker guards the upstream registry: after enough
// consecutive failures calls fail fast instead of piling retries onto a
// struggling dependency.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/metrics"
)

// ErrCircuitOpen is returned when the breaker is open and calls are shed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// Config holds breaker configuration. Zero values get sensible defaults.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes needed to close from half-open
	Timeout          time.Duration // wait before probing half-open
}

// CircuitBreaker is a mutex-guarded three-state breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	openedAt     time.Time
	name         string
	failureLimit int
	successLimit int
	timeout      time.Duration
}

// New creates a breaker and registers its state gauge.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cb := &CircuitBreaker{
		state:        StateClosed,
		name:         cfg.Name,
		failureLimit: cfg.FailureThreshold,
		successLimit: cfg.SuccessThreshold,
		timeout:      cfg.Timeout,
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	return cb
}

// Call executes fn when the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) > cb.timeout {
			cb.state = StateHalfOpen
			cb.successes = 0
			metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(2)
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successes = 0
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureLimit {
			cb.trip()
		}
	case StateHalfOpen:
		cb.failures = 0
		cb.trip()
	}
}

// trip must be called with the mutex held.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	metrics.CircuitBreakerTrips.WithLabelValues(cb.name).Inc()
	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(1)
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successLimit {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
			metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(0)
		}
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
