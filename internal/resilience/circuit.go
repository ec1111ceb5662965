package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures; calls are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows a single probe call to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a probe is
	// allowed.
	ResetTimeout time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults used for the matching
// service.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker guards a single external service. When the service fails
// repeatedly, further calls short-circuit with ErrCircuitOpen until the
// reset timeout elapses.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time

	nowFunc func() time.Time
}

// NewCircuitBreaker creates a named circuit breaker; the name appears in
// state-transition logs.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:    name,
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen
// without calling fn when the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailureTime) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(CircuitClosed)
	cb.consecutiveFailures = 0
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.lastFailureTime) >= cb.cfg.ResetTimeout {
			cb.transition(CircuitHalfOpen)
			return nil // probe allowed
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == CircuitHalfOpen {
			cb.transition(CircuitClosed)
		}
		cb.consecutiveFailures = 0
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.nowFunc()

	if cb.state == CircuitHalfOpen || cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	zap.L().Info("resilience: circuit state change",
		zap.String("breaker", cb.name),
		zap.String("from", cb.state.String()),
		zap.String("to", to.String()),
	)
	cb.state = to
}
