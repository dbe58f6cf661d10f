package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerError reports a dispatch blocked by the breaker.
type CircuitBreakerError struct {
	State            BreakerState
	Failures         int
	FailureThreshold int
	NextRetry        time.Time
}

func (e *CircuitBreakerError) Error() string {
	switch e.State {
	case BreakerOpen:
		retryIn := time.Until(e.NextRetry).Round(time.Second)
		return fmt.Sprintf("circuit breaker open: dispatch blocked (failures=%d/%d, retry in %v)",
			e.Failures, e.FailureThreshold, retryIn)
	case BreakerHalfOpen:
		return "circuit breaker half-open: dispatch limited"
	default:
		return fmt.Sprintf("circuit breaker error: state %v", e.State)
	}
}

// CircuitBreaker trips after consecutive failures and recovers through a
// half-open probe phase.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           BreakerState
	failures        int
	successes       int
	lastFailureTime time.Time
	currentHalfOpen int

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	halfOpenRequests int
	logger           *slog.Logger
}

// BreakerOption configures the circuit breaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures trip the
// breaker.
func WithFailureThreshold(threshold int) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = threshold
	}
}

// WithSuccessThreshold sets how many half-open successes close the
// breaker again.
func WithSuccessThreshold(threshold int) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.successThreshold = threshold
	}
}

// WithCooldown sets how long the breaker stays open before probing.
func WithCooldown(cooldown time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.cooldown = cooldown
	}
}

// WithHalfOpenRequests caps in-flight probes in the half-open state.
func WithHalfOpenRequests(requests int) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.halfOpenRequests = requests
	}
}

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// NewCircuitBreaker creates a circuit breaker with sensible defaults.
func NewCircuitBreaker(options ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: 5,
		successThreshold: 3,
		cooldown:         30 * time.Second,
		halfOpenRequests: 3,
		logger:           slog.Default(),
	}

	for _, opt := range options {
		opt(cb)
	}

	return cb
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.canExecute(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := fn()
	cb.recordResult(err)
	return err
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = BreakerClosed
	cb.failures = 0
	cb.successes = 0
	cb.currentHalfOpen = 0
}

// canExecute checks whether a dispatch may proceed.
func (cb *CircuitBreaker) canExecute() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		nextRetry := cb.lastFailureTime.Add(cb.cooldown)
		if time.Now().After(nextRetry) {
			cb.currentHalfOpen = 0
			cb.successes = 0
			cb.transition(BreakerHalfOpen, "cooldown expired")
			return nil
		}
		return &CircuitBreakerError{
			State:            BreakerOpen,
			Failures:         cb.failures,
			FailureThreshold: cb.failureThreshold,
			NextRetry:        nextRetry,
		}

	case BreakerHalfOpen:
		if cb.currentHalfOpen >= cb.halfOpenRequests {
			return &CircuitBreakerError{
				State:            BreakerHalfOpen,
				Failures:         cb.failures,
				FailureThreshold: cb.failureThreshold,
				NextRetry:        time.Now().Add(time.Second),
			}
		}
		cb.currentHalfOpen++
		return nil

	default:
		return &CircuitBreakerError{State: cb.state}
	}
}

// recordResult feeds an execution outcome into the state machine.
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case BreakerClosed:
			if cb.failures >= cb.failureThreshold {
				cb.transition(BreakerOpen,
					fmt.Sprintf("failure threshold reached (%d/%d)", cb.failures, cb.failureThreshold))
			}
		case BreakerHalfOpen:
			// One failure while probing reopens the breaker.
			cb.currentHalfOpen = 0
			cb.transition(BreakerOpen, "failure while half-open")
		}

		if cb.state != BreakerClosed {
			cb.successes = 0
		}
		return
	}

	cb.successes++
	switch cb.state {
	case BreakerHalfOpen:
		if cb.successes >= cb.successThreshold {
			cb.failures = 0
			cb.currentHalfOpen = 0
			cb.transition(BreakerClosed,
				fmt.Sprintf("success threshold reached (%d/%d)", cb.successes, cb.successThreshold))
		}
	case BreakerClosed:
		cb.failures = 0
	}
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to BreakerState, reason string) {
	from := cb.state
	cb.state = to

	if to == BreakerOpen {
		cb.logger.Warn("circuit breaker opened",
			"from", from.String(),
			"reason", reason,
		)
	} else {
		cb.logger.Info("circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
			"reason", reason,
		)
	}
}

// CircuitBreakerInterceptor rejects command dispatches while its breaker
// is open. Handler failures count against the breaker; rejections do not.
type CircuitBreakerInterceptor struct {
	breaker *CircuitBreaker
}

// NewCircuitBreakerInterceptor creates a new circuit breaker interceptor.
// A nil breaker gets default settings.
func NewCircuitBreakerInterceptor(breaker *CircuitBreaker) *CircuitBreakerInterceptor {
	if breaker == nil {
		breaker = NewCircuitBreaker()
	}

	return &CircuitBreakerInterceptor{breaker: breaker}
}

// Breaker exposes the underlying breaker for inspection and reset.
func (i *CircuitBreakerInterceptor) Breaker() *CircuitBreaker {
	return i.breaker
}

// Intercept implements contracts.CommandInterceptor.
func (i *CircuitBreakerInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	return i.breaker.Execute(ctx, func() error {
		return next.Handle(ctx, command)
	})
}

// Name implements contracts.CommandInterceptor.
func (i *CircuitBreakerInterceptor) Name() string {
	return "CircuitBreakerInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *CircuitBreakerInterceptor) InterceptorOrder() int {
	return OrderCircuitBreaker
}

var _ contracts.CommandInterceptor = (*CircuitBreakerInterceptor)(nil)
