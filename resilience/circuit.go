package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failed/total ratio, measured over the
	// trailing ResetTimeout window, at which the circuit opens.
	// Default: 0.5
	FailureThreshold float64

	// ResetTimeout is both the sliding-window length for the failure
	// ratio and how long the circuit stays Open before allowing a trial
	// request.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// outcome is one recorded admit result within the sliding window.
type outcome struct {
	at     time.Time
	failed bool
}

// CircuitBreaker is a three-state failure isolator over a sliding
// failure-ratio window. Closed admits everything and opens once the
// failure ratio over the trailing window reaches FailureThreshold; Open
// denies everything until ResetTimeout elapses, then allows a trial
// request in HalfOpen; HalfOpen closes on the first success or reopens
// on the first failure.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	outcomes       []outcome
	lastTransition time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 0.5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:         config,
		state:          StateClosed,
		lastTransition: time.Now(),
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.outcomes = nil
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.evictLocked(time.Now())

	if cb.currentStateLocked() == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	now := time.Now()
	cb.evictLocked(now)
	cb.outcomes = append(cb.outcomes, outcome{at: now, failed: isFailure})

	switch cb.state {
	case StateClosed:
		failed, total := cb.countsLocked()
		if total > 0 && float64(failed)/float64(total) >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if isFailure {
			cb.transitionLocked(StateOpen)
		} else {
			cb.outcomes = nil
			cb.transitionLocked(StateClosed)
		}
	}
}

// currentStateLocked resolves the one passive transition (Open to
// HalfOpen once ResetTimeout has elapsed) that happens on the read path
// rather than in response to a recorded outcome.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastTransition) >= cb.config.ResetTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	cb.lastTransition = time.Now()
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// evictLocked drops outcomes older than ResetTimeout, so the failure
// ratio always reflects only recent behavior.
func (cb *CircuitBreaker) evictLocked(now time.Time) {
	cutoff := now.Add(-cb.config.ResetTimeout)
	i := 0
	for ; i < len(cb.outcomes); i++ {
		if cb.outcomes[i].at.After(cutoff) {
			break
		}
	}
	cb.outcomes = cb.outcomes[i:]
}

func (cb *CircuitBreaker) countsLocked() (failed, total int) {
	for _, o := range cb.outcomes {
		total++
		if o.failed {
			failed++
		}
	}
	return failed, total
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.evictLocked(time.Now())
	failed, total := cb.countsLocked()

	return CircuitBreakerMetrics{
		State:          cb.currentStateLocked(),
		Failures:       failed,
		Total:          total,
		LastTransition: cb.lastTransition,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State          State
	Failures       int
	Total          int
	LastTransition time.Time
}
