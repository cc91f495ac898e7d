// internal/proxy/circuit.go
package proxy

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed - normal operation, the proxy is eligible
	CircuitClosed CircuitState = iota
	// CircuitOpen - the proxy is ineligible until the cooldown elapses
	CircuitOpen
	// CircuitHalfOpen - exactly one trial request is allowed through
	CircuitHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds the thresholds for a per-proxy breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures within WindowDuration
	// that trips the breaker.
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// WindowDuration is the sliding window failures are counted over.
	WindowDuration time.Duration `yaml:"window_duration" json:"window_duration"`
	// TimeoutDuration is how long an open breaker blocks the proxy
	// before allowing a trial request.
	TimeoutDuration time.Duration `yaml:"timeout_duration" json:"timeout_duration"`
}

// DefaultCircuitBreakerConfig returns the default breaker thresholds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		WindowDuration:   60 * time.Second,
		TimeoutDuration:  30 * time.Second,
	}
}

// CircuitBreaker gates selection of a single proxy based on its recent
// failures. Failures are tracked in a sliding window; crossing the
// threshold opens the breaker, which blocks the proxy until a cooldown
// elapses and a single trial request decides whether to close it again.
//
// Each breaker has its own mutex so unrelated proxies never serialize
// on one another.
type CircuitBreaker struct {
	mu              sync.Mutex
	config          CircuitBreakerConfig
	state           CircuitState
	failureWindow   []time.Time
	lastStateChange time.Time
	nextTestTime    time.Time
	probeInFlight   bool
	probeStarted    time.Time
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultCircuitBreakerConfig().FailureThreshold
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = DefaultCircuitBreakerConfig().WindowDuration
	}
	if config.TimeoutDuration <= 0 {
		config.TimeoutDuration = DefaultCircuitBreakerConfig().TimeoutDuration
	}

	return &CircuitBreaker{
		config:          config,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// IsAvailable reports whether a request may be issued through this proxy
// right now. An open breaker whose cooldown has elapsed moves to
// HALF_OPEN and claims the single trial slot for the caller; exactly one
// caller wins that transition. In HALF_OPEN further callers are refused
// until the trial reports a result, except that a trial that never
// reported back is abandoned after the cooldown and its slot freed.
func (cb *CircuitBreaker) IsAvailable() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.pruneLocked(now)

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if now.Before(cb.nextTestTime) {
			return false
		}
		cb.transitionLocked(CircuitHalfOpen, now)
		cb.probeInFlight = true
		cb.probeStarted = now
		return true
	case CircuitHalfOpen:
		if cb.probeInFlight && now.Sub(cb.probeStarted) < cb.config.TimeoutDuration {
			return false
		}
		cb.probeInFlight = true
		cb.probeStarted = now
		return true
	default:
		return false
	}
}

// selectable is the read-only view used when assembling candidate lists.
// It answers the same question as IsAvailable without claiming the trial
// slot or transitioning state, so filtering many proxies does not leak
// half-open probes that are never exercised.
func (cb *CircuitBreaker) selectable() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		return !now.Before(cb.nextTestTime)
	case CircuitHalfOpen:
		return !cb.probeInFlight || now.Sub(cb.probeStarted) >= cb.config.TimeoutDuration
	default:
		return false
	}
}

// RecordFailure notes a failed request through this proxy. A failure
// while HALF_OPEN reopens the breaker immediately; in CLOSED the breaker
// opens once the windowed failure count reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.probeInFlight = false
	cb.failureWindow = append(cb.failureWindow, now)
	cb.pruneLocked(now)

	switch cb.state {
	case CircuitHalfOpen:
		cb.transitionLocked(CircuitOpen, now)
	case CircuitClosed:
		if len(cb.failureWindow) >= cb.config.FailureThreshold {
			cb.transitionLocked(CircuitOpen, now)
		}
	}
}

// RecordSuccess notes a successful request. A success while HALF_OPEN
// closes the breaker and clears the failure history; in CLOSED it only
// prunes the window. A late success while OPEN does not bypass the
// cooldown.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.probeInFlight = false
	cb.pruneLocked(now)

	if cb.state == CircuitHalfOpen {
		cb.failureWindow = cb.failureWindow[:0]
		cb.transitionLocked(CircuitClosed, now)
	}
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the number of failures still inside the window.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.pruneLocked(time.Now())
	return len(cb.failureWindow)
}

// LastStateChange returns when the breaker last changed state.
func (cb *CircuitBreaker) LastStateChange() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastStateChange
}

// pruneLocked drops window entries older than the window duration.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.config.WindowDuration)
	i := 0
	for i < len(cb.failureWindow) && cb.failureWindow[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.failureWindow = cb.failureWindow[i:]
	}
}

// transitionLocked moves the breaker to a new state. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(state CircuitState, now time.Time) {
	cb.state = state
	cb.lastStateChange = now
	if state == CircuitOpen {
		cb.nextTestTime = now.Add(cb.config.TimeoutDuration)
	}
}
