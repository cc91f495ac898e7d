// internal/proxy/circuit_test.go
package proxy

import (
	"testing"
	"time"
)

func testBreaker(threshold int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		WindowDuration:   time.Minute,
		TimeoutDuration:  time.Minute,
	})
}

// elapseCooldown rewinds the open breaker's test time so the next
// availability check behaves as if the cooldown had passed.
func elapseCooldown(cb *CircuitBreaker) {
	cb.mu.Lock()
	cb.nextTestTime = time.Now().Add(-time.Millisecond)
	cb.mu.Unlock()
}

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := testBreaker(3)

	if cb.State() != CircuitClosed {
		t.Fatalf("new breaker state = %s, want CLOSED", cb.State())
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Errorf("state after 2 failures = %s, want CLOSED", cb.State())
	}
	if !cb.IsAvailable() {
		t.Errorf("IsAvailable() = false below the threshold")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("state after 3 failures = %s, want OPEN", cb.State())
	}
	if cb.IsAvailable() {
		t.Errorf("IsAvailable() = true while OPEN inside the cooldown")
	}
	if got := cb.FailureCount(); got != 3 {
		t.Errorf("FailureCount() = %d, want 3", got)
	}
}

func TestCircuitBreakerRecoveryCycle(t *testing.T) {
	cb := testBreaker(1)

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state after failure = %s, want OPEN", cb.State())
	}

	// Cooldown over: the next check claims the single trial and moves
	// the breaker to HALF_OPEN.
	elapseCooldown(cb)
	if !cb.IsAvailable() {
		t.Fatalf("IsAvailable() = false after the cooldown elapsed")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state after trial claim = %s, want HALF_OPEN", cb.State())
	}

	// Trial success closes the breaker and clears the failure history.
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state after trial success = %s, want CLOSED", cb.State())
	}
	if got := cb.FailureCount(); got != 0 {
		t.Errorf("FailureCount() after close = %d, want 0", got)
	}

	// Open it again; this time the trial fails and the breaker reopens.
	cb.RecordFailure()
	elapseCooldown(cb)
	if !cb.IsAvailable() {
		t.Fatalf("IsAvailable() = false for the second trial")
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("state after trial failure = %s, want OPEN", cb.State())
	}
	if cb.IsAvailable() {
		t.Errorf("IsAvailable() = true right after reopening")
	}
}

func TestCircuitBreakerHalfOpenSingleTrial(t *testing.T) {
	cb := testBreaker(1)

	cb.RecordFailure()
	elapseCooldown(cb)

	if !cb.IsAvailable() {
		t.Fatalf("first IsAvailable() = false, want true")
	}
	// While the trial is in flight nobody else may pass.
	if cb.IsAvailable() {
		t.Errorf("second IsAvailable() = true while a trial is in flight")
	}
	if cb.IsAvailable() {
		t.Errorf("third IsAvailable() = true while a trial is in flight")
	}

	// The trial result frees the slot.
	cb.RecordSuccess()
	if !cb.IsAvailable() {
		t.Errorf("IsAvailable() = false after the breaker closed")
	}
}

func TestCircuitBreakerAbandonedTrialIsReclaimed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		WindowDuration:   time.Minute,
		TimeoutDuration:  time.Minute,
	})

	cb.RecordFailure()
	elapseCooldown(cb)
	if !cb.IsAvailable() {
		t.Fatalf("IsAvailable() = false after the cooldown elapsed")
	}

	// The trial never reports back. Once it is older than the cooldown
	// the slot is handed to the next caller.
	cb.mu.Lock()
	cb.probeStarted = time.Now().Add(-2 * time.Minute)
	cb.mu.Unlock()

	if !cb.IsAvailable() {
		t.Errorf("IsAvailable() = false for an abandoned trial slot")
	}
}

func TestCircuitBreakerSelectableHasNoSideEffects(t *testing.T) {
	cb := testBreaker(1)

	cb.RecordFailure()
	elapseCooldown(cb)

	// Any number of selectable() calls may say yes without claiming the
	// trial or changing state.
	for i := 0; i < 5; i++ {
		if !cb.selectable() {
			t.Fatalf("selectable() = false after the cooldown elapsed")
		}
	}
	if cb.State() != CircuitOpen {
		t.Errorf("selectable() changed state to %s", cb.State())
	}

	// The actual claim still works exactly once.
	if !cb.IsAvailable() {
		t.Errorf("IsAvailable() = false after selectable() checks")
	}
	if cb.IsAvailable() {
		t.Errorf("IsAvailable() granted a second trial")
	}
	if cb.selectable() {
		t.Errorf("selectable() = true while a trial is in flight")
	}
}

func TestCircuitBreakerWindowPruning(t *testing.T) {
	cb := testBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()

	// Age the first two failures out of the window.
	cb.mu.Lock()
	old := time.Now().Add(-2 * time.Minute)
	for i := range cb.failureWindow {
		cb.failureWindow[i] = old
	}
	cb.mu.Unlock()

	cb.RecordFailure()
	if got := cb.FailureCount(); got != 1 {
		t.Errorf("FailureCount() = %d, want 1 after pruning", got)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED when stale failures no longer count", cb.State())
	}
}

func TestCircuitBreakerLateSuccessWhileOpen(t *testing.T) {
	cb := testBreaker(1)

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	// A success from a request that was already in flight when the
	// breaker opened does not bypass the cooldown.
	cb.RecordSuccess()
	if cb.State() != CircuitOpen {
		t.Errorf("state after late success = %s, want OPEN", cb.State())
	}
	if cb.IsAvailable() {
		t.Errorf("IsAvailable() = true inside the cooldown after a late success")
	}
}

func TestCircuitBreakerZeroConfigDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	def := DefaultCircuitBreakerConfig()

	if cb.config.FailureThreshold != def.FailureThreshold {
		t.Errorf("FailureThreshold = %d, want %d", cb.config.FailureThreshold, def.FailureThreshold)
	}
	if cb.config.WindowDuration != def.WindowDuration {
		t.Errorf("WindowDuration = %v, want %v", cb.config.WindowDuration, def.WindowDuration)
	}
	if cb.config.TimeoutDuration != def.TimeoutDuration {
		t.Errorf("TimeoutDuration = %v, want %v", cb.config.TimeoutDuration, def.TimeoutDuration)
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "CLOSED"},
		{CircuitOpen, "OPEN"},
		{CircuitHalfOpen, "HALF_OPEN"},
		{CircuitState(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
