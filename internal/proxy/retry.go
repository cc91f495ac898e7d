// internal/proxy/retry.go
package proxy

import (
	"fmt"
	"time"
)

// BackoffStrategy selects the backoff curve between retry attempts
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffFixed       BackoffStrategy = "fixed"
)

// RetryPolicy describes how request attempts are spaced and bounded.
// It is immutable once constructed.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, the first try included.
	MaxAttempts int
	// Backoff selects the delay curve.
	Backoff BackoffStrategy
	// BaseDelay is the starting delay.
	BaseDelay time.Duration
	// Multiplier grows the exponential curve per attempt.
	Multiplier float64
	// MaxBackoffDelay caps every computed delay.
	MaxBackoffDelay time.Duration
	// Jitter enables decorrelated jitter. Instead of scattering around
	// the computed delay, each draw ranges off the previous delay, which
	// keeps many rotators retrying the same upstream from synchronizing.
	Jitter bool

	retryableStatus map[int]struct{}
}

// DefaultRetryableStatusCodes are the upstream statuses worth retrying
// through a different proxy.
var DefaultRetryableStatusCodes = []int{502, 503, 504}

// DefaultRetryPolicy returns the policy used when none is configured:
// three attempts with jittered exponential backoff.
func DefaultRetryPolicy() *RetryPolicy {
	p, _ := NewRetryPolicy(3, BackoffExponential, time.Second, 2.0, 30*time.Second, true, nil)
	return p
}

// NewRetryPolicy validates and builds a retry policy. A nil
// retryableStatusCodes slice selects the defaults.
func NewRetryPolicy(maxAttempts int, backoff BackoffStrategy, baseDelay time.Duration, multiplier float64, maxBackoffDelay time.Duration, jitter bool, retryableStatusCodes []int) (*RetryPolicy, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if baseDelay <= 0 {
		return nil, fmt.Errorf("base delay must be positive, got %v", baseDelay)
	}
	if maxBackoffDelay < baseDelay {
		return nil, fmt.Errorf("max backoff delay %v is below base delay %v", maxBackoffDelay, baseDelay)
	}

	switch backoff {
	case BackoffExponential:
		if multiplier < 1 {
			return nil, fmt.Errorf("exponential backoff needs a multiplier >= 1, got %g", multiplier)
		}
	case BackoffLinear, BackoffFixed:
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", backoff)
	}

	if retryableStatusCodes == nil {
		retryableStatusCodes = DefaultRetryableStatusCodes
	}
	statusSet := make(map[int]struct{}, len(retryableStatusCodes))
	for _, code := range retryableStatusCodes {
		statusSet[code] = struct{}{}
	}

	return &RetryPolicy{
		MaxAttempts:     maxAttempts,
		Backoff:         backoff,
		BaseDelay:       baseDelay,
		Multiplier:      multiplier,
		MaxBackoffDelay: maxBackoffDelay,
		Jitter:          jitter,
		retryableStatus: statusSet,
	}, nil
}

// IsRetryableStatus reports whether an upstream status code should be
// retried through another proxy.
func (rp *RetryPolicy) IsRetryableStatus(code int) bool {
	_, ok := rp.retryableStatus[code]
	return ok
}

// Delay computes the wait before the next attempt. attempt counts from 0;
// previousDelay is the delay used before the previous attempt, or 0 on
// the first. Without jitter the delay follows the configured curve capped
// at MaxBackoffDelay. With jitter the first draw is uniform in
// [0, computed) and later draws are uniform in
// [BaseDelay, min(3*previousDelay, MaxBackoffDelay)]. The result is
// always positive and never exceeds the cap.
func (rp *RetryPolicy) Delay(attempt int, previousDelay time.Duration) time.Duration {
	computed := rp.computedDelay(attempt)

	if !rp.Jitter {
		return computed
	}

	if previousDelay <= 0 {
		d := time.Duration(randomInt63n(int64(computed)))
		if d <= 0 {
			d = time.Duration(1)
		}
		return d
	}

	upper := 3 * previousDelay
	if upper > rp.MaxBackoffDelay {
		upper = rp.MaxBackoffDelay
	}
	lower := rp.BaseDelay
	if upper <= lower {
		return lower
	}
	return lower + time.Duration(randomInt63n(int64(upper-lower)+1))
}

// computedDelay evaluates the backoff curve for an attempt, capped at
// MaxBackoffDelay.
func (rp *RetryPolicy) computedDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	ceiling := float64(rp.MaxBackoffDelay)
	base := float64(rp.BaseDelay)
	var delay float64

	switch rp.Backoff {
	case BackoffLinear:
		delay = base * float64(attempt+1)
	case BackoffFixed:
		delay = base
	default:
		delay = base
		for i := 0; i < attempt; i++ {
			delay *= rp.Multiplier
			if delay >= ceiling {
				break
			}
		}
	}

	if delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay)
}
