// Package reliability implements the error classification and recovery
// policy for the alarm engine. Every failure the scheduler or gateway
// surfaces maps to exactly one RecoveryPlan; this package is the single
// place retry and backoff policy is defined so callers never reimplement
// it.
package reliability

import (
	"context"
	"time"

	"wakebell/internal/types"
)

// Strategy is the recovery approach attached to an error kind.
type Strategy string

const (
	StrategyRetry      Strategy = "retry"
	StrategyFallback   Strategy = "fallback"
	StrategyUserAction Strategy = "user_action"
	StrategyIgnore     Strategy = "ignore"
	StrategyEscalate   Strategy = "escalate"
)

// FallbackFunc is an optional compensating action executed when a plan's
// strategy is StrategyFallback.
type FallbackFunc func(ctx context.Context) error

// RecoveryPlan describes how the engine reacts to one error kind. Plans
// are static; attempt counters are tracked by the Engine per
// (error-kind, context) key, never inside the plan.
type RecoveryPlan struct {
	Strategy    Strategy
	MaxAttempts int
	Retry       RetryPolicy
	Message     string
	Fallback    FallbackFunc
}

// RetryPolicy defines the exponential backoff parameters for retries.
type RetryPolicy struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultGatewayRetryPolicy is the backoff applied to transient
// notification-gateway failures.
var DefaultGatewayRetryPolicy = RetryPolicy{
	BaseDelay:     1 * time.Second,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
}

// DefaultStorageRetryPolicy is the backoff applied to persistence
// failures. Shorter than the gateway policy: a stale write matters less
// than a missed wake-up, so the engine gives up sooner and proceeds on
// in-memory state.
var DefaultStorageRetryPolicy = RetryPolicy{
	BaseDelay:     500 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

// PlanFor returns the static recovery plan for an error kind. The switch
// is exhaustive over types.ErrorKind; adding a kind without a plan is a
// compile-visible gap here rather than a runtime lookup miss.
func PlanFor(kind types.ErrorKind) RecoveryPlan {
	switch kind {
	case types.KindValidation:
		return RecoveryPlan{
			Strategy: StrategyIgnore,
			Message:  "The alarm configuration is invalid. Please correct it and try again.",
		}
	case types.KindPermissionDenied:
		return RecoveryPlan{
			Strategy: StrategyUserAction,
			Message:  "Notifications are disabled. Enable them in system settings so your alarm can ring.",
		}
	case types.KindGatewayFailure:
		return RecoveryPlan{
			Strategy:    StrategyRetry,
			MaxAttempts: 3,
			Retry:       DefaultGatewayRetryPolicy,
			Message:     "Could not schedule the alarm notification. Please try again.",
		}
	case types.KindSnoozeLimit:
		return RecoveryPlan{
			Strategy: StrategyIgnore,
			Message:  "Snooze limit reached. The alarm will not snooze again this cycle.",
		}
	case types.KindStorageFailure:
		return RecoveryPlan{
			Strategy:    StrategyRetry,
			MaxAttempts: 2,
			Retry:       DefaultStorageRetryPolicy,
			Message:     "Alarm state could not be saved. Scheduling continues from memory.",
		}
	case types.KindUnexpected:
		return RecoveryPlan{
			Strategy: StrategyEscalate,
			Message:  "Something went wrong while scheduling. Please try again.",
		}
	default:
		return RecoveryPlan{
			Strategy: StrategyEscalate,
			Message:  "Something went wrong while scheduling. Please try again.",
		}
	}
}

// CalculateNextRetry computes the delay before the next retry attempt
// using exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt,
// MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}
