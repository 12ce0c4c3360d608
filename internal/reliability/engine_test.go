package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakebell/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (n nopLogger) With(args ...any) types.Logger {
	return n
}

func newTestEngine(opts ...Option) (*Engine, *[]time.Duration) {
	var slept []time.Duration
	opts = append(opts, WithSleepFunc(func(ctx context.Context, d time.Duration) {
		slept = append(slept, d)
	}))
	return NewEngine(nopLogger{}, opts...), &slept
}

func gatewayErr() error {
	return types.NewAppError(types.ErrCodeGatewayUnavailable, "gateway call failed", errors.New("timeout"))
}

func TestHandleError_RetryWithinBudget(t *testing.T) {
	e, slept := newTestEngine()
	ctx := context.Background()

	res := e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	assert.Equal(t, OutcomeRetryRequested, res.Outcome)
	assert.Equal(t, types.KindGatewayFailure, res.Kind)
	assert.Equal(t, 1, res.Attempt)
	require.Len(t, *slept, 1)
	assert.Equal(t, 1*time.Second, (*slept)[0])

	// Second failure doubles the backoff.
	res = e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	assert.Equal(t, OutcomeRetryRequested, res.Outcome)
	assert.Equal(t, 2, res.Attempt)
	assert.Equal(t, 2*time.Second, (*slept)[1])
}

func TestHandleError_BudgetExhaustion(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
		assert.Equal(t, OutcomeRetryRequested, res.Outcome)
	}

	res := e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	assert.Equal(t, OutcomeNotRecovered, res.Outcome)
	assert.NotEmpty(t, res.Message)

	// Exhaustion clears the counter; the next failure starts fresh.
	assert.Equal(t, 0, e.AttemptCount(types.KindGatewayFailure, "schedule/alarm_1"))
	res = e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	assert.Equal(t, OutcomeRetryRequested, res.Outcome)
	assert.Equal(t, 1, res.Attempt)
}

func TestHandleError_ContextKeysAreIndependent(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	}

	// A different alarm still has its full budget.
	res := e.HandleError(ctx, gatewayErr(), "schedule/alarm_2")
	assert.Equal(t, OutcomeRetryRequested, res.Outcome)
	assert.Equal(t, 1, res.Attempt)
}

func TestHandleError_PermissionDeniedNeverRetries(t *testing.T) {
	e, slept := newTestEngine()

	err := types.NewAppError(types.ErrCodePermissionNotifications, "not authorized", nil)
	res := e.HandleError(context.Background(), err, "schedule/alarm_1")

	assert.Equal(t, OutcomeNotRecovered, res.Outcome)
	assert.Equal(t, types.KindPermissionDenied, res.Kind)
	assert.Contains(t, res.Message, "system settings")
	assert.Empty(t, *slept)
}

func TestHandleError_SnoozeLimitNotRetried(t *testing.T) {
	e, _ := newTestEngine()

	err := types.NewAppError(types.ErrCodeSnoozeLimitReached, "limit reached", nil)
	res := e.HandleError(context.Background(), err, "snooze/alarm_1")

	assert.Equal(t, OutcomeNotRecovered, res.Outcome)
	assert.Equal(t, types.KindSnoozeLimit, res.Kind)
}

func TestHandleError_FallbackRecovers(t *testing.T) {
	fallbackCalls := 0
	plans := func(kind types.ErrorKind) RecoveryPlan {
		if kind == types.KindStorageFailure {
			return RecoveryPlan{
				Strategy: StrategyFallback,
				Message:  "saved to memory instead",
				Fallback: func(ctx context.Context) error {
					fallbackCalls++
					return nil
				},
			}
		}
		return PlanFor(kind)
	}

	e, _ := newTestEngine(WithPlanFunc(plans))
	err := types.NewAppError(types.ErrCodeStorageUnavailable, "disk full", nil)

	res := e.HandleError(context.Background(), err, "persist/alarm_1")
	assert.Equal(t, OutcomeRecovered, res.Outcome)
	assert.Equal(t, 1, fallbackCalls)
}

func TestHandleError_FallbackFailureFallsThrough(t *testing.T) {
	plans := func(kind types.ErrorKind) RecoveryPlan {
		return RecoveryPlan{
			Strategy: StrategyFallback,
			Message:  "could not recover",
			Fallback: func(ctx context.Context) error { return errors.New("fallback broke too") },
		}
	}

	e, _ := newTestEngine(WithPlanFunc(plans))
	res := e.HandleError(context.Background(), errors.New("boom"), "op")

	assert.Equal(t, OutcomeNotRecovered, res.Outcome)
	assert.Equal(t, "could not recover", res.Message)
}

func TestClearAttempts(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	e.HandleError(ctx, gatewayErr(), "schedule/alarm_1")
	require.Equal(t, 2, e.AttemptCount(types.KindGatewayFailure, "schedule/alarm_1"))

	e.ClearAttempts(types.KindGatewayFailure, "schedule/alarm_1")
	assert.Equal(t, 0, e.AttemptCount(types.KindGatewayFailure, "schedule/alarm_1"))
}

func TestCalculateNextRetry(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 1*time.Second, CalculateNextRetry(policy, 0))
	assert.Equal(t, 2*time.Second, CalculateNextRetry(policy, 1))
	assert.Equal(t, 4*time.Second, CalculateNextRetry(policy, 2))
	assert.Equal(t, 30*time.Second, CalculateNextRetry(policy, 10)) // clamped
	assert.Equal(t, 1*time.Second, CalculateNextRetry(policy, -1))  // negative treated as zero
}

func TestPlanFor_Exhaustive(t *testing.T) {
	kinds := []types.ErrorKind{
		types.KindValidation,
		types.KindPermissionDenied,
		types.KindGatewayFailure,
		types.KindSnoozeLimit,
		types.KindStorageFailure,
		types.KindUnexpected,
	}

	for _, k := range kinds {
		plan := PlanFor(k)
		assert.NotEmpty(t, plan.Strategy, "kind %s has no strategy", k)
		assert.NotEmpty(t, plan.Message, "kind %s has no user-facing message", k)
		if plan.Strategy == StrategyRetry {
			assert.Greater(t, plan.MaxAttempts, 0)
			assert.Greater(t, plan.Retry.BaseDelay, time.Duration(0))
		}
	}
}
