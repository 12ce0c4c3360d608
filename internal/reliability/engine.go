package reliability

import (
	"context"
	"sync"
	"time"

	"wakebell/internal/types"
)

// Outcome is the engine's recommendation after handling one error.
type Outcome string

const (
	// OutcomeRetryRequested means the caller should reattempt the failed
	// operation; the engine has already waited the backoff delay.
	OutcomeRetryRequested Outcome = "retry_requested"

	// OutcomeRecovered means a fallback action compensated for the error.
	OutcomeRecovered Outcome = "recovered"

	// OutcomeNotRecovered means the budget is exhausted or the error is
	// not retryable; Message carries the user-facing text.
	OutcomeNotRecovered Outcome = "not_recovered"
)

// Result is the full recommendation returned by HandleError. The engine
// never re-invokes the failed operation itself; callers decide whether
// to act on a retry request.
type Result struct {
	Outcome Outcome
	Kind    types.ErrorKind
	Message string
	Attempt int
}

// Engine classifies errors and applies the static recovery plans. Attempt
// counters are tracked per context key and reset on success or on
// exhausting a plan's budget.
type Engine struct {
	logger types.Logger
	sleep  func(ctx context.Context, d time.Duration)
	plans  func(types.ErrorKind) RecoveryPlan

	mu       sync.Mutex
	attempts map[string]int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleepFunc overrides the backoff sleep. Intended for tests.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration)) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithPlanFunc overrides the plan table. Intended for tests and for
// callers that attach fallback actions.
func WithPlanFunc(fn func(types.ErrorKind) RecoveryPlan) Option {
	return func(e *Engine) { e.plans = fn }
}

// NewEngine creates a reliability engine with the default plan table.
func NewEngine(logger types.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:   logger,
		sleep:    sleepWithContext,
		plans:    PlanFor,
		attempts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sleepWithContext blocks for d or until the context is done, whichever
// comes first. Timer-based, never a busy-wait.
func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// HandleError classifies err, logs it, and applies its recovery plan:
// retryable errors within budget wait the backoff delay and request a
// retry; fallback plans run their compensating action; everything else
// clears the attempt counter and reports not recovered with the plan's
// user-facing message.
func (e *Engine) HandleError(ctx context.Context, err error, contextKey string) Result {
	kind := types.Classify(err)
	plan := e.plans(kind)
	key := kind.String() + "/" + contextKey

	e.logger.Error("engine operation failed",
		"error", err.Error(),
		"kind", kind.String(),
		"strategy", string(plan.Strategy),
		"context", contextKey,
	)

	if plan.Strategy == StrategyRetry {
		e.mu.Lock()
		attempt := e.attempts[key]
		if attempt < plan.MaxAttempts {
			e.attempts[key] = attempt + 1
			e.mu.Unlock()

			delay := CalculateNextRetry(plan.Retry, attempt)
			e.logger.Warn("retrying after backoff",
				"kind", kind.String(),
				"context", contextKey,
				"attempt", attempt+1,
				"max_attempts", plan.MaxAttempts,
				"delay", delay.String(),
			)
			e.sleep(ctx, delay)

			return Result{
				Outcome: OutcomeRetryRequested,
				Kind:    kind,
				Message: plan.Message,
				Attempt: attempt + 1,
			}
		}
		// Budget exhausted.
		delete(e.attempts, key)
		e.mu.Unlock()

		e.logger.Error("retry budget exhausted",
			"kind", kind.String(),
			"context", contextKey,
			"max_attempts", plan.MaxAttempts,
		)
		return Result{
			Outcome: OutcomeNotRecovered,
			Kind:    kind,
			Message: plan.Message,
			Attempt: plan.MaxAttempts,
		}
	}

	if plan.Strategy == StrategyFallback && plan.Fallback != nil {
		if fbErr := plan.Fallback(ctx); fbErr == nil {
			e.ClearAttempts(kind, contextKey)
			e.logger.Info("fallback action recovered",
				"kind", kind.String(),
				"context", contextKey,
			)
			return Result{Outcome: OutcomeRecovered, Kind: kind, Message: plan.Message}
		}
		e.logger.Error("fallback action failed",
			"kind", kind.String(),
			"context", contextKey,
		)
	}

	e.ClearAttempts(kind, contextKey)
	return Result{
		Outcome: OutcomeNotRecovered,
		Kind:    kind,
		Message: plan.Message,
	}
}

// ClearAttempts resets the attempt counter for a (kind, context) pair.
// Callers invoke it after a successful operation so later failures start
// a fresh budget.
func (e *Engine) ClearAttempts(kind types.ErrorKind, contextKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attempts, kind.String()+"/"+contextKey)
}

// AttemptCount reports the attempts recorded so far for a (kind, context)
// pair.
func (e *Engine) AttemptCount(kind types.ErrorKind, contextKey string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[kind.String()+"/"+contextKey]
}
