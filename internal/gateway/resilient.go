// Package gateway hardens the injected platform notification gateway.
// All engine calls to the platform pass through the Resilient decorator,
// which enforces a bounded timeout per call, wraps scheduling in a
// circuit breaker, and maps raw failures onto the engine's error
// taxonomy. The platform gateway itself is an external collaborator;
// this package never implements it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"wakebell/internal/types"
)

// Compile-time assertion that Resilient implements NotificationGateway.
var _ types.NotificationGateway = (*Resilient)(nil)

// DefaultCallTimeout bounds every gateway call so a hung platform API
// degrades to a retryable gateway failure instead of blocking the caller.
const DefaultCallTimeout = 5 * time.Second

// Resilient decorates a NotificationGateway with timeouts and a circuit
// breaker. A permission check runs before every ScheduleAt so an
// unauthorized state surfaces as a user-action error rather than a
// transient one.
type Resilient struct {
	inner       types.NotificationGateway
	breaker     *gobreaker.CircuitBreaker[types.GatewayHandle]
	callTimeout time.Duration
	logger      types.Logger
}

// ResilientOption configures a Resilient gateway.
type ResilientOption func(*Resilient)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) { r.callTimeout = d }
}

// NewResilient wraps inner with the standard resilience settings: the
// breaker opens after 5 consecutive scheduling failures and probes again
// after 30 seconds.
func NewResilient(inner types.NotificationGateway, logger types.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:       inner,
		callTimeout: DefaultCallTimeout,
		logger:      logger,
	}

	r.breaker = gobreaker.NewCircuitBreaker[types.GatewayHandle](gobreaker.Settings{
		Name:        "notification-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScheduleAt schedules a notification through the circuit breaker with a
// bounded timeout. Failures map to the engine taxonomy: an unauthorized
// gateway is permission_notifications_denied (never retried), a deadline
// is gateway_timeout, an open breaker or any other failure is
// gateway_unavailable (both retryable).
func (r *Resilient) ScheduleAt(ctx context.Context, at time.Time, payload types.TriggerPayload) (types.GatewayHandle, error) {
	if !r.inner.PermissionsGranted(ctx) {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodePermissionNotifications,
			"notification permission not granted",
			nil,
			map[string]any{"alarm_id": payload.AlarmID},
		)
	}

	handle, err := r.breaker.Execute(func() (types.GatewayHandle, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		return r.inner.ScheduleAt(callCtx, at, payload)
	})
	if err != nil {
		return "", r.mapError(err, payload.AlarmID)
	}
	return handle, nil
}

// Cancel cancels a handle with a bounded timeout. Errors are mapped but
// the breaker is not involved: cancellation failures must never block
// scheduling recovery.
func (r *Resilient) Cancel(ctx context.Context, handle types.GatewayHandle) error {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	if err := r.inner.Cancel(callCtx, handle); err != nil {
		return r.mapError(err, "")
	}
	return nil
}

// ListLive queries live gateway handles with a bounded timeout.
func (r *Resilient) ListLive(ctx context.Context) ([]types.LiveTrigger, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	live, err := r.inner.ListLive(callCtx)
	if err != nil {
		return nil, r.mapError(err, "")
	}
	return live, nil
}

// PermissionsGranted delegates to the platform gateway.
func (r *Resilient) PermissionsGranted(ctx context.Context) bool {
	return r.inner.PermissionsGranted(ctx)
}

// mapError translates raw gateway failures into the engine taxonomy.
// Errors already carrying an AppError pass through unchanged.
func (r *Resilient) mapError(err error, alarmID string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}

	details := map[string]any{}
	if alarmID != "" {
		details["alarm_id"] = alarmID
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppErrorWithDetails(
			types.ErrCodeGatewayUnavailable,
			"circuit breaker is open; notification gateway unavailable",
			err, details,
		)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppErrorWithDetails(
			types.ErrCodeGatewayTimeout,
			fmt.Sprintf("gateway call exceeded %s timeout", r.callTimeout),
			err, details,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeGatewayUnavailable,
			"gateway call failed",
			err, details,
		)
	}
}
