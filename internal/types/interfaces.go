package types

import (
	"context"
	"time"
)

// NotificationGateway abstracts the platform's schedule/cancel/list
// notification primitive. The engine never touches the platform API
// directly; callers inject an implementation at process start.
//
// ScheduleAt returns an opaque handle for the pending notification.
// ListLive reports every notification the platform still holds, tagged
// with the payload it was scheduled with; the coordinator uses it to
// self-heal from missed cancellations.
type NotificationGateway interface {
	ScheduleAt(ctx context.Context, at time.Time, payload TriggerPayload) (GatewayHandle, error)
	Cancel(ctx context.Context, handle GatewayHandle) error
	ListLive(ctx context.Context) ([]LiveTrigger, error)
	PermissionsGranted(ctx context.Context) bool
}

// Store is the durable key-value persistence the snooze machine writes
// its state through. Load returns (nil, nil) when the key is absent.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the
// engine.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// NopLogger discards all log output. Used as the default when callers do
// not supply a logger.
type NopLogger struct{}

func (NopLogger) Info(msg string, args ...any)  {}
func (NopLogger) Error(msg string, args ...any) {}
func (NopLogger) Warn(msg string, args ...any)  {}
func (n NopLogger) With(args ...any) Logger     { return n }
