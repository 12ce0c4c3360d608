package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wakebell/internal/types"
)

// Compile-time assertion that Fake implements NotificationGateway.
var _ types.NotificationGateway = (*Fake)(nil)

// Fake is an in-memory NotificationGateway used by tests and the
// simulation binary. It records every call and supports failure
// injection per operation.
//
// Usage:
//
//	gw := gateway.NewFake()
//	gw.ScheduleErr = types.NewAppError(types.ErrCodeGatewayUnavailable, "down", nil)
type Fake struct {
	mu sync.Mutex

	// Live holds the currently scheduled notifications keyed by handle.
	Live map[types.GatewayHandle]types.LiveTrigger

	// Permissions reports whether notifications are authorized. Defaults
	// to true.
	Permissions bool

	// ScheduleErr, CancelErr, and ListErr are returned by the matching
	// operation when set. FailNextSchedules fails that many ScheduleAt
	// calls with ScheduleErr before succeeding again.
	ScheduleErr       error
	CancelErr         error
	ListErr           error
	FailNextSchedules int

	// ScheduleCalls counts ScheduleAt invocations, including failed ones.
	ScheduleCalls int
	// CancelCalls records every cancelled handle.
	CancelCalls []types.GatewayHandle

	seq int
}

// NewFake creates a Fake gateway with permissions granted and no
// injected failures.
func NewFake() *Fake {
	return &Fake{
		Live:        make(map[types.GatewayHandle]types.LiveTrigger),
		Permissions: true,
	}
}

// ScheduleAt records a live trigger and returns a fresh handle.
func (f *Fake) ScheduleAt(ctx context.Context, at time.Time, payload types.TriggerPayload) (types.GatewayHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ScheduleCalls++
	if f.FailNextSchedules > 0 {
		f.FailNextSchedules--
		return "", f.scheduleFailure()
	}
	if f.ScheduleErr != nil {
		return "", f.ScheduleErr
	}

	f.seq++
	handle := types.GatewayHandle(fmt.Sprintf("handle_%d", f.seq))
	f.Live[handle] = types.LiveTrigger{Handle: handle, Payload: payload, At: at}
	return handle, nil
}

func (f *Fake) scheduleFailure() error {
	if f.ScheduleErr != nil {
		return f.ScheduleErr
	}
	return types.NewAppError(types.ErrCodeGatewayUnavailable, "injected gateway failure", nil)
}

// Cancel removes a live trigger. Cancelling an unknown handle is a no-op,
// matching platform semantics where a notification may have fired already.
func (f *Fake) Cancel(ctx context.Context, handle types.GatewayHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CancelCalls = append(f.CancelCalls, handle)
	if f.CancelErr != nil {
		return f.CancelErr
	}
	delete(f.Live, handle)
	return nil
}

// ListLive returns a snapshot of the currently scheduled notifications.
func (f *Fake) ListLive(ctx context.Context) ([]types.LiveTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	out := make([]types.LiveTrigger, 0, len(f.Live))
	for _, lt := range f.Live {
		out = append(out, lt)
	}
	return out, nil
}

// PermissionsGranted reports the injected permission state.
func (f *Fake) PermissionsGranted(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Permissions
}

// LiveFor returns the live triggers tagged with alarmID, optionally
// filtered by kind (empty kind matches all).
func (f *Fake) LiveFor(alarmID string, kind types.TriggerKind) []types.LiveTrigger {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.LiveTrigger
	for _, lt := range f.Live {
		if lt.Payload.AlarmID != alarmID {
			continue
		}
		if kind != "" && lt.Payload.Kind != kind {
			continue
		}
		out = append(out, lt)
	}
	return out
}

// Inject places a live trigger directly into the gateway, bypassing
// ScheduleAt. Tests use it to simulate stale handles left behind by a
// crash between cancel and re-schedule.
func (f *Fake) Inject(handle types.GatewayHandle, payload types.TriggerPayload, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Live[handle] = types.LiveTrigger{Handle: handle, Payload: payload, At: at}
}
