// Package snooze implements the per-alarm snooze state machine. State is
// persisted through the injected Store so a wake cycle survives process
// death, and restored on startup by re-arming local countdown timers.
// The local timer is deliberately authoritative: if the remote
// notification fails to schedule, the countdown still fires.
package snooze

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"wakebell/internal/types"
)

// stateKey is the Store key holding the full keyed collection of
// SnoozeState records.
const stateKey = "snooze_states"

// DefaultDuration and DefaultMaxCount apply when the machine is
// constructed without explicit values.
const (
	DefaultDuration = 9 * time.Minute
	DefaultMaxCount = 3
)

// Scheduler is the slice of the scheduling coordinator the machine
// drives: arming and disarming snooze-kind triggers.
type Scheduler interface {
	ScheduleSnooze(ctx context.Context, alarmID string, duration time.Duration, snoozeNumber, maxSnoozeNumber int) (types.ScheduledTrigger, error)
	CancelSnooze(ctx context.Context, alarmID string)
}

// WakeFunc is invoked when a local snooze countdown expires. It runs on
// the timer goroutine; implementations should hand off quickly.
type WakeFunc func(alarmID string)

// timerEntry pairs an armed countdown with the instant it targets.
type timerEntry struct {
	timer  *time.Timer
	target time.Time
}

// Machine is the snooze state machine. Construct one per process and
// share it; operations on the same alarm id serialize, different ids
// proceed in parallel.
type Machine struct {
	coord    Scheduler
	store    types.Store
	clock    types.Clock
	logger   types.Logger
	duration time.Duration
	maxCount int
	wake     WakeFunc

	locks *keyedMutex

	mu     sync.Mutex
	states map[string]*types.SnoozeState
	timers map[string]timerEntry
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithWakeFunc installs the callback fired when a local countdown
// expires.
func WithWakeFunc(fn WakeFunc) MachineOption {
	return func(m *Machine) { m.wake = fn }
}

// WithDefaults overrides the snooze duration and per-cycle limit.
func WithDefaults(duration time.Duration, maxCount int) MachineOption {
	return func(m *Machine) {
		m.duration = duration
		m.maxCount = maxCount
	}
}

// NewMachine creates a snooze machine. Call Restore before serving
// traffic so persisted cycles from a previous process are recovered.
func NewMachine(coord Scheduler, store types.Store, clock types.Clock, logger types.Logger, opts ...MachineOption) *Machine {
	m := &Machine{
		coord:    coord,
		store:    store,
		clock:    clock,
		logger:   logger,
		duration: DefaultDuration,
		maxCount: DefaultMaxCount,
		locks:    newKeyedMutex(),
		states:   make(map[string]*types.SnoozeState),
		timers:   make(map[string]timerEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snooze starts or extends a wake cycle for the alarm. The snooze count
// increments, a history entry is appended, state is persisted, a
// snooze-kind trigger is scheduled through the coordinator, and a local
// countdown timer is armed.
//
// Once the cycle's limit is reached, further calls are rejected with
// snooze_limit_reached and no state is mutated. A gateway scheduling
// failure is logged but does not roll anything back: the local timer
// remains authoritative.
func (m *Machine) Snooze(ctx context.Context, cfg types.AlarmConfig, customDuration *time.Duration) (*types.SnoozeState, error) {
	unlock := m.locks.Lock(cfg.ID)
	defer unlock()

	now := m.clock.Now()

	m.mu.Lock()
	st := m.states[cfg.ID]
	if st == nil || !st.Active {
		// New wake cycle. History from earlier cycles is retained.
		var history []types.SnoozeEvent
		if st != nil {
			history = st.History
		}
		st = &types.SnoozeState{
			AlarmID:         cfg.ID,
			Active:          true,
			Count:           0,
			MaxCount:        m.maxCount,
			Duration:        m.duration,
			OriginalTrigger: now,
			History:         history,
		}
		m.states[cfg.ID] = st
	}

	if st.Count >= st.MaxCount {
		m.mu.Unlock()
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeSnoozeLimitReached,
			"snooze limit reached for this wake cycle", nil,
			map[string]any{"alarm_id": cfg.ID, "max_count": st.MaxCount},
		)
	}

	duration := st.Duration
	if customDuration != nil {
		duration = *customDuration
	}

	st.Count++
	target := now.Add(duration)
	st.NextTarget = &target
	st.History = append(st.History, types.SnoozeEvent{
		At:       now,
		Sequence: st.Count,
		Duration: duration,
		Kind:     types.SnoozeEventSnoozed,
	})
	snapshot := st.Clone()
	m.mu.Unlock()

	m.persist(ctx)

	if _, err := m.coord.ScheduleSnooze(ctx, cfg.ID, duration, snapshot.Count, snapshot.MaxCount); err != nil {
		// At-least-once bias: the local countdown below still fires even
		// though the remote notification was not scheduled.
		m.logger.Warn("remote snooze scheduling failed; local countdown remains authoritative",
			"alarm_id", cfg.ID,
			"error", err.Error(),
		)
	}

	m.armTimer(cfg.ID, target)

	m.logger.Info("alarm snoozed",
		"alarm_id", cfg.ID,
		"snooze_count", snapshot.Count,
		"max_count", snapshot.MaxCount,
		"next_target", target.Format(time.RFC3339),
	)
	return snapshot, nil
}

// Dismiss ends the wake cycle because the user dismissed the alarm.
func (m *Machine) Dismiss(ctx context.Context, alarmID string) error {
	return m.Complete(ctx, alarmID, types.SnoozeEventDismissed)
}

// Cancel ends the wake cycle because the alarm was cancelled or deleted.
func (m *Machine) Cancel(ctx context.Context, alarmID string) error {
	return m.Complete(ctx, alarmID, types.SnoozeEventCancelled)
}

// Complete transitions an active cycle back to inactive: the current
// target is cleared, the last history entry is tagged with the terminal
// event kind, state is persisted, and any outstanding snooze trigger is
// cancelled. Completing an inactive cycle is a no-op.
func (m *Machine) Complete(ctx context.Context, alarmID string, kind types.SnoozeEventKind) error {
	unlock := m.locks.Lock(alarmID)
	defer unlock()

	m.mu.Lock()
	st := m.states[alarmID]
	if st == nil || !st.Active {
		m.mu.Unlock()
		return nil
	}

	st.Active = false
	st.NextTarget = nil
	if n := len(st.History); n > 0 {
		st.History[n-1].Kind = kind
	}

	if entry, ok := m.timers[alarmID]; ok {
		entry.timer.Stop()
		delete(m.timers, alarmID)
	}
	m.mu.Unlock()

	m.persist(ctx)
	m.coord.CancelSnooze(ctx, alarmID)

	m.logger.Info("wake cycle completed",
		"alarm_id", alarmID,
		"event", string(kind),
	)
	return nil
}

// GetState returns a copy of the alarm's snooze state, if one exists.
func (m *Machine) GetState(alarmID string) (*types.SnoozeState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[alarmID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// IsSnoozed reports whether the alarm has an active wake cycle.
func (m *Machine) IsSnoozed(alarmID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[alarmID]
	return ok && st.Active
}

// NextWake returns the target of the armed local countdown for the
// alarm, if one is running.
func (m *Machine) NextWake(alarmID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.timers[alarmID]
	if !ok {
		return time.Time{}, false
	}
	return entry.target, true
}

// Restore runs the startup recovery pass: persisted active cycles with a
// future target get their local countdown re-armed; cycles whose target
// already passed are completed as expired. This pass is what survives
// the most common reliability threat here, process death between snooze
// and wake.
func (m *Machine) Restore(ctx context.Context) error {
	data, err := m.store.Load(ctx, stateKey)
	if err != nil {
		return types.NewAppError(types.ErrCodeStorageUnavailable, "failed to load snooze states", err)
	}
	if data == nil {
		return nil
	}

	var loaded map[string]*types.SnoozeState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return types.NewAppError(types.ErrCodeStorageUnavailable, "failed to decode snooze states", err)
	}

	now := m.clock.Now()
	var expired []string

	m.mu.Lock()
	m.states = loaded
	if m.states == nil {
		m.states = make(map[string]*types.SnoozeState)
	}
	for id, st := range m.states {
		if !st.Active {
			continue
		}
		if st.NextTarget != nil && st.NextTarget.After(now) {
			m.armTimerLocked(id, *st.NextTarget)
			m.logger.Info("restored snooze countdown",
				"alarm_id", id,
				"next_target", st.NextTarget.Format(time.RFC3339),
			)
			continue
		}
		expired = append(expired, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.Warn("snooze target passed while process was down; expiring",
			"alarm_id", id,
		)
		if err := m.Complete(ctx, id, types.SnoozeEventExpired); err != nil {
			m.logger.Error("failed to expire stale snooze state",
				"alarm_id", id,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// Close stops every armed countdown. State is left persisted for the
// next process's Restore pass.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.timers {
		entry.timer.Stop()
		delete(m.timers, id)
	}
}

// armTimer arms (or re-arms) the local countdown for alarmID.
func (m *Machine) armTimer(alarmID string, target time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armTimerLocked(alarmID, target)
}

func (m *Machine) armTimerLocked(alarmID string, target time.Time) {
	if entry, ok := m.timers[alarmID]; ok {
		entry.timer.Stop()
	}

	delay := target.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	m.timers[alarmID] = timerEntry{
		timer:  time.AfterFunc(delay, func() { m.expire(alarmID) }),
		target: target,
	}
}

// expire handles a local countdown firing: the wake callback runs, then
// the cycle completes as expired.
func (m *Machine) expire(alarmID string) {
	if m.wake != nil {
		m.wake(alarmID)
	}
	if err := m.Complete(context.Background(), alarmID, types.SnoozeEventExpired); err != nil {
		m.logger.Error("failed to complete expired snooze",
			"alarm_id", alarmID,
			"error", err.Error(),
		)
	}
}

// persist writes the full state collection through the Store. Failures
// degrade durability but never fail the operation: missing a wake-up is
// worse than losing a write.
func (m *Machine) persist(ctx context.Context) {
	m.mu.Lock()
	data, err := json.Marshal(m.states)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("failed to encode snooze states", "error", err.Error())
		return
	}

	if err := m.store.Save(ctx, stateKey, data); err != nil {
		m.logger.Warn("snooze state persistence failed; continuing on in-memory state",
			"error", err.Error(),
		)
	}
}
