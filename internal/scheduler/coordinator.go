// Package scheduler implements the scheduling coordinator: the owner of
// the alarm-to-outstanding-notification mapping. It computes next
// triggers, drives the notification gateway, and enforces the invariant
// that at most one trigger of each kind exists per alarm at any time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wakebell/internal/reliability"
	"wakebell/internal/telemetry"
	"wakebell/internal/trigger"
	"wakebell/internal/types"
)

// rescheduleParallelism is the default cap on alarms RescheduleAll works
// on concurrently. Per-id locks make each alarm's reschedule atomic with
// respect to itself; the bulk pass is deliberately not atomic as a whole.
const rescheduleParallelism = 4

// AlarmLookup reports whether an alarm still exists and is enabled. The
// coordinator consults it before every gateway attempt so a concurrent
// deletion cannot resurrect a trigger, whether the alarm disappeared
// before the first call or mid-backoff.
type AlarmLookup func(ctx context.Context, alarmID string) (exists bool, enabled bool)

// Coordinator owns the ScheduledTrigger set. Construct one per process
// and share it; all state is guarded per alarm id.
type Coordinator struct {
	gw       types.NotificationGateway
	clock    types.Clock
	logger   types.Logger
	recovery *reliability.Engine
	metrics  telemetry.Metrics
	lookup   AlarmLookup
	locks    *keyedMutex
	parallel int

	mu       sync.Mutex
	triggers map[string]map[types.TriggerKind]types.ScheduledTrigger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAlarmLookup installs the retry resurrection guard.
func WithAlarmLookup(lookup AlarmLookup) CoordinatorOption {
	return func(c *Coordinator) { c.lookup = lookup }
}

// WithMetrics installs a telemetry sink. Defaults to telemetry.Nop.
func WithMetrics(m telemetry.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithRescheduleParallelism overrides the number of alarms RescheduleAll
// works on concurrently.
func WithRescheduleParallelism(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// NewCoordinator creates a Coordinator. The gateway should already be
// wrapped by the resilient decorator; the coordinator adds retry policy
// on top via the reliability engine but performs no timeout handling of
// its own.
func NewCoordinator(
	gw types.NotificationGateway,
	recovery *reliability.Engine,
	clock types.Clock,
	logger types.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		gw:       gw,
		clock:    clock,
		logger:   logger,
		recovery: recovery,
		metrics:  telemetry.Nop{},
		parallel: rescheduleParallelism,
		locks:    newKeyedMutex(),
		triggers: make(map[string]map[types.TriggerKind]types.ScheduledTrigger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule computes the next trigger for the alarm, cancels any
// pre-existing alarm-kind trigger for its id (including stray gateway
// handles from a crashed predecessor), and schedules a replacement.
// Transient gateway failures are retried with backoff; permission
// denial is surfaced without retry.
func (c *Coordinator) Schedule(ctx context.Context, cfg types.AlarmConfig) (types.ScheduledTrigger, error) {
	if err := types.ValidateAlarmConfig(cfg); err != nil {
		return types.ScheduledTrigger{}, err
	}
	if !cfg.Enabled {
		return types.ScheduledTrigger{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationAlarmDisabled,
			"disabled alarms cannot be scheduled", nil,
			map[string]any{"alarm_id": cfg.ID},
		)
	}

	opID := uuid.New().String()
	log := c.logger.With("op_id", opID, "alarm_id", cfg.ID)

	unlock := c.locks.Lock(cfg.ID)
	defer unlock()

	return c.scheduleLocked(ctx, cfg, log)
}

// scheduleLocked performs the sweep-compute-schedule sequence. The
// caller must hold the per-id lock for cfg.ID.
func (c *Coordinator) scheduleLocked(ctx context.Context, cfg types.AlarmConfig, log types.Logger) (types.ScheduledTrigger, error) {
	c.sweepGateway(ctx, cfg.ID, types.TriggerAlarm, log)

	calc, err := trigger.Compute(cfg, c.clock.Now())
	if err != nil {
		return types.ScheduledTrigger{}, err
	}
	if calc.FallbackApplied {
		log.Warn("custom repeat pattern matched no day; fell back to tomorrow",
			"trigger_at", calc.At.Format(time.RFC3339),
		)
	}

	st, err := c.scheduleWithRetry(ctx, cfg.ID, types.TriggerAlarm, calc.At, log)
	if err != nil {
		c.metrics.RecordSchedule(ctx, types.TriggerAlarm, telemetry.ResultFailed)
		return types.ScheduledTrigger{}, err
	}

	c.remember(st)
	c.metrics.RecordSchedule(ctx, types.TriggerAlarm, telemetry.ResultSuccess)
	log.Info("alarm scheduled",
		"trigger_at", calc.At.Format(time.RFC3339),
		"is_today", calc.IsToday,
		"is_tomorrow", calc.IsTomorrow,
		"days_until", calc.DaysUntil,
	)
	return st, nil
}

// ScheduleSnooze schedules a snooze-kind trigger at now + duration. A
// snooze number over the limit is rejected immediately without touching
// the gateway.
func (c *Coordinator) ScheduleSnooze(ctx context.Context, alarmID string, duration time.Duration, snoozeNumber, maxSnoozeNumber int) (types.ScheduledTrigger, error) {
	if snoozeNumber > maxSnoozeNumber {
		return types.ScheduledTrigger{}, types.NewAppErrorWithDetails(
			types.ErrCodeSnoozeLimitReached,
			fmt.Sprintf("snooze %d exceeds limit of %d", snoozeNumber, maxSnoozeNumber), nil,
			map[string]any{"alarm_id": alarmID},
		)
	}

	opID := uuid.New().String()
	log := c.logger.With("op_id", opID, "alarm_id", alarmID)

	unlock := c.locks.Lock(alarmID)
	defer unlock()

	c.sweepGateway(ctx, alarmID, types.TriggerSnooze, log)

	at := c.clock.Now().Add(duration)
	st, err := c.scheduleWithRetry(ctx, alarmID, types.TriggerSnooze, at, log)
	if err != nil {
		c.metrics.RecordSchedule(ctx, types.TriggerSnooze, telemetry.ResultFailed)
		return types.ScheduledTrigger{}, err
	}

	c.remember(st)
	c.metrics.RecordSchedule(ctx, types.TriggerSnooze, telemetry.ResultSuccess)
	log.Info("snooze scheduled",
		"trigger_at", at.Format(time.RFC3339),
		"snooze_number", snoozeNumber,
		"max_snooze_number", maxSnoozeNumber,
	)
	return st, nil
}

// Cancel removes every live gateway handle tagged with alarmID, of both
// kinds. It queries the gateway rather than trusting only its own
// records, which self-heals from cancellations a previous process
// missed. Cancel never errors; partial gateway failure is logged and
// skipped.
func (c *Coordinator) Cancel(ctx context.Context, alarmID string) {
	unlock := c.locks.Lock(alarmID)
	defer unlock()

	c.cancelLocked(ctx, alarmID, c.logger.With("alarm_id", alarmID))
}

// cancelLocked cancels both trigger kinds for alarmID. The caller must
// hold the per-id lock.
func (c *Coordinator) cancelLocked(ctx context.Context, alarmID string, log types.Logger) {
	c.cancelKind(ctx, alarmID, "", log)
	c.forget(alarmID, types.TriggerAlarm)
	c.forget(alarmID, types.TriggerSnooze)
	c.metrics.RecordSchedule(ctx, types.TriggerAlarm, telemetry.ResultCancelled)
}

// CancelSnooze removes only the snooze-kind trigger for alarmID, leaving
// the regular alarm trigger in place. Used by the snooze state machine
// when a wake cycle completes.
func (c *Coordinator) CancelSnooze(ctx context.Context, alarmID string) {
	unlock := c.locks.Lock(alarmID)
	defer unlock()

	log := c.logger.With("alarm_id", alarmID)
	c.cancelKind(ctx, alarmID, types.TriggerSnooze, log)
	c.forget(alarmID, types.TriggerSnooze)
}

// RescheduleAll cancels and re-schedules every enabled alarm. Used after
// a timezone change or a process restart that lost in-memory handles.
// Each alarm's cancel-then-schedule runs under a single hold of its
// per-id lock, so a concurrent Cancel or Schedule for the same id cannot
// interleave between the two steps. The pass is idempotent and safe to
// run alongside individual Schedule/Cancel calls.
func (c *Coordinator) RescheduleAll(ctx context.Context, alarms []types.AlarmConfig) error {
	opID := uuid.New().String()
	log := c.logger.With("op_id", opID)

	var g errgroup.Group
	g.SetLimit(c.parallel)

	scheduled := 0
	var mu sync.Mutex

	for _, cfg := range alarms {
		if !cfg.Enabled {
			continue
		}
		g.Go(func() error {
			if err := types.ValidateAlarmConfig(cfg); err != nil {
				log.Error("reschedule skipped invalid alarm",
					"alarm_id", cfg.ID,
					"error", err.Error(),
				)
				return fmt.Errorf("reschedule %s: %w", cfg.ID, err)
			}

			alarmLog := log.With("alarm_id", cfg.ID)
			unlock := c.locks.Lock(cfg.ID)
			defer unlock()

			c.cancelLocked(ctx, cfg.ID, alarmLog)
			if _, err := c.scheduleLocked(ctx, cfg, alarmLog); err != nil {
				// An alarm deleted or disabled while the pass runs is
				// expected; the input list is a snapshot.
				var appErr *types.AppError
				if errors.As(err, &appErr) && appErr.Code == types.ErrCodeValidationAlarmDisabled {
					alarmLog.Warn("alarm no longer schedulable; skipped during bulk reschedule")
					return nil
				}
				alarmLog.Error("reschedule failed for alarm",
					"error", err.Error(),
				)
				return fmt.Errorf("reschedule %s: %w", cfg.ID, err)
			}
			mu.Lock()
			scheduled++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	log.Info("bulk reschedule finished",
		"total", len(alarms),
		"scheduled", scheduled,
	)
	return err
}

// OutstandingTrigger returns the coordinator's record of a live trigger,
// if any.
func (c *Coordinator) OutstandingTrigger(alarmID string, kind types.TriggerKind) (types.ScheduledTrigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.triggers[alarmID][kind]
	return st, ok
}

// scheduleWithRetry drives the gateway call through the reliability
// engine. Before every attempt, including the first, it re-checks that
// the alarm still exists and is enabled, so a deletion concurrent with
// scheduling or during backoff cannot resurrect a trigger.
func (c *Coordinator) scheduleWithRetry(ctx context.Context, alarmID string, kind types.TriggerKind, at time.Time, log types.Logger) (types.ScheduledTrigger, error) {
	payload := types.TriggerPayload{AlarmID: alarmID, Kind: kind}
	key := string(kind) + "/" + alarmID

	for {
		if c.lookup != nil {
			exists, enabled := c.lookup(ctx, alarmID)
			if !exists || !enabled {
				log.Warn("alarm removed or disabled; abandoning schedule")
				return types.ScheduledTrigger{}, types.NewAppErrorWithDetails(
					types.ErrCodeValidationAlarmDisabled,
					"alarm was removed or disabled while scheduling", nil,
					map[string]any{"alarm_id": alarmID},
				)
			}
		}

		start := c.clock.Now()
		handle, err := c.gw.ScheduleAt(ctx, at, payload)
		c.metrics.RecordGatewayLatency(ctx, "schedule_at", c.clock.Now().Sub(start))

		if err == nil {
			c.recovery.ClearAttempts(types.KindGatewayFailure, key)
			return types.ScheduledTrigger{
				AlarmID: alarmID,
				Handle:  handle,
				Kind:    kind,
				At:      at,
			}, nil
		}

		res := c.recovery.HandleError(ctx, err, key)
		c.metrics.RecordRecovery(ctx, string(res.Outcome))
		if res.Outcome != reliability.OutcomeRetryRequested {
			return types.ScheduledTrigger{}, err
		}
	}
}

// sweepGateway cancels every live gateway handle tagged with alarmID and
// kind. This both replaces the known outstanding trigger and repairs
// duplicates left by a crash between cancel and re-schedule.
func (c *Coordinator) sweepGateway(ctx context.Context, alarmID string, kind types.TriggerKind, log types.Logger) {
	c.cancelKind(ctx, alarmID, kind, log)
	c.forget(alarmID, kind)
}

// cancelKind cancels live handles for alarmID matching kind; an empty
// kind matches all. Falls back to the remembered handle when the gateway
// listing fails.
func (c *Coordinator) cancelKind(ctx context.Context, alarmID string, kind types.TriggerKind, log types.Logger) {
	live, err := c.gw.ListLive(ctx)
	if err != nil {
		log.Warn("gateway listing failed; cancelling remembered handles only",
			"error", err.Error(),
		)
		live = c.rememberedAsLive(alarmID)
	}

	cancelled := 0
	for _, lt := range live {
		if lt.Payload.AlarmID != alarmID {
			continue
		}
		if kind != "" && lt.Payload.Kind != kind {
			continue
		}
		if err := c.gw.Cancel(ctx, lt.Handle); err != nil {
			log.Warn("failed to cancel gateway handle",
				"handle", string(lt.Handle),
				"error", err.Error(),
			)
			continue
		}
		cancelled++
	}

	if cancelled > 1 {
		log.Warn("repaired duplicate triggers",
			"kind", string(kind),
			"cancelled", cancelled,
		)
	}
}

// rememberedAsLive converts the coordinator's own records for alarmID
// into LiveTrigger values for the cancel path.
func (c *Coordinator) rememberedAsLive(alarmID string) []types.LiveTrigger {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.LiveTrigger
	for _, st := range c.triggers[alarmID] {
		out = append(out, types.LiveTrigger{
			Handle:  st.Handle,
			Payload: types.TriggerPayload{AlarmID: st.AlarmID, Kind: st.Kind},
			At:      st.At,
		})
	}
	return out
}

func (c *Coordinator) remember(st types.ScheduledTrigger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.triggers[st.AlarmID] == nil {
		c.triggers[st.AlarmID] = make(map[types.TriggerKind]types.ScheduledTrigger)
	}
	c.triggers[st.AlarmID][st.Kind] = st
}

func (c *Coordinator) forget(alarmID string, kind types.TriggerKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.triggers[alarmID], kind)
}
