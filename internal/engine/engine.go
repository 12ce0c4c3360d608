// Package engine assembles the alarm engine from its parts: the trigger
// calculator, the scheduling coordinator, the snooze state machine, and
// the reliability layer. Callers construct one Engine per process and
// drive everything through it.
package engine

import (
	"context"
	"time"

	"wakebell/internal/config"
	"wakebell/internal/gateway"
	"wakebell/internal/reliability"
	"wakebell/internal/scheduler"
	"wakebell/internal/snooze"
	"wakebell/internal/telemetry"
	"wakebell/internal/trigger"
	"wakebell/internal/types"
)

// Engine is the assembled alarm engine facade.
type Engine struct {
	logger types.Logger
	clock  types.Clock

	coord    *scheduler.Coordinator
	machine  *snooze.Machine
	recovery *reliability.Engine
}

// Option configures the Engine during assembly.
type Option func(*settings)

type settings struct {
	clock   types.Clock
	metrics telemetry.Metrics
	lookup  scheduler.AlarmLookup
	wake    snooze.WakeFunc
}

// WithClock substitutes the time source. Defaults to the real clock.
func WithClock(c types.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithMetrics installs a telemetry sink on the coordinator.
func WithMetrics(m telemetry.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithAlarmLookup installs the alarm existence check consulted before
// gateway retries.
func WithAlarmLookup(lookup scheduler.AlarmLookup) Option {
	return func(s *settings) { s.lookup = lookup }
}

// WithWakeFunc installs the callback fired when a local snooze countdown
// expires.
func WithWakeFunc(fn snooze.WakeFunc) Option {
	return func(s *settings) { s.wake = fn }
}

// New assembles an Engine. The gateway is wrapped in the resilient
// decorator; callers pass the raw platform gateway. The store holds
// snooze state across restarts; storage.NewMemory() is acceptable when
// durability is not required.
func New(
	cfg config.EngineConfig,
	gw types.NotificationGateway,
	store types.Store,
	logger types.Logger,
	opts ...Option,
) *Engine {
	s := settings{
		clock:   types.RealClock{},
		metrics: telemetry.Nop{},
	}
	for _, opt := range opts {
		opt(&s)
	}

	resilient := gateway.NewResilient(gw, logger,
		gateway.WithCallTimeout(cfg.GatewayCallTimeout),
	)

	recovery := reliability.NewEngine(logger,
		reliability.WithPlanFunc(planFuncFor(cfg)),
	)

	coordOpts := []scheduler.CoordinatorOption{
		scheduler.WithMetrics(s.metrics),
		scheduler.WithRescheduleParallelism(cfg.RescheduleParallelism),
	}
	if s.lookup != nil {
		coordOpts = append(coordOpts, scheduler.WithAlarmLookup(s.lookup))
	}
	coord := scheduler.NewCoordinator(resilient, recovery, s.clock, logger, coordOpts...)

	machineOpts := []snooze.MachineOption{
		snooze.WithDefaults(cfg.SnoozeDuration, cfg.SnoozeMaxCount),
	}
	if s.wake != nil {
		machineOpts = append(machineOpts, snooze.WithWakeFunc(s.wake))
	}
	machine := snooze.NewMachine(coord, store, s.clock, logger, machineOpts...)

	return &Engine{
		logger:   logger,
		clock:    s.clock,
		coord:    coord,
		machine:  machine,
		recovery: recovery,
	}
}

// planFuncFor layers the configured retry tuning over the default
// recovery plans. Strategy selection per error kind is fixed; only the
// backoff shape is tunable.
func planFuncFor(cfg config.EngineConfig) func(types.ErrorKind) reliability.RecoveryPlan {
	policy := reliability.RetryPolicy{
		BaseDelay:     cfg.RetryBaseDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		BackoffFactor: cfg.RetryBackoffFactor,
	}
	return func(kind types.ErrorKind) reliability.RecoveryPlan {
		plan := reliability.PlanFor(kind)
		if plan.Strategy == reliability.StrategyRetry {
			plan.Retry = policy
		}
		return plan
	}
}

// Start runs the startup recovery pass: persisted snooze cycles are
// restored, re-arming local countdowns or expiring cycles whose target
// passed while the process was down.
func (e *Engine) Start(ctx context.Context) error {
	return e.machine.Restore(ctx)
}

// Close stops the snooze machine's local countdown timers. Persisted
// state is left in place for the next process.
func (e *Engine) Close() {
	e.machine.Close()
}

// NextTrigger computes the next trigger instant for the alarm without
// scheduling anything.
func (e *Engine) NextTrigger(cfg types.AlarmConfig) (types.TriggerCalculation, error) {
	return trigger.Compute(cfg, e.clock.Now())
}

// Schedule computes and schedules the alarm's next trigger.
func (e *Engine) Schedule(ctx context.Context, cfg types.AlarmConfig) (types.ScheduledTrigger, error) {
	return e.coord.Schedule(ctx, cfg)
}

// Cancel removes every outstanding trigger for the alarm and ends any
// active snooze cycle.
func (e *Engine) Cancel(ctx context.Context, alarmID string) error {
	if err := e.machine.Cancel(ctx, alarmID); err != nil {
		return err
	}
	e.coord.Cancel(ctx, alarmID)
	return nil
}

// RescheduleAll cancels and re-schedules every enabled alarm. Used after
// a timezone change or a restart that lost gateway handles.
func (e *Engine) RescheduleAll(ctx context.Context, alarms []types.AlarmConfig) error {
	return e.coord.RescheduleAll(ctx, alarms)
}

// Snooze starts or extends the alarm's wake cycle. Pass nil to use the
// configured snooze duration.
func (e *Engine) Snooze(ctx context.Context, cfg types.AlarmConfig, customDuration *time.Duration) (*types.SnoozeState, error) {
	return e.machine.Snooze(ctx, cfg, customDuration)
}

// Dismiss ends the alarm's wake cycle and cancels its snooze trigger.
func (e *Engine) Dismiss(ctx context.Context, alarmID string) error {
	return e.machine.Dismiss(ctx, alarmID)
}

// SnoozeState returns a copy of the alarm's snooze state, if any.
func (e *Engine) SnoozeState(alarmID string) (*types.SnoozeState, bool) {
	return e.machine.GetState(alarmID)
}

// IsSnoozed reports whether the alarm has an active wake cycle.
func (e *Engine) IsSnoozed(alarmID string) bool {
	return e.machine.IsSnoozed(alarmID)
}

// HandleError classifies an error that surfaced outside the engine's own
// operations and applies its recovery plan. The scheduling paths already
// run their failures through this machinery; this entry point is for
// callers that hit gateway or storage errors on their own.
func (e *Engine) HandleError(ctx context.Context, err error, contextKey string) reliability.Result {
	return e.recovery.HandleError(ctx, err, contextKey)
}

// OutstandingTrigger returns the engine's record of a live trigger.
func (e *Engine) OutstandingTrigger(alarmID string, kind types.TriggerKind) (types.ScheduledTrigger, bool) {
	return e.coord.OutstandingTrigger(alarmID, kind)
}
