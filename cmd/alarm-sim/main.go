// Package main is the alarm-sim binary: a command-line harness that
// assembles the full alarm engine against the in-memory fake gateway and
// walks it through a realistic day. It exists for local smoke testing
// and for demonstrating the engine's wiring without a mobile platform
// underneath.
//
// Startup:
//  1. Initialize structured logger.
//  2. Load configuration from the environment (.env supported).
//  3. Select a state store: Postgres when DATABASE_URL is set, otherwise
//     in-memory.
//  4. Optionally initialize CloudWatch metrics (ENABLE_METRICS=true).
//  5. Assemble the engine and run the scenario.
//
// The scenario schedules alarms in several timezones, snoozes one with a
// short countdown, waits for the local wake to fire, dismisses it, and
// finishes with a bulk reschedule pass.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"wakebell/internal/config"
	"wakebell/internal/engine"
	"wakebell/internal/gateway"
	"wakebell/internal/storage"
	"wakebell/internal/telemetry"
	"wakebell/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// parseLevel maps the configured log level onto slog.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// scenarioAlarms is the fixed alarm set the simulation schedules.
func scenarioAlarms() []types.AlarmConfig {
	return []types.AlarmConfig{
		{
			ID:       "alarm_weekday_ny",
			Hour:     6,
			Minute:   45,
			Repeat:   types.RepeatWeekdays,
			Timezone: "America/New_York",
			Enabled:  true,
		},
		{
			ID:       "alarm_daily_tokyo",
			Hour:     7,
			Minute:   0,
			Repeat:   types.RepeatDaily,
			Timezone: "Asia/Tokyo",
			Enabled:  true,
		},
		{
			ID:       "alarm_weekend_london",
			Hour:     9,
			Minute:   30,
			Repeat:   types.RepeatWeekends,
			Timezone: "Europe/London",
			Enabled:  true,
		},
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	typedLogger := &slogAdapter{logger: logger}

	logger.Info("alarm-sim starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Select the state store: durable when DATABASE_URL is configured,
	// in-memory otherwise.
	var store types.Store
	if dbURL := cfg.Database.URL.Unmask(); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("database connection established")
		store = storage.NewPostgres(pool)
	} else {
		logger.Info("DATABASE_URL not set, using in-memory state store")
		store = storage.NewMemory()
	}

	// Optional CloudWatch metrics.
	var metrics telemetry.Metrics = telemetry.Nop{}
	if cfg.Telemetry.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWS.Region),
		)
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		cwClient := cloudwatch.NewFromConfig(awsCfg)
		metrics = telemetry.NewCloudWatchMetrics(cwClient, cfg.Telemetry.MetricNamespace, typedLogger)
		logger.Info("CloudWatch metrics enabled", "namespace", cfg.Telemetry.MetricNamespace)
	}

	gw := gateway.NewFake()
	alarms := scenarioAlarms()

	// The lookup answers from the fixed scenario set.
	known := make(map[string]bool, len(alarms))
	for _, a := range alarms {
		known[a.ID] = a.Enabled
	}

	woke := make(chan string, 1)
	eng := engine.New(cfg.Engine, gw, store, typedLogger,
		engine.WithMetrics(metrics),
		engine.WithAlarmLookup(func(ctx context.Context, alarmID string) (bool, bool) {
			enabled, ok := known[alarmID]
			return ok, enabled
		}),
		engine.WithWakeFunc(func(alarmID string) {
			select {
			case woke <- alarmID:
			default:
			}
		}),
	)
	defer eng.Close()

	if err := eng.Start(ctx); err != nil {
		logger.Error("startup recovery failed", "error", err)
		os.Exit(1)
	}

	if err := runScenario(ctx, eng, gw, alarms, woke, typedLogger); err != nil {
		logger.Error("scenario failed", "error", err)
		os.Exit(1)
	}

	logger.Info("alarm-sim finished")
}

// runScenario walks the engine through schedule, snooze, wake, dismiss,
// and bulk reschedule.
func runScenario(
	ctx context.Context,
	eng *engine.Engine,
	gw *gateway.Fake,
	alarms []types.AlarmConfig,
	woke <-chan string,
	logger types.Logger,
) error {
	// Phase 1: compute and schedule every alarm.
	for _, cfg := range alarms {
		calc, err := eng.NextTrigger(cfg)
		if err != nil {
			return err
		}
		logger.Info("next trigger computed",
			"alarm_id", cfg.ID,
			"at", calc.At.Format(time.RFC3339),
			"days_until", calc.DaysUntil,
			"hours_until", calc.HoursUntil,
			"minutes_until", calc.MinutesUntil,
			"is_today", calc.IsToday,
		)

		st, err := eng.Schedule(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Info("alarm scheduled", "alarm_id", cfg.ID, "handle", string(st.Handle))
	}

	// Phase 2: snooze the first alarm with a short countdown and wait
	// for the local wake to fire.
	target := alarms[0]
	short := 2 * time.Second
	snoozed, err := eng.Snooze(ctx, target, &short)
	if err != nil {
		return err
	}
	logger.Info("alarm snoozed",
		"alarm_id", target.ID,
		"count", snoozed.Count,
		"next_target", snoozed.NextTarget.Format(time.RFC3339),
	)

	select {
	case id := <-woke:
		logger.Info("local snooze countdown fired", "alarm_id", id)
	case <-time.After(short + 5*time.Second):
		logger.Warn("snooze countdown did not fire in time")
	case <-ctx.Done():
		return ctx.Err()
	}

	// Phase 3: snooze and dismiss the second alarm.
	second := alarms[1]
	if _, err := eng.Snooze(ctx, second, nil); err != nil {
		return err
	}
	if err := eng.Dismiss(ctx, second.ID); err != nil {
		return err
	}
	logger.Info("alarm snoozed then dismissed", "alarm_id", second.ID)

	// Phase 4: bulk reschedule, as after a timezone change.
	if err := eng.RescheduleAll(ctx, alarms); err != nil {
		return err
	}

	live, err := gw.ListLive(ctx)
	if err != nil {
		return err
	}
	for _, lt := range live {
		logger.Info("live trigger",
			"alarm_id", lt.Payload.AlarmID,
			"kind", string(lt.Payload.Kind),
			"at", lt.At.Format(time.RFC3339),
		)
	}
	logger.Info("scenario complete", "live_triggers", len(live))
	return nil
}
