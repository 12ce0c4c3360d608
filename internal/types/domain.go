// Package types defines the shared domain model for the wakebell alarm
// engine: alarm configuration, trigger calculations, snooze state, the
// error taxonomy, and the interfaces the engine consumes from its
// collaborators (notification gateway, persistence, clock, logger).
package types

import (
	"time"
)

// RepeatPolicy determines which calendar days an alarm applies to.
type RepeatPolicy string

const (
	RepeatNone     RepeatPolicy = "none"
	RepeatDaily    RepeatPolicy = "daily"
	RepeatWeekdays RepeatPolicy = "weekdays"
	RepeatWeekends RepeatPolicy = "weekends"
	RepeatCustom   RepeatPolicy = "custom"
)

// AlarmConfig is the immutable input to scheduling. It is owned by the
// external CRUD layer; the engine validates it at the coordinator boundary
// and never mutates it.
//
// Days is only meaningful for RepeatCustom and must be non-empty there;
// every other policy requires an empty Days slice.
type AlarmConfig struct {
	ID       string         `json:"id" validate:"required"`
	Hour     int            `json:"hour" validate:"min=0,max=23"`
	Minute   int            `json:"minute" validate:"min=0,max=59"`
	Repeat   RepeatPolicy   `json:"repeat" validate:"required,oneof=none daily weekdays weekends custom"`
	Days     []time.Weekday `json:"days,omitempty" validate:"max=7,dive,min=0,max=6"`
	Timezone string         `json:"timezone" validate:"required"`
	Enabled  bool           `json:"enabled"`
}

// HasDay reports whether the given weekday is in the custom day set.
func (c AlarmConfig) HasDay(d time.Weekday) bool {
	for _, day := range c.Days {
		if day == d {
			return true
		}
	}
	return false
}

// TriggerCalculation is the output of the trigger calculator. At is an
// absolute instant, strictly after the reference time the calculation was
// made against. The day/hour/minute breakdown is relative to that same
// reference time.
//
// IsToday and IsTomorrow are derived from the integer calendar-day delta,
// not from wall-clock string comparison, so they remain correct across
// DST transitions where a day is 23 or 25 hours long.
type TriggerCalculation struct {
	At           time.Time `json:"at"`
	IsToday      bool      `json:"is_today"`
	IsTomorrow   bool      `json:"is_tomorrow"`
	DaysUntil    int       `json:"days_until"`
	HoursUntil   int       `json:"hours_until"`
	MinutesUntil int       `json:"minutes_until"`

	// FallbackApplied is set when a custom repeat pattern matched no day
	// within the 7-day scan window and the calculator fell back to
	// tomorrow. The coordinator logs this as a warning.
	FallbackApplied bool `json:"fallback_applied,omitempty"`
}

// TriggerKind distinguishes the two notification categories an alarm can
// have outstanding at once: its next regular firing and an active snooze.
type TriggerKind string

const (
	TriggerAlarm  TriggerKind = "alarm"
	TriggerSnooze TriggerKind = "snooze"
)

// GatewayHandle is the opaque identifier the notification gateway returns
// for a scheduled notification.
type GatewayHandle string

// TriggerPayload tags a gateway notification with the alarm it belongs to
// so the coordinator can find and repair stray handles later.
type TriggerPayload struct {
	AlarmID string      `json:"alarm_id"`
	Kind    TriggerKind `json:"kind"`
}

// LiveTrigger is a gateway-side notification as reported by ListLive.
type LiveTrigger struct {
	Handle  GatewayHandle  `json:"handle"`
	Payload TriggerPayload `json:"payload"`
	At      time.Time      `json:"at"`
}

// ScheduledTrigger is the coordinator's record of one outstanding gateway
// notification. At most one of each kind exists per alarm ID at any time;
// the coordinator repairs violations it finds via the gateway sweep.
type ScheduledTrigger struct {
	AlarmID string        `json:"alarm_id"`
	Handle  GatewayHandle `json:"handle"`
	Kind    TriggerKind   `json:"kind"`
	At      time.Time     `json:"at"`
}

// SnoozeEventKind tags history entries with how a snooze step ended.
type SnoozeEventKind string

const (
	SnoozeEventSnoozed   SnoozeEventKind = "snoozed"
	SnoozeEventDismissed SnoozeEventKind = "dismissed"
	SnoozeEventExpired   SnoozeEventKind = "expired"
	SnoozeEventCancelled SnoozeEventKind = "cancelled"
)

// SnoozeEvent is one entry in a wake cycle's snooze history.
type SnoozeEvent struct {
	At       time.Time       `json:"at"`
	Sequence int             `json:"sequence"`
	Duration time.Duration   `json:"duration"`
	Kind     SnoozeEventKind `json:"kind"`
}

// SnoozeState is the persisted, per-alarm snooze record. It is created on
// the first snooze of a wake cycle and marked inactive (never deleted) on
// dismiss, expiry, or cancellation so the history survives for analytics.
//
// Timestamps serialize as absolute instants so the record survives
// timezone changes.
type SnoozeState struct {
	AlarmID         string        `json:"alarm_id"`
	Active          bool          `json:"active"`
	Count           int           `json:"count"`
	MaxCount        int           `json:"max_count"`
	Duration        time.Duration `json:"duration"`
	OriginalTrigger time.Time     `json:"original_trigger"`
	NextTarget      *time.Time    `json:"next_target,omitempty"`
	History         []SnoozeEvent `json:"history"`
}

// CanSnoozeAgain reports whether another snooze is permitted in the
// current wake cycle.
func (s *SnoozeState) CanSnoozeAgain() bool {
	return s.Count < s.MaxCount
}

// Clone returns a deep copy so callers can read state without holding the
// machine's lock.
func (s *SnoozeState) Clone() *SnoozeState {
	out := *s
	if s.NextTarget != nil {
		t := *s.NextTarget
		out.NextTarget = &t
	}
	out.History = make([]SnoozeEvent, len(s.History))
	copy(out.History, s.History)
	return &out
}
