// Package trigger implements the pure next-trigger calculation for alarm
// configs. It has no state and performs no I/O; all time arithmetic is
// done in the alarm's configured timezone and compared in absolute
// instant space so DST shifts can neither double-fire nor skip an alarm.
package trigger

import (
	"fmt"
	"time"

	"wakebell/internal/types"
)

// customScanWindow is the number of days scanned forward for a custom
// repeat pattern. A non-empty day set always matches within 7 days; the
// window exists so a malformed set that slipped past validation degrades
// to a tomorrow fallback instead of an unbounded loop.
const customScanWindow = 7

// Compute returns the next trigger instant for cfg strictly after now.
//
// The candidate is built at the alarm's hour:minute in its timezone for
// "today", rolled forward one day if it is not in the future, then
// adjusted to the first day the repeat policy permits. The returned
// day/hour/minute breakdown is relative to now; the day delta is a
// calendar-day count in the alarm's timezone, so IsToday/IsTomorrow stay
// correct across 23- and 25-hour DST days.
//
// Compute is total over validated input. The only error path is an
// unloadable timezone, which the coordinator rejects before this stage.
func Compute(cfg types.AlarmConfig, now time.Time) (types.TriggerCalculation, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return types.TriggerCalculation{}, types.NewAppError(
			types.ErrCodeValidationInvalidTimezone,
			fmt.Sprintf("unknown timezone %q", cfg.Timezone),
			err,
		)
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), cfg.Hour, cfg.Minute, 0, 0, loc)

	// Alarm time already passed today.
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	candidate, fallback := applyRepeatPolicy(cfg, candidate)

	calc := types.TriggerCalculation{
		At:              candidate,
		DaysUntil:       calendarDaysBetween(now, candidate, loc),
		FallbackApplied: fallback,
	}

	totalMinutes := int(candidate.Sub(now) / time.Minute)
	calc.HoursUntil = (totalMinutes / 60) % 24
	calc.MinutesUntil = totalMinutes % 60
	calc.IsToday = calc.DaysUntil == 0
	calc.IsTomorrow = calc.DaysUntil == 1

	return calc, nil
}

// applyRepeatPolicy advances the candidate to the first day the repeat
// policy permits. The second return value reports the custom-pattern
// tomorrow fallback.
func applyRepeatPolicy(cfg types.AlarmConfig, candidate time.Time) (time.Time, bool) {
	switch cfg.Repeat {
	case types.RepeatWeekdays:
		switch candidate.Weekday() {
		case time.Saturday:
			candidate = candidate.AddDate(0, 0, 2)
		case time.Sunday:
			candidate = candidate.AddDate(0, 0, 1)
		}

	case types.RepeatWeekends:
		if wd := candidate.Weekday(); wd >= time.Monday && wd <= time.Friday {
			candidate = candidate.AddDate(0, 0, int(time.Saturday-wd))
		}

	case types.RepeatCustom:
		for offset := 0; offset < customScanWindow; offset++ {
			day := candidate.AddDate(0, 0, offset)
			if cfg.HasDay(day.Weekday()) {
				return day, false
			}
		}
		// Unreachable for a non-empty day set; degrade to tomorrow.
		return candidate.AddDate(0, 0, 1), true
	}

	return candidate, false
}

// calendarDaysBetween counts the calendar-day boundary crossings from
// "from" to "to" in loc. It walks midnight by midnight rather than
// dividing a duration, since a local day is not always 24 hours long.
func calendarDaysBetween(from, to time.Time, loc *time.Location) int {
	f := from.In(loc)
	t := to.In(loc)

	cursor := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, loc)
	target := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)

	days := 0
	for cursor.Before(target) {
		cursor = cursor.AddDate(0, 0, 1)
		days++
	}
	return days
}
