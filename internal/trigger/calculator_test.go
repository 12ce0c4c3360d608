package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakebell/internal/types"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func dailyAlarm(hour, minute int, tz string) types.AlarmConfig {
	return types.AlarmConfig{
		ID:       "alarm_1",
		Hour:     hour,
		Minute:   minute,
		Repeat:   types.RepeatDaily,
		Timezone: tz,
		Enabled:  true,
	}
}

func TestCompute_DailyWithin24Hours(t *testing.T) {
	// For any reference time, a daily alarm fires within the next 24h at
	// the configured hour:minute.
	ny := mustLoc(t, "America/New_York")
	refs := []time.Time{
		time.Date(2026, 8, 30, 6, 0, 0, 0, ny),
		time.Date(2026, 8, 30, 7, 30, 0, 0, ny), // exactly at alarm time
		time.Date(2026, 8, 30, 23, 59, 0, 0, ny),
		time.Date(2026, 12, 31, 12, 0, 0, 0, ny), // year boundary
	}

	cfg := dailyAlarm(7, 30, "America/New_York")
	for _, ref := range refs {
		calc, err := Compute(cfg, ref)
		require.NoError(t, err)

		assert.True(t, calc.At.After(ref), "trigger must be strictly in the future")
		assert.LessOrEqual(t, calc.At.Sub(ref), 25*time.Hour) // 25h covers DST fall-back days

		local := calc.At.In(ny)
		assert.Equal(t, 7, local.Hour())
		assert.Equal(t, 30, local.Minute())
	}
}

func TestCompute_ExactlyAtAlarmTimeRollsForward(t *testing.T) {
	// Candidate equal to the reference time is never returned.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 8, 30, 7, 30, 0, 0, ny)

	calc, err := Compute(dailyAlarm(7, 30, "America/New_York"), ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 31, 7, 30, 0, 0, ny).UTC(), calc.At.UTC())
	assert.True(t, calc.IsTomorrow)
}

func TestCompute_LateNightRollsToTomorrow(t *testing.T) {
	// Alarm 23:30, reference 23:45 same day: tomorrow, days_until = 1.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 8, 30, 23, 45, 0, 0, ny)

	calc, err := Compute(dailyAlarm(23, 30, "America/New_York"), ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 31, 23, 30, 0, 0, ny).UTC(), calc.At.UTC())
	assert.True(t, calc.IsTomorrow)
	assert.False(t, calc.IsToday)
	assert.Equal(t, 1, calc.DaysUntil)
}

func TestCompute_WeekdaysSkipsWeekend(t *testing.T) {
	// Alarm 07:30 weekdays, reference Sunday 06:00: next is Monday 07:30.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 9, 6, 6, 0, 0, 0, ny) // a Sunday
	require.Equal(t, time.Sunday, ref.Weekday())

	cfg := dailyAlarm(7, 30, "America/New_York")
	cfg.Repeat = types.RepeatWeekdays

	calc, err := Compute(cfg, ref)
	require.NoError(t, err)

	at := calc.At.In(ny)
	assert.Equal(t, time.Monday, at.Weekday())
	assert.Equal(t, 7, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, 1, calc.DaysUntil)
}

func TestCompute_WeekdaysSaturdayAdvancesTwoDays(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 9, 4, 23, 0, 0, 0, ny) // Friday night
	require.Equal(t, time.Friday, ref.Weekday())

	cfg := dailyAlarm(7, 30, "America/New_York")
	cfg.Repeat = types.RepeatWeekdays

	// Candidate rolls to Saturday (alarm time passed Friday), then the
	// weekday rule pushes it to Monday.
	calc, err := Compute(cfg, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, calc.At.In(ny).Weekday())
}

func TestCompute_WeekendsAdvancesToSaturday(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 9, 1, 12, 0, 0, 0, ny) // a Tuesday
	require.Equal(t, time.Tuesday, ref.Weekday())

	cfg := dailyAlarm(9, 0, "America/New_York")
	cfg.Repeat = types.RepeatWeekends

	calc, err := Compute(cfg, ref)
	require.NoError(t, err)

	at := calc.At.In(ny)
	assert.Equal(t, time.Saturday, at.Weekday())
	assert.Equal(t, 9, at.Hour())
}

func TestCompute_CustomReturnsMemberWeekday(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	days := []time.Weekday{time.Tuesday, time.Friday}

	cfg := dailyAlarm(6, 45, "America/New_York")
	cfg.Repeat = types.RepeatCustom
	cfg.Days = days

	// Walk a full week of reference days; the result weekday must always
	// be in the configured set.
	for offset := 0; offset < 7; offset++ {
		ref := time.Date(2026, 9, 6, 10, 0, 0, 0, ny).AddDate(0, 0, offset)

		calc, err := Compute(cfg, ref)
		require.NoError(t, err)

		assert.True(t, calc.At.After(ref))
		assert.Contains(t, days, calc.At.In(ny).Weekday())
		assert.False(t, calc.FallbackApplied)
	}
}

func TestCompute_CustomEmptyDaysFallsBackToTomorrow(t *testing.T) {
	// An empty day set should never reach the calculator, but if it does
	// the result degrades to tomorrow with the fallback flagged.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 9, 1, 12, 0, 0, 0, ny)

	cfg := dailyAlarm(6, 45, "America/New_York")
	cfg.Repeat = types.RepeatCustom
	cfg.Days = nil

	calc, err := Compute(cfg, ref)
	require.NoError(t, err)
	assert.True(t, calc.FallbackApplied)
	assert.True(t, calc.At.After(ref))
}

func TestCompute_SpringForwardShortDay(t *testing.T) {
	// US DST starts 2026-03-08; that Sunday is 23 hours long in New York.
	// A Saturday-morning reference still counts Sunday as one day away.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 3, 7, 8, 0, 0, 0, ny)
	require.Equal(t, time.Saturday, ref.Weekday())

	calc, err := Compute(dailyAlarm(7, 30, "America/New_York"), ref)
	require.NoError(t, err)

	at := calc.At.In(ny)
	assert.Equal(t, time.Sunday, at.Weekday())
	assert.Equal(t, 7, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, 1, calc.DaysUntil)
	assert.True(t, calc.IsTomorrow)

	// Absolute delta is 22.5h, not 23.5h, because of the lost hour.
	assert.Equal(t, 22*time.Hour+30*time.Minute, calc.At.Sub(ref))
}

func TestCompute_FallBackLongDay(t *testing.T) {
	// US DST ends 2026-11-01; that Sunday is 25 hours long in New York.
	ny := mustLoc(t, "America/New_York")
	ref := time.Date(2026, 10, 31, 8, 0, 0, 0, ny)

	calc, err := Compute(dailyAlarm(7, 30, "America/New_York"), ref)
	require.NoError(t, err)

	assert.Equal(t, 1, calc.DaysUntil)
	assert.Equal(t, 24*time.Hour+30*time.Minute, calc.At.Sub(ref))
}

func TestCompute_TimezoneMattersNotServerLocale(t *testing.T) {
	// The same UTC instant is before the Tokyo alarm time but after the
	// New York one; each config resolves against its own timezone.
	ref := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)

	tokyoCalc, err := Compute(dailyAlarm(7, 30, "Asia/Tokyo"), ref)
	require.NoError(t, err)
	nyCalc, err := Compute(dailyAlarm(7, 30, "America/New_York"), ref)
	require.NoError(t, err)

	assert.True(t, tokyoCalc.At.Before(nyCalc.At))
}

func TestCompute_UnknownTimezone(t *testing.T) {
	cfg := dailyAlarm(7, 30, "Not/AZone")
	_, err := Compute(cfg, time.Now())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidTimezone, appErr.Code)
}
