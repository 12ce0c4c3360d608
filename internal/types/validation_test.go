package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AlarmConfig {
	return AlarmConfig{
		ID:       "alarm_1",
		Hour:     7,
		Minute:   30,
		Repeat:   RepeatDaily,
		Timezone: "America/New_York",
		Enabled:  true,
	}
}

func TestValidateAlarmConfig_Valid(t *testing.T) {
	assert.NoError(t, ValidateAlarmConfig(validConfig()))

	custom := validConfig()
	custom.Repeat = RepeatCustom
	custom.Days = []time.Weekday{time.Monday, time.Thursday}
	assert.NoError(t, ValidateAlarmConfig(custom))
}

func TestValidateAlarmConfig_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*AlarmConfig)
		wantCode ErrorCode
	}{
		{
			name:     "hour out of range",
			mutate:   func(c *AlarmConfig) { c.Hour = 24 },
			wantCode: ErrCodeValidationInvalidTime,
		},
		{
			name:     "minute out of range",
			mutate:   func(c *AlarmConfig) { c.Minute = 60 },
			wantCode: ErrCodeValidationInvalidTime,
		},
		{
			name:     "missing id",
			mutate:   func(c *AlarmConfig) { c.ID = "" },
			wantCode: ErrCodeValidationMissingField,
		},
		{
			name:     "missing timezone",
			mutate:   func(c *AlarmConfig) { c.Timezone = "" },
			wantCode: ErrCodeValidationMissingField,
		},
		{
			name:     "unknown repeat policy",
			mutate:   func(c *AlarmConfig) { c.Repeat = "fortnightly" },
			wantCode: ErrCodeValidationRepeatDays,
		},
		{
			name: "day outside weekday range",
			mutate: func(c *AlarmConfig) {
				c.Repeat = RepeatCustom
				c.Days = []time.Weekday{time.Weekday(9)}
			},
			wantCode: ErrCodeValidationRepeatDays,
		},
		{
			name: "custom with empty days",
			mutate: func(c *AlarmConfig) {
				c.Repeat = RepeatCustom
				c.Days = nil
			},
			wantCode: ErrCodeValidationRepeatDays,
		},
		{
			name: "daily with days set",
			mutate: func(c *AlarmConfig) {
				c.Days = []time.Weekday{time.Monday}
			},
			wantCode: ErrCodeValidationRepeatDays,
		},
		{
			name:     "bad timezone",
			mutate:   func(c *AlarmConfig) { c.Timezone = "Mars/Olympus_Mons" },
			wantCode: ErrCodeValidationInvalidTimezone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := ValidateAlarmConfig(cfg)
			require.Error(t, err)

			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, KindValidation, appErr.Kind())
		})
	}
}

func TestSnoozeState_CanSnoozeAgain(t *testing.T) {
	s := &SnoozeState{Count: 2, MaxCount: 3}
	assert.True(t, s.CanSnoozeAgain())

	s.Count = 3
	assert.False(t, s.CanSnoozeAgain())
}

func TestSnoozeState_Clone(t *testing.T) {
	target := time.Date(2026, 8, 30, 7, 39, 0, 0, time.UTC)
	s := &SnoozeState{
		AlarmID:    "alarm_1",
		Active:     true,
		Count:      1,
		MaxCount:   3,
		NextTarget: &target,
		History:    []SnoozeEvent{{Sequence: 1, Kind: SnoozeEventSnoozed}},
	}

	c := s.Clone()
	c.History[0].Kind = SnoozeEventDismissed
	*c.NextTarget = target.Add(time.Hour)

	assert.Equal(t, SnoozeEventSnoozed, s.History[0].Kind)
	assert.Equal(t, target, *s.NextTarget)
}

func TestAlarmConfig_HasDay(t *testing.T) {
	cfg := AlarmConfig{Days: []time.Weekday{time.Saturday, time.Sunday}}
	assert.True(t, cfg.HasDay(time.Saturday))
	assert.False(t, cfg.HasDay(time.Wednesday))
}
