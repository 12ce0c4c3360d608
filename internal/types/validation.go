package types

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation constraint constants.
const (
	MaxCustomDays = 7
	MinWeekday    = 0
	MaxWeekday    = 6
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator instance. Struct tag
// metadata is cached internally, so one instance serves the process.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateAlarmConfig checks an AlarmConfig before it reaches the trigger
// calculator. The calculator is total over validated input, so every
// malformed config must be rejected here.
//
// Cross-field rule: a custom repeat policy requires a non-empty day set;
// every other policy requires an empty one.
func ValidateAlarmConfig(cfg AlarmConfig) error {
	if err := structValidator().Struct(cfg); err != nil {
		code := ErrCodeValidationInvalidTime
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			code = codeForFieldError(fieldErrs[0])
		}
		return NewAppError(code,
			fmt.Sprintf("alarm config failed validation: %v", err), err)
	}

	switch cfg.Repeat {
	case RepeatCustom:
		if len(cfg.Days) == 0 {
			return NewAppErrorWithDetails(ErrCodeValidationRepeatDays,
				"custom repeat policy requires a non-empty day set", nil,
				map[string]any{"alarm_id": cfg.ID})
		}
	default:
		if len(cfg.Days) > 0 {
			return NewAppErrorWithDetails(ErrCodeValidationRepeatDays,
				fmt.Sprintf("repeat policy %q requires an empty day set", cfg.Repeat), nil,
				map[string]any{"alarm_id": cfg.ID, "days": cfg.Days})
		}
	}

	for _, d := range cfg.Days {
		if d < MinWeekday || d > MaxWeekday {
			return NewAppErrorWithDetails(ErrCodeValidationRepeatDays,
				fmt.Sprintf("weekday %d outside 0-6", d), nil,
				map[string]any{"alarm_id": cfg.ID})
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidTimezone,
			fmt.Sprintf("unknown timezone %q", cfg.Timezone), err,
			map[string]any{"alarm_id": cfg.ID})
	}

	return nil
}

// codeForFieldError picks the error code for a single struct-tag failure.
// Absent fields report missing_required_field; out-of-range clock fields
// report invalid_time; repeat policy and day-set failures report
// repeat_days_mismatch.
func codeForFieldError(fe validator.FieldError) ErrorCode {
	if fe.Tag() == "required" {
		return ErrCodeValidationMissingField
	}
	field := fe.StructField()
	switch {
	case field == "Hour" || field == "Minute":
		return ErrCodeValidationInvalidTime
	case field == "Repeat" || strings.HasPrefix(field, "Days"):
		return ErrCodeValidationRepeatDays
	default:
		return ErrCodeValidationInvalidTime
	}
}
