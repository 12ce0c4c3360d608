package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing engine errors.
type ErrorCode string

// Complete error code constants. Engine components MUST use these
// constants instead of hardcoded strings.
const (
	// Validation: malformed alarm config, never retried.
	ErrCodeValidationInvalidTime     ErrorCode = "validation_invalid_time"
	ErrCodeValidationInvalidTimezone ErrorCode = "validation_invalid_timezone"
	ErrCodeValidationRepeatDays      ErrorCode = "validation_repeat_days_mismatch"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationAlarmDisabled   ErrorCode = "validation_alarm_not_schedulable"

	// Permission: user action required, never retried.
	ErrCodePermissionNotifications ErrorCode = "permission_notifications_denied"

	// Gateway: transient, retried with backoff.
	ErrCodeGatewayUnavailable ErrorCode = "gateway_unavailable"
	ErrCodeGatewayTimeout     ErrorCode = "gateway_timeout"

	// Snooze: expected rejection, terminal.
	ErrCodeSnoozeLimitReached ErrorCode = "snooze_limit_reached"

	// Storage: degraded durability, retried; scheduling proceeds on
	// in-memory state.
	ErrCodeStorageUnavailable ErrorCode = "storage_unavailable"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// ErrorKind is the closed set of error categories the reliability policy
// engine dispatches on. Keeping it a small sum type gives the recovery
// plan switch compile-time coverage instead of a runtime table lookup.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindPermissionDenied
	KindGatewayFailure
	KindSnoozeLimit
	KindStorageFailure
)

// String returns the kind's log-friendly name.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindGatewayFailure:
		return "gateway_failure"
	case KindSnoozeLimit:
		return "snooze_limit"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unexpected"
	}
}

// Kind maps an ErrorCode onto its reliability category by prefix.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return KindValidation
	case strings.HasPrefix(s, "permission_"):
		return KindPermissionDenied
	case strings.HasPrefix(s, "gateway_"):
		return KindGatewayFailure
	case c == ErrCodeSnoozeLimitReached:
		return KindSnoozeLimit
	case strings.HasPrefix(s, "storage_"):
		return KindStorageFailure
	default:
		return KindUnexpected
	}
}

// AppError is the standard error type used throughout the engine. All
// component errors are expressed as AppError to enable consistent
// classification, structured logging, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the reliability category of this error.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// Classify extracts the ErrorKind from any error. Errors outside the
// AppError chain are treated as unexpected.
func Classify(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindUnexpected
}
