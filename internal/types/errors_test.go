package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_Kind(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorKind
	}{
		{ErrCodeValidationInvalidTime, KindValidation},
		{ErrCodeValidationInvalidTimezone, KindValidation},
		{ErrCodeValidationRepeatDays, KindValidation},
		{ErrCodeValidationMissingField, KindValidation},
		{ErrCodePermissionNotifications, KindPermissionDenied},
		{ErrCodeGatewayUnavailable, KindGatewayFailure},
		{ErrCodeGatewayTimeout, KindGatewayFailure},
		{ErrCodeSnoozeLimitReached, KindSnoozeLimit},
		{ErrCodeStorageUnavailable, KindStorageFailure},
		{ErrCodeInternalUnexpected, KindUnexpected},
		{ErrorCode("something_else"), KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Kind())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewAppError(ErrCodeGatewayUnavailable, "gateway call failed", inner)

	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, "gateway_unavailable: gateway call failed", err.Error())
}

func TestClassify(t *testing.T) {
	appErr := NewAppError(ErrCodeSnoozeLimitReached, "limit reached", nil)

	// Direct AppError.
	assert.Equal(t, KindSnoozeLimit, Classify(appErr))

	// Wrapped AppError.
	wrapped := fmt.Errorf("snooze failed: %w", appErr)
	assert.Equal(t, KindSnoozeLimit, Classify(wrapped))

	// Plain error.
	assert.Equal(t, KindUnexpected, Classify(errors.New("boom")))

	// Nil-safe classification of a non-AppError chain.
	assert.Equal(t, KindUnexpected, Classify(fmt.Errorf("outer: %w", errors.New("inner"))))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "permission_denied", KindPermissionDenied.String())
	assert.Equal(t, "gateway_failure", KindGatewayFailure.String())
	assert.Equal(t, "snooze_limit", KindSnoozeLimit.String())
	assert.Equal(t, "storage_failure", KindStorageFailure.String())
	assert.Equal(t, "unexpected", KindUnexpected.String())
}
