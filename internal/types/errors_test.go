package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationTimezone, "unknown timezone Mars/Olympus", nil)

	expected := "validation_invalid_timezone: unknown timezone Mars/Olympus"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrapChain(t *testing.T) {
	underlying := errors.New("connection reset")
	wrapped := fmt.Errorf("claiming tier: %w", NewAppError(ErrCodeInternalDB, "claim failed", underlying))

	if !errors.Is(wrapped, underlying) {
		t.Error("errors.Is should find the underlying cause through AppError")
	}
	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract *AppError")
	}
	if appErr.Code != ErrCodeInternalDB {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeInternalDB)
	}
	if NewAppError(ErrCodeInternalDB, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppError(ErrCodeValidationMissingField, "missing", nil).
		WithDetails(map[string]any{"field": "user_id"})
	merged := original.WithDetails(map[string]any{"field": "to", "rule": "gtfield"})

	if original.Details["field"] != "user_id" || len(original.Details) != 1 {
		t.Errorf("original mutated: %v", original.Details)
	}
	if merged.Details["field"] != "to" || merged.Details["rule"] != "gtfield" {
		t.Errorf("merged details = %v", merged.Details)
	}
	if merged.Code != original.Code || merged.Message != original.Message {
		t.Error("WithDetails must keep code and message")
	}
}

func TestErrorCodeHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationTimeRange, http.StatusBadRequest},
		{ErrCodeValidationTimezone, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeConfigMessagingMissing, http.StatusUnprocessableEntity},
		{ErrCodeConfigInvalidPolicy, http.StatusUnprocessableEntity},
		{ErrCodeCalendarNotConnected, http.StatusOK},
		{ErrCodeCalendarAccessRevoked, http.StatusOK},
		{ErrCodeCalendarUnauthorized, http.StatusOK},
		{ErrCodeNotFoundAppointment, http.StatusNotFound},
		{ErrCodeNotFoundCredential, http.StatusNotFound},
		{ErrCodeNotFoundClinic, http.StatusNotFound},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeUpstreamMessaging, http.StatusBadGateway},
		{ErrCodeUpstreamCalendar, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRejectedRecipient, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := NewAppError(tt.code, "m", nil).HTTPStatus(); got != tt.want {
				t.Errorf("AppError.HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCodeIsSoft(t *testing.T) {
	soft := []ErrorCode{
		ErrCodeCalendarNotConnected, ErrCodeCalendarAccessRevoked, ErrCodeCalendarUnauthorized,
		ErrCodeConfigMessagingMissing, ErrCodeConfigInvalidPolicy,
	}
	for _, c := range soft {
		if !c.IsSoft() {
			t.Errorf("%s should be soft", c)
		}
	}
	hard := []ErrorCode{ErrCodeUpstreamCalendar, ErrCodeInternalDB, ErrCodeNotFoundCredential, ErrCodeAuthTokenInvalid}
	for _, c := range hard {
		if c.IsSoft() {
			t.Errorf("%s should not be soft", c)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternalUnexpected {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrCodeInternalUnexpected)
	}
	wrapped := fmt.Errorf("ctx: %w", NewAppError(ErrCodeCalendarAccessRevoked, "revoked", nil))
	if got := CodeOf(wrapped); got != ErrCodeCalendarAccessRevoked {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, ErrCodeCalendarAccessRevoked)
	}
}
