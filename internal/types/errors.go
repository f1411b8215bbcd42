package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services use these instead of literals.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationTimeRange    ErrorCode = "validation_time_range_invalid"
	ErrCodeValidationTimezone     ErrorCode = "validation_invalid_timezone"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Configuration gaps. These are skip reasons rather than failures.
	ErrCodeConfigMessagingMissing ErrorCode = "config_messaging_missing"
	ErrCodeConfigInvalidPolicy    ErrorCode = "config_invalid_policy"

	// Calendar integration. Soft errors: callers degrade instead of aborting.
	ErrCodeCalendarNotConnected  ErrorCode = "calendar_not_connected"
	ErrCodeCalendarAccessRevoked ErrorCode = "calendar_access_revoked"
	ErrCodeCalendarUnauthorized  ErrorCode = "calendar_unauthorized"

	// Not Found (404)
	ErrCodeNotFoundAppointment ErrorCode = "not_found_appointment"
	ErrCodeNotFoundCredential  ErrorCode = "not_found_credential"
	ErrCodeNotFoundClinic      ErrorCode = "not_found_clinic"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB                ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected        ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamMessaging         ErrorCode = "upstream_messaging_unavailable"
	ErrCodeUpstreamCalendar          ErrorCode = "upstream_calendar_unavailable"
	ErrCodeUpstreamUnavailable       ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited       ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamRejectedRecipient ErrorCode = "upstream_rejected_recipient"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "calendar_"):
		// Calendar failures are soft; the handler reports them in a 200 body.
		return http.StatusOK
	case strings.HasPrefix(s, "config_"):
		return http.StatusUnprocessableEntity
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsSoft reports whether the code describes a degradation the caller is
// expected to absorb (configuration gaps and calendar connectivity).
func (c ErrorCode) IsSoft() bool {
	s := string(c)
	return strings.HasPrefix(s, "calendar_") || strings.HasPrefix(s, "config_")
}

// AppError is the standard application error type used throughout the service.
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

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Errors that are not
// AppErrors report ErrCodeInternalUnexpected; nil reports the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
