package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"clinicremind/internal/types"
)

// maxRequestBodySize bounds calendar request bodies. The trigger takes none.
const maxRequestBodySize = 64 << 10

// APIErrorResponse is the envelope of every error response.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

func errorEnvelope(r *http.Request, code types.ErrorCode, message string, details map[string]any) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// JSON writes data with the given status. A value that cannot be marshalled
// becomes a 500 internal_unexpected_error.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorEnvelope(r, types.ErrCodeInternalUnexpected, "failed to marshal response", nil))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an error envelope. The first *types.AppError in the
// chain decides status and code; anything else is a generic 500. Wrapped
// causes never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError,
			errorEnvelope(r, types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil))
		return
	}
	JSON(w, r, appErr.HTTPStatus(), errorEnvelope(r, appErr.Code, appErr.Message, appErr.Details))
}

// DecodeJSON reads exactly one JSON object from the body into dst. Oversized
// bodies, unknown fields and trailing values are validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func invalidJSON(message string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, message, err)
}

func decodeError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		badType  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return invalidJSON("request body must not exceed 64KB", err)
	case errors.As(err, &syntax):
		return invalidJSON("malformed JSON in request body", err)
	case errors.As(err, &badType):
		return invalidJSON("invalid value for field", err).WithDetails(map[string]any{
			"field":    badType.Field,
			"expected": badType.Type.String(),
		})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return invalidJSON("unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	case errors.Is(err, io.EOF):
		return invalidJSON("request body must not be empty", err)
	}
	return invalidJSON("invalid JSON in request body", err)
}
