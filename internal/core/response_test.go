package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinicremind/internal/types"
)

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, map[string]string{"run_id": "run_1"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["run_id"] != "run_1" {
		t.Errorf("expected run_id=run_1, got %v", body)
	}
}

func TestJSON_UnmarshalableFallsBackTo500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, map[string]any{"ch": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("expected fallback error body, got %s", w.Body.String())
	}
}

func TestError_AppErrorMapsStatusAndCode(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeValidationMissingField, http.StatusBadRequest},
		{types.ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{types.ErrCodeNotFoundAppointment, http.StatusNotFound},
		{types.ErrCodeConfigInvalidPolicy, http.StatusUnprocessableEntity},
		{types.ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{types.ErrCodeUpstreamCalendar, http.StatusBadGateway},
		{types.ErrCodeInternalDB, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(types.WithRequestID(r.Context(), "req_1"))

			wrapped := fmt.Errorf("handler: %w", types.NewAppError(tt.code, "boom", errors.New("secret cause")))
			Error(w, r, wrapped)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			var resp APIErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Code != string(tt.code) {
				t.Errorf("expected code %q, got %q", tt.code, resp.Error.Code)
			}
			if resp.Error.RequestID != "req_1" {
				t.Errorf("expected request_id req_1, got %q", resp.Error.RequestID)
			}
			if strings.Contains(w.Body.String(), "secret cause") {
				t.Error("wrapped cause must not be exposed")
			}
		})
	}
}

func TestError_PlainErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("connection refused to 10.0.0.3"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.3") {
		t.Error("internal error text must not be exposed")
	}
}

func TestError_DetailsIncluded(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "missing", nil).
		WithDetails(map[string]any{"field": "user_id"}))

	var resp APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Details["field"] != "user_id" {
		t.Errorf("expected details.field=user_id, got %v", resp.Error.Details)
	}
}

type decodeTarget struct {
	UserID   string `json:"user_id"`
	Timezone string `json:"timezone"`
	Count    int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantMsg string
	}{
		{name: "valid", body: `{"user_id":"u1","timezone":"America/Bogota"}`},
		{name: "empty body", body: ``, wantErr: true, wantMsg: "must not be empty"},
		{name: "malformed", body: `{"user_id":`, wantErr: true},
		{name: "syntax error", body: `{"user_id" "u1"}`, wantErr: true, wantMsg: "malformed JSON"},
		{name: "unknown field", body: `{"user":"u1"}`, wantErr: true, wantMsg: "unknown field"},
		{name: "wrong type", body: `{"count":"three"}`, wantErr: true, wantMsg: "invalid value"},
		{name: "trailing object", body: `{"user_id":"u1"}{"user_id":"u2"}`, wantErr: true, wantMsg: "single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst decodeTarget
			err := DecodeJSON(w, r, &dst)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.UserID != "u1" {
					t.Errorf("expected user_id u1, got %q", dst.UserID)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if types.CodeOf(err) != types.ErrCodeValidationInvalidJSON {
				t.Errorf("expected %s, got %s", types.ErrCodeValidationInvalidJSON, types.CodeOf(err))
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	big := `{"user_id":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !strings.Contains(err.Error(), "64KB") {
		t.Errorf("expected size message, got %q", err.Error())
	}
}
