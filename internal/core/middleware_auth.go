package core

import (
	"log/slog"
	"net/http"
	"strings"

	"clinicremind/internal/types"
)

// SecretChecker verifies a presented bearer secret.
type SecretChecker interface {
	Name() string
	Verify(presented string) error
}

// RequireSecret guards a route group with a shared bearer secret:
// "Authorization: Bearer <secret>". Failures are 401 with auth_token_missing
// or auth_token_invalid.
func (s *Server) RequireSecret(checker SecretChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r.Header.Get("Authorization"))
			if err := checker.Verify(token); err != nil {
				s.Logger.WarnContext(r.Context(), "authentication failed",
					slog.String("guard", checker.Name()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error_code", string(types.CodeOf(err))),
				)
				s.writeAuthError(w, r, types.CodeOf(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken returns the token of a "Bearer <token>" header value,
// matching the scheme case-insensitively, or "" when the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode) {
	message := "Invalid authentication secret"
	if code == types.ErrCodeAuthTokenMissing {
		message = "Authorization header with a Bearer secret is required"
	} else {
		code = types.ErrCodeAuthTokenInvalid
	}
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
