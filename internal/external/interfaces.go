package external

import (
	"context"
	"time"

	"clinicremind/internal/types"
)

// MessageSender delivers one rendered message and returns the
// provider-assigned message id.
type MessageSender interface {
	Send(ctx context.Context, in types.SendInput) (string, error)
}

// CredentialChecker is implemented by senders whose API key has a required
// shape. It does not contact the provider.
type CredentialChecker interface {
	CheckCredentials(apiKey types.SecretString) error
}

// TokenRefresher exchanges a refresh token for a new access token
// (grant_type=refresh_token).
//
// A rejected grant is reported as ErrCodeCalendarAccessRevoked; anything else
// that fails is ErrCodeUpstreamCalendar or ErrCodeUpstreamRateLimited.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken types.SecretString) (*types.TokenGrant, error)
}

// CalendarAPI is the events surface of the calendar provider. A 401 is
// reported as ErrCodeCalendarUnauthorized so the caller can refresh and retry.
type CalendarAPI interface {
	InsertEvent(ctx context.Context, accessToken types.SecretString, calendarID string, in types.CalendarEventInput) (*types.CalendarEvent, error)
	ListEvents(ctx context.Context, accessToken types.SecretString, calendarID string, from, to time.Time) ([]types.CalendarEvent, error)
}
