package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinicremind/internal/types"
)

// StubMessageSender logs messages instead of sending them.
type StubMessageSender struct {
	logger *slog.Logger
}

func NewStubMessageSender(logger *slog.Logger) *StubMessageSender {
	return &StubMessageSender{logger: logger}
}

func (s *StubMessageSender) Send(ctx context.Context, in types.SendInput) (string, error) {
	id := "stub-" + uuid.NewString()
	s.logger.InfoContext(ctx, "stub: message send",
		"sender", in.Sender,
		"recipient", in.Recipient,
		"body_len", len(in.Body),
		"message_id", id,
	)
	return id, nil
}

// StubTokenRefresher grants one-hour tokens for any refresh token.
type StubTokenRefresher struct {
	logger *slog.Logger
}

func NewStubTokenRefresher(logger *slog.Logger) *StubTokenRefresher {
	return &StubTokenRefresher{logger: logger}
}

func (s *StubTokenRefresher) Refresh(ctx context.Context, _ types.SecretString) (*types.TokenGrant, error) {
	s.logger.InfoContext(ctx, "stub: calendar token refresh")
	return &types.TokenGrant{
		AccessToken: types.SecretString("stub-access-" + uuid.NewString()),
		ExpiresIn:   time.Hour,
	}, nil
}

// StubCalendarAPI echoes inserted events and lists nothing.
type StubCalendarAPI struct {
	logger *slog.Logger
}

func NewStubCalendarAPI(logger *slog.Logger) *StubCalendarAPI {
	return &StubCalendarAPI{logger: logger}
}

func (s *StubCalendarAPI) InsertEvent(ctx context.Context, _ types.SecretString, calendarID string, in types.CalendarEventInput) (*types.CalendarEvent, error) {
	s.logger.InfoContext(ctx, "stub: calendar insert", "calendar_id", calendarID, "summary", in.Summary)
	return &types.CalendarEvent{
		ID:      "stub-" + uuid.NewString(),
		Summary: in.Summary,
		Start:   in.Start,
		End:     in.End,
		Status:  "confirmed",
	}, nil
}

func (s *StubCalendarAPI) ListEvents(ctx context.Context, _ types.SecretString, calendarID string, from, to time.Time) ([]types.CalendarEvent, error) {
	s.logger.InfoContext(ctx, "stub: calendar list", "calendar_id", calendarID, "from", from, "to", to)
	return []types.CalendarEvent{}, nil
}
