package calendar

import (
	"context"
	"log/slog"
	"time"

	"clinicremind/internal/external"
	"clinicremind/internal/types"
)

// maxAttempts is the first call plus the single retry after a forced refresh.
const maxAttempts = 2

// TokenSource is the part of Refresher the gateway depends on.
type TokenSource interface {
	GetUsableToken(ctx context.Context, userID string) (*Token, error)
	ForceRefresh(ctx context.Context, userID string) (*Token, error)
}

// Gateway wraps calendar API calls with the reactive refresh protocol: a call
// rejected with 401 triggers one forced refresh and, if that succeeds, one
// retry. A second 401 is reported as ErrCodeCalendarUnauthorized.
type Gateway struct {
	tokens TokenSource
	api    external.CalendarAPI
	logger *slog.Logger
}

func NewGateway(tokens TokenSource, api external.CalendarAPI, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{tokens: tokens, api: api, logger: logger}
}

// CreateEvent inserts an event in the user's calendar.
func (g *Gateway) CreateEvent(ctx context.Context, userID string, in types.CalendarEventInput) (*types.CalendarEvent, error) {
	var ev *types.CalendarEvent
	err := g.call(ctx, userID, "create_event", func(tok *Token) error {
		var err error
		ev, err = g.api.InsertEvent(ctx, tok.AccessToken, tok.CalendarID, in)
		return err
	})
	return ev, err
}

// ListEvents lists events starting in [from, to).
func (g *Gateway) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]types.CalendarEvent, error) {
	var evs []types.CalendarEvent
	err := g.call(ctx, userID, "list_events", func(tok *Token) error {
		var err error
		evs, err = g.api.ListEvents(ctx, tok.AccessToken, tok.CalendarID, from, to)
		return err
	})
	return evs, err
}

// EventFromAppointment builds the event for an appointment shown in the
// clinic's timezone.
func EventFromAppointment(a *types.Appointment, clinicName, timezone string) types.CalendarEventInput {
	dur := time.Duration(a.DurationMinutes) * time.Minute
	if dur <= 0 {
		dur = 30 * time.Minute
	}
	summary := a.ServiceName
	if a.PatientName != "" {
		summary += " - " + a.PatientName
	}
	return types.CalendarEventInput{
		Summary:       summary,
		Location:      clinicName,
		Start:         a.ScheduledAt,
		End:           a.ScheduledAt.Add(dur),
		Timezone:      timezone,
		AppointmentID: a.ID,
	}
}

func (g *Gateway) call(ctx context.Context, userID, op string, fn func(*Token) error) error {
	tok, err := g.tokens.GetUsableToken(ctx, userID)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = fn(tok)
		if types.CodeOf(err) != types.ErrCodeCalendarUnauthorized {
			return err
		}
		if attempt == maxAttempts {
			g.logger.WarnContext(ctx, "calendar rejected refreshed token",
				"user_id", userID,
				"op", op,
				"attempts", attempt,
			)
			return types.NewAppError(types.ErrCodeCalendarUnauthorized, "calendar rejected the token after a refresh", err)
		}

		g.logger.InfoContext(ctx, "calendar returned 401; forcing token refresh",
			"user_id", userID,
			"op", op,
		)
		tok, err = g.tokens.ForceRefresh(ctx, userID)
		if err != nil {
			return err
		}
	}
}
