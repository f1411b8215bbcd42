package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"clinicremind/internal/types"
)

const defaultGoogleCalendarURL = "https://www.googleapis.com/calendar/v3"

// GoogleCalendarClient implements CalendarAPI for Google Calendar v3.
type GoogleCalendarClient struct {
	base    *BaseClient
	baseURL string
}

func NewGoogleCalendarClient(httpClient *http.Client, userAgent, baseURL string) *GoogleCalendarClient {
	return NewGoogleCalendarClientWithBase(
		NewBaseClient(httpClient, "google-calendar", types.ErrCodeUpstreamCalendar, userAgent),
		baseURL,
	)
}

func NewGoogleCalendarClientWithBase(base *BaseClient, baseURL string) *GoogleCalendarClient {
	if baseURL == "" {
		baseURL = defaultGoogleCalendarURL
	}
	return &GoogleCalendarClient{base: base, baseURL: baseURL}
}

type gcalTime struct {
	DateTime time.Time `json:"dateTime"`
	TimeZone string    `json:"timeZone,omitempty"`
}

type gcalEvent struct {
	ID                 string    `json:"id,omitempty"`
	Summary            string    `json:"summary"`
	Description        string    `json:"description,omitempty"`
	Location           string    `json:"location,omitempty"`
	Start              gcalTime  `json:"start"`
	End                gcalTime  `json:"end"`
	HTMLLink           string    `json:"htmlLink,omitempty"`
	Status             string    `json:"status,omitempty"`
	ExtendedProperties *gcalProp `json:"extendedProperties,omitempty"`
}

type gcalProp struct {
	Private map[string]string `json:"private,omitempty"`
}

type gcalEventList struct {
	Items []gcalEvent `json:"items"`
}

func (e gcalEvent) toDomain() types.CalendarEvent {
	return types.CalendarEvent{
		ID:       e.ID,
		Summary:  e.Summary,
		Start:    e.Start.DateTime,
		End:      e.End.DateTime,
		HTMLLink: e.HTMLLink,
		Status:   e.Status,
	}
}

// InsertEvent implements CalendarAPI.
func (c *GoogleCalendarClient) InsertEvent(ctx context.Context, accessToken types.SecretString, calendarID string, in types.CalendarEventInput) (*types.CalendarEvent, error) {
	ev := gcalEvent{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start:       gcalTime{DateTime: in.Start, TimeZone: in.Timezone},
		End:         gcalTime{DateTime: in.End, TimeZone: in.Timezone},
	}
	if in.AppointmentID != "" {
		ev.ExtendedProperties = &gcalProp{Private: map[string]string{"appointment_id": in.AppointmentID}}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode calendar event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL(calendarID, nil), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build calendar request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out gcalEvent
	if err := c.do(req, accessToken, &out); err != nil {
		return nil, err
	}
	res := out.toDomain()
	return &res, nil
}

// ListEvents implements CalendarAPI. Recurring events are expanded and
// results are ordered by start time.
func (c *GoogleCalendarClient) ListEvents(ctx context.Context, accessToken types.SecretString, calendarID string, from, to time.Time) ([]types.CalendarEvent, error) {
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.eventsURL(calendarID, q), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build calendar request", err)
	}

	var list gcalEventList
	if err := c.do(req, accessToken, &list); err != nil {
		return nil, err
	}
	out := make([]types.CalendarEvent, 0, len(list.Items))
	for _, e := range list.Items {
		out = append(out, e.toDomain())
	}
	return out, nil
}

func (c *GoogleCalendarClient) eventsURL(calendarID string, q url.Values) string {
	if calendarID == "" {
		calendarID = "primary"
	}
	u := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *GoogleCalendarClient) do(req *http.Request, accessToken types.SecretString, out any) error {
	req.Header.Set("Authorization", "Bearer "+accessToken.Unmask())
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(types.ErrCodeCalendarUnauthorized, "calendar rejected the access token", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return types.NewAppError(types.ErrCodeUpstreamCalendar, fmt.Sprintf("calendar returned %d", resp.StatusCode), nil).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to decode calendar response", err)
	}
	return nil
}
