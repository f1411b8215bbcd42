package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicremind/internal/types"
)

func TestGoogleCalendarClient_InsertEvent(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))

		var ev gcalEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "Limpieza", ev.Summary)
		assert.Equal(t, "America/Mexico_City", ev.Start.TimeZone)
		require.NotNil(t, ev.ExtendedProperties)
		assert.Equal(t, "a1", ev.ExtendedProperties.Private["appointment_id"])

		ev.ID = "evt-1"
		ev.HTMLLink = "https://calendar.google.com/event?eid=1"
		_ = json.NewEncoder(w).Encode(ev)
	}))
	defer srv.Close()

	c := NewGoogleCalendarClientWithBase(newTestBase(types.ErrCodeUpstreamCalendar), srv.URL)
	got, err := c.InsertEvent(context.Background(), "at-1", "", types.CalendarEventInput{
		Summary:       "Limpieza",
		Start:         start,
		End:           start.Add(30 * time.Minute),
		Timezone:      "America/Mexico_City",
		AppointmentID: "a1",
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", got.ID)
	assert.True(t, start.Equal(got.Start))
}

func TestGoogleCalendarClient_ListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/team@example.com/events", r.URL.Path)
		assert.Equal(t, "2026-03-10T00:00:00Z", r.URL.Query().Get("timeMin"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		_, _ = w.Write([]byte(`{"items":[{"id":"e1","summary":"A","start":{"dateTime":"2026-03-10T09:00:00-06:00"},"end":{"dateTime":"2026-03-10T09:30:00-06:00"}}]}`))
	}))
	defer srv.Close()

	c := NewGoogleCalendarClientWithBase(newTestBase(types.ErrCodeUpstreamCalendar), srv.URL)
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got, err := c.ListEvents(context.Background(), "at-1", "team@example.com", from, from.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, 15, got[0].Start.UTC().Hour())
}

func TestGoogleCalendarClient_401IsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGoogleCalendarClientWithBase(newTestBase(types.ErrCodeUpstreamCalendar), srv.URL)
	_, err := c.ListEvents(context.Background(), "stale", "primary", time.Now(), time.Now())

	assert.Equal(t, types.ErrCodeCalendarUnauthorized, types.CodeOf(err))
}

func TestGoogleCalendarClient_403IsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewGoogleCalendarClientWithBase(newTestBase(types.ErrCodeUpstreamCalendar), srv.URL)
	_, err := c.InsertEvent(context.Background(), "at", "primary", types.CalendarEventInput{Summary: "x"})

	assert.Equal(t, types.ErrCodeUpstreamCalendar, types.CodeOf(err))
}
