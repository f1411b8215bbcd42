package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicremind/internal/calendar"
	"clinicremind/internal/core"
	"clinicremind/internal/types"
)

// defaultListSpan is the window listed when the caller gives no range.
const defaultListSpan = 7 * 24 * time.Hour

// CalendarService is the part of calendar.Gateway the handler depends on.
type CalendarService interface {
	CreateEvent(ctx context.Context, userID string, in types.CalendarEventInput) (*types.CalendarEvent, error)
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]types.CalendarEvent, error)
}

// AppointmentReader loads appointments for calendar sync.
type AppointmentReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*types.Appointment, error)
}

// ClinicReader loads clinic identity for calendar sync.
type ClinicReader interface {
	GetClinic(ctx context.Context, id string) (*types.Tenant, error)
}

// CalendarHandler serves the user calendar endpoints.
type CalendarHandler struct {
	calendar     CalendarService
	appointments AppointmentReader
	clinics      ClinicReader
	validator    *core.Validator
	now          func() time.Time
	logger       *slog.Logger
}

func NewCalendarHandler(
	svc CalendarService,
	appointments AppointmentReader,
	clinics ClinicReader,
	val *core.Validator,
	logger *slog.Logger,
) *CalendarHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarHandler{
		calendar:     svc,
		appointments: appointments,
		clinics:      clinics,
		validator:    val,
		now:          time.Now,
		logger:       logger,
	}
}

// RegisterRoutes mounts the calendar endpoints. The caller applies the admin
// key guard.
func (h *CalendarHandler) RegisterRoutes(r chi.Router) {
	r.Post("/users/{userID}/calendar/events", h.HandleCreateEvent)
	r.Get("/users/{userID}/calendar/events", h.HandleListEvents)
	r.Post("/clinics/{clinicID}/appointments/{appointmentID}/calendar", h.HandleSyncAppointment)
}

type syncResponse struct {
	Synced bool                 `json:"synced"`
	Reason string               `json:"reason,omitempty"`
	Event  *types.CalendarEvent `json:"event,omitempty"`
}

type listResponse struct {
	Synced bool                  `json:"synced"`
	Events []types.CalendarEvent `json:"events"`
}

type listQuery struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to" validate:"gtfield=From"`
}

type appointmentSyncRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// HandleCreateEvent handles POST /v1/users/{userID}/calendar/events.
func (h *CalendarHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var in types.CalendarEventInput
	if err := core.DecodeJSON(w, r, &in); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		core.Error(w, r, err)
		return
	}

	ev, err := h.calendar.CreateEvent(r.Context(), userID, in)
	h.writeSync(w, r, userID, http.StatusCreated, syncResponse{Synced: true, Event: ev}, err)
}

// HandleListEvents handles GET /v1/users/{userID}/calendar/events?from&to.
// Both bounds are RFC 3339; a missing range lists the next seven days.
func (h *CalendarHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	q, err := h.parseRange(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	evs, err := h.calendar.ListEvents(r.Context(), userID, q.From, q.To)
	if evs == nil {
		evs = []types.CalendarEvent{}
	}
	h.writeSync(w, r, userID, http.StatusOK, listResponse{Synced: true, Events: evs}, err)
}

// HandleSyncAppointment handles
// POST /v1/clinics/{clinicID}/appointments/{appointmentID}/calendar.
func (h *CalendarHandler) HandleSyncAppointment(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	appointmentID := chi.URLParam(r, "appointmentID")

	var req appointmentSyncRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	clinic, err := h.clinics.GetClinic(r.Context(), clinicID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	appt, err := h.appointments.GetByID(r.Context(), clinicID, appointmentID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = clinic.Timezone
	}
	ev, err := h.calendar.CreateEvent(r.Context(), req.UserID, calendar.EventFromAppointment(appt, clinic.Name, tz))
	h.writeSync(w, r, req.UserID, http.StatusCreated, syncResponse{Synced: true, Event: ev}, err)
}

func (h *CalendarHandler) parseRange(r *http.Request) (listQuery, error) {
	now := h.now().UTC()
	q := listQuery{From: now, To: now.Add(defaultListSpan)}

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationTimeRange, "from must be an RFC 3339 timestamp", err)
		}
		q.From = t
		if r.URL.Query().Get("to") == "" {
			q.To = t.Add(defaultListSpan)
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationTimeRange, "to must be an RFC 3339 timestamp", err)
		}
		q.To = t
	}
	if err := h.validator.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// writeSync writes ok on success. Soft calendar failures (not connected,
// revoked, rejected after refresh) are a 200 with synced=false so that the
// caller's own flow continues; everything else is a regular error response.
func (h *CalendarHandler) writeSync(w http.ResponseWriter, r *http.Request, userID string, status int, ok any, err error) {
	if err == nil {
		core.JSON(w, r, status, ok)
		return
	}
	code := types.CodeOf(err)
	if code.IsSoft() {
		h.logger.InfoContext(r.Context(), "calendar not synced",
			"user_id", userID,
			"reason", string(code),
		)
		core.JSON(w, r, http.StatusOK, syncResponse{Synced: false, Reason: string(code)})
		return
	}
	h.logger.ErrorContext(r.Context(), "calendar call failed",
		"user_id", userID,
		"error", err,
	)
	core.Error(w, r, err)
}
