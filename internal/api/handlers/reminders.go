// Package handlers contains the HTTP handlers of the reminder service: the
// scheduler trigger and the user-driven calendar endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicremind/internal/core"
	"clinicremind/internal/scheduler"
	"clinicremind/internal/types"
)

// defaultTriggerWait applies when no wait is configured.
const defaultTriggerWait = 25 * time.Second

// ReminderRunner is the part of scheduler.Runner the trigger depends on.
type ReminderRunner interface {
	RunWithID(ctx context.Context, runID string, now time.Time) *types.RunReport
}

// ReminderHandler serves POST /v1/reminders/run.
type ReminderHandler struct {
	runner ReminderRunner
	wait   time.Duration
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	inflight sync.WaitGroup
}

func NewReminderHandler(runner ReminderRunner, wait time.Duration, logger *slog.Logger) *ReminderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if wait <= 0 {
		wait = defaultTriggerWait
	}
	return &ReminderHandler{
		runner: runner,
		wait:   wait,
		now:    time.Now,
		newID:  scheduler.NewRunID,
		logger: logger,
	}
}

// RegisterRoutes mounts the trigger. The caller applies the secret guard.
func (h *ReminderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reminders/run", h.HandleRun)
}

type runAccepted struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
}

type runFailed struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
	Error   string `json:"error"`
}

// HandleRun starts a run detached from the request and waits for it up to the
// configured wait. A finished run is answered with its report; a run still
// going is answered 202 and keeps running. A failed run is still a 200 so the
// external trigger does not retry into an overlapping run.
func (h *ReminderHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	runID := h.newID()
	now := h.now()

	// The run must outlive both the request deadline and a client disconnect.
	runCtx := context.WithoutCancel(r.Context())
	done := make(chan *types.RunReport, 1)

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		done <- h.runner.RunWithID(runCtx, runID, now)
	}()

	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	select {
	case report := <-done:
		if report == nil || !report.Success {
			msg := "run failed"
			if report != nil && report.Error != "" {
				msg = report.Error
			}
			core.JSON(w, r, http.StatusOK, runFailed{Success: false, RunID: runID, Error: msg})
			return
		}
		core.JSON(w, r, http.StatusOK, report)
	case <-timer.C:
		h.logger.InfoContext(r.Context(), "reminder run still in progress; answering 202", "run_id", runID)
		core.JSON(w, r, http.StatusAccepted, runAccepted{Success: true, RunID: runID, Status: "running"})
	case <-r.Context().Done():
		h.logger.WarnContext(r.Context(), "trigger request ended before run finished", "run_id", runID)
		core.JSON(w, r, http.StatusAccepted, runAccepted{Success: true, RunID: runID, Status: "running"})
	}
}

// Drain blocks until every detached run has finished or ctx ends.
func (h *ReminderHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
