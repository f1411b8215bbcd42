// Package main is the entrypoint for the scheduler Lambda function.
//
// EventBridge rules invoke it with a TaskPayload. The hourly rule runs the
// reminder pass; a daily rule prunes operational history. Both tasks share the
// object graph built by internal/app, so a Lambda tick and an HTTP trigger run
// the exact same Runner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"clinicremind/internal/app"
	"clinicremind/internal/db"
	"clinicremind/internal/scheduler"
	"clinicremind/internal/types"
)

// ReminderRunner runs one reminder pass and records its own job history.
type ReminderRunner interface {
	Run(ctx context.Context, now time.Time) *types.RunReport
}

// HistoryPruner deletes rows past their retention.
type HistoryPruner interface {
	Prune(ctx context.Context, now time.Time) (int, error)
}

// JobHistorian records task executions.
type JobHistorian interface {
	Start(ctx context.Context, jobType, runID string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Handler holds the dependencies of the Lambda handler.
type Handler struct {
	Runner     ReminderRunner
	Pruner     HistoryPruner
	JobHistory JobHistorian
	Logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// Result is the Lambda response. For send_reminders it carries the run report.
type Result struct {
	Task   scheduler.TaskType `json:"task"`
	Items  int                `json:"items"`
	Report *types.RunReport   `json:"report,omitempty"`
}

// Handle routes the payload to its task. A failed reminder run is returned as
// a report, not an error, so that Lambda does not retry into an overlapping
// run; task errors are returned for prune_history and unknown tasks.
func (h *Handler) Handle(ctx context.Context, payload scheduler.TaskPayload) (*Result, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.now
	if clock == nil {
		clock = time.Now
	}

	task := payload.Task
	if task == "" {
		task = scheduler.TaskSendReminders
	}
	now := payload.Now(clock())

	logger.InfoContext(ctx, "scheduler handler invoked",
		"task", string(task),
		"reference_time", now.Format(time.RFC3339),
	)

	switch task {
	case scheduler.TaskSendReminders:
		report := h.Runner.Run(ctx, now)
		return &Result{Task: task, Items: report.TotalSent(), Report: report}, nil
	case scheduler.TaskPruneHistory:
		items, err := h.prune(ctx, now, logger)
		if err != nil {
			return nil, err
		}
		return &Result{Task: task, Items: items}, nil
	default:
		return nil, fmt.Errorf("unknown task type %q", task)
	}
}

func (h *Handler) prune(ctx context.Context, now time.Time, logger *slog.Logger) (int, error) {
	newID := h.newID
	if newID == nil {
		newID = scheduler.NewRunID
	}

	jobID, err := h.JobHistory.Start(ctx, db.JobTypePruneHistory, newID())
	if err != nil {
		// Job history is operational visibility only; prune anyway.
		logger.ErrorContext(ctx, "failed to start job history", "error", err)
		jobID = 0
	}

	items, pruneErr := h.Pruner.Prune(ctx, now)

	if jobID != 0 {
		status := db.JobStatusSuccess
		if pruneErr != nil {
			status = db.JobStatusFailed
		}
		if err := h.JobHistory.Finish(ctx, jobID, status, items, pruneErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", err)
		}
	}

	if pruneErr != nil {
		return items, fmt.Errorf("pruning history: %w", pruneErr)
	}
	logger.InfoContext(ctx, "history pruned", "items", items)
	return items, nil
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)

	// Built once per cold start and reused across invocations.
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		Runner:     a.Runner,
		Pruner:     a.Pruner,
		JobHistory: a.Jobs,
		Logger:     logger,
	}

	logger.Info("scheduler Lambda starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)
	lambda.Start(handler.Handle)
}
