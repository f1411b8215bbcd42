package db

import (
	"context"

	"clinicremind/internal/types"
)

// Job types recorded in job_history.
const (
	JobTypeReminderRun  = "reminder_run"
	JobTypePruneHistory = "prune_history"
)

// Job statuses.
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

// JobHistoryRepository records one row per scheduler run. Rows are a
// debugging aid and are never read back by the scheduler.
type JobHistoryRepository struct {
	db DBTX
}

func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start inserts a running row tagged with runID and returns its id.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType, runID string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_history (job_type, run_id, started_at, status)
		 VALUES ($1, $2, NOW(), $3)
		 RETURNING id`,
		jobType, runID, JobStatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish closes the row. items is the number of messages sent; jobErr, if
// set, is stored as text.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status string, items int, jobErr error) error {
	var msg *string
	if jobErr != nil {
		s := jobErr.Error()
		msg = &s
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE job_history
		 SET finished_at = NOW(), status = $2, items_count = $3, error = $4
		 WHERE id = $1`,
		id, status, items, msg,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}
