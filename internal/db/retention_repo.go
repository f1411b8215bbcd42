package db

import (
	"context"
	"time"

	"clinicremind/internal/types"
)

// RetentionRepository deletes expired operational rows.
type RetentionRepository struct {
	db DBTX
}

func NewRetentionRepository(db DBTX) *RetentionRepository {
	return &RetentionRepository{db: db}
}

// DeleteJobHistoryBefore removes job_history rows started before cutoff.
// Rows still running are kept so that a hung run stays visible.
func (r *RetentionRepository) DeleteJobHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM job_history WHERE started_at < $1 AND status <> $2`,
		cutoff, JobStatusRunning,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune job history", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteMessagesBefore removes outbound message log rows created before
// cutoff. Inbound rows belong to the dashboard and are left alone.
func (r *RetentionRepository) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM messages WHERE direction = 'outbound' AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune message log", err)
	}
	return int(tag.RowsAffected()), nil
}
