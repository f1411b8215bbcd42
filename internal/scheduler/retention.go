package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionStore deletes rows older than a cutoff.
type RetentionStore interface {
	// DeleteJobHistoryBefore removes finished job_history rows started
	// before cutoff.
	DeleteJobHistoryBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteMessagesBefore removes outbound message log rows sent before
	// cutoff.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RetentionConfig holds how long each table keeps its rows. A zero duration
// disables pruning for that table.
type RetentionConfig struct {
	JobHistory time.Duration
	MessageLog time.Duration
}

// Pruner enforces RetentionConfig. The dedup state on appointments is never
// touched: it lives on the appointment row and is what stops resends.
type Pruner struct {
	store  RetentionStore
	cfg    RetentionConfig
	logger *slog.Logger
}

func NewPruner(store RetentionStore, cfg RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{store: store, cfg: cfg, logger: logger}
}

// Prune deletes expired rows from both tables and returns the total removed.
// A failure on one table does not stop the other; the first error is
// returned alongside the count of what did get deleted.
func (p *Pruner) Prune(ctx context.Context, now time.Time) (int, error) {
	var (
		total    int
		firstErr error
	)

	if p.cfg.JobHistory > 0 {
		cutoff := now.Add(-p.cfg.JobHistory)
		n, err := p.store.DeleteJobHistoryBefore(ctx, cutoff)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to prune job history", "cutoff", cutoff.Format(time.RFC3339), "error", err)
			firstErr = fmt.Errorf("pruning job history: %w", err)
		} else {
			total += n
			p.logger.InfoContext(ctx, "pruned job history", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
		}
	}

	if p.cfg.MessageLog > 0 {
		cutoff := now.Add(-p.cfg.MessageLog)
		n, err := p.store.DeleteMessagesBefore(ctx, cutoff)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to prune message log", "cutoff", cutoff.Format(time.RFC3339), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pruning message log: %w", err)
			}
		} else {
			total += n
			p.logger.InfoContext(ctx, "pruned message log", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
		}
	}

	return total, firstErr
}
