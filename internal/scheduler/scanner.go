package scheduler

import (
	"context"
	"log/slog"
	"time"

	"clinicremind/internal/types"
)

// CandidateStore is the read side of the appointment repository.
type CandidateStore interface {
	ListCandidates(ctx context.Context, tenantID string, statuses []types.AppointmentStatus, from, to time.Time) ([]types.Appointment, error)
	ListFollowUpCandidates(ctx context.Context, tenantID string, from, to time.Time) ([]types.Appointment, error)
}

// ScanResult is the outcome of one tenant/tier scan.
type ScanResult struct {
	Window     Window
	Candidates int
	Matched    int
	Due        []types.Appointment
	Skipped    map[string]int
}

func (r *ScanResult) skip(reason string) {
	if r.Skipped == nil {
		r.Skipped = make(map[string]int)
	}
	r.Skipped[reason]++
}

// Scanner finds the appointments due for a tier: a coarse range query, then
// the exact local-time predicate, then the dedup guard.
type Scanner struct {
	store  CandidateStore
	logger *slog.Logger
}

func NewScanner(store CandidateStore, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, logger: logger}
}

// Scan evaluates tier for tenant at now. When the window does not evaluate the
// store is not queried.
func (s *Scanner) Scan(ctx context.Context, tenant types.Tenant, tier types.Tier, now time.Time) (ScanResult, error) {
	w, err := CalculateWindow(now, tenant.Timezone, tier, tenant.Policy.PreferredHour)
	if err != nil {
		return ScanResult{}, types.NewAppError(types.ErrCodeConfigInvalidPolicy, "invalid tenant timezone", err)
	}
	if !w.Evaluate {
		return ScanResult{Window: w}, nil
	}

	candidates, err := s.store.ListCandidates(ctx, tenant.ID, types.ReminderEligibleStatuses, w.From, w.To)
	if err != nil {
		return ScanResult{Window: w}, err
	}

	res := Filter(w, candidates, now)
	s.logger.DebugContext(ctx, "tier scanned",
		"tenant_id", tenant.ID,
		"tier", tier,
		"from", w.From,
		"to", w.To,
		"candidates", res.Candidates,
		"due", len(res.Due),
	)
	return res, nil
}

// Filter applies the exact window predicate and the dedup guard to the coarse
// candidates.
func Filter(w Window, candidates []types.Appointment, now time.Time) ScanResult {
	res := ScanResult{Window: w, Candidates: len(candidates)}
	for _, a := range candidates {
		if !w.Matches(a.ScheduledAt) {
			res.skip(types.SkipTimeMismatch)
			continue
		}
		res.Matched++
		if d := Allow(a, w.Tier, now); !d.Allowed {
			res.skip(d.Reason)
			continue
		}
		res.Due = append(res.Due, a)
	}
	return res
}
