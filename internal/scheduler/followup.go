package scheduler

import (
	"context"
	"time"

	"clinicremind/internal/types"
)

// FollowUpWindow matches completed appointments on the local date offsetDays
// before today. It evaluates only at the tenant's preferred hour.
func FollowUpWindow(now time.Time, tz string, preferredHour, offsetDays int) (Window, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Window{}, err
	}
	local := now.In(loc)
	if local.Hour() != preferredHour {
		return Window{Tier: types.FollowUpTier, Location: loc, TargetHour: -1}, nil
	}
	return dateWindow(types.FollowUpTier, local, -offsetDays), nil
}

// ScanFollowUps finds completed appointments due for a follow-up message.
// The store only returns rows without a recorded follow-up.
func (s *Scanner) ScanFollowUps(ctx context.Context, tenant types.Tenant, now time.Time) (ScanResult, error) {
	p := tenant.Policy
	w, err := FollowUpWindow(now, tenant.Timezone, p.PreferredHour, p.FollowUpOffsetDays)
	if err != nil {
		return ScanResult{}, types.NewAppError(types.ErrCodeConfigInvalidPolicy, "invalid tenant timezone", err)
	}
	if !w.Evaluate {
		return ScanResult{Window: w}, nil
	}

	candidates, err := s.store.ListFollowUpCandidates(ctx, tenant.ID, w.From, w.To)
	if err != nil {
		return ScanResult{Window: w}, err
	}

	res := ScanResult{Window: w, Candidates: len(candidates)}
	for _, a := range candidates {
		switch {
		case !w.Matches(a.ScheduledAt):
			res.skip(types.SkipTimeMismatch)
		case a.FollowUpSentAt != nil:
			res.Matched++
			res.skip(types.SkipFollowUpAlreadySent)
		default:
			res.Matched++
			res.Due = append(res.Due, a)
		}
	}
	return res, nil
}
