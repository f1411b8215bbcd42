package scheduler

import (
	"time"

	"clinicremind/internal/types"
)

// rearmAge is how long a tier's send blocks another send of the same tier.
// 24h allows one send per day-cycle.
var rearmAge = map[types.Tier]time.Duration{
	types.Tier24h: 20 * time.Hour,
	types.Tier2h:  6 * time.Hour,
	types.Tier1h:  45 * time.Minute,
}

// RearmAge returns the re-arm age of tier.
func RearmAge(tier types.Tier) time.Duration {
	return rearmAge[tier]
}

// ClaimCutoff is the instant before which an existing per-tier entry no longer
// blocks a claim.
func ClaimCutoff(tier types.Tier, now time.Time) time.Time {
	return now.Add(-RearmAge(tier))
}

// Decision is the dedup guard's verdict for one appointment and tier.
type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

// Allow decides whether tier may send to a.
//
// The per-tier map is authoritative when it has any entries. Entries for other
// tiers never block. Rows without a map fall back to the legacy single flag:
// 24h is never re-armed there, 2h and 1h re-arm after their age.
func Allow(a types.Appointment, tier types.Tier, now time.Time) Decision {
	if len(a.TierSentAt) > 0 {
		at, ok := a.TierSentAt[tier]
		if !ok || now.Sub(at) > RearmAge(tier) {
			return allow
		}
		return Decision{Reason: types.SkipDedupRecentlySent}
	}

	if !a.ReminderSent || tier == types.Tier24h || a.ReminderSentAt == nil {
		return allow
	}
	if now.Sub(*a.ReminderSentAt) > RearmAge(tier) {
		return allow
	}
	return Decision{Reason: types.SkipDedupRecentlySent}
}
