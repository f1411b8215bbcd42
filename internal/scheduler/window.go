// Package scheduler runs the hourly reminder pass: for every tenant and every
// enabled tier it finds appointments whose tenant-local time matches the tier's
// target, claims them, and sends one message each. Results are returned as a
// types.RunReport built from per-appointment outcomes.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"clinicremind/internal/types"
)

var locations sync.Map // string -> *time.Location

// LoadLocation resolves an IANA zone name, caching successful lookups.
func LoadLocation(name string) (*time.Location, error) {
	if v, ok := locations.Load(name); ok {
		return v.(*time.Location), nil
	}
	if name == "" {
		return nil, fmt.Errorf("empty timezone")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	locations.Store(name, loc)
	return loc, nil
}

// Window is the result of evaluating one tier for one tenant at one tick.
//
// From/To is the coarse range handed to the store. Matches is the exact
// predicate, always derived from the appointment's instant in Location.
type Window struct {
	Tier     types.Tier
	Evaluate bool
	From     time.Time
	To       time.Time
	Location *time.Location

	// TargetHour is the local hour matched by the hourly tiers, -1 otherwise.
	TargetHour int
	// TargetDate is local midnight of the matched date for the date tiers.
	TargetDate time.Time
}

// tierLead is the distance between the tick's local hour and the target hour.
var tierLead = map[types.Tier]int{
	types.Tier2h: 2,
	types.Tier1h: 1,
}

// CalculateWindow computes the tier's window for a tenant in tz at now.
//
// 24h evaluates only when the tenant-local hour equals preferredHour and
// matches every appointment on the local calendar date after today. 2h and 1h
// evaluate on every tick and match appointments whose local hour is the
// current local hour plus the lead, modulo 24.
func CalculateWindow(now time.Time, tz string, tier types.Tier, preferredHour int) (Window, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Window{}, err
	}
	local := now.In(loc)

	switch tier {
	case types.Tier24h:
		if local.Hour() != preferredHour {
			return Window{Tier: tier, Location: loc, TargetHour: -1}, nil
		}
		return dateWindow(tier, local, 1), nil

	case types.Tier2h, types.Tier1h:
		lead := tierLead[tier]
		hourStart := now.Add(-time.Duration(local.Minute())*time.Minute -
			time.Duration(local.Second())*time.Second -
			time.Duration(local.Nanosecond()))
		target := hourStart.Add(time.Duration(lead) * time.Hour)
		// One hour of slack on each side of the target hour keeps the coarse
		// range a superset of the target across DST shifts. It also contains
		// [now+lead-30m, now+lead+30m].
		return Window{
			Tier:       tier,
			Evaluate:   true,
			From:       target.Add(-time.Hour).UTC(),
			To:         target.Add(2 * time.Hour).UTC(),
			Location:   loc,
			TargetHour: (local.Hour() + lead) % 24,
		}, nil
	}
	return Window{}, fmt.Errorf("unknown tier %q", tier)
}

// dateWindow matches local midnight of local's date plus days, through the
// following local midnight.
func dateWindow(tier types.Tier, local time.Time, days int) Window {
	loc := local.Location()
	start := time.Date(local.Year(), local.Month(), local.Day()+days, 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+days+1, 0, 0, 0, 0, loc)
	return Window{
		Tier:       tier,
		Evaluate:   true,
		From:       start.UTC(),
		To:         end.UTC(),
		Location:   loc,
		TargetHour: -1,
		TargetDate: start,
	}
}

// Matches reports whether an appointment at `at` is a target of the window.
func (w Window) Matches(at time.Time) bool {
	if !w.Evaluate || at.Before(w.From) || !at.Before(w.To) {
		return false
	}
	local := at.In(w.Location)
	if w.TargetHour >= 0 {
		return local.Hour() == w.TargetHour
	}
	y, m, d := local.Date()
	ty, tm, td := w.TargetDate.Date()
	return y == ty && m == tm && d == td
}
