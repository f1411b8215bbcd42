package types

import "time"

// Skip reasons recorded in run reports. Reasons are data, not errors: a
// skipped tenant or appointment is an expected outcome.
const (
	SkipOutsideSendHour     = "outside_send_hour"
	SkipMessagingMissing    = "messaging_not_configured"
	SkipNoTiersEnabled      = "no_tiers_enabled"
	SkipTimeMismatch        = "local_time_mismatch"
	SkipDedupRecentlySent   = "recently_sent"
	SkipAlreadyClaimed      = "already_claimed"
	SkipMissingRecipient    = "missing_recipient"
	SkipFollowUpDisabled    = "followup_disabled"
	SkipFollowUpAlreadySent = "followup_already_sent"
)

// FollowUpTier labels the follow-up pass in run reports.
const FollowUpTier Tier = "followup"

// RunReport is the structured result of one scheduler invocation.
type RunReport struct {
	RunID      string         `json:"run_id"`
	Success    bool           `json:"success"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []TenantResult `json:"results"`
	Error      string         `json:"error,omitempty"`
}

// TotalSent sums successful sends across all tenants and tiers.
func (r *RunReport) TotalSent() int {
	n := 0
	for _, t := range r.Results {
		for _, tr := range t.Tiers {
			n += tr.Sent
		}
	}
	return n
}

// TotalFailed sums failed sends across all tenants and tiers.
func (r *RunReport) TotalFailed() int {
	n := 0
	for _, t := range r.Results {
		for _, tr := range t.Tiers {
			n += tr.Failed
		}
	}
	return n
}

// TenantResult aggregates one tenant's outcomes.
type TenantResult struct {
	TenantID   string       `json:"tenant_id"`
	TenantName string       `json:"tenant_name"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Error      string       `json:"error,omitempty"`
	Tiers      []TierResult `json:"tiers,omitempty"`
}

// TierResult aggregates one tenant/tier pair's outcomes.
type TierResult struct {
	Tier       Tier           `json:"tier"`
	Evaluated  bool           `json:"evaluated"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Candidates int            `json:"candidates"`
	Matched    int            `json:"matched"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Skipped    map[string]int `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// AddSkip increments the counter for reason.
func (r *TierResult) AddSkip(reason string) {
	if r.Skipped == nil {
		r.Skipped = make(map[string]int)
	}
	r.Skipped[reason]++
}
