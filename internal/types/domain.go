package types

import "time"

// Tenant is a clinic account together with its messaging credentials and
// reminder policy, as loaded by the scheduler at the start of a run.
type Tenant struct {
	ID                string
	Name              string
	Timezone          string
	MessagingProvider MessagingProvider
	MessagingAPIKey   SecretString
	MessagingSender   string
	Policy            ReminderPolicy
}

// HasMessaging reports whether the tenant has the credentials required to send.
func (t Tenant) HasMessaging() bool {
	return t.MessagingProvider != "" && !t.MessagingAPIKey.IsEmpty() && t.MessagingSender != ""
}

// ReminderPolicy is a tenant's reminder configuration. It is read-only to the
// scheduler.
type ReminderPolicy struct {
	EnabledTiers       []Tier `validate:"dive,oneof=24h 2h 1h"`
	PreferredHour      int    `validate:"min=0,max=23"`
	ReminderTemplate   string
	FollowUpTemplate   string
	FollowUpEnabled    bool
	FollowUpOffsetDays int    `validate:"min=0,max=30"`
	Locale             Locale `validate:"omitempty,oneof=en es pt"`
}

// TierEnabled reports whether t is in the policy's enabled set.
func (p ReminderPolicy) TierEnabled(t Tier) bool {
	for _, e := range p.EnabledTiers {
		if e == t {
			return true
		}
	}
	return false
}

// Appointment is a booked visit with its dedup state.
//
// ReminderSent/ReminderSentAt are the legacy single slot shared across all
// tiers. TierSentAt is the per-tier record of the last successful claim and
// is authoritative whenever it is non-empty.
type Appointment struct {
	ID              string
	TenantID        string
	PatientName     string
	PatientPhone    string
	ServiceName     string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          AppointmentStatus
	ReminderSent    bool
	ReminderSentAt  *time.Time
	TierSentAt      map[Tier]time.Time
	FollowUpSentAt  *time.Time
}

// DedupSnapshot captures the dedup fields before a claim so that a failed
// send can restore them.
type DedupSnapshot struct {
	ReminderSent   bool
	ReminderSentAt *time.Time
	TierSentAt     *time.Time
}

// Snapshot returns the appointment's current dedup state for tier.
func (a Appointment) Snapshot(t Tier) DedupSnapshot {
	snap := DedupSnapshot{
		ReminderSent:   a.ReminderSent,
		ReminderSentAt: a.ReminderSentAt,
	}
	if ts, ok := a.TierSentAt[t]; ok {
		snap.TierSentAt = &ts
	}
	return snap
}

// OutboundMessage is the message log row written after a successful send.
type OutboundMessage struct {
	ID                string
	TenantID          string
	AppointmentID     string
	Kind              MessageKind
	Channel           MessagingProvider
	Recipient         string
	Body              string
	ProviderMessageID string
	CreatedAt         time.Time
}

// SendInput is a rendered message ready for a messaging provider.
type SendInput struct {
	APIKey    SecretString
	Sender    string
	Recipient string
	Body      string
}

// CredentialRecord is one end-user's stored OAuth grant for the calendar.
type CredentialRecord struct {
	UserID       string
	AccessToken  SecretString
	RefreshToken SecretString
	ExpiresAt    time.Time
	CalendarID   string
	Status       CredentialStatus
	UpdatedAt    time.Time
}

// TokenGrant is a successful token endpoint response.
type TokenGrant struct {
	AccessToken  SecretString
	RefreshToken SecretString // empty when the provider did not rotate it
	ExpiresIn    time.Duration
}

// CalendarEventInput describes an event to create in the user's calendar.
type CalendarEventInput struct {
	Summary       string    `json:"summary" validate:"required,max=1024"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	Start         time.Time `json:"start" validate:"required"`
	End           time.Time `json:"end" validate:"required,gtfield=Start"`
	Timezone      string    `json:"timezone" validate:"required,timezone"`
	AppointmentID string    `json:"appointment_id,omitempty"`
}

// CalendarEvent is an event as returned by the calendar provider.
type CalendarEvent struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	HTMLLink string    `json:"html_link,omitempty"`
	Status   string    `json:"status,omitempty"`
}
