package types

import "fmt"

// Tier is a reminder lead time.
type Tier string

const (
	Tier24h Tier = "24h"
	Tier2h  Tier = "2h"
	Tier1h  Tier = "1h"
)

// AllTiers lists the tiers in evaluation order.
var AllTiers = []Tier{Tier24h, Tier2h, Tier1h}

// ParseTier validates a tier identifier coming from storage.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case Tier24h, Tier2h, Tier1h:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown reminder tier %q", s)
}

// MessageKind identifies the purpose of an outbound message. Reminder kinds
// map one-to-one onto tiers.
type MessageKind string

const (
	KindReminder24h MessageKind = "reminder_24h"
	KindReminder2h  MessageKind = "reminder_2h"
	KindReminder1h  MessageKind = "reminder_1h"
	KindFollowUp    MessageKind = "followup"
)

// KindForTier returns the message kind recorded for a tier send.
func KindForTier(t Tier) MessageKind {
	switch t {
	case Tier24h:
		return KindReminder24h
	case Tier2h:
		return KindReminder2h
	case FollowUpTier:
		return KindFollowUp
	default:
		return KindReminder1h
	}
}

// AppointmentStatus is the booking lifecycle state.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// ReminderEligibleStatuses are the statuses the reminder tiers query for.
var ReminderEligibleStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// MessagingProvider names the external messaging API a tenant sends through.
type MessagingProvider string

const (
	ProviderWhatsAppCloud MessagingProvider = "whatsapp_cloud"
	ProviderTwilio        MessagingProvider = "twilio"
)

// CredentialStatus is the persisted state of a calendar credential.
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
)

// CredentialState is the refresher's view of a credential at a point in time.
type CredentialState string

const (
	CredentialValid         CredentialState = "VALID"
	CredentialExpiring      CredentialState = "EXPIRING"
	CredentialRefreshing    CredentialState = "REFRESHING"
	CredentialRefreshFailed CredentialState = "REFRESH_FAILED"
)

// Locale selects weekday/month names when rendering dates.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
	LocalePT Locale = "pt"
)
