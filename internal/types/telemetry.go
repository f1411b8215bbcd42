package types

// Telemetry metric names for CloudWatch.
const (
	MetricReminderSent      = "ReminderSent"
	MetricReminderFailed    = "ReminderFailed"
	MetricReminderSkipped   = "ReminderSkipped"
	MetricTenantErrors      = "TenantErrors"
	MetricRunDuration       = "RunDuration"
	MetricCalendarRefresh   = "CalendarTokenRefresh"
	MetricExternalAPIFailed = "ExternalAPIFailure"

	DimTier     = "Tier"
	DimProvider = "Provider"
	DimResult   = "Result"

	MetricNamespace = "ClinicRemind"
)
