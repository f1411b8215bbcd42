// Package config defines the process configuration for the reminder service.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"clinicremind/internal/types"
)

// SecretString is an alias for types.SecretString so that config consumers do
// not need to import types for secret fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"clinicremind"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Messaging     MessagingConfig
	Calendar      CalendarConfig
	Scheduler     SchedulerConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build metadata (injected via ldflags, not env).
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds regional configuration for SSM and CloudWatch.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"` // LocalStack; empty in prod
}

// MessagingConfig holds settings shared by all messaging providers. Tenant
// credentials live in the database, not here.
type MessagingConfig struct {
	Timeout         time.Duration `envconfig:"MESSAGING_TIMEOUT" default:"8s" validate:"gt=0"`
	WhatsAppBaseURL string        `envconfig:"WHATSAPP_BASE_URL" default:"https://graph.facebook.com/v19.0" validate:"url"`
	RatePerSecond   float64       `envconfig:"MESSAGING_RATE_PER_SECOND" default:"10" validate:"gt=0"`
	RateBurst       int           `envconfig:"MESSAGING_RATE_BURST" default:"5" validate:"min=1"`
	DefaultLocale   string        `envconfig:"MESSAGING_DEFAULT_LOCALE" default:"es" validate:"oneof=en es pt"`
	UserAgent       string        `envconfig:"MESSAGING_USER_AGENT" default:"ClinicRemind/1.0"`
}

// CalendarConfig holds the OAuth client registration and API endpoints of the
// calendar provider.
type CalendarConfig struct {
	ClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret SecretString  `envconfig:"GOOGLE_CLIENT_SECRET"`
	TokenURL     string        `envconfig:"GOOGLE_TOKEN_URL" default:"https://oauth2.googleapis.com/token" validate:"url"`
	APIBaseURL   string        `envconfig:"GOOGLE_CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3" validate:"url"`
	Timeout      time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"8s" validate:"gt=0"`
	RefreshSkew  time.Duration `envconfig:"CALENDAR_REFRESH_SKEW" default:"5m"`
}

// SchedulerConfig tunes the reminder run.
type SchedulerConfig struct {
	TenantConcurrency int           `envconfig:"SCHEDULER_TENANT_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	RunTimeout        time.Duration `envconfig:"SCHEDULER_RUN_TIMEOUT" default:"50m" validate:"gt=0"`
	TriggerWait       time.Duration `envconfig:"TRIGGER_WAIT" default:"25s"`
	// LocalCronSpec enables an in-process tick in the local environment only,
	// e.g. "@hourly" or "0 * * * *". Empty disables it.
	LocalCronSpec string `envconfig:"LOCAL_CRON_SPEC"`

	// Retention of operational rows; 0 keeps them forever.
	JobHistoryRetention time.Duration `envconfig:"JOB_HISTORY_RETENTION" default:"720h"`
	MessageLogRetention time.Duration `envconfig:"MESSAGE_LOG_RETENTION" default:"2160h"`
}

// SecurityConfig holds the shared secret guarding the trigger endpoint.
type SecurityConfig struct {
	// TriggerSecretHash is a bcrypt hash of the bearer secret the external
	// scheduler presents. Empty disables the check (local only).
	TriggerSecretHash SecretString `envconfig:"TRIGGER_SECRET_HASH"`
	AdminAPIKeyHash   SecretString `envconfig:"ADMIN_API_KEY_HASH"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ClinicRemind"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the process runs in the local environment.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrSecurity indicates a non-local environment without the trigger secret.
	ErrSecurity ConfigErrorType = "SECURITY_MISCONFIGURED"
)
