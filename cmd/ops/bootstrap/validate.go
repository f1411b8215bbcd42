package main

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// validateTimeout bounds each active probe.
const validateTimeout = 15 * time.Second

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector opens and immediately closes a connection to dsn.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector dials the database with pgx.
type PgxConnector struct{}

func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Validator checks operator inputs before they are written.
type Validator struct {
	dbConn DatabaseConnector
}

func NewValidator() *Validator {
	return &Validator{dbConn: PgxConnector{}}
}

func NewValidatorWithDeps(dbConn DatabaseConnector) *Validator {
	return &Validator{dbConn: dbConn}
}

// ValidateDatabaseURL requires a postgres:// URL naming a database and proves
// it reachable with the given credentials.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, raw string) ValidationResult {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}
	if parsed.Hostname() == "" {
		return ValidationResult{Message: "database host is missing"}
	}
	if strings.Trim(parsed.Path, "/") == "" {
		return ValidationResult{Message: "database name is missing"}
	}
	if v.dbConn == nil {
		return ValidationResult{Valid: true, Message: "format ok (connection not checked)"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(connCtx, raw); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("database connection verified (host=%s)", parsed.Hostname())}
}

var googleClientIDRegex = regexp.MustCompile(`^[0-9]+-[0-9a-z]+\.apps\.googleusercontent\.com$`)

// ValidateGoogleClientID checks the OAuth client id format.
func (v *Validator) ValidateGoogleClientID(_ context.Context, id string) ValidationResult {
	if !googleClientIDRegex.MatchString(strings.TrimSpace(id)) {
		return ValidationResult{Message: "expected <digits>-<id>.apps.googleusercontent.com"}
	}
	return ValidationResult{Valid: true, Message: "client id format ok"}
}

// ValidateMinLength rejects values shorter than n characters.
func (v *Validator) ValidateMinLength(n int, field string) func(context.Context, string) ValidationResult {
	return func(_ context.Context, s string) ValidationResult {
		if len(strings.TrimSpace(s)) < n {
			return ValidationResult{Message: fmt.Sprintf("%s must be at least %d characters", field, n)}
		}
		return ValidationResult{Valid: true, Message: field + " accepted"}
	}
}
