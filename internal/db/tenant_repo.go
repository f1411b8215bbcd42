package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinicremind/internal/types"
)

// TenantRepository loads clinics together with their reminder settings.
type TenantRepository struct {
	db DBTX
}

func NewTenantRepository(db DBTX) *TenantRepository {
	return &TenantRepository{db: db}
}

// ListReminderTenants returns every clinic with at least one reminder tier
// or follow-ups enabled. Policies are returned as stored; validating them is
// the caller's job so that a malformed row only affects its own tenant.
func (r *TenantRepository) ListReminderTenants(ctx context.Context) ([]types.Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.name, c.timezone,
		        COALESCE(c.messaging_provider, ''), COALESCE(c.messaging_api_key, ''), COALESCE(c.messaging_sender, ''),
		        COALESCE(s.enabled_tiers, '{}'), s.preferred_hour,
		        COALESCE(s.reminder_template, ''), COALESCE(s.followup_template, ''),
		        s.followup_enabled, s.followup_offset_days, COALESCE(s.locale, '')
		 FROM clinics c
		 JOIN reminder_settings s ON s.clinic_id = c.id
		 WHERE cardinality(s.enabled_tiers) > 0 OR s.followup_enabled
		 ORDER BY c.id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reminder tenants", err)
	}
	defer rows.Close()

	var tenants []types.Tenant
	for rows.Next() {
		var (
			t                        types.Tenant
			provider, apiKey, locale string
			tiers                    []string
			timezone                 *string
			preferredHour, offset    *int
			followUp                 *bool
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &timezone,
			&provider, &apiKey, &t.MessagingSender,
			&tiers, &preferredHour,
			&t.Policy.ReminderTemplate, &t.Policy.FollowUpTemplate,
			&followUp, &offset, &locale,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reminder tenant", err)
		}
		t.MessagingProvider = types.MessagingProvider(provider)
		t.MessagingAPIKey = types.SecretString(apiKey)
		t.Policy.Locale = types.Locale(locale)
		t.Policy.EnabledTiers = make([]types.Tier, 0, len(tiers))
		for _, s := range tiers {
			t.Policy.EnabledTiers = append(t.Policy.EnabledTiers, types.Tier(s))
		}
		applyNullablePolicy(&t, timezone, preferredHour, offset, followUp)
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reminder tenants", err)
	}
	return tenants, nil
}

// applyNullablePolicy fills the columns that may be NULL. A NULL the policy
// actually depends on becomes a value that fails validation, so the runner
// rejects that tenant alone.
func applyNullablePolicy(t *types.Tenant, timezone *string, preferredHour, offset *int, followUp *bool) {
	if timezone != nil {
		t.Timezone = *timezone
	}
	if followUp != nil {
		t.Policy.FollowUpEnabled = *followUp
	}

	usesHour := t.Policy.FollowUpEnabled
	for _, tier := range t.Policy.EnabledTiers {
		if tier == types.Tier24h {
			usesHour = true
		}
	}
	switch {
	case preferredHour != nil:
		t.Policy.PreferredHour = *preferredHour
	case usesHour:
		t.Policy.PreferredHour = -1
	}

	switch {
	case offset != nil:
		t.Policy.FollowUpOffsetDays = *offset
	case t.Policy.FollowUpEnabled:
		t.Policy.FollowUpOffsetDays = -1
	}
}

// GetClinic loads the identity and timezone of one clinic. Messaging
// credentials and the reminder policy are not read.
func (r *TenantRepository) GetClinic(ctx context.Context, id string) (*types.Tenant, error) {
	var t types.Tenant
	err := r.db.QueryRow(ctx,
		`SELECT id, name, timezone FROM clinics WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundClinic, "clinic not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load clinic", err)
	}
	return &t, nil
}
