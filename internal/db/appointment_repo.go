package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clinicremind/internal/types"
)

// AppointmentRepository reads reminder candidates and owns every write to the
// dedup columns of the appointments table.
//
// Dedup writes are claims: conditional updates issued before a message is
// sent, so that two overlapping runs cannot both send for the same tier.
type AppointmentRepository struct {
	db DBTX
}

func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, clinic_id, COALESCE(patient_name, ''), COALESCE(patient_phone, ''),
	COALESCE(service_name, ''), scheduled_at, duration_minutes, status,
	reminder_sent, reminder_sent_at, COALESCE(reminder_tiers_sent, '{}'::jsonb), follow_up_sent_at`

// ListCandidates returns the tenant's appointments in one of statuses whose
// scheduled instant lies in [from, to).
func (r *AppointmentRepository) ListCandidates(ctx context.Context, tenantID string, statuses []types.AppointmentStatus, from, to time.Time) ([]types.Appointment, error) {
	st := make([]string, len(statuses))
	for i, s := range statuses {
		st[i] = string(s)
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE clinic_id = $1
		   AND status = ANY($2)
		   AND scheduled_at >= $3 AND scheduled_at < $4
		 ORDER BY scheduled_at`,
		tenantID, st, from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query reminder candidates", err)
	}
	return collectAppointments(rows)
}

// ListFollowUpCandidates returns completed appointments in [from, to) that
// have not received a follow-up yet.
func (r *AppointmentRepository) ListFollowUpCandidates(ctx context.Context, tenantID string, from, to time.Time) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE clinic_id = $1
		   AND status = $2
		   AND follow_up_sent_at IS NULL
		   AND scheduled_at >= $3 AND scheduled_at < $4
		 ORDER BY scheduled_at`,
		tenantID, string(types.StatusCompleted), from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query follow-up candidates", err)
	}
	return collectAppointments(rows)
}

// GetByID returns a single appointment scoped to its tenant.
func (r *AppointmentRepository) GetByID(ctx context.Context, tenantID, id string) (*types.Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE clinic_id = $1 AND id = $2`,
		tenantID, id,
	)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load appointment", err)
	}
	return &a, nil
}

// ClaimTier marks tier as sent at `at` unless the tier entry is newer than
// cutoff. It returns false when another run already holds the claim.
//
// The legacy single slot (reminder_sent, reminder_sent_at) is written as well
// so that readers of the old columns keep seeing the most recent send.
func (r *AppointmentRepository) ClaimTier(ctx context.Context, id string, tier types.Tier, at, cutoff time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments
		 SET reminder_sent = true,
		     reminder_sent_at = $3,
		     reminder_tiers_sent = jsonb_set(COALESCE(reminder_tiers_sent, '{}'::jsonb), ARRAY[$2::text], to_jsonb($3::timestamptz))
		 WHERE id = $1
		   AND (reminder_tiers_sent -> $2::text IS NULL
		        OR (reminder_tiers_sent ->> $2::text)::timestamptz < $4)`,
		id, string(tier), pgTime(at), cutoff,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim reminder tier", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseTier undoes a claim taken at `at`, restoring prev. It is a no-op if
// the tier entry no longer carries the claim timestamp.
func (r *AppointmentRepository) ReleaseTier(ctx context.Context, id string, tier types.Tier, at time.Time, prev types.DedupSnapshot) error {
	var prevTier *time.Time
	if prev.TierSentAt != nil {
		t := pgTime(*prev.TierSentAt)
		prevTier = &t
	}
	_, err := r.db.Exec(ctx,
		`UPDATE appointments
		 SET reminder_sent = $3,
		     reminder_sent_at = $4,
		     reminder_tiers_sent = CASE
		         WHEN $5::timestamptz IS NULL THEN reminder_tiers_sent - $2::text
		         ELSE jsonb_set(reminder_tiers_sent, ARRAY[$2::text], to_jsonb($5::timestamptz))
		     END
		 WHERE id = $1
		   AND (reminder_tiers_sent ->> $2::text)::timestamptz = $6`,
		id, string(tier), prev.ReminderSent, prev.ReminderSentAt, prevTier, pgTime(at),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release reminder tier", err)
	}
	return nil
}

// ClaimFollowUp sets follow_up_sent_at if it is still empty.
func (r *AppointmentRepository) ClaimFollowUp(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET follow_up_sent_at = $2 WHERE id = $1 AND follow_up_sent_at IS NULL`,
		id, pgTime(at),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim follow-up", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseFollowUp clears a follow-up claim taken at `at`.
func (r *AppointmentRepository) ReleaseFollowUp(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE appointments SET follow_up_sent_at = NULL WHERE id = $1 AND follow_up_sent_at = $2`,
		id, pgTime(at),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release follow-up", err)
	}
	return nil
}

// pgTime drops precision PostgreSQL cannot store, so that a claim timestamp
// read back from the database compares equal to the one written.
func pgTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func collectAppointments(rows pgx.Rows) ([]types.Appointment, error) {
	defer rows.Close()

	var out []types.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating appointments", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (types.Appointment, error) {
	var (
		a        types.Appointment
		status   string
		tiersRaw []byte
	)
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.PatientName, &a.PatientPhone,
		&a.ServiceName, &a.ScheduledAt, &a.DurationMinutes, &status,
		&a.ReminderSent, &a.ReminderSentAt, &tiersRaw, &a.FollowUpSentAt,
	); err != nil {
		return a, err
	}
	a.Status = types.AppointmentStatus(status)

	tiers, err := decodeTierMap(tiersRaw)
	if err != nil {
		return a, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	a.TierSentAt = tiers
	return a, nil
}

// decodeTierMap parses reminder_tiers_sent. Keys that are not known tiers are
// ignored.
func decodeTierMap(raw []byte) (map[types.Tier]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]time.Time
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding reminder_tiers_sent: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[types.Tier]time.Time, len(m))
	for k, v := range m {
		tier, err := types.ParseTier(k)
		if err != nil {
			continue
		}
		out[tier] = v
	}
	return out, nil
}
