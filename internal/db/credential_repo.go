package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"clinicremind/internal/types"
)

// CredentialRepository stores per-user calendar OAuth grants.
type CredentialRepository struct {
	db DBTX
}

func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the user's credential record, or ErrCodeNotFoundCredential.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*types.CredentialRecord, error) {
	var (
		c                     types.CredentialRecord
		access, refresh, stat string
	)
	err := r.db.QueryRow(ctx,
		`SELECT user_id, access_token, refresh_token, expires_at,
		        COALESCE(calendar_id, 'primary'), status, updated_at
		 FROM calendar_credentials
		 WHERE user_id = $1`,
		userID,
	).Scan(&c.UserID, &access, &refresh, &c.ExpiresAt, &c.CalendarID, &stat, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCredential, "calendar credential not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load calendar credential", err)
	}
	c.AccessToken = types.SecretString(access)
	c.RefreshToken = types.SecretString(refresh)
	c.Status = types.CredentialStatus(stat)
	return &c, nil
}

// UpdateTokens persists a refreshed grant. The write only applies when it
// does not move expires_at backwards, so a slower concurrent refresh can never
// overwrite a newer token. An empty refreshToken keeps the stored one.
// It reports whether the row was updated.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, userID string, accessToken, refreshToken types.SecretString, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE calendar_credentials
		 SET access_token = $2,
		     refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		     expires_at = $4,
		     updated_at = NOW()
		 WHERE user_id = $1
		   AND status = 'active'
		   AND expires_at <= $4`,
		userID, accessToken.Unmask(), refreshToken.Unmask(), expiresAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to persist refreshed calendar token", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRevoked flags the credential as revoked, but only while it still holds
// the refresh token that was rejected. A token rotated by a concurrent
// refresh is left alone.
func (r *CredentialRepository) MarkRevoked(ctx context.Context, userID string, rejected types.SecretString) error {
	_, err := r.db.Exec(ctx,
		`UPDATE calendar_credentials
		 SET status = 'revoked', updated_at = NOW()
		 WHERE user_id = $1 AND refresh_token = $2`,
		userID, rejected.Unmask(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark calendar credential revoked", err)
	}
	return nil
}
