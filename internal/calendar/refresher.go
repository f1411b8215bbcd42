// Package calendar reaches the calendar provider on behalf of end users. It
// owns the OAuth access-token lifecycle (Refresher) and the bounded
// refresh-and-retry protocol around each API call (Gateway).
package calendar

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"clinicremind/internal/external"
	"clinicremind/internal/types"
)

// DefaultRefreshSkew is how close to expiry a token may get before it is
// treated as EXPIRING.
const DefaultRefreshSkew = 5 * time.Minute

// refreshTimeout bounds a coalesced refresh independently of the caller that
// happened to start it.
const refreshTimeout = 15 * time.Second

// CredentialStore persists credential records.
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*types.CredentialRecord, error)
	UpdateTokens(ctx context.Context, userID string, accessToken, refreshToken types.SecretString, expiresAt time.Time) (bool, error)
	MarkRevoked(ctx context.Context, userID string, rejected types.SecretString) error
}

// RefreshRecorder receives one observation per refresh attempt. Result is one
// of "success", "revoked", "failed".
type RefreshRecorder interface {
	RecordRefresh(ctx context.Context, result string)
}

// Token is a usable access token.
type Token struct {
	AccessToken types.SecretString
	ExpiresAt   time.Time
	CalendarID  string
}

// Refresher hands out usable access tokens and refreshes them when needed.
// Concurrent refreshes for the same user within the process are coalesced;
// across processes the store's monotonic write keeps the record consistent.
type Refresher struct {
	store    CredentialStore
	provider external.TokenRefresher
	recorder RefreshRecorder
	logger   *slog.Logger
	skew     time.Duration
	now      func() time.Time
	group    singleflight.Group
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

func WithSkew(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.skew = d
		}
	}
}

func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) { r.now = now }
}

func WithRefreshRecorder(rec RefreshRecorder) RefresherOption {
	return func(r *Refresher) { r.recorder = rec }
}

func NewRefresher(store CredentialStore, provider external.TokenRefresher, logger *slog.Logger, opts ...RefresherOption) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		store:    store,
		provider: provider,
		logger:   logger,
		skew:     DefaultRefreshSkew,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State classifies rec at now.
func (r *Refresher) State(rec *types.CredentialRecord, now time.Time) types.CredentialState {
	if rec.Status == types.CredentialRevoked {
		return types.CredentialRefreshFailed
	}
	if rec.ExpiresAt.Sub(now) > r.skew {
		return types.CredentialValid
	}
	return types.CredentialExpiring
}

// GetUsableToken returns the stored token while it is VALID and refreshes it
// synchronously otherwise.
//
// Errors are *types.AppError: ErrCodeCalendarNotConnected when the user has
// no credential, ErrCodeCalendarAccessRevoked when the refresh token is dead,
// upstream or database codes for transient failures.
func (r *Refresher) GetUsableToken(ctx context.Context, userID string) (*Token, error) {
	rec, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.State(rec, r.now()) == types.CredentialValid {
		return tokenOf(rec), nil
	}
	return r.refresh(ctx, userID, false)
}

// ForceRefresh refreshes regardless of expiry. The record is re-read first so
// the refresh token used is the latest one stored.
func (r *Refresher) ForceRefresh(ctx context.Context, userID string) (*Token, error) {
	return r.refresh(ctx, userID, true)
}

func (r *Refresher) refresh(ctx context.Context, userID string, force bool) (*Token, error) {
	key := userID + ":expiring"
	if force {
		key = userID + ":force"
	}
	v, err, shared := r.group.Do(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return r.doRefresh(fctx, userID, force)
	})
	if shared {
		r.logger.DebugContext(ctx, "calendar refresh coalesced", "user_id", userID, "force", force)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

func (r *Refresher) doRefresh(ctx context.Context, userID string, force bool) (*Token, error) {
	rec, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if !force && r.State(rec, now) == types.CredentialValid {
		// Another caller refreshed between our read and this one.
		return tokenOf(rec), nil
	}

	log := r.logger.With("user_id", userID, "force", force)
	log.InfoContext(ctx, "refreshing calendar token",
		"state", types.CredentialRefreshing,
		"expires_at", rec.ExpiresAt,
	)

	grant, err := r.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeCalendarAccessRevoked {
			log.WarnContext(ctx, "calendar refresh token rejected", "state", types.CredentialRefreshFailed)
			if mErr := r.store.MarkRevoked(ctx, userID, rec.RefreshToken); mErr != nil {
				log.ErrorContext(ctx, "failed to mark calendar credential revoked", "error", mErr)
			}
			r.record(ctx, "revoked")
			return nil, err
		}
		log.WarnContext(ctx, "calendar token refresh failed", "error", err)
		r.record(ctx, "failed")
		return nil, err
	}

	expiresAt := now.Add(grant.ExpiresIn).UTC()
	applied, err := r.store.UpdateTokens(ctx, userID, grant.AccessToken, grant.RefreshToken, expiresAt)
	switch {
	case err != nil:
		// The provider-issued token is still good for this call.
		log.ErrorContext(ctx, "failed to persist refreshed calendar token", "error", err)
	case !applied:
		log.InfoContext(ctx, "newer calendar token already stored; keeping it")
	}
	r.record(ctx, "success")

	return &Token{AccessToken: grant.AccessToken, ExpiresAt: expiresAt, CalendarID: rec.CalendarID}, nil
}

func (r *Refresher) load(ctx context.Context, userID string) (*types.CredentialRecord, error) {
	rec, err := r.store.Get(ctx, userID)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundCredential {
			return nil, types.NewAppError(types.ErrCodeCalendarNotConnected, "calendar is not connected for this user", err)
		}
		return nil, err
	}
	if rec.Status == types.CredentialRevoked {
		return nil, types.NewAppError(types.ErrCodeCalendarAccessRevoked, "calendar access was revoked; the user must reconnect", nil)
	}
	return rec, nil
}

func (r *Refresher) record(ctx context.Context, result string) {
	if r.recorder != nil {
		r.recorder.RecordRefresh(ctx, result)
	}
}

func tokenOf(rec *types.CredentialRecord) *Token {
	return &Token{AccessToken: rec.AccessToken, ExpiresAt: rec.ExpiresAt, CalendarID: rec.CalendarID}
}
