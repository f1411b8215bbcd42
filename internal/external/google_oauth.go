package external

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clinicremind/internal/types"
)

const defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"

// GoogleTokenConfig is the OAuth client registration used for refreshes.
type GoogleTokenConfig struct {
	ClientID     string
	ClientSecret types.SecretString
	TokenURL     string
	Logger       *slog.Logger
}

// GoogleTokenClient implements TokenRefresher against Google's token endpoint.
type GoogleTokenClient struct {
	base         *BaseClient
	clientID     string
	clientSecret types.SecretString
	tokenURL     string
	logger       *slog.Logger
}

func NewGoogleTokenClient(httpClient *http.Client, userAgent string, cfg GoogleTokenConfig) *GoogleTokenClient {
	return NewGoogleTokenClientWithBase(
		NewBaseClient(httpClient, "google-oauth", types.ErrCodeUpstreamCalendar, userAgent),
		cfg,
	)
}

// NewGoogleTokenClientWithBase is used by tests to control the BaseClient.
func NewGoogleTokenClientWithBase(base *BaseClient, cfg GoogleTokenConfig) *GoogleTokenClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultGoogleTokenURL
	}
	return &GoogleTokenClient{
		base:         base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     tokenURL,
		logger:       logger,
	}
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type googleTokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh implements TokenRefresher.
func (c *GoogleTokenClient) Refresh(ctx context.Context, refreshToken types.SecretString) (*types.TokenGrant, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret.Unmask())
	form.Set("refresh_token", refreshToken.Unmask())
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build token refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.tokenError(ctx, resp)
	}

	var body googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to decode token response", err)
	}
	if body.AccessToken == "" || body.ExpiresIn <= 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "token response missing access_token or expires_in", nil)
	}

	return &types.TokenGrant{
		AccessToken:  types.SecretString(body.AccessToken),
		RefreshToken: types.SecretString(body.RefreshToken),
		ExpiresIn:    time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}

// tokenError classifies a non-200 token response. invalid_grant and 401 mean
// the user has to reconnect; everything else is treated as transient.
func (c *GoogleTokenClient) tokenError(ctx context.Context, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body googleTokenError
	_ = json.Unmarshal(raw, &body)

	c.logger.WarnContext(ctx, "calendar token refresh rejected",
		"status", resp.StatusCode,
		"error", body.Error,
	)

	if body.Error == "invalid_grant" || resp.StatusCode == http.StatusUnauthorized {
		return types.NewAppError(types.ErrCodeCalendarAccessRevoked, "refresh token is invalid or revoked", nil).
			WithDetails(map[string]any{"status": resp.StatusCode, "error": body.Error})
	}
	return types.NewAppError(types.ErrCodeUpstreamCalendar, "token endpoint returned an error", nil).
		WithDetails(map[string]any{"status": resp.StatusCode, "error": body.Error})
}
