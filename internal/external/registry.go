package external

import (
	"log/slog"
	"net/http"

	"clinicremind/internal/config"
	"clinicremind/internal/types"
)

// ClientRegistry holds every external client the service talks to. In local
// and test mode it is populated with stubs so the service boots without
// provider credentials.
type ClientRegistry struct {
	Senders  map[types.MessagingProvider]MessageSender
	Tokens   TokenRefresher
	Calendar CalendarAPI
}

// Sender returns the client for a tenant's messaging provider.
func (r *ClientRegistry) Sender(p types.MessagingProvider) (MessageSender, bool) {
	s, ok := r.Senders[p]
	return s, ok
}

// NewClientRegistry builds real clients unless cfg is local or in test mode.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsTestMode || cfg.IsLocal() {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		return newStubRegistry(logger.With("mode", "stub"))
	}

	logger.Info("initializing external clients", "environment", cfg.Environment)

	msgHTTP := &http.Client{Timeout: cfg.Messaging.Timeout}
	calHTTP := &http.Client{Timeout: cfg.Calendar.Timeout}

	return &ClientRegistry{
		Senders: map[types.MessagingProvider]MessageSender{
			types.ProviderWhatsAppCloud: NewWhatsAppCloudSender(msgHTTP, cfg.Messaging.UserAgent, cfg.Messaging.WhatsAppBaseURL),
			types.ProviderTwilio:        NewTwilioSender(),
		},
		Tokens: NewGoogleTokenClient(calHTTP, cfg.Messaging.UserAgent, GoogleTokenConfig{
			ClientID:     cfg.Calendar.ClientID,
			ClientSecret: cfg.Calendar.ClientSecret,
			TokenURL:     cfg.Calendar.TokenURL,
			Logger:       logger.With("client", "google-oauth"),
		}),
		Calendar: NewGoogleCalendarClient(calHTTP, cfg.Messaging.UserAgent, cfg.Calendar.APIBaseURL),
	}
}

func newStubRegistry(logger *slog.Logger) *ClientRegistry {
	sender := NewStubMessageSender(logger)
	return &ClientRegistry{
		Senders: map[types.MessagingProvider]MessageSender{
			types.ProviderWhatsAppCloud: sender,
			types.ProviderTwilio:        sender,
		},
		Tokens:   NewStubTokenRefresher(logger),
		Calendar: NewStubCalendarAPI(logger),
	}
}
