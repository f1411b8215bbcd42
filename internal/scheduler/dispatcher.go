package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"clinicremind/internal/external"
	"clinicremind/internal/types"
)

// releaseTimeout bounds the claim release after a failed send. The release
// runs detached from the run context, which may already be done.
const releaseTimeout = 5 * time.Second

// ClaimStore is the dedup write side of the appointment repository.
type ClaimStore interface {
	ClaimTier(ctx context.Context, id string, tier types.Tier, at, cutoff time.Time) (bool, error)
	ReleaseTier(ctx context.Context, id string, tier types.Tier, at time.Time, prev types.DedupSnapshot) error
	ClaimFollowUp(ctx context.Context, id string, at time.Time) (bool, error)
	ReleaseFollowUp(ctx context.Context, id string, at time.Time) error
}

// MessageLog records successful sends.
type MessageLog interface {
	Insert(ctx context.Context, m *types.OutboundMessage) error
}

// SenderResolver maps a tenant's provider to a sender.
type SenderResolver interface {
	Sender(p types.MessagingProvider) (external.MessageSender, bool)
}

// OutcomeStatus classifies a dispatch.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome is the result of dispatching one appointment. Dispatch failures are
// values, never errors, so one appointment cannot abort its tier.
type Outcome struct {
	AppointmentID     string
	Status            OutcomeStatus
	Reason            string
	ProviderMessageID string
	Err               error
}

// Dispatcher claims, renders and sends one message per due appointment.
type Dispatcher struct {
	claims      ClaimStore
	log         MessageLog
	senders     SenderResolver
	renderer    *Renderer
	limiter     *rate.Limiter
	sendTimeout time.Duration
	metrics     Metrics
	logger      *slog.Logger
}

// DispatcherConfig carries the dispatcher's tunables.
type DispatcherConfig struct {
	SendTimeout   time.Duration
	RatePerSecond float64
	RateBurst     int
	DefaultLocale types.Locale
}

func NewDispatcher(claims ClaimStore, log MessageLog, senders SenderResolver, metrics Metrics, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 8 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Dispatcher{
		claims:      claims,
		log:         log,
		senders:     senders,
		renderer:    NewRenderer(cfg.DefaultLocale),
		limiter:     rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		sendTimeout: cfg.SendTimeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Dispatch sends the tier's message for a. tier is types.FollowUpTier for the
// follow-up pass. The claim is taken before sending and released when the
// send fails, leaving the dedup state as it was.
func (d *Dispatcher) Dispatch(ctx context.Context, tenant types.Tenant, a types.Appointment, tier types.Tier, now time.Time) Outcome {
	out := Outcome{AppointmentID: a.ID}
	log := d.logger.With("tenant_id", tenant.ID, "appointment_id", a.ID, "tier", tier)

	recipient := strings.TrimSpace(a.PatientPhone)
	if recipient == "" {
		out.Status, out.Reason = OutcomeSkipped, types.SkipMissingRecipient
		return out
	}

	sender, ok := d.senders.Sender(tenant.MessagingProvider)
	if !ok {
		out.Status = OutcomeFailed
		out.Err = types.NewAppError(types.ErrCodeConfigMessagingMissing, "unsupported messaging provider", nil).
			WithDetails(map[string]any{"provider": tenant.MessagingProvider})
		return out
	}

	claimed, err := d.claim(ctx, a, tier, now)
	if err != nil {
		log.ErrorContext(ctx, "failed to claim appointment", "error", err)
		out.Status, out.Err = OutcomeFailed, err
		return out
	}
	if !claimed {
		out.Status, out.Reason = OutcomeSkipped, types.SkipAlreadyClaimed
		return out
	}

	loc, _ := LoadLocation(tenant.Timezone)
	kind := types.KindForTier(tier)
	body := d.renderer.Render(tenant.Policy, kind, MessageData{
		PatientName: a.PatientName,
		ServiceName: a.ServiceName,
		ClinicName:  tenant.Name,
		At:          a.ScheduledAt,
		Location:    loc,
	})

	msgID, err := d.send(ctx, sender, types.SendInput{
		APIKey:    tenant.MessagingAPIKey,
		Sender:    tenant.MessagingSender,
		Recipient: recipient,
		Body:      body,
	})
	if err != nil {
		log.WarnContext(ctx, "reminder send failed; releasing claim",
			"provider", tenant.MessagingProvider,
			"error", err,
		)
		d.metrics.RecordSendFailure(ctx, tenant.MessagingProvider, types.CodeOf(err))
		d.release(ctx, a, tier, now, log)
		out.Status, out.Err = OutcomeFailed, err
		return out
	}

	if err := d.log.Insert(ctx, &types.OutboundMessage{
		TenantID:          tenant.ID,
		AppointmentID:     a.ID,
		Kind:              kind,
		Channel:           tenant.MessagingProvider,
		Recipient:         recipient,
		Body:              body,
		ProviderMessageID: msgID,
	}); err != nil {
		log.ErrorContext(ctx, "failed to record outbound message", "error", err)
	}

	log.InfoContext(ctx, "reminder sent", "provider_message_id", msgID)
	out.Status, out.ProviderMessageID = OutcomeSent, msgID
	return out
}

// CheckTenant reports a configuration_missing error when the tenant's
// provider has no sender or its API key has the wrong shape for that sender.
func (d *Dispatcher) CheckTenant(t types.Tenant) error {
	sender, ok := d.senders.Sender(t.MessagingProvider)
	if !ok {
		return types.NewAppError(types.ErrCodeConfigMessagingMissing, "unsupported messaging provider", nil).
			WithDetails(map[string]any{"provider": t.MessagingProvider})
	}
	if checker, ok := sender.(external.CredentialChecker); ok {
		return checker.CheckCredentials(t.MessagingAPIKey)
	}
	return nil
}

func (d *Dispatcher) claim(ctx context.Context, a types.Appointment, tier types.Tier, now time.Time) (bool, error) {
	if tier == types.FollowUpTier {
		return d.claims.ClaimFollowUp(ctx, a.ID, now)
	}
	return d.claims.ClaimTier(ctx, a.ID, tier, now, ClaimCutoff(tier, now))
}

func (d *Dispatcher) release(ctx context.Context, a types.Appointment, tier types.Tier, now time.Time, log *slog.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	var err error
	if tier == types.FollowUpTier {
		err = d.claims.ReleaseFollowUp(rctx, a.ID, now)
	} else {
		err = d.claims.ReleaseTier(rctx, a.ID, tier, now, a.Snapshot(tier))
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to release claim", "error", err)
	}
}

func (d *Dispatcher) send(ctx context.Context, sender external.MessageSender, in types.SendInput) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamMessaging, "send cancelled while waiting for rate limiter", err)
	}
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return sender.Send(sctx, in)
}
