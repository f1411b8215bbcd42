package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"clinicremind/internal/types"
)

// twilioMessageAPI is the part of the Twilio REST client used here.
type twilioMessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// twilioFactory builds a REST client for one tenant's account.
type twilioFactory func(accountSID, authToken string) twilioMessageAPI

func newTwilioRestAPI(accountSID, authToken string) twilioMessageAPI {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	}).Api
}

// TwilioSender sends SMS or WhatsApp messages through Twilio. The tenant's API
// key has the form "ACCOUNT_SID:AUTH_TOKEN"; a sender prefixed with
// "whatsapp:" routes the message over WhatsApp.
//
// The Twilio client takes no context, so the call runs in a goroutine and
// Send returns when ctx expires even if Twilio has not answered yet.
//
// Each account SID has its own breaker, and only transport errors, 429 and
// 5xx answers count against it, so one tenant's rejected requests never stop
// another tenant's sends.
type TwilioSender struct {
	newAPI twilioFactory

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

func NewTwilioSender() *TwilioSender {
	return newTwilioSenderWithFactory(newTwilioRestAPI)
}

func newTwilioSenderWithFactory(f twilioFactory) *TwilioSender {
	return &TwilioSender{
		newAPI:   f,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

func (s *TwilioSender) breakerFor(accountSID string) *gobreaker.CircuitBreaker[string] {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[accountSID]
	if !ok {
		settings := BreakerSettings("twilio-" + accountSID)
		settings.IsSuccessful = isTwilioBreakerSuccess
		cb = gobreaker.NewCircuitBreaker[string](settings)
		s.breakers[accountSID] = cb
	}
	return cb
}

// isTwilioBreakerSuccess treats request-level rejections (4xx other than 429)
// as healthy answers from Twilio.
func isTwilioBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var restErr *twilioClient.TwilioRestError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Status >= 400 && restErr.Status < 500 && restErr.Status != http.StatusTooManyRequests
}

func splitTwilioKey(apiKey types.SecretString) (sid, token string, err error) {
	sid, token, ok := strings.Cut(apiKey.Unmask(), ":")
	if !ok || sid == "" || token == "" {
		return "", "", types.NewAppError(types.ErrCodeConfigMessagingMissing, "twilio api key must be ACCOUNT_SID:AUTH_TOKEN", nil)
	}
	return sid, token, nil
}

// CheckCredentials implements CredentialChecker.
func (s *TwilioSender) CheckCredentials(apiKey types.SecretString) error {
	_, _, err := splitTwilioKey(apiKey)
	return err
}

// Send implements MessageSender.
func (s *TwilioSender) Send(ctx context.Context, in types.SendInput) (string, error) {
	sid, token, err := splitTwilioKey(in.APIKey)
	if err != nil {
		return "", err
	}

	to := in.Recipient
	if strings.HasPrefix(in.Sender, "whatsapp:") && !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(in.Sender)
	params.SetBody(in.Body)

	api := s.newAPI(sid, token)
	breaker := s.breakerFor(sid)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := breaker.Execute(func() (string, error) {
			resp, err := api.CreateMessage(params)
			if err != nil {
				return "", err
			}
			if resp == nil || resp.Sid == nil || *resp.Sid == "" {
				return "", errors.New("twilio response carried no message sid")
			}
			return *resp.Sid, nil
		})
		done <- result{id, err}
	}()

	select {
	case <-ctx.Done():
		return "", types.NewAppError(types.ErrCodeUpstreamMessaging, "twilio send timed out", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", types.NewAppError(types.ErrCodeUpstreamMessaging, fmt.Sprintf("twilio send failed: %v", r.err), r.err)
		}
		return r.sid, nil
	}
}
