package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clinicremind/internal/types"
)

const defaultWhatsAppBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppCloudSender sends text messages through the WhatsApp Cloud API.
// The tenant's API key is the bearer token and its sender is the phone
// number id.
type WhatsAppCloudSender struct {
	base    *BaseClient
	baseURL string
}

func NewWhatsAppCloudSender(httpClient *http.Client, userAgent, baseURL string) *WhatsAppCloudSender {
	return NewWhatsAppCloudSenderWithBase(
		NewBaseClient(httpClient, "whatsapp-cloud", types.ErrCodeUpstreamMessaging, userAgent),
		baseURL,
	)
}

func NewWhatsAppCloudSenderWithBase(base *BaseClient, baseURL string) *WhatsAppCloudSender {
	if baseURL == "" {
		baseURL = defaultWhatsAppBaseURL
	}
	return &WhatsAppCloudSender{base: base, baseURL: strings.TrimRight(baseURL, "/")}
}

type waTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type waErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send implements MessageSender.
func (s *WhatsAppCloudSender) Send(ctx context.Context, in types.SendInput) (string, error) {
	msg := waTextMessage{
		MessagingProduct: "whatsapp",
		To:               digitsOnly(in.Recipient),
		Type:             "text",
	}
	msg.Text.Body = in.Body

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode whatsapp message", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, in.Sender)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build whatsapp request", err)
	}
	req.Header.Set("Authorization", "Bearer "+in.APIKey.Unmask())
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var body waErrorResponse
		_ = json.Unmarshal(raw, &body)
		code := types.ErrCodeUpstreamMessaging
		if resp.StatusCode == http.StatusBadRequest {
			code = types.ErrCodeUpstreamRejectedRecipient
		}
		return "", types.NewAppError(code, "whatsapp rejected the message", nil).
			WithDetails(map[string]any{"status": resp.StatusCode, "provider_code": body.Error.Code, "provider_message": body.Error.Message})
	}

	var out waSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamMessaging, "failed to decode whatsapp response", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamMessaging, "whatsapp response carried no message id", nil)
	}
	return out.Messages[0].ID, nil
}

// digitsOnly strips formatting from a phone number ("+52 1 555-0001" ->
// "5215550001").
func digitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
