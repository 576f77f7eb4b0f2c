package xrplsale

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// SignatureHeader carries the HMAC-SHA256 signature of an inbound webhook body.
const SignatureHeader = "X-XRPL-Sale-Signature"

// maxWebhookBodySize bounds the body read by ParseWebhook.
const maxWebhookBodySize = 1 << 20

const signaturePrefix = "sha256="

// ErrInvalidSignature is returned by ParseWebhook when the signature does not match the body.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types.
const (
	EventInvestmentCreated   = "investment.created"
	EventInvestmentConfirmed = "investment.confirmed"
	EventProjectLaunched     = "project.launched"
	EventProjectCompleted    = "project.completed"
	EventProjectCancelled    = "project.cancelled"
	EventTierCompleted       = "tier.completed"
)

// WebhookEvent is a verified notification delivered by the platform.
type WebhookEvent struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp Time            `json:"timestamp"`
}

// Decode unmarshals the event data into v.
func (e *WebhookEvent) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.New("webhook event has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed with secret.
func Sign(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoWebhookSecret
	}
	return hex.EncodeToString(computeMAC(payload, []byte(secret))), nil
}

// Verify reports whether signature is the HMAC-SHA256 of payload keyed with secret.
// A malformed signature is reported as false; only an empty secret is an error.
// The comparison runs in constant time.
func Verify(payload []byte, signature, secret string) (bool, error) {
	if secret == "" {
		return false, ErrNoWebhookSecret
	}
	return verifyMAC(payload, signature, []byte(secret)), nil
}

func computeMAC(payload, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func verifyMAC(payload []byte, signature string, secret []byte) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)

	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, computeMAC(payload, secret))
}

// WebhookVerifier checks inbound webhooks against a fixed secret.
// It is safe for concurrent use.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier returns a verifier for secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, ErrNoWebhookSecret
	}
	return &WebhookVerifier{secret: []byte(secret)}, nil
}

// Sign returns the signature the platform would send for payload.
func (v *WebhookVerifier) Sign(payload []byte) string {
	return hex.EncodeToString(computeMAC(payload, v.secret))
}

// Verify reports whether signature matches payload.
func (v *WebhookVerifier) Verify(payload []byte, signature string) bool {
	return verifyMAC(payload, signature, v.secret)
}

// Parse reads, verifies and decodes an inbound webhook request.
// The handler must not consume r.Body before calling Parse.
func (v *WebhookVerifier) Parse(r *http.Request) (*WebhookEvent, error) {
	if r.Method != http.MethodPost {
		return nil, errors.New("webhook must be a POST request")
	}

	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return nil, fmt.Errorf("missing %s header", SignatureHeader)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}
	if len(body) > maxWebhookBodySize {
		return nil, fmt.Errorf("webhook body exceeds %d bytes", maxWebhookBodySize)
	}

	if !v.Verify(body, sig) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse webhook json: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("webhook event has no event_type")
	}

	return &event, nil
}

// ParseWebhook verifies r against secret and decodes its event.
func ParseWebhook(r *http.Request, secret string) (*WebhookEvent, error) {
	v, err := NewWebhookVerifier(secret)
	if err != nil {
		return nil, err
	}
	return v.Parse(r)
}

// Webhook is a registered delivery endpoint.
type Webhook struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Active    bool     `json:"active"`
	CreatedAt Time     `json:"created_at"`
}

// CreateWebhookRequest registers a delivery endpoint for the given event types.
type CreateWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	// Secret is the shared signing secret; the server generates one when empty.
	Secret string `json:"secret,omitempty"`
}

// WebhookTestResult is the outcome of a test delivery.
type WebhookTestResult struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WebhooksService manages webhook subscriptions.
type WebhooksService struct {
	client *Client
}

// List returns every registered webhook.
func (s *WebhooksService) List(ctx context.Context) ([]Webhook, error) {
	var page Page[Webhook]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "webhooks"}, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Create registers a webhook.
func (s *WebhooksService) Create(ctx context.Context, req CreateWebhookRequest) (*Webhook, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", req.URL)
	}
	if len(req.Events) == 0 {
		return nil, errors.New("at least one event type is required")
	}

	var w Webhook
	err = s.client.call(ctx, request{
		method:         http.MethodPost,
		path:           "webhooks",
		body:           req,
		idempotencyKey: uuid.NewString(),
	}, &w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Delete removes a webhook.
func (s *WebhooksService) Delete(ctx context.Context, webhookID string) error {
	seg, err := pathSegment("webhook id", webhookID)
	if err != nil {
		return err
	}
	return s.client.call(ctx, request{method: http.MethodDelete, path: "webhooks/" + seg}, nil)
}

// Test asks the platform to send a test event to a webhook.
func (s *WebhooksService) Test(ctx context.Context, webhookID string) (*WebhookTestResult, error) {
	seg, err := pathSegment("webhook id", webhookID)
	if err != nil {
		return nil, err
	}

	var res WebhookTestResult
	err = s.client.call(ctx, request{
		method: http.MethodPost,
		path:   "webhooks/" + seg + "/test",
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
