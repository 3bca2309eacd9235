package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-service/internal/models"
)

// Event is a verified notification from the payment processor. Payload is
// the raw object snapshot carried by the notification.
type Event struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

// CheckoutItem is one line of a checkout session.
type CheckoutItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // minor units, per unit
	Quantity int    `json:"quantity"`
}

// CheckoutSessionRequest asks the processor for a hosted payment page.
// Metadata carries the local order reference back on every notification.
type CheckoutSessionRequest struct {
	OrderID     int64
	OrderNumber string
	Currency    string
	Items       []CheckoutItem
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the processor's handle on a payment attempt.
type CheckoutSession struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	URL             string `json:"url"`
}

// Processor is the external payment collaborator. Reconciliation trusts
// nothing from it until VerifyAndParseWebhook has checked the signature.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (json.RawMessage, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (json.RawMessage, error)
	VerifyAndParseWebhook(body []byte, sigHeader string) (*Event, error)
}

// Client talks to the processor's REST API with bearer auth and bounded
// timeouts.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	http          *http.Client
}

// NewClient creates a processor client.
func NewClient(baseURL, apiKey, webhookSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		http:          &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession creates a hosted checkout session for an order.
func (c *Client) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	body := map[string]interface{}{
		"currency":    req.Currency,
		"line_items":  req.Items,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
		"metadata": map[string]string{
			"order_id":     fmt.Sprintf("%d", req.OrderID),
			"order_number": req.OrderNumber,
		},
	}

	raw, err := c.do(ctx, http.MethodPost, "/checkout/sessions", body)
	if err != nil {
		return nil, &models.ExternalProcessorError{Op: "create checkout session", Err: err}
	}

	var session CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, &models.ExternalProcessorError{Op: "create checkout session", Err: err}
	}
	return &session, nil
}

// RetrieveSession pulls the authoritative checkout session snapshot.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, &models.ExternalProcessorError{Op: "retrieve session", Err: err}
	}
	return raw, nil
}

// RetrievePaymentIntent pulls the authoritative payment intent snapshot.
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payment_intents/"+intentID, nil)
	if err != nil {
		return nil, &models.ExternalProcessorError{Op: "retrieve payment intent", Err: err}
	}
	return raw, nil
}

// VerifyAndParseWebhook checks the HMAC signature on a raw delivery and
// decodes the event envelope. Verification happens before any payload
// field is trusted.
func (c *Client) VerifyAndParseWebhook(body []byte, sigHeader string) (*Event, error) {
	if err := VerifySignature(body, sigHeader, c.webhookSecret, signatureTolerance, time.Now()); err != nil {
		return nil, err
	}

	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed event body", models.ErrSignatureVerification)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: event id or type missing", models.ErrSignatureVerification)
	}

	return &Event{ID: env.ID, Type: env.Type, Payload: env.Data.Object}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, nil
}
