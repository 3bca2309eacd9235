package payment

import (
	"encoding/json"
	"fmt"
	"strconv"

	"storefront-service/internal/models"
)

// Category collapses the processor's overlapping event-type vocabulary
// into the four facts the reconciliation engine acts on. Several distinct
// event types can describe the same underlying fact; all of them map to
// the same category and converge to the same end state.
type Category string

const (
	CategorySucceeded Category = "payment_succeeded"
	CategoryFailed    Category = "payment_failed"
	CategoryCancelled Category = "payment_cancelled"
	CategoryRefund    Category = "payment_refunded"
)

var eventCategories = map[string]Category{
	"checkout.session.completed":               CategorySucceeded,
	"checkout.session.async_payment_succeeded": CategorySucceeded,
	"payment_intent.succeeded":                 CategorySucceeded,
	"checkout.session.async_payment_failed":    CategoryFailed,
	"payment_intent.payment_failed":            CategoryFailed,
	"payment_intent.canceled":                  CategoryCancelled,
	"checkout.session.expired":                 CategoryCancelled,
	"charge.refunded":                          CategoryRefund,
}

// Categorize maps a processor event type onto its category. Types outside
// the known vocabulary are rejected, not silently ignored.
func Categorize(eventType string) (Category, error) {
	cat, ok := eventCategories[eventType]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownEventType, eventType)
	}
	return cat, nil
}

// Snapshot is the normalized view of a processor payload, whether it
// arrived as a checkout session, a payment intent, or a charge.
type Snapshot struct {
	Object            string
	CheckoutSessionID string
	PaymentIntentID   string
	OrderID           int64 // from metadata, 0 when absent
	Status            string
	Paid              bool
	AmountCaptured    int64
	AmountRefunded    int64
	Currency          string
	ReceiptURL        string
	ReceiptNumber     string
	FailureReason     string
}

type payloadObject struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Status           string            `json:"status"`
	PaymentStatus    string            `json:"payment_status"`
	Paid             bool              `json:"paid"`
	PaymentIntent    string            `json:"payment_intent"`
	AmountTotal      int64             `json:"amount_total"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	AmountCaptured   int64             `json:"amount_captured"`
	AmountRefunded   int64             `json:"amount_refunded"`
	Currency         string            `json:"currency"`
	ReceiptURL       string            `json:"receipt_url"`
	ReceiptNumber    string            `json:"receipt_number"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ParseSnapshot normalizes a raw payload object. The object kind decides
// which identifier and amount fields mean what.
func ParseSnapshot(raw json.RawMessage) (*Snapshot, error) {
	var obj payloadObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("malformed payload object: %w", err)
	}

	snap := &Snapshot{
		Object:         obj.Object,
		Status:         obj.Status,
		Currency:       obj.Currency,
		ReceiptURL:     obj.ReceiptURL,
		ReceiptNumber:  obj.ReceiptNumber,
		AmountRefunded: obj.AmountRefunded,
	}
	if obj.LastPaymentError != nil {
		snap.FailureReason = obj.LastPaymentError.Message
	}
	if id := obj.Metadata["order_id"]; id != "" {
		if parsed, err := strconv.ParseInt(id, 10, 64); err == nil {
			snap.OrderID = parsed
		}
	}

	switch obj.Object {
	case "checkout.session":
		snap.CheckoutSessionID = obj.ID
		snap.PaymentIntentID = obj.PaymentIntent
		snap.Paid = obj.PaymentStatus == "paid" || obj.PaymentStatus == "no_payment_required"
		if snap.Paid {
			snap.AmountCaptured = obj.AmountTotal
		}
	case "payment_intent":
		snap.PaymentIntentID = obj.ID
		snap.Paid = obj.Status == "succeeded"
		snap.AmountCaptured = obj.AmountReceived
		if snap.AmountCaptured == 0 && snap.Paid {
			snap.AmountCaptured = obj.Amount
		}
	case "charge":
		snap.PaymentIntentID = obj.PaymentIntent
		snap.Paid = obj.Paid
		snap.AmountCaptured = obj.AmountCaptured
	default:
		return nil, fmt.Errorf("unknown payload object %q", obj.Object)
	}

	return snap, nil
}
