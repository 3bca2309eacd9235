package payment

import (
	"encoding/json"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	for eventType, want := range map[string]Category{
		"checkout.session.completed":               CategorySucceeded,
		"checkout.session.async_payment_succeeded": CategorySucceeded,
		"payment_intent.succeeded":                 CategorySucceeded,
		"checkout.session.async_payment_failed":    CategoryFailed,
		"payment_intent.payment_failed":            CategoryFailed,
		"payment_intent.canceled":                  CategoryCancelled,
		"checkout.session.expired":                 CategoryCancelled,
		"charge.refunded":                          CategoryRefund,
	} {
		got, err := Categorize(eventType)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "event type %s", eventType)
	}
}

func TestCategorizeUnknownType(t *testing.T) {
	_, err := Categorize("invoice.payment_succeeded")
	assert.ErrorIs(t, err, models.ErrUnknownEventType)
}

func TestParseSnapshotCheckoutSession(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_test_1",
		"object": "checkout.session",
		"status": "complete",
		"payment_status": "paid",
		"payment_intent": "pi_test_1",
		"amount_total": 3250,
		"currency": "usd",
		"metadata": {"order_id": "42", "order_number": "ORD-20250101-AB12CD34"}
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", snap.CheckoutSessionID)
	assert.Equal(t, "pi_test_1", snap.PaymentIntentID)
	assert.Equal(t, int64(42), snap.OrderID)
	assert.True(t, snap.Paid)
	assert.Equal(t, int64(3250), snap.AmountCaptured)
	assert.Equal(t, "usd", snap.Currency)
}

func TestParseSnapshotUnpaidSessionCapturesNothing(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_test_1",
		"object": "checkout.session",
		"status": "complete",
		"payment_status": "unpaid",
		"amount_total": 3250
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)

	assert.False(t, snap.Paid)
	assert.Zero(t, snap.AmountCaptured)
}

func TestParseSnapshotPaymentIntent(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "pi_test_1",
		"object": "payment_intent",
		"status": "succeeded",
		"amount": 3250,
		"amount_received": 3250,
		"currency": "usd"
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)

	assert.Equal(t, "pi_test_1", snap.PaymentIntentID)
	assert.Empty(t, snap.CheckoutSessionID)
	assert.True(t, snap.Paid)
	assert.Equal(t, int64(3250), snap.AmountCaptured)
}

func TestParseSnapshotFailedIntentCarriesReason(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "pi_test_1",
		"object": "payment_intent",
		"status": "requires_payment_method",
		"last_payment_error": {"message": "Your card was declined."}
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)

	assert.False(t, snap.Paid)
	assert.Equal(t, "Your card was declined.", snap.FailureReason)
}

func TestParseSnapshotCharge(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "ch_test_1",
		"object": "charge",
		"paid": true,
		"payment_intent": "pi_test_1",
		"amount_captured": 3250,
		"amount_refunded": 1000,
		"receipt_url": "https://pay.example.com/receipts/1",
		"receipt_number": "1234-5678"
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)

	assert.Equal(t, "pi_test_1", snap.PaymentIntentID)
	assert.Equal(t, int64(3250), snap.AmountCaptured)
	assert.Equal(t, int64(1000), snap.AmountRefunded)
	assert.Equal(t, "https://pay.example.com/receipts/1", snap.ReceiptURL)
	assert.Equal(t, "1234-5678", snap.ReceiptNumber)
}

func TestParseSnapshotRejectsUnknownObject(t *testing.T) {
	_, err := ParseSnapshot(json.RawMessage(`{"id": "in_1", "object": "invoice"}`))
	assert.Error(t, err)
}

func TestParseSnapshotRejectsMalformedJSON(t *testing.T) {
	_, err := ParseSnapshot(json.RawMessage(`{"id":`))
	assert.Error(t, err)
}
