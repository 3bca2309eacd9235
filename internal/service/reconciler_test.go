package service

import (
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrder() *models.Order {
	return &models.Order{
		ID:                42,
		UserID:            7,
		OrderNumber:       "ORD-20250101-AB12CD34",
		FulfillmentStatus: models.FulfillmentPending,
		PaymentStatus:     models.PaymentRequiresMethod,
		Subtotal:          2000,
		Tax:               200,
		Shipping:          300,
		Total:             2500,
		PaymentDetails:    models.PaymentDetails{},
	}
}

func succeededSession() *payment.Snapshot {
	return &payment.Snapshot{
		Object:            "checkout.session",
		CheckoutSessionID: "cs_test_1",
		PaymentIntentID:   "pi_test_1",
		OrderID:           42,
		Status:            "complete",
		Paid:              true,
		AmountCaptured:    2500,
		Currency:          "usd",
	}
}

func succeededIntent() *payment.Snapshot {
	return &payment.Snapshot{
		Object:          "payment_intent",
		PaymentIntentID: "pi_test_1",
		Status:          "succeeded",
		Paid:            true,
		AmountCaptured:  2500,
		Currency:        "usd",
	}
}

func apply(t *testing.T, order *models.Order, eventType string, snap *payment.Snapshot) bool {
	t.Helper()
	cat, err := payment.Categorize(eventType)
	require.NoError(t, err)
	return order.Apply(Transition(order, cat, snap))
}

func TestSucceededEventAdvancesPaymentAndFulfillment(t *testing.T) {
	order := pendingOrder()

	changed := apply(t, order, "checkout.session.completed", succeededSession())

	assert.True(t, changed)
	assert.Equal(t, models.PaymentSucceeded, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentProcessing, order.FulfillmentStatus)
	assert.Equal(t, int64(2500), order.AmountCaptured)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, "cs_test_1", order.CheckoutSessionID.String)
	assert.Equal(t, "pi_test_1", order.PaymentIntentID.String)
}

func TestOverlappingSuccessEventsConverge(t *testing.T) {
	// The same payment success arrives as two distinct event types; the
	// end state must be identical no matter which lands first, and
	// applying both must not double-count anything.
	viaSession := pendingOrder()
	apply(t, viaSession, "checkout.session.completed", succeededSession())
	changed := apply(t, viaSession, "payment_intent.succeeded", succeededIntent())
	assert.False(t, changed)

	viaIntent := pendingOrder()
	apply(t, viaIntent, "payment_intent.succeeded", succeededIntent())
	apply(t, viaIntent, "checkout.session.completed", succeededSession())

	assert.Equal(t, viaSession.PaymentStatus, viaIntent.PaymentStatus)
	assert.Equal(t, viaSession.FulfillmentStatus, viaIntent.FulfillmentStatus)
	assert.Equal(t, viaSession.AmountCaptured, viaIntent.AmountCaptured)
	assert.Equal(t, int64(2500), viaSession.AmountCaptured)
}

func TestDuplicateSuccessIsNoOp(t *testing.T) {
	order := pendingOrder()
	apply(t, order, "payment_intent.succeeded", succeededIntent())

	changed := apply(t, order, "payment_intent.succeeded", succeededIntent())

	assert.False(t, changed)
	assert.Equal(t, models.PaymentSucceeded, order.PaymentStatus)
	assert.Equal(t, int64(2500), order.AmountCaptured)
}

func TestSessionCompletedUnpaidMeansProcessing(t *testing.T) {
	order := pendingOrder()
	snap := succeededSession()
	snap.Paid = false
	snap.AmountCaptured = 0

	apply(t, order, "checkout.session.completed", snap)

	assert.Equal(t, models.PaymentProcessing, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentPending, order.FulfillmentStatus)
	assert.Zero(t, order.AmountCaptured)
}

func TestFailedEventLeavesFulfillmentAlone(t *testing.T) {
	order := pendingOrder()
	snap := &payment.Snapshot{
		Object:          "payment_intent",
		PaymentIntentID: "pi_test_1",
		Status:          "requires_payment_method",
		FailureReason:   "card_declined",
	}

	apply(t, order, "payment_intent.payment_failed", snap)

	assert.Equal(t, models.PaymentFailed, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentPending, order.FulfillmentStatus)
	assert.Equal(t, "card_declined", order.PaymentDetails["failure_reason"])
}

func TestLateFailureCannotRegressSuccess(t *testing.T) {
	order := pendingOrder()
	apply(t, order, "payment_intent.succeeded", succeededIntent())

	changed := apply(t, order, "payment_intent.payment_failed", &payment.Snapshot{
		Object:          "payment_intent",
		PaymentIntentID: "pi_test_1",
	})

	assert.False(t, changed)
	assert.Equal(t, models.PaymentSucceeded, order.PaymentStatus)
}

func TestRefundIsMonotonic(t *testing.T) {
	order := pendingOrder()
	apply(t, order, "payment_intent.succeeded", succeededIntent())

	refund := func(amount int64) bool {
		return apply(t, order, "charge.refunded", &payment.Snapshot{
			Object:          "charge",
			PaymentIntentID: "pi_test_1",
			Paid:            true,
			AmountCaptured:  2500,
			AmountRefunded:  amount,
		})
	}

	assert.True(t, refund(1000))
	assert.Equal(t, models.PaymentRefunded, order.PaymentStatus)
	assert.Equal(t, int64(1000), order.AmountRefunded)

	// A replayed smaller refund must not shrink the recorded amount.
	assert.False(t, refund(400))
	assert.Equal(t, int64(1000), order.AmountRefunded)

	// A later larger (partial) refund still accumulates.
	assert.True(t, refund(1800))
	assert.Equal(t, int64(1800), order.AmountRefunded)
	assert.Equal(t, models.PaymentRefunded, order.PaymentStatus)
}

func TestCancelledFulfillmentIsNeverRevived(t *testing.T) {
	order := pendingOrder()
	order.FulfillmentStatus = models.FulfillmentCancelled
	order.PaymentStatus = models.PaymentProcessing

	apply(t, order, "payment_intent.succeeded", succeededIntent())

	// The money is recorded, the shipment stays dead.
	assert.Equal(t, models.PaymentSucceeded, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentCancelled, order.FulfillmentStatus)
}

func TestTerminalPaymentStatusIsFrozen(t *testing.T) {
	order := pendingOrder()
	apply(t, order, "payment_intent.canceled", &payment.Snapshot{
		Object:          "payment_intent",
		PaymentIntentID: "pi_test_1",
		Status:          "canceled",
	})
	require.Equal(t, models.PaymentCancelled, order.PaymentStatus)

	changed := apply(t, order, "payment_intent.succeeded", succeededIntent())

	assert.False(t, changed)
	assert.Equal(t, models.PaymentCancelled, order.PaymentStatus)
}

func TestReceiptFieldsFillOnce(t *testing.T) {
	order := pendingOrder()
	first := succeededIntent()
	first.ReceiptURL = "https://pay.example.com/receipts/1"
	apply(t, order, "payment_intent.succeeded", first)

	second := succeededIntent()
	second.ReceiptURL = "https://pay.example.com/receipts/OTHER"
	second.ReceiptNumber = "1234-5678"
	apply(t, order, "payment_intent.succeeded", second)

	assert.Equal(t, "https://pay.example.com/receipts/1", order.PaymentDetails["receipt_url"])
	assert.Equal(t, "1234-5678", order.PaymentDetails["receipt_number"])
}

func TestExpiredSessionCancelsPayment(t *testing.T) {
	order := pendingOrder()

	apply(t, order, "checkout.session.expired", &payment.Snapshot{
		Object:            "checkout.session",
		CheckoutSessionID: "cs_test_1",
		Status:            "expired",
	})

	assert.Equal(t, models.PaymentCancelled, order.PaymentStatus)
	assert.Equal(t, models.FulfillmentPending, order.FulfillmentStatus)
}
