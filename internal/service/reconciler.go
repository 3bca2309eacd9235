package service

import (
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
)

// Transition computes the candidate field updates for an order given one
// categorized processor fact. It is pure: no network, no database, no
// clock. Applying the same fact twice, or two distinct event types
// describing the same fact, converges to the same end state, which is what
// makes the engine safe under duplicated and out-of-order delivery.
func Transition(order *models.Order, cat payment.Category, snap *payment.Snapshot) *models.OrderUpdate {
	u := &models.OrderUpdate{}

	// A terminal payment status accepts no further transitions. The one
	// field still allowed to move is the refunded amount, which stays
	// monotonically non-decreasing across repeated partial refunds.
	if order.PaymentStatus.Terminal() {
		if cat == payment.CategoryRefund && order.PaymentStatus == models.PaymentRefunded &&
			snap.AmountRefunded > order.AmountRefunded {
			u.AmountRefunded = &snap.AmountRefunded
		}
		return u
	}

	// External ids are fill-once regardless of category; a notification
	// may be the first place we learn the intent id for a session.
	if snap.CheckoutSessionID != "" {
		u.CheckoutSessionID = strPtr(snap.CheckoutSessionID)
	}
	if snap.PaymentIntentID != "" {
		u.PaymentIntentID = strPtr(snap.PaymentIntentID)
	}

	switch cat {
	case payment.CategorySucceeded:
		if !snap.Paid {
			// Session completed but the async payment method has not
			// settled yet; the money is still in flight.
			if order.PaymentStatus.CanTransitionTo(models.PaymentProcessing) {
				u.PaymentStatus = paymentPtr(models.PaymentProcessing)
			}
			return u
		}

		if order.PaymentStatus != models.PaymentSucceeded &&
			order.PaymentStatus.CanTransitionTo(models.PaymentSucceeded) {
			u.PaymentStatus = paymentPtr(models.PaymentSucceeded)
		}

		succeeded := order.PaymentStatus == models.PaymentSucceeded || u.PaymentStatus != nil
		if succeeded {
			if snap.AmountCaptured > 0 {
				u.AmountCaptured = &snap.AmountCaptured
			}
			if snap.Currency != "" {
				u.Currency = &snap.Currency
			}
			u.Details = receiptDetails(snap)

			// Advance fulfillment out of pending, and only out of
			// pending: a cancelled order stays cancelled no matter how
			// late the success arrives.
			if order.FulfillmentStatus == models.FulfillmentPending {
				u.FulfillmentStatus = fulfillmentPtr(models.FulfillmentProcessing)
			}
		}

	case payment.CategoryFailed:
		// Failure never touches the fulfillment axis.
		if order.PaymentStatus.CanTransitionTo(models.PaymentFailed) {
			u.PaymentStatus = paymentPtr(models.PaymentFailed)
			if snap.FailureReason != "" {
				u.Details = models.PaymentDetails{"failure_reason": snap.FailureReason}
			}
		}

	case payment.CategoryCancelled:
		if order.PaymentStatus.CanTransitionTo(models.PaymentCancelled) {
			u.PaymentStatus = paymentPtr(models.PaymentCancelled)
		}

	case payment.CategoryRefund:
		if order.PaymentStatus == models.PaymentSucceeded &&
			order.PaymentStatus.CanTransitionTo(models.PaymentRefunded) {
			u.PaymentStatus = paymentPtr(models.PaymentRefunded)
		}
		// Refunded amounts are monotonically non-decreasing; Apply
		// ignores a smaller replayed amount.
		if snap.AmountRefunded > order.AmountRefunded {
			u.AmountRefunded = &snap.AmountRefunded
		}
		if u.PaymentStatus != nil {
			u.Details = receiptDetails(snap)
		}
	}

	return u
}

func receiptDetails(snap *payment.Snapshot) models.PaymentDetails {
	d := models.PaymentDetails{}
	if snap.ReceiptURL != "" {
		d["receipt_url"] = snap.ReceiptURL
	}
	if snap.ReceiptNumber != "" {
		d["receipt_number"] = snap.ReceiptNumber
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

func strPtr(s string) *string { return &s }

func paymentPtr(s models.PaymentStatus) *models.PaymentStatus { return &s }

func fulfillmentPtr(s models.FulfillmentStatus) *models.FulfillmentStatus { return &s }
