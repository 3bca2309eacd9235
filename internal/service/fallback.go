package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// FallbackService re-derives payment state by querying the processor
// directly. Used when push notifications are suspected missing, or when a
// caller wants a synchronous confirmation.
type FallbackService struct {
	store      *store.Store
	processor  payment.Processor
	reconciler *ReconcileService
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFallbackService creates a new fallback reconciler.
func NewFallbackService(st *store.Store, processor payment.Processor, reconciler *ReconcileService, timeout time.Duration) *FallbackService {
	return &FallbackService{
		store:      st,
		processor:  processor,
		reconciler: reconciler,
		timeout:    timeout,
		logger:     util.GetLogger(),
	}
}

// SyncPaymentStatus pulls the authoritative snapshot for an order and
// feeds it through the same transition logic as webhook delivery. The
// external query runs before — never inside — the transaction that applies
// its result, so no order lock is held across the network. A processor
// failure is reported without touching local state, and "no payment yet"
// leaves local state unchanged.
func (s *FallbackService) SyncPaymentStatus(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FallbackService.SyncPaymentStatus")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	raw, ref, err := s.retrieve(ctx, order)
	if err != nil {
		util.PaymentSyncTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	snap, err := payment.ParseSnapshot(raw)
	if err != nil {
		util.PaymentSyncTotal.WithLabelValues("error").Inc()
		return nil, &models.ExternalProcessorError{Op: "parse snapshot", Err: err}
	}

	eventType, conclusive := pulledEventType(snap)
	if !conclusive {
		// The processor reports the payment still in flight. Absence of
		// success is not failure; local state stays as it was.
		util.PaymentSyncTotal.WithLabelValues("pending").Inc()
		s.logger.Info("Payment not settled yet, leaving order unchanged",
			zap.Int64("order_id", orderID),
			zap.String("processor_status", snap.Status))
		return order, nil
	}

	// Deterministic synthetic event id: repeated pulls observing the same
	// fact hit the same ledger row and stay idempotent.
	eventID := fmt.Sprintf("pull_%s_%s", ref, snap.Status)

	var orderRef sql.NullInt64
	if snap.OrderID > 0 {
		orderRef = sql.NullInt64{Int64: snap.OrderID, Valid: true}
	} else {
		orderRef = sql.NullInt64{Int64: orderID, Valid: true}
	}

	rec, err := s.store.UpsertPaymentEvent(ctx, eventID, eventType, orderRef, json.RawMessage(raw))
	if err != nil {
		util.PaymentSyncTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !rec.Processed {
		if err := s.reconciler.ApplyEvent(ctx, eventID, eventType, raw); err != nil {
			util.PaymentSyncTotal.WithLabelValues("error").Inc()
			if markErr := s.store.MarkEventFailed(ctx, eventID, err.Error()); markErr != nil {
				s.logger.Error("Failed to record event error", zap.Error(markErr))
			}
			return nil, err
		}
	}

	util.PaymentSyncTotal.WithLabelValues("applied").Inc()
	return s.store.GetOrderByID(ctx, orderID)
}

// retrieve queries the processor under a bounded timeout, preferring the
// payment intent over the checkout session.
func (s *FallbackService) retrieve(ctx context.Context, order *models.Order) (json.RawMessage, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch {
	case order.PaymentIntentID.Valid:
		raw, err := s.processor.RetrievePaymentIntent(ctx, order.PaymentIntentID.String)
		return raw, order.PaymentIntentID.String, err
	case order.CheckoutSessionID.Valid:
		raw, err := s.processor.RetrieveSession(ctx, order.CheckoutSessionID.String)
		return raw, order.CheckoutSessionID.String, err
	default:
		return nil, "", &models.ValidationError{Field: "order", Reason: "no external payment reference to sync against"}
	}
}

// pulledEventType maps a pulled snapshot onto the webhook vocabulary so
// the pull path and the push path share one transition table. It returns
// false while the processor still considers the payment undecided.
func pulledEventType(snap *payment.Snapshot) (string, bool) {
	switch snap.Object {
	case "payment_intent":
		switch snap.Status {
		case "succeeded":
			return "payment_intent.succeeded", true
		case "canceled":
			return "payment_intent.canceled", true
		}
	case "checkout.session":
		if snap.Paid {
			return "checkout.session.completed", true
		}
		if snap.Status == "expired" {
			return "checkout.session.expired", true
		}
	}
	return "", false
}
