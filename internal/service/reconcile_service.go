package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ReconcileService owns the payment event ledger and the transactional
// application of processor facts onto orders.
type ReconcileService struct {
	store     *store.Store
	processor payment.Processor
	publisher *broker.EventPublisher
	cache     *redisclient.Client
	logger    *zap.Logger
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(
	st *store.Store,
	processor payment.Processor,
	publisher *broker.EventPublisher,
	cache *redisclient.Client,
) *ReconcileService {
	return &ReconcileService{
		store:     st,
		processor: processor,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// HandleWebhook verifies, durably records, and then applies one processor
// notification. Once the event is in the ledger the delivery is
// acknowledged no matter what the transition does; a processing failure
// lands on the ledger row for the sweep to retry, never back at the
// processor where it would trigger uncontrolled redelivery.
func (s *ReconcileService) HandleWebhook(ctx context.Context, rawBody []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "ReconcileService.HandleWebhook")
	defer span.End()

	start := time.Now()
	defer func() {
		util.WebhookProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	event, err := s.processor.VerifyAndParseWebhook(rawBody, sigHeader)
	if err != nil {
		return err
	}

	util.PaymentEventsReceivedTotal.WithLabelValues(event.Type).Inc()

	var orderRef sql.NullInt64
	if snap, err := payment.ParseSnapshot(event.Payload); err == nil && snap.OrderID > 0 {
		orderRef = sql.NullInt64{Int64: snap.OrderID, Valid: true}
	}

	rec, err := s.store.UpsertPaymentEvent(ctx, event.ID, event.Type, orderRef, event.Payload)
	if err != nil {
		// Not durably recorded; let the processor redeliver.
		return err
	}
	if rec.Processed {
		util.PaymentEventsDuplicateTotal.Inc()
		s.logger.Info("Duplicate payment event, already applied",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return nil
	}

	if err := s.ApplyEvent(ctx, event.ID, event.Type, event.Payload); err != nil {
		util.PaymentEventsFailedTotal.WithLabelValues("apply_error").Inc()
		s.logger.Error("Failed to apply payment event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		if markErr := s.store.MarkEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to record event error", zap.Error(markErr))
		}
	}
	return nil
}

// ApplyEvent runs the state machine for one ledger event inside a single
// transaction: lock the order row, compute the transition from the locked
// state, write the result, and flip the ledger row to processed. An event
// for an unknown order is marked processed without mutation.
func (s *ReconcileService) ApplyEvent(ctx context.Context, eventID, eventType string, payload json.RawMessage) error {
	ctx, span := util.StartSpan(ctx, "ReconcileService.ApplyEvent")
	defer span.End()

	cat, err := payment.Categorize(eventType)
	if err != nil {
		return err
	}
	snap, err := payment.ParseSnapshot(payload)
	if err != nil {
		return err
	}

	var (
		applied   *models.Order
		prevState models.PaymentStatus
	)

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.lockTargetOrder(ctx, tx, snap)
		if err != nil {
			return err
		}
		if order == nil {
			s.logger.Info("Payment event for unknown order, recording only",
				zap.String("event_id", eventID),
				zap.String("event_type", eventType))
			return s.store.MarkEventProcessed(ctx, tx, eventID, sql.NullInt64{})
		}

		prevState = order.PaymentStatus
		update := Transition(order, cat, snap)
		if order.Apply(update) {
			if err := s.store.SaveReconciledOrder(ctx, tx, order); err != nil {
				return err
			}
			if order.PaymentStatus != prevState {
				util.PaymentTransitionsTotal.WithLabelValues(string(order.PaymentStatus)).Inc()
			}
		}
		applied = order

		return s.store.MarkEventProcessed(ctx, tx, eventID, sql.NullInt64{Int64: order.ID, Valid: true})
	})
	if err != nil {
		return err
	}

	if applied != nil {
		s.afterApply(ctx, applied, prevState)
	}
	return nil
}

// lockTargetOrder locates and locks the order a snapshot refers to, by
// local id from metadata first, then by the processor's identifiers. A
// miss is not an error: the event is accepted and recorded regardless.
func (s *ReconcileService) lockTargetOrder(ctx context.Context, tx *sqlx.Tx, snap *payment.Snapshot) (*models.Order, error) {
	if snap.OrderID > 0 {
		order, err := s.store.GetOrderForUpdate(ctx, tx, snap.OrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, models.ErrOrderNotFound) {
			return nil, err
		}
	}

	order, err := s.store.GetOrderForUpdateByExternalRef(ctx, tx, snap.CheckoutSessionID, snap.PaymentIntentID)
	if errors.Is(err, models.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// afterApply publishes lifecycle facts and refreshes the status cache.
// Both are best effort; the transaction has already committed.
func (s *ReconcileService) afterApply(ctx context.Context, order *models.Order, prev models.PaymentStatus) {
	if s.cache != nil {
		if err := s.cache.SetPaymentStatus(ctx, order.ID, string(order.PaymentStatus)); err != nil {
			s.logger.Warn("Failed to cache payment status", zap.Error(err))
		}
	}

	if s.publisher == nil || order.PaymentStatus == prev {
		return
	}

	switch order.PaymentStatus {
	case models.PaymentSucceeded:
		event := &models.OrderPaidEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPaid,
				Timestamp: time.Now(),
			},
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			AmountCaptured: order.AmountCaptured,
			Currency:       order.Currency,
		}
		if err := s.publisher.PublishOrderPaid(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
		}
	case models.PaymentFailed:
		event := &models.PaymentFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentFailed,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      order.PaymentDetails["failure_reason"],
		}
		if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
			s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}
	}
}

// ReprocessPending retries ledger events that were durably received but
// never applied. Called by the reconciliation sweep.
func (s *ReconcileService) ReprocessPending(ctx context.Context, cutoff time.Time, limit int) error {
	events, err := s.store.ListUnprocessedEvents(ctx, cutoff, limit)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := s.ApplyEvent(ctx, event.EventID, event.EventType, event.Payload); err != nil {
			s.logger.Warn("Retry of payment event failed",
				zap.String("event_id", event.EventID),
				zap.Error(err))
			if markErr := s.store.MarkEventFailed(ctx, event.EventID, err.Error()); markErr != nil {
				s.logger.Error("Failed to record event error", zap.Error(markErr))
			}
		}
	}
	return nil
}
