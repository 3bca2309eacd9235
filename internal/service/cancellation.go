package service

import (
	"context"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CancellationService transitions orders to cancelled and restores the
// stock they reserved.
type CancellationService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewCancellationService creates a new cancellation service.
func NewCancellationService(st *store.Store, publisher *broker.EventPublisher) *CancellationService {
	return &CancellationService{
		store:     st,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CancelOrder cancels an order and restores exactly the quantities its
// items reserved, in one transaction. The order row lock serializes
// concurrent attempts: the loser observes the cancelled state and restores
// nothing, so retrying is always safe.
func (s *CancellationService) CancelOrder(ctx context.Context, orderID, userID int64, privileged bool) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CancellationService.CancelOrder")
	defer span.End()

	var (
		order    *models.Order
		restored int
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !privileged && locked.UserID != userID {
			return models.ErrNotOrderOwner
		}
		if err := CanCancel(locked.FulfillmentStatus); err != nil {
			return err
		}

		items, err := s.store.GetOrderItemsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		locked.FulfillmentStatus = models.FulfillmentCancelled
		if err := s.store.SaveReconciledOrder(ctx, tx, locked); err != nil {
			return err
		}

		// Restoration comes from the item snapshot, never from any
		// external system.
		for _, item := range items {
			if err := s.store.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			restored += item.Quantity
		}

		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	util.StockRestoredTotal.Add(float64(restored))
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", order.ID),
		zap.Int("units_restored", restored))

	s.publishCancelled(ctx, order)
	return order, nil
}

// CanCancel checks the fulfillment-side preconditions for cancellation.
// Shipped and delivered orders are the only hard block; an order already
// cancelled is rejected idempotently.
func CanCancel(status models.FulfillmentStatus) error {
	switch status {
	case models.FulfillmentCancelled:
		return models.ErrAlreadyCancelled
	case models.FulfillmentShipped, models.FulfillmentDelivered:
		return models.ErrCancellationNotAllowed
	}
	return nil
}

func (s *CancellationService) publishCancelled(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      "cancelled_by_user",
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}
