package service

import (
	"context"
	"strings"
	"time"

	"storefront-service/config"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// orderNumberAttempts bounds retries when the generated order number hits
// the unique constraint.
const orderNumberAttempts = 3

// OrderService handles order creation and reads.
type OrderService struct {
	store     *store.Store
	processor payment.Processor
	publisher *broker.EventPublisher
	business  config.BusinessConfig
	checkout  config.PaymentConfig
	logger    *zap.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	st *store.Store,
	processor payment.Processor,
	publisher *broker.EventPublisher,
	business config.BusinessConfig,
	checkout config.PaymentConfig,
) *OrderService {
	return &OrderService{
		store:     st,
		processor: processor,
		publisher: publisher,
		business:  business,
		checkout:  checkout,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order.
type CreateOrderRequest struct {
	UserID          int64              `json:"user_id" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	ShippingAddress string             `json:"shipping_address"`
	BillingAddress  string             `json:"billing_address"`
}

// OrderItemRequest represents an item in an order.
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrderResponse carries the persisted order, its items, and the
// processor checkout URL when the handoff succeeded.
type CreateOrderResponse struct {
	Order       *models.Order      `json:"order"`
	Items       []models.OrderItem `json:"items"`
	CheckoutURL string             `json:"checkout_url,omitempty"`
}

// CreateOrder validates the request, reserves inventory, and persists the
// order inside one transaction. The stock check and decrement happen under
// product row locks so two concurrent orders cannot both pass the check
// and oversell.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	items, err := mergeItems(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	var (
		order      *models.Order
		orderItems []models.OrderItem
		names      map[int64]string
	)

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, orderItems, names, err = s.createOrderTx(ctx, req, items)
		if err == nil {
			break
		}
		if store.IsUniqueViolation(err, "orders_order_number_key") {
			s.logger.Warn("Order number collision, regenerating", zap.Int("attempt", attempt+1))
			continue
		}
		switch err.(type) {
		case *models.ProductUnavailableError:
			util.OrdersFailedTotal.WithLabelValues("product_unavailable").Inc()
		case *models.InsufficientStockError:
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		}
		return nil, err
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total))

	checkoutURL := s.handoffToProcessor(ctx, order, orderItems, names)
	s.publishCreated(ctx, order, orderItems)

	return &CreateOrderResponse{Order: order, Items: orderItems, CheckoutURL: checkoutURL}, nil
}

// createOrderTx is one attempt at the atomic unit: lock products, check
// stock, price, insert order and items, decrement stock. Any failure
// rolls the whole thing back.
func (s *OrderService) createOrderTx(ctx context.Context, req *CreateOrderRequest, items []OrderItemRequest) (*models.Order, []models.OrderItem, map[int64]string, error) {
	var (
		order      *models.Order
		orderItems []models.OrderItem
		names      = make(map[int64]string, len(items))
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}

		products, err := s.store.LockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, item := range items {
			product, ok := products[item.ProductID]
			if !ok || !product.Active {
				return &models.ProductUnavailableError{ProductID: item.ProductID}
			}
			if product.Stock < item.Quantity {
				return &models.InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}
		}

		subtotal, tax, shipping, total := s.computeTotals(items, products)

		order = &models.Order{
			UserID:            req.UserID,
			OrderNumber:       generateOrderNumber(),
			FulfillmentStatus: models.FulfillmentPending,
			PaymentStatus:     models.PaymentRequiresMethod,
			Subtotal:          subtotal,
			Tax:               tax,
			Shipping:          shipping,
			Total:             total,
			Currency:          s.business.Currency,
			PaymentMethod:     req.PaymentMethod,
			PaymentDetails:    models.PaymentDetails{},
			ShippingAddress:   req.ShippingAddress,
			BillingAddress:    req.BillingAddress,
		}
		if err := s.store.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		orderItems = orderItems[:0]
		for _, item := range items {
			product := products[item.ProductID]
			names[item.ProductID] = product.Name
			orderItem := models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				LineTotal: product.Price * int64(item.Quantity),
			}
			if err := s.store.InsertOrderItem(ctx, tx, &orderItem); err != nil {
				return err
			}
			orderItems = append(orderItems, orderItem)

			if err := s.store.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return order, orderItems, names, nil
}

// computeTotals prices the order deterministically from the business
// policy: tax in basis points on the subtotal, flat shipping waived above
// the free-shipping threshold.
func (s *OrderService) computeTotals(items []OrderItemRequest, products map[int64]*models.Product) (subtotal, tax, shipping, total int64) {
	for _, item := range items {
		subtotal += products[item.ProductID].Price * int64(item.Quantity)
	}
	tax = subtotal * int64(s.business.TaxRateBps) / 10000
	if subtotal <= s.business.FreeShippingThreshold {
		shipping = s.business.ShippingFlat
	}
	total = subtotal + tax + shipping
	return subtotal, tax, shipping, total
}

// handoffToProcessor creates the checkout session after commit. A failure
// here leaves the order pending; the payment can be retried and the
// fallback sync picks up anything the webhook stream misses.
func (s *OrderService) handoffToProcessor(ctx context.Context, order *models.Order, items []models.OrderItem, names map[int64]string) string {
	if s.processor == nil {
		return ""
	}

	checkoutItems := make([]payment.CheckoutItem, 0, len(items))
	for _, item := range items {
		checkoutItems = append(checkoutItems, payment.CheckoutItem{
			Name:     names[item.ProductID],
			Amount:   item.UnitPrice,
			Quantity: item.Quantity,
		})
	}

	session, err := s.processor.CreateCheckoutSession(ctx, &payment.CheckoutSessionRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Currency:    order.Currency,
		Items:       checkoutItems,
		SuccessURL:  s.checkout.SuccessURL,
		CancelURL:   s.checkout.CancelURL,
	})
	if err != nil {
		s.logger.Error("Checkout session creation failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return ""
	}

	if err := s.store.SetCheckoutSession(ctx, order.ID, session.ID, session.PaymentIntentID); err != nil {
		s.logger.Error("Failed to record checkout session",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
	return session.URL
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Currency:    order.Currency,
		Items:       eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// GetOrder retrieves an order and its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// GetUserOrders retrieves a user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// mergeItems validates quantities and collapses duplicate product lines so
// the stock check sees one total per product.
func mergeItems(items []OrderItemRequest) ([]OrderItemRequest, error) {
	if len(items) == 0 {
		return nil, &models.ValidationError{Field: "items", Reason: "must not be empty"}
	}

	merged := make([]OrderItemRequest, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.ProductID <= 0 {
			return nil, &models.ValidationError{Field: "items", Reason: "product_id must be positive"}
		}
		if item.Quantity <= 0 {
			return nil, &models.ValidationError{Field: "items", Reason: "quantity must be positive"}
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// generateOrderNumber builds a human-readable order number from a date
// component and a random suffix. Uniqueness is ultimately enforced by the
// orders.order_number constraint, not by the generator.
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "ORD-" + time.Now().UTC().Format("20060102") + "-" + suffix
}
