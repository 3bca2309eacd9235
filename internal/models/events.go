package models

import "time"

// Outbound event types published on the order lifecycle topic for
// downstream collaborators (ERP sync, notifications).
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypePaymentFailed  = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all outbound events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published after an order and its stock reservation
// have committed.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Total       int64           `json:"total"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent is published once reconciliation lands a payment success.
type OrderPaidEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	AmountCaptured int64  `json:"amount_captured"`
	Currency       string `json:"currency"`
}

// OrderCancelledEvent is published after cancellation restored stock.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// PaymentFailedEvent is published when reconciliation records a failure.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// OrderItemData represents item data in outbound events.
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
