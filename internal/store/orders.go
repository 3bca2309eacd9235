package store

import (
	"context"
	"database/sql"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertOrder inserts a new order inside tx. The order_number column
// carries a unique constraint; callers retry on IsUniqueViolation.
func (s *Store) InsertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (
			user_id, order_number, fulfillment_status, payment_status,
			subtotal, tax, shipping, discount, total, currency,
			payment_method, payment_details, shipping_address, billing_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRowxContext(ctx, query,
		order.UserID, order.OrderNumber, order.FulfillmentStatus, order.PaymentStatus,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total, order.Currency,
		order.PaymentMethod, order.PaymentDetails, order.ShippingAddress, order.BillingAddress,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err, "orders_order_number_key") {
			return err
		}
		return &models.StorageError{Op: "insert order", Err: err}
	}
	return nil
}

// InsertOrderItem inserts a line item inside tx.
func (s *Store) InsertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal,
	).Scan(&item.ID)
	if err != nil {
		return &models.StorageError{Op: "insert order item", Err: err}
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get order", Err: err}
	}
	return &order, nil
}

// GetOrderForUpdate locks the order row inside tx. Concurrent
// reconciliations and cancellations of the same order serialize here.
func (s *Store) GetOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "lock order", Err: err}
	}
	return &order, nil
}

// GetOrderForUpdateByExternalRef locks the order matching the processor's
// checkout-session or payment-intent identifier.
func (s *Store) GetOrderForUpdateByExternalRef(ctx context.Context, tx *sqlx.Tx, sessionID, intentID string) (*models.Order, error) {
	if sessionID == "" && intentID == "" {
		return nil, models.ErrOrderNotFound
	}

	var order models.Order
	err := tx.GetContext(ctx, &order, `
		SELECT * FROM orders
		WHERE ($1 <> '' AND checkout_session_id = $1)
		   OR ($2 <> '' AND payment_intent_id = $2)
		LIMIT 1
		FOR UPDATE`, sessionID, intentID)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "lock order by external ref", Err: err}
	}
	return &order, nil
}

// SaveReconciledOrder writes back the mutable reconciliation fields of an
// order inside tx. The order row must already be locked.
func (s *Store) SaveReconciledOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			fulfillment_status = $1,
			payment_status = $2,
			currency = $3,
			amount_captured = $4,
			amount_refunded = $5,
			checkout_session_id = $6,
			payment_intent_id = $7,
			payment_details = $8,
			updated_at = NOW()
		WHERE id = $9`,
		order.FulfillmentStatus, order.PaymentStatus, order.Currency,
		order.AmountCaptured, order.AmountRefunded,
		order.CheckoutSessionID, order.PaymentIntentID, order.PaymentDetails,
		order.ID)
	if err != nil {
		return &models.StorageError{Op: "save order", Err: err}
	}
	return nil
}

// SetCheckoutSession records the processor's session and intent ids on a
// freshly created order, without overwriting values already present.
func (s *Store) SetCheckoutSession(ctx context.Context, orderID int64, sessionID, intentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			checkout_session_id = COALESCE(checkout_session_id, NULLIF($1, '')),
			payment_intent_id = COALESCE(payment_intent_id, NULLIF($2, '')),
			updated_at = NOW()
		WHERE id = $3`,
		sessionID, intentID, orderID)
	if err != nil {
		return &models.StorageError{Op: "set checkout session", Err: err}
	}
	return nil
}

// GetOrderItems retrieves all items for an order.
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, &models.StorageError{Op: "get order items", Err: err}
	}
	return items, nil
}

// GetOrderItemsTx retrieves items inside tx (cancellation restore path).
func (s *Store) GetOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, &models.StorageError{Op: "get order items", Err: err}
	}
	return items, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, &models.StorageError{Op: "list orders", Err: err}
	}
	return orders, nil
}

// ListStalePendingOrders returns orders that handed off to the processor
// but have not heard back for longer than cutoff. The sweep pull-syncs
// them against the processor.
func (s *Store) ListStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE payment_status IN ($1, $2)
		  AND (checkout_session_id IS NOT NULL OR payment_intent_id IS NOT NULL)
		  AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4`,
		models.PaymentRequiresMethod, models.PaymentProcessing, cutoff, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list stale orders", Err: err}
	}
	return orders, nil
}
