package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Product represents a catalog product. The catalog itself is owned by an
// external collaborator; this service only reads price/active and mutates
// the stock counter.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"` // minor units
	Stock     int       `db:"stock" json:"stock"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. Fulfillment and payment move on
// independent status axes. All monetary amounts are minor units.
type Order struct {
	ID                int64             `db:"id" json:"id"`
	UserID            int64             `db:"user_id" json:"user_id"`
	OrderNumber       string            `db:"order_number" json:"order_number"`
	FulfillmentStatus FulfillmentStatus `db:"fulfillment_status" json:"fulfillment_status"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"payment_status"`
	Subtotal          int64             `db:"subtotal" json:"subtotal"`
	Tax               int64             `db:"tax" json:"tax"`
	Shipping          int64             `db:"shipping" json:"shipping"`
	Discount          int64             `db:"discount" json:"discount"`
	Total             int64             `db:"total" json:"total"`
	Currency          string            `db:"currency" json:"currency"`
	AmountCaptured    int64             `db:"amount_captured" json:"amount_captured"`
	AmountRefunded    int64             `db:"amount_refunded" json:"amount_refunded"`
	CheckoutSessionID sql.NullString    `db:"checkout_session_id" json:"checkout_session_id,omitempty"`
	PaymentIntentID   sql.NullString    `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	PaymentMethod     string            `db:"payment_method" json:"payment_method"`
	PaymentDetails    PaymentDetails    `db:"payment_details" json:"payment_details"`
	ShippingAddress   string            `db:"shipping_address" json:"shipping_address"`
	BillingAddress    string            `db:"billing_address" json:"billing_address"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// OrderItem is a price snapshot taken at purchase time. Immutable after
// creation; cascade-deleted with its order.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
	LineTotal int64 `db:"line_total" json:"line_total"`
}

// PaymentEvent is one row of the payment event ledger. EventID is the
// processor-assigned identifier and carries the uniqueness constraint that
// makes redelivery an upsert instead of a duplicate row.
type PaymentEvent struct {
	EventID     string          `db:"event_id" json:"event_id"`
	EventType   string          `db:"event_type" json:"event_type"`
	OrderID     sql.NullInt64   `db:"order_id" json:"order_id,omitempty"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Processed   bool            `db:"processed" json:"processed"`
	ErrorDetail sql.NullString  `db:"error_detail" json:"error_detail,omitempty"`
	ReceivedAt  time.Time       `db:"received_at" json:"received_at"`
	ProcessedAt sql.NullTime    `db:"processed_at" json:"processed_at,omitempty"`
}

// PaymentDetails holds auxiliary processor metadata on an order (receipt
// url, receipt number, failure reason). Stored as JSONB.
type PaymentDetails map[string]string

// Value implements driver.Valuer.
func (d PaymentDetails) Value() (interface{}, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *PaymentDetails) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = PaymentDetails{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	if len(raw) == 0 {
		*d = PaymentDetails{}
		return nil
	}
	return json.Unmarshal(raw, d)
}
