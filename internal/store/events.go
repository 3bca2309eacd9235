package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// UpsertPaymentEvent records a processor notification in the ledger,
// keyed by the processor's event id. Redelivery of the same id refreshes
// the payload and received_at but keeps the processed flag, so an event
// already applied stays applied.
func (s *Store) UpsertPaymentEvent(ctx context.Context, eventID, eventType string, orderID sql.NullInt64, payload json.RawMessage) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	err := s.db.GetContext(ctx, &event, `
		INSERT INTO payment_events (event_id, event_type, order_id, payload, processed, received_at)
		VALUES ($1, $2, $3, $4, false, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			order_id = COALESCE(payment_events.order_id, EXCLUDED.order_id),
			received_at = NOW()
		RETURNING *`,
		eventID, eventType, orderID, payload)
	if err != nil {
		return nil, &models.StorageError{Op: "upsert payment event", Err: err}
	}
	return &event, nil
}

// MarkEventProcessed flips the ledger row to processed inside tx, in the
// same transaction that applied the state transition.
func (s *Store) MarkEventProcessed(ctx context.Context, tx *sqlx.Tx, eventID string, orderID sql.NullInt64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_events SET
			processed = true,
			processed_at = NOW(),
			error_detail = NULL,
			order_id = COALESCE($2, order_id)
		WHERE event_id = $1`,
		eventID, orderID)
	if err != nil {
		return &models.StorageError{Op: "mark event processed", Err: err}
	}
	return nil
}

// MarkEventFailed records the processing error on the ledger row. The
// webhook receiver still acknowledges delivery; the row stays visible for
// operator inspection and for the reconciliation sweep to retry.
func (s *Store) MarkEventFailed(ctx context.Context, eventID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_events SET processed = false, error_detail = $2 WHERE event_id = $1",
		eventID, detail)
	if err != nil {
		return &models.StorageError{Op: "mark event failed", Err: err}
	}
	return nil
}

// GetPaymentEvent retrieves a ledger row by processor event id.
func (s *Store) GetPaymentEvent(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	err := s.db.GetContext(ctx, &event,
		"SELECT * FROM payment_events WHERE event_id = $1", eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get payment event", Err: err}
	}
	return &event, nil
}

// ListUnprocessedEvents returns ledger rows that were durably received but
// never successfully applied, oldest first.
func (s *Store) ListUnprocessedEvents(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM payment_events
		WHERE processed = false AND received_at < $1
		ORDER BY received_at
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list unprocessed events", Err: err}
	}
	return events, nil
}
