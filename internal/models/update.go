package models

import "database/sql"

// OrderUpdate is the candidate set of field updates computed by the
// reconciliation transition function. Nil pointers mean "leave as is";
// Details keys only ever fill previously-empty entries.
type OrderUpdate struct {
	PaymentStatus     *PaymentStatus
	FulfillmentStatus *FulfillmentStatus
	AmountCaptured    *int64
	AmountRefunded    *int64
	Currency          *string
	CheckoutSessionID *string
	PaymentIntentID   *string
	Details           PaymentDetails
}

// Empty reports whether applying u would change nothing.
func (u *OrderUpdate) Empty() bool {
	return u == nil ||
		(u.PaymentStatus == nil && u.FulfillmentStatus == nil &&
			u.AmountCaptured == nil && u.AmountRefunded == nil &&
			u.Currency == nil && u.CheckoutSessionID == nil &&
			u.PaymentIntentID == nil && len(u.Details) == 0)
}

// Apply merges u into the order and reports whether anything changed.
// External ids and detail keys are set-once: a value already present is
// never overwritten. Refunded amounts only move up.
func (o *Order) Apply(u *OrderUpdate) bool {
	if u.Empty() {
		return false
	}

	changed := false

	if u.PaymentStatus != nil && *u.PaymentStatus != o.PaymentStatus {
		o.PaymentStatus = *u.PaymentStatus
		changed = true
	}
	if u.FulfillmentStatus != nil && *u.FulfillmentStatus != o.FulfillmentStatus {
		o.FulfillmentStatus = *u.FulfillmentStatus
		changed = true
	}
	if u.AmountCaptured != nil && o.AmountCaptured == 0 && *u.AmountCaptured > 0 {
		o.AmountCaptured = *u.AmountCaptured
		changed = true
	}
	if u.AmountRefunded != nil && *u.AmountRefunded > o.AmountRefunded {
		o.AmountRefunded = *u.AmountRefunded
		changed = true
	}
	if u.Currency != nil && o.Currency == "" && *u.Currency != "" {
		o.Currency = *u.Currency
		changed = true
	}
	if u.CheckoutSessionID != nil && !o.CheckoutSessionID.Valid && *u.CheckoutSessionID != "" {
		o.CheckoutSessionID = sql.NullString{String: *u.CheckoutSessionID, Valid: true}
		changed = true
	}
	if u.PaymentIntentID != nil && !o.PaymentIntentID.Valid && *u.PaymentIntentID != "" {
		o.PaymentIntentID = sql.NullString{String: *u.PaymentIntentID, Valid: true}
		changed = true
	}
	for k, v := range u.Details {
		if v == "" {
			continue
		}
		if _, ok := o.PaymentDetails[k]; ok {
			continue
		}
		if o.PaymentDetails == nil {
			o.PaymentDetails = PaymentDetails{}
		}
		o.PaymentDetails[k] = v
		changed = true
	}

	return changed
}
