package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func TestApplyEmptyUpdate(t *testing.T) {
	o := &Order{PaymentStatus: PaymentProcessing}

	assert.False(t, o.Apply(nil))
	assert.False(t, o.Apply(&OrderUpdate{}))
	assert.Equal(t, PaymentProcessing, o.PaymentStatus)
}

func TestApplyCapturedAmountIsSetOnce(t *testing.T) {
	o := &Order{}

	assert.True(t, o.Apply(&OrderUpdate{AmountCaptured: i64(2500)}))
	assert.False(t, o.Apply(&OrderUpdate{AmountCaptured: i64(9999)}))
	assert.Equal(t, int64(2500), o.AmountCaptured)
}

func TestApplyRefundOnlyMovesUp(t *testing.T) {
	o := &Order{AmountRefunded: 1000}

	assert.False(t, o.Apply(&OrderUpdate{AmountRefunded: i64(400)}))
	assert.Equal(t, int64(1000), o.AmountRefunded)

	assert.True(t, o.Apply(&OrderUpdate{AmountRefunded: i64(1500)}))
	assert.Equal(t, int64(1500), o.AmountRefunded)
}

func TestApplyExternalIDsFillOnce(t *testing.T) {
	o := &Order{}

	assert.True(t, o.Apply(&OrderUpdate{
		CheckoutSessionID: str("cs_1"),
		PaymentIntentID:   str("pi_1"),
	}))
	assert.False(t, o.Apply(&OrderUpdate{
		CheckoutSessionID: str("cs_2"),
		PaymentIntentID:   str("pi_2"),
	}))
	assert.Equal(t, sql.NullString{String: "cs_1", Valid: true}, o.CheckoutSessionID)
	assert.Equal(t, sql.NullString{String: "pi_1", Valid: true}, o.PaymentIntentID)
}

func TestApplyDetailKeysFillOnly(t *testing.T) {
	o := &Order{PaymentDetails: PaymentDetails{"receipt_url": "first"}}

	changed := o.Apply(&OrderUpdate{Details: PaymentDetails{
		"receipt_url":    "second",
		"receipt_number": "1234",
		"blank":          "",
	}})

	assert.True(t, changed)
	assert.Equal(t, "first", o.PaymentDetails["receipt_url"])
	assert.Equal(t, "1234", o.PaymentDetails["receipt_number"])
	assert.NotContains(t, o.PaymentDetails, "blank")
}

func TestApplyStatusChange(t *testing.T) {
	o := &Order{
		PaymentStatus:     PaymentProcessing,
		FulfillmentStatus: FulfillmentPending,
	}
	succeeded := PaymentSucceeded
	processing := FulfillmentProcessing

	changed := o.Apply(&OrderUpdate{
		PaymentStatus:     &succeeded,
		FulfillmentStatus: &processing,
		Currency:          str("usd"),
	})

	assert.True(t, changed)
	assert.Equal(t, PaymentSucceeded, o.PaymentStatus)
	assert.Equal(t, FulfillmentProcessing, o.FulfillmentStatus)
	assert.Equal(t, "usd", o.Currency)
}
