package models

// PaymentStatus is the lifecycle of the monetary transaction. It only ever
// moves forward along the transition table below; replayed or out-of-order
// processor events can never move it backward.
type PaymentStatus string

const (
	PaymentRequiresMethod PaymentStatus = "requires_payment_method"
	PaymentProcessing     PaymentStatus = "processing"
	PaymentSucceeded      PaymentStatus = "succeeded"
	PaymentFailed         PaymentStatus = "failed"
	PaymentCancelled      PaymentStatus = "cancelled"
	PaymentRefunded       PaymentStatus = "refunded"
)

// FulfillmentStatus is the lifecycle of physical order handling,
// independent of the payment axis.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// paymentTransitions is the closed set of legal payment edges. A failed
// payment may be retried (failed -> processing/succeeded); cancelled and
// refunded have no outgoing edges.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentRequiresMethod: {PaymentProcessing, PaymentSucceeded, PaymentFailed, PaymentCancelled},
	PaymentProcessing:     {PaymentSucceeded, PaymentFailed, PaymentCancelled},
	PaymentFailed:         {PaymentProcessing, PaymentSucceeded, PaymentCancelled},
	PaymentSucceeded:      {PaymentRefunded},
	PaymentCancelled:      {},
	PaymentRefunded:       {},
}

// fulfillmentTransitions: cancelled is reachable from pending or processing
// only, and has no outgoing edges, so a late payment success can never
// revive a cancelled order.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:    {FulfillmentDelivered},
	FulfillmentDelivered:  {},
	FulfillmentCancelled:  {},
}

// CanTransitionTo reports whether the edge from s to next is legal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further payment transitions are possible.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// Valid reports whether s belongs to the known vocabulary.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge from s to next is legal.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	for _, t := range fulfillmentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether s belongs to the known vocabulary.
func (s FulfillmentStatus) Valid() bool {
	_, ok := fulfillmentTransitions[s]
	return ok
}
