package service

import (
	"testing"

	"storefront-service/internal/payment"

	"github.com/stretchr/testify/assert"
)

func TestPulledEventType(t *testing.T) {
	cases := []struct {
		name       string
		snap       *payment.Snapshot
		want       string
		conclusive bool
	}{
		{
			name:       "succeeded intent",
			snap:       &payment.Snapshot{Object: "payment_intent", Status: "succeeded", Paid: true},
			want:       "payment_intent.succeeded",
			conclusive: true,
		},
		{
			name:       "canceled intent",
			snap:       &payment.Snapshot{Object: "payment_intent", Status: "canceled"},
			want:       "payment_intent.canceled",
			conclusive: true,
		},
		{
			name:       "intent awaiting payment method",
			snap:       &payment.Snapshot{Object: "payment_intent", Status: "requires_payment_method"},
			conclusive: false,
		},
		{
			name:       "intent mid-processing",
			snap:       &payment.Snapshot{Object: "payment_intent", Status: "processing"},
			conclusive: false,
		},
		{
			name:       "paid session",
			snap:       &payment.Snapshot{Object: "checkout.session", Status: "complete", Paid: true},
			want:       "checkout.session.completed",
			conclusive: true,
		},
		{
			name:       "expired session",
			snap:       &payment.Snapshot{Object: "checkout.session", Status: "expired"},
			want:       "checkout.session.expired",
			conclusive: true,
		},
		{
			name:       "open unpaid session",
			snap:       &payment.Snapshot{Object: "checkout.session", Status: "open"},
			conclusive: false,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eventType, conclusive := pulledEventType(c.snap)
			assert.Equal(t, c.conclusive, conclusive)
			assert.Equal(t, c.want, eventType)
		})
	}
}

func TestPulledEventTypeRoundTripsThroughCategorize(t *testing.T) {
	// Every conclusive pull result must land in the shared event
	// vocabulary, otherwise the pull path would diverge from webhooks.
	snaps := []*payment.Snapshot{
		{Object: "payment_intent", Status: "succeeded", Paid: true},
		{Object: "payment_intent", Status: "canceled"},
		{Object: "checkout.session", Status: "complete", Paid: true},
		{Object: "checkout.session", Status: "expired"},
	}
	for _, snap := range snaps {
		eventType, conclusive := pulledEventType(snap)
		assert.True(t, conclusive)
		_, err := payment.Categorize(eventType)
		assert.NoErrorf(t, err, "event type %s", eventType)
	}
}
