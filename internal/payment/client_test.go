package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(CheckoutSession{
			ID:              "cs_test_1",
			PaymentIntentID: "pi_test_1",
			URL:             "https://pay.example.com/c/cs_test_1",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", testSecret, time.Second)
	session, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{
		OrderID:     42,
		OrderNumber: "ORD-20250101-AB12CD34",
		Currency:    "usd",
		Items:       []CheckoutItem{{Name: "Widget", Amount: 1500, Quantity: 2}},
		SuccessURL:  "https://shop.example.com/success",
		CancelURL:   "https://shop.example.com/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://pay.example.com/c/cs_test_1", session.URL)

	meta := gotReq["metadata"].(map[string]interface{})
	assert.Equal(t, "42", meta["order_id"])
	assert.Equal(t, "ORD-20250101-AB12CD34", meta["order_number"])
}

func TestRetrievePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_test_1", r.URL.Path)
		w.Write([]byte(`{"id":"pi_test_1","object":"payment_intent","status":"succeeded"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", testSecret, time.Second)
	raw, err := client.RetrievePaymentIntent(context.Background(), "pi_test_1")
	require.NoError(t, err)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.True(t, snap.Paid)
}

func TestClientSurfacesProcessorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such session"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_key", testSecret, time.Second)
	_, err := client.RetrieveSession(context.Background(), "cs_missing")

	var procErr *models.ExternalProcessorError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "retrieve session", procErr.Op)
}

func TestVerifyAndParseWebhook(t *testing.T) {
	client := NewClient("", "", testSecret, time.Second)
	body := []byte(`{
		"id": "evt_test_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_test_1", "object": "payment_intent", "status": "succeeded"}}
	}`)
	header := SignPayload(body, testSecret, time.Now())

	event, err := client.VerifyAndParseWebhook(body, header)
	require.NoError(t, err)

	assert.Equal(t, "evt_test_1", event.ID)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.NotEmpty(t, event.Payload)
}

func TestVerifyAndParseWebhookRejectsBadSignature(t *testing.T) {
	client := NewClient("", "", testSecret, time.Second)
	body := []byte(`{"id":"evt_test_1","type":"payment_intent.succeeded"}`)
	header := SignPayload(body, "whsec_wrong", time.Now())

	_, err := client.VerifyAndParseWebhook(body, header)
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}

func TestVerifyAndParseWebhookRejectsEmptyEnvelope(t *testing.T) {
	client := NewClient("", "", testSecret, time.Second)
	body := []byte(`{"data":{}}`)
	header := SignPayload(body, testSecret, time.Now())

	_, err := client.VerifyAndParseWebhook(body, header)
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}
