package payment

import (
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func TestVerifySignatureRoundTrip(t *testing.T) {
	now := time.Now()
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := SignPayload(body, testSecret, now)

	assert.NoError(t, VerifySignature(body, header, testSecret, signatureTolerance, now))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	now := time.Now()
	body := []byte(`{"id":"evt_1"}`)
	header := SignPayload(body, "whsec_other", now)

	err := VerifySignature(body, header, testSecret, signatureTolerance, now)
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":100}`), testSecret, now)

	err := VerifySignature([]byte(`{"amount":999}`), header, testSecret, signatureTolerance, now)
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)
	header := SignPayload(body, testSecret, now.Add(-10*time.Minute))

	err := VerifySignature(body, header, testSecret, signatureTolerance, now)
	require.ErrorIs(t, err, models.ErrSignatureVerification)
	assert.Contains(t, err.Error(), "tolerance")
}

func TestVerifySignatureFutureTimestamp(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)
	header := SignPayload(body, testSecret, now.Add(10*time.Minute))

	err := VerifySignature(body, header, testSecret, signatureTolerance, now)
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}

func TestVerifySignatureMalformedHeaders(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)

	for _, header := range []string{
		"",
		"garbage",
		"t=notanumber,v1=abcd",
		"t=" + "1700000000", // v1 missing
		"v1=deadbeef",       // t missing
	} {
		err := VerifySignature(body, header, testSecret, signatureTolerance, now)
		assert.ErrorIsf(t, err, models.ErrSignatureVerification, "header %q", header)
	}
}

func TestVerifySignatureAcceptsExtraParts(t *testing.T) {
	// Real deliveries carry extra scheme versions; one matching v1 is enough.
	now := time.Now()
	body := []byte(`{"id":"evt_1"}`)
	header := "v0=ffff," + SignPayload(body, testSecret, now)

	assert.NoError(t, VerifySignature(body, header, testSecret, signatureTolerance, now))
}
