package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
)

// signatureTolerance bounds how far a delivery timestamp may drift before
// the payload is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

// SignPayload computes the signature header value for body at timestamp t.
// Shared with tests and local tooling that replays recorded deliveries.
func SignPayload(body []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature validates a `t=...,v1=...` signature header against the
// raw body. The signed payload is "<timestamp>.<body>" under HMAC-SHA256.
func VerifySignature(body []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return fmt.Errorf("%w: missing signature header", models.ErrSignatureVerification)
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", models.ErrSignatureVerification)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed signature header", models.ErrSignatureVerification)
	}

	at := time.Unix(ts, 0)
	if now.Sub(at) > tolerance || at.Sub(now) > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", models.ErrSignatureVerification)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", models.ErrSignatureVerification)
}
