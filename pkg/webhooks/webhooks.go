// Package webhooks signs and verifies audit-event notifications. The ledger
// pushes every committed event to configured subscribers; both sides share
// this scheme so a subscriber can reject forged or altered deliveries.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	SignatureHeader = "X-Grantlane-Signature"
	EventIDHeader   = "X-Grantlane-Event-Id"
	EventTypeHeader = "X-Grantlane-Event-Type"

	Scheme = "grantlane-hmac-sha256/v1"
)

// Sign returns the hex HMAC-SHA256 of the raw delivery body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers builds the delivery headers for one notification. eventID is the
// event's chain hash, eventType the ledger event type.
func Headers(secret, eventID, eventType string, body []byte) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(SignatureHeader, Sign(secret, body))
	h.Set(EventIDHeader, eventID)
	h.Set(EventTypeHeader, eventType)
	return h
}

// VerificationResult reports what a subscriber can conclude about one
// delivery. Details records which checks ran, for receipt logging.
type VerificationResult struct {
	Valid     bool           `json:"valid"`
	Scheme    string         `json:"scheme"`
	EventID   string         `json:"event_id,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	Details   map[string]any `json:"details"`
}

// Verify checks a delivery against the shared secret. A missing or malformed
// signature is an invalid delivery, not an error; only an unusable secret
// fails outright.
func Verify(headers http.Header, rawBody []byte, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{}, fmt.Errorf("webhook secret is empty")
	}

	res := VerificationResult{
		Scheme:    Scheme,
		EventID:   strings.TrimSpace(headers.Get(EventIDHeader)),
		EventType: strings.TrimSpace(headers.Get(EventTypeHeader)),
		Details: map[string]any{
			"signature_header_present": false,
			"signature_hex_decodable":  false,
		},
	}

	sigHex := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHex == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true

	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return res, nil
	}
	res.Details["signature_hex_decodable"] = true

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	res.Valid = hmac.Equal(mac.Sum(nil), provided)
	return res, nil
}
