package grantlane

import (
	"net/http"

	"grantlane/pkg/webhooks"
)

// NotificationResult reports whether one webhook delivery came from the
// ledger. EventID is the event's chain hash; fetch the chain to cross-check.
type NotificationResult struct {
	Valid     bool
	EventID   string
	EventType string
}

// VerifyNotification checks a received audit-event webhook against the shared
// subscriber secret. Handle only deliveries that verify.
func VerifyNotification(secret string, headers http.Header, body []byte) (NotificationResult, error) {
	res, err := webhooks.Verify(headers, body, secret)
	if err != nil {
		return NotificationResult{}, err
	}
	return NotificationResult{Valid: res.Valid, EventID: res.EventID, EventType: res.EventType}, nil
}
