package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"grantlane/pkg/canonhash"
	"grantlane/pkg/domain"
)

// Derived identifiers are full SHA-256 digests over canonical JSON with a
// type prefix, so callers can recompute them off-path before submission.

func DeriveIssuerID(realm, issuerEntity string) string {
	return "iss_" + sumHex(map[string]string{
		"issuer_entity": issuerEntity,
		"realm":         realm,
	})
}

func DerivePactID(issuerID, contentHash, version string) string {
	return "pct_" + sumHex(map[string]string{
		"content_hash": contentHash,
		"issuer_id":    issuerID,
		"version":      version,
	})
}

// Fingerprint digests an operation's parameters. Idempotent replay compares
// fingerprints before treating the call as a no-op.
func Fingerprint(v any) (string, error) {
	h, _, err := canonhash.SumObject(v)
	return h, err
}

// EventHash covers the event body plus its predecessor's hash, chaining the
// audit log so a rewritten entry invalidates every later one.
func EventHash(e domain.LedgerEvent) (string, error) {
	h, _, err := canonhash.SumObject(map[string]any{
		"actor":       e.Actor,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":     e.Payload,
		"prev_hash":   e.PrevHash,
		"record_id":   e.RecordID,
		"seq":         e.Seq,
		"type":        e.Type,
	})
	return h, err
}

func sumHex(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
