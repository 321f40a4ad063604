package domain

import "time"

// Control is the singleton gate state the coordinator enforces on every
// administrative call. Transitioned flips to true exactly once and never back.
type Control struct {
	Authority    string `json:"authority"`
	Paused       bool   `json:"paused"`
	Transitioned bool   `json:"transitioned"`
	Vault        string `json:"vault,omitempty"`
	ClaimBaseURI string `json:"claim_base_uri,omitempty"`
	StakeBaseURI string `json:"stake_base_uri,omitempty"`
}

type PrincipalStatus string

const (
	PrincipalActive   PrincipalStatus = "ACTIVE"
	PrincipalDisabled PrincipalStatus = "DISABLED"
)

// Principal is an authenticated caller identity. The authority and the
// custodial vault are principals; tokens are stored only as SHA-256 hashes.
type Principal struct {
	PrincipalID string          `json:"principal_id"`
	DisplayName string          `json:"display_name,omitempty"`
	TokenHash   string          `json:"-"`
	Status      PrincipalStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type EventType string

const (
	EventPactCreated         EventType = "PACT_CREATED"
	EventPactAmended         EventType = "PACT_AMENDED"
	EventClaimIssued         EventType = "CLAIM_ISSUED"
	EventClaimVoided         EventType = "CLAIM_VOIDED"
	EventClaimRedeemed       EventType = "CLAIM_REDEEMED"
	EventStakeCreated        EventType = "STAKE_CREATED"
	EventStakeRevoked        EventType = "STAKE_REVOKED"
	EventPaused              EventType = "PAUSED"
	EventUnpaused            EventType = "UNPAUSED"
	EventAuthorityRotated    EventType = "AUTHORITY_ROTATED"
	EventTransitionInitiated EventType = "TRANSITION_INITIATED"
	EventRecordTransferred   EventType = "RECORD_TRANSFERRED"
	EventBaseURIsSet         EventType = "BASE_URIS_SET"
)

// LedgerEvent is one link of the tamper-evident audit chain. EventHash covers
// the event body plus PrevHash, so rewriting history breaks every later link.
type LedgerEvent struct {
	Seq        int64          `json:"seq"`
	Type       EventType      `json:"type"`
	RecordID   string         `json:"record_id,omitempty"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	EventHash  string         `json:"event_hash"`
	OccurredAt time.Time      `json:"occurred_at"`
}
