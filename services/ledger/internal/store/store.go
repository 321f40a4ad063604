// Package store holds the ledger's persistence layer. The coordinator is the
// only writer; it runs every mutation inside a single Update transaction so
// each external call either fully commits or leaves no trace.
package store

import (
	"context"

	"grantlane/pkg/domain"
)

// IdemKind namespaces idempotency keys per operation.
type IdemKind string

const (
	IdemIssue  IdemKind = "ISSUE"
	IdemRedeem IdemKind = "REDEEM"
)

// IdempotencyRecord maps a caller-supplied key to the fingerprint of the
// accepted parameters and the record the first call produced.
type IdempotencyRecord struct {
	ParamsHash string
	RecordID   string
}

// Tx is the unit of atomicity. Get methods report absence via the bool, never
// an error; missing rows are a caller condition, not a store failure.
type Tx interface {
	GetControl(ctx context.Context) (domain.Control, bool, error)
	PutControl(ctx context.Context, c domain.Control) error

	GetPact(ctx context.Context, pactID string) (domain.Pact, bool, error)
	InsertPact(ctx context.Context, p domain.Pact) error

	GetClaim(ctx context.Context, claimID string) (domain.Claim, bool, error)
	GetClaimByIssuanceKey(ctx context.Context, key string) (domain.Claim, bool, error)
	InsertClaim(ctx context.Context, c domain.Claim) error
	UpdateClaim(ctx context.Context, c domain.Claim) error

	GetStake(ctx context.Context, stakeID string) (domain.Stake, bool, error)
	GetStakeByRedemptionKey(ctx context.Context, key string) (domain.Stake, bool, error)
	InsertStake(ctx context.Context, s domain.Stake) error
	UpdateStake(ctx context.Context, s domain.Stake) error

	GetPrincipal(ctx context.Context, principalID string) (domain.Principal, bool, error)
	GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (domain.Principal, bool, error)
	UpsertPrincipal(ctx context.Context, p domain.Principal) error

	GetIdempotencyRecord(ctx context.Context, kind IdemKind, key string) (IdempotencyRecord, bool, error)
	SaveIdempotencyRecord(ctx context.Context, kind IdemKind, key string, rec IdempotencyRecord) error

	AppendEvent(ctx context.Context, e domain.LedgerEvent) error
	ChainHead(ctx context.Context) (domain.LedgerEvent, bool, error)
	EventsForRecord(ctx context.Context, recordID string) ([]domain.LedgerEvent, error)
	ListEvents(ctx context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error)
}

// Store runs functions against the ledger state. Update commits the
// transaction only when fn returns nil; View never commits anything.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}
