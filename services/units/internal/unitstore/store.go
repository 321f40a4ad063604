// Package unitstore persists the unit ledger: the supply singleton, holder
// balances, the transfer allow-list and mint idempotency keys. The engine is
// the only writer and runs each mutation inside one Update transaction.
package unitstore

import (
	"context"
	"time"

	"grantlane/pkg/domain"
)

// State is the supply singleton. Supply never exceeds Cap; the admin is the
// only principal allowed to change either.
type State struct {
	Cap         int64     `json:"cap"`
	Supply      int64     `json:"supply"`
	LockupUntil time.Time `json:"lockup_until"`
	Admin       string    `json:"admin"`
}

type Balance struct {
	Holder  string `json:"holder"`
	Balance int64  `json:"balance"`
}

// MintRecord maps a mint key to the fingerprint of the accepted parameters
// and the outcome of the first call.
type MintRecord struct {
	ParamsHash string
	Holder     string
	Amount     int64
	Supply     int64
}

// Tx is the unit of atomicity. Get methods report absence via the bool.
type Tx interface {
	GetState(ctx context.Context) (State, bool, error)
	PutState(ctx context.Context, s State) error

	GetBalance(ctx context.Context, holder string) (int64, bool, error)
	SetBalance(ctx context.Context, holder string, balance int64) error
	ListBalances(ctx context.Context) ([]Balance, error)

	IsAllowed(ctx context.Context, holder string) (bool, error)
	PutAllowed(ctx context.Context, holder string) error
	DeleteAllowed(ctx context.Context, holder string) error
	ListAllowed(ctx context.Context) ([]string, error)

	GetPrincipal(ctx context.Context, principalID string) (domain.Principal, bool, error)
	GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (domain.Principal, bool, error)
	UpsertPrincipal(ctx context.Context, p domain.Principal) error

	GetMintRecord(ctx context.Context, mintKey string) (MintRecord, bool, error)
	SaveMintRecord(ctx context.Context, mintKey string, rec MintRecord) error
}

// Store runs functions against the unit ledger. Update commits only when fn
// returns nil; View never commits anything.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}
