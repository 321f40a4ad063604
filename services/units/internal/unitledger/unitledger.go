// Package unitledger is the bounded-supply fungible unit ledger. One engine
// instance serializes every mutation: supply can never exceed the cap, and
// before the lockup date units only move to allow-listed destinations.
package unitledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"grantlane/pkg/authn"
	"grantlane/pkg/domain"
	"grantlane/pkg/identity"
	"grantlane/services/units/internal/unitstore"
)

var (
	ErrNotAdmin            = errors.New("caller is not the units admin")
	ErrNotOwner            = errors.New("caller does not own the source balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidRecipient    = errors.New("recipient must be non-empty")
	ErrCapExceeded         = errors.New("mint would exceed the supply cap")
	ErrCapBelowSupply      = errors.New("cap cannot drop below current supply")
	ErrTransferRestricted  = errors.New("destination is not allow-listed during lockup")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotInitialized      = errors.New("unit ledger is not initialized")
)

var errorCatalog = []struct {
	err    error
	family domain.ErrorFamily
	code   string
}{
	{ErrNotAdmin, domain.FamilyPrivilege, "NOT_ADMIN"},
	{ErrNotOwner, domain.FamilyPrivilege, "NOT_OWNER"},
	{ErrInvalidAmount, domain.FamilyPrecondition, "INVALID_AMOUNT"},
	{ErrInvalidRecipient, domain.FamilyInputShape, "INVALID_RECIPIENT"},
	{ErrCapExceeded, domain.FamilyPrecondition, "CAP_EXCEEDED"},
	{ErrCapBelowSupply, domain.FamilyPrecondition, "CAP_BELOW_SUPPLY"},
	{ErrTransferRestricted, domain.FamilyState, "TRANSFER_RESTRICTED"},
	{ErrInsufficientBalance, domain.FamilyPrecondition, "INSUFFICIENT_BALANCE"},
	{ErrNotInitialized, domain.FamilyState, "NOT_INITIALIZED"},
}

// Classify maps an engine error onto the shared failure taxonomy, falling
// back to the ledger-wide catalog for errors both services raise.
func Classify(err error) (domain.ErrorFamily, string) {
	for _, c := range errorCatalog {
		if errors.Is(err, c.err) {
			return c.family, c.code
		}
	}
	return domain.Classify(err), domain.Code(err)
}

// Engine is the single privileged entry point to the unit ledger. All
// mutations pass through one mutex, giving calls a total order with
// all-or-nothing effects.
type Engine struct {
	store unitstore.Store
	log   *slog.Logger
	now   func() time.Time

	mu sync.Mutex
}

type Config struct {
	Log *slog.Logger
	Now func() time.Time
}

func New(st unitstore.Store, cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, log: log, now: now}
}

// Bootstrap seeds the admin principal and, on first run, the supply state.
// Cap and lockup from the config only apply on the very first start; after
// that the stored state wins and cap changes go through SetCap.
func (e *Engine) Bootstrap(ctx context.Context, admin domain.Principal, initialCap int64, lockupUntil time.Time) error {
	if strings.TrimSpace(admin.PrincipalID) == "" || admin.TokenHash == "" {
		return errors.New("unitledger: bootstrap admin needs an id and a token")
	}
	return e.store.Update(ctx, func(tx unitstore.Tx) error {
		if err := tx.UpsertPrincipal(ctx, admin); err != nil {
			return err
		}
		if _, ok, err := tx.GetState(ctx); err != nil || ok {
			return err
		}
		return tx.PutState(ctx, unitstore.State{
			Cap:         initialCap,
			Supply:      0,
			LockupUntil: lockupUntil,
			Admin:       admin.PrincipalID,
		})
	})
}

// AuthenticateToken resolves a bearer token to an active principal.
func (e *Engine) AuthenticateToken(ctx context.Context, token string) (domain.Principal, error) {
	hash := authn.HashToken(token)
	var p domain.Principal
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		got, ok, err := tx.GetPrincipalByTokenHash(ctx, hash)
		if err != nil {
			return err
		}
		if !ok || got.Status != domain.PrincipalActive {
			return authn.ErrUnauthorized
		}
		p = got
		return nil
	})
	return p, err
}

func (e *Engine) requireAdmin(ctx context.Context, tx unitstore.Tx, actor string) (unitstore.State, error) {
	state, ok, err := tx.GetState(ctx)
	if err != nil {
		return unitstore.State{}, err
	}
	if !ok {
		return unitstore.State{}, ErrNotInitialized
	}
	if actor != state.Admin {
		return unitstore.State{}, ErrNotAdmin
	}
	return state, nil
}

// RegisterHolder creates or rotates a holder principal so it can call
// Transfer with its own token. Admin only.
func (e *Engine) RegisterHolder(ctx context.Context, actor string, holder domain.Principal) error {
	if strings.TrimSpace(holder.PrincipalID) == "" || holder.TokenHash == "" {
		return ErrInvalidRecipient
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.store.Update(ctx, func(tx unitstore.Tx) error {
		if _, err := e.requireAdmin(ctx, tx, actor); err != nil {
			return err
		}
		return tx.UpsertPrincipal(ctx, holder)
	})
	if err != nil {
		return err
	}
	e.log.Info("holder registered", "holder", holder.PrincipalID, "actor", actor)
	return nil
}

type mintFingerprint struct {
	Holder string `json:"holder"`
	Amount int64  `json:"amount"`
}

// Receipt reports a mint's outcome. Supply is the total after this mint
// landed; a replayed key returns the supply as of the original call.
type Receipt struct {
	Holder string `json:"holder"`
	Amount int64  `json:"amount"`
	Supply int64  `json:"supply"`
}

// Mint creates amount new units on to's balance. Admin only; the supply
// stays at or under the cap or the whole call fails. mintKey makes the call
// replay-safe with the same contract as the pact ledger's issuance keys.
func (e *Engine) Mint(ctx context.Context, actor, mintKey, to string, amount int64) (Receipt, error) {
	if strings.TrimSpace(mintKey) == "" {
		return Receipt{}, &domain.FieldError{Field: "mint_key", Reason: "must be non-empty"}
	}
	fp, err := identity.Fingerprint(mintFingerprint{Holder: to, Amount: amount})
	if err != nil {
		return Receipt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var receipt Receipt
	err = e.store.Update(ctx, func(tx unitstore.Tx) error {
		if rec, ok, err := tx.GetMintRecord(ctx, mintKey); err != nil {
			return err
		} else if ok {
			if rec.ParamsHash != fp {
				return domain.ErrIdempotenceMismatch
			}
			receipt = Receipt{Holder: rec.Holder, Amount: rec.Amount, Supply: rec.Supply}
			return nil
		}

		state, err := e.requireAdmin(ctx, tx, actor)
		if err != nil {
			return err
		}
		if strings.TrimSpace(to) == "" {
			return ErrInvalidRecipient
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		if state.Supply+amount > state.Cap {
			return ErrCapExceeded
		}

		balance, _, err := tx.GetBalance(ctx, to)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, to, balance+amount); err != nil {
			return err
		}
		state.Supply += amount
		if err := tx.PutState(ctx, state); err != nil {
			return err
		}
		receipt = Receipt{Holder: to, Amount: amount, Supply: state.Supply}
		return tx.SaveMintRecord(ctx, mintKey, unitstore.MintRecord{
			ParamsHash: fp,
			Holder:     to,
			Amount:     amount,
			Supply:     state.Supply,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	e.log.Info("units minted", "holder", receipt.Holder, "amount", receipt.Amount, "supply", receipt.Supply, "actor", actor)
	return receipt, nil
}

// SetCap moves the supply ceiling. It can tighten as well as raise, but never
// below what has already been minted.
func (e *Engine) SetCap(ctx context.Context, actor string, newCap int64) (unitstore.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out unitstore.State
	err := e.store.Update(ctx, func(tx unitstore.Tx) error {
		state, err := e.requireAdmin(ctx, tx, actor)
		if err != nil {
			return err
		}
		if newCap < state.Supply {
			return ErrCapBelowSupply
		}
		state.Cap = newCap
		if err := tx.PutState(ctx, state); err != nil {
			return err
		}
		out = state
		return nil
	})
	if err != nil {
		return unitstore.State{}, err
	}
	e.log.Info("cap set", "cap", out.Cap, "supply", out.Supply, "actor", actor)
	return out, nil
}

// Transfer moves units between holders. The caller must be the source
// holder. Before LockupUntil the destination must be on the allow-list;
// from LockupUntil on, transfers are unrestricted.
func (e *Engine) Transfer(ctx context.Context, actor, from, to string, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	err := e.store.Update(ctx, func(tx unitstore.Tx) error {
		state, ok, err := tx.GetState(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInitialized
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(to) == "" {
			return ErrInvalidRecipient
		}
		if actor != from {
			return ErrNotOwner
		}
		if now.Before(state.LockupUntil) {
			allowed, err := tx.IsAllowed(ctx, to)
			if err != nil {
				return err
			}
			if !allowed {
				return ErrTransferRestricted
			}
		}
		fromBalance, _, err := tx.GetBalance(ctx, from)
		if err != nil {
			return err
		}
		if fromBalance < amount {
			return ErrInsufficientBalance
		}
		toBalance, _, err := tx.GetBalance(ctx, to)
		if err != nil {
			return err
		}
		if from == to {
			return nil
		}
		if err := tx.SetBalance(ctx, from, fromBalance-amount); err != nil {
			return err
		}
		return tx.SetBalance(ctx, to, toBalance+amount)
	})
	if err != nil {
		return err
	}
	e.log.Info("units transferred", "from", from, "to", to, "amount", amount)
	return nil
}

// Allow puts a destination on the transfer allow-list. Admin only.
func (e *Engine) Allow(ctx context.Context, actor, holder string) error {
	if strings.TrimSpace(holder) == "" {
		return ErrInvalidRecipient
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.store.Update(ctx, func(tx unitstore.Tx) error {
		if _, err := e.requireAdmin(ctx, tx, actor); err != nil {
			return err
		}
		return tx.PutAllowed(ctx, holder)
	})
	if err != nil {
		return err
	}
	e.log.Info("destination allowed", "holder", holder, "actor", actor)
	return nil
}

// Disallow removes a destination from the allow-list. Admin only.
func (e *Engine) Disallow(ctx context.Context, actor, holder string) error {
	if strings.TrimSpace(holder) == "" {
		return ErrInvalidRecipient
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.store.Update(ctx, func(tx unitstore.Tx) error {
		if _, err := e.requireAdmin(ctx, tx, actor); err != nil {
			return err
		}
		return tx.DeleteAllowed(ctx, holder)
	})
	if err != nil {
		return err
	}
	e.log.Info("destination disallowed", "holder", holder, "actor", actor)
	return nil
}

// BalanceOf reports a holder's balance. Unknown holders hold zero.
func (e *Engine) BalanceOf(ctx context.Context, holder string) (int64, error) {
	var out int64
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		b, _, err := tx.GetBalance(ctx, holder)
		out = b
		return err
	})
	return out, err
}

// State returns the supply singleton.
func (e *Engine) State(ctx context.Context) (unitstore.State, error) {
	var out unitstore.State
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		state, ok, err := tx.GetState(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInitialized
		}
		out = state
		return nil
	})
	return out, err
}

// IsAllowed reports allow-list membership for a destination.
func (e *Engine) IsAllowed(ctx context.Context, holder string) (bool, error) {
	var out bool
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		ok, err := tx.IsAllowed(ctx, holder)
		out = ok
		return err
	})
	return out, err
}

// Balances lists every holder with a recorded balance, sorted by holder.
func (e *Engine) Balances(ctx context.Context) ([]unitstore.Balance, error) {
	var out []unitstore.Balance
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		balances, err := tx.ListBalances(ctx)
		out = balances
		return err
	})
	return out, err
}

// Allowed lists the allow-list, sorted.
func (e *Engine) Allowed(ctx context.Context) ([]string, error) {
	var out []string
	err := e.store.View(ctx, func(tx unitstore.Tx) error {
		allowed, err := tx.ListAllowed(ctx)
		out = allowed
		return err
	})
	return out, err
}
