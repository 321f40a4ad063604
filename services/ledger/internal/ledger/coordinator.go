// Package ledger implements the lifecycle coordinator: the single privileged
// entry point over the pact, claim, and stake stores. Every mutation runs
// under one mutex and one store transaction, so external calls apply in a
// total order with all-or-nothing effects.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"grantlane/pkg/authn"
	"grantlane/pkg/domain"
	"grantlane/pkg/identity"
	"grantlane/services/ledger/internal/store"
)

type Coordinator struct {
	store store.Store
	log   *slog.Logger

	realm        string
	issuerEntity string
	issuerID     string

	// now is read exactly once per operation and used for every time
	// comparison within it.
	now func() time.Time

	mu sync.Mutex
}

type Config struct {
	Realm        string
	IssuerEntity string
	Log          *slog.Logger
	Now          func() time.Time
}

func New(st store.Store, cfg Config) *Coordinator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		store:        st,
		log:          log,
		realm:        cfg.Realm,
		issuerEntity: cfg.IssuerEntity,
		issuerID:     identity.DeriveIssuerID(cfg.Realm, cfg.IssuerEntity),
		now:          now,
	}
}

// Bootstrap seeds the control record and principals on first start. It is a
// no-op when control already exists, so restarts never reset authority state.
func (c *Coordinator) Bootstrap(ctx context.Context, authority domain.Principal, vault *domain.Principal) error {
	if strings.TrimSpace(authority.PrincipalID) == "" || strings.TrimSpace(authority.TokenHash) == "" {
		return errors.New("bootstrap: authority principal and token are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.UpsertPrincipal(ctx, authority); err != nil {
			return err
		}
		if vault != nil {
			if err := tx.UpsertPrincipal(ctx, *vault); err != nil {
				return err
			}
		}
		_, ok, err := tx.GetControl(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return tx.PutControl(ctx, domain.Control{Authority: authority.PrincipalID})
	})
}

// Realm, IssuerEntity and IssuerID describe this deployment's stable issuing
// identity. Authority rotation never changes them.
func (c *Coordinator) Realm() string        { return c.realm }
func (c *Coordinator) IssuerEntity() string { return c.issuerEntity }
func (c *Coordinator) IssuerID() string     { return c.issuerID }

// DerivePactID computes the identity a pact with these parameters would get,
// letting callers predict identifiers before submission.
func (c *Coordinator) DerivePactID(contentHash, version string) string {
	return identity.DerivePactID(c.issuerID, contentHash, version)
}

// AuthenticateToken resolves a bearer token to an active principal.
func (c *Coordinator) AuthenticateToken(ctx context.Context, token string) (domain.Principal, error) {
	hash := authn.HashToken(token)
	var p domain.Principal
	err := c.store.View(ctx, func(tx store.Tx) error {
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
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// requireAuthority is the administrative gate: after the one-way transition
// every administrative capability is gone, before it only the current
// authority passes.
func requireAuthority(ctx context.Context, tx store.Tx, actor string) (domain.Control, error) {
	ctl, ok, err := tx.GetControl(ctx)
	if err != nil {
		return domain.Control{}, err
	}
	if !ok {
		return domain.Control{}, errors.New("control record missing; bootstrap has not run")
	}
	if ctl.Transitioned {
		return ctl, domain.ErrAlreadyTransitioned
	}
	if actor != ctl.Authority {
		return ctl, domain.ErrNotAuthority
	}
	return ctl, nil
}

func newClaimID() string { return "clm_" + uuid.NewString() }
func newStakeID() string { return "stk_" + uuid.NewString() }

// appendEvent links the next audit event onto the hash chain inside the same
// transaction as the mutation it records.
func appendEvent(ctx context.Context, tx store.Tx, typ domain.EventType, recordID, actor string, payload map[string]any, at time.Time) error {
	head, ok, err := tx.ChainHead(ctx)
	if err != nil {
		return err
	}
	e := domain.LedgerEvent{
		Seq:        1,
		Type:       typ,
		RecordID:   recordID,
		Actor:      actor,
		Payload:    payload,
		OccurredAt: at,
	}
	if ok {
		e.Seq = head.Seq + 1
		e.PrevHash = head.EventHash
	}
	hash, err := identity.EventHash(e)
	if err != nil {
		return err
	}
	e.EventHash = hash
	return tx.AppendEvent(ctx, e)
}

// Pause blocks issuance and pact creation until Unpause. Both are idempotent;
// repeated calls in the same state change nothing and log nothing.
func (c *Coordinator) Pause(ctx context.Context, actor string) error {
	return c.setPaused(ctx, actor, true)
}

func (c *Coordinator) Unpause(ctx context.Context, actor string) error {
	return c.setPaused(ctx, actor, false)
}

func (c *Coordinator) setPaused(ctx context.Context, actor string, paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	changed := false
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if ctl.Paused == paused {
			return nil
		}
		ctl.Paused = paused
		changed = true
		if err := tx.PutControl(ctx, ctl); err != nil {
			return err
		}
		typ := domain.EventPaused
		if !paused {
			typ = domain.EventUnpaused
		}
		return appendEvent(ctx, tx, typ, "", actor, nil, now)
	})
	if err != nil {
		return err
	}
	if changed {
		c.log.Info("pause state changed", "paused", paused, "actor", actor)
	}
	return nil
}

// TransferAuthority rotates the administrative principal. The issuer identity
// is derived from the deployment's issuer entity, not the authority, so
// existing pact identities are unaffected.
func (c *Coordinator) TransferAuthority(ctx context.Context, actor, newAuthority string) error {
	newAuthority = strings.TrimSpace(newAuthority)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if newAuthority == "" {
			return domain.ErrInvalidAuthority
		}
		prev := ctl.Authority
		ctl.Authority = newAuthority
		if err := tx.PutControl(ctx, ctl); err != nil {
			return err
		}
		return appendEvent(ctx, tx, domain.EventAuthorityRotated, "", actor, map[string]any{
			"previous_authority": prev,
			"new_authority":      newAuthority,
		}, now)
	})
	if err != nil {
		return err
	}
	c.log.Info("authority rotated", "new_authority", newAuthority, "actor", actor)
	return nil
}

// InitiateTransition performs the one-way handoff: it records the custodial
// vault and destroys every administrative capability. Only the custodial
// transfer bypass survives. There is no way back.
func (c *Coordinator) InitiateTransition(ctx context.Context, actor, vault string) error {
	vault = strings.TrimSpace(vault)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if vault == "" {
			return domain.ErrInvalidVault
		}
		ctl.Vault = vault
		ctl.Transitioned = true
		if err := tx.PutControl(ctx, ctl); err != nil {
			return err
		}
		return appendEvent(ctx, tx, domain.EventTransitionInitiated, "", actor, map[string]any{
			"vault": vault,
		}, now)
	})
	if err != nil {
		return err
	}
	c.log.Info("transition initiated", "vault", vault, "actor", actor)
	return nil
}

// SetBaseURIs replaces both URI templates. Record URIs are baseURI + recordId.
func (c *Coordinator) SetBaseURIs(ctx context.Context, actor, claimBaseURI, stakeBaseURI string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		ctl.ClaimBaseURI = claimBaseURI
		ctl.StakeBaseURI = stakeBaseURI
		if err := tx.PutControl(ctx, ctl); err != nil {
			return err
		}
		return appendEvent(ctx, tx, domain.EventBaseURIsSet, "", actor, map[string]any{
			"claim_base_uri": claimBaseURI,
			"stake_base_uri": stakeBaseURI,
		}, now)
	})
	if err != nil {
		return err
	}
	c.log.Info("base uris set", "actor", actor)
	return nil
}

// CustodianTransfer is the single surviving capability after transition: the
// recorded vault, and nobody else, may move a claim or stake record.
func (c *Coordinator) CustodianTransfer(ctx context.Context, actor, recordID, newOwner string) error {
	newOwner = strings.TrimSpace(newOwner)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, ok, err := tx.GetControl(ctx)
		if err != nil {
			return err
		}
		if !ok || !ctl.Transitioned {
			return domain.ErrTransferLocked
		}
		if actor != ctl.Vault {
			return domain.ErrNotCustodian
		}
		if newOwner == "" {
			return domain.ErrInvalidRecipient
		}
		switch {
		case strings.HasPrefix(recordID, "clm_"):
			claim, ok, err := tx.GetClaim(ctx, recordID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrRecordNotFound
			}
			prev := claim.Owner
			claim.Owner = newOwner
			if err := tx.UpdateClaim(ctx, claim); err != nil {
				return err
			}
			return appendEvent(ctx, tx, domain.EventRecordTransferred, recordID, actor, map[string]any{
				"previous_owner": prev,
				"new_owner":      newOwner,
			}, now)
		case strings.HasPrefix(recordID, "stk_"):
			stake, ok, err := tx.GetStake(ctx, recordID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrRecordNotFound
			}
			prev := stake.Owner
			stake.Owner = newOwner
			if err := tx.UpdateStake(ctx, stake); err != nil {
				return err
			}
			return appendEvent(ctx, tx, domain.EventRecordTransferred, recordID, actor, map[string]any{
				"previous_owner": prev,
				"new_owner":      newOwner,
			}, now)
		default:
			return domain.ErrRecordNotFound
		}
	})
	if err != nil {
		return err
	}
	c.log.Info("record transferred by custodian", "record_id", recordID, "new_owner", newOwner, "actor", actor)
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
