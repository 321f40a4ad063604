package ledger

import (
	"context"
	"time"

	"grantlane/pkg/domain"
	"grantlane/pkg/identity"
	"grantlane/services/ledger/internal/store"
)

// CreatePact registers a new pact. Identity is content-addressed: the id is
// derived from the issuer, the content hash and the version, so resubmitting
// the same document at the same version collides with PACT_ALREADY_EXISTS.
func (c *Coordinator) CreatePact(ctx context.Context, actor string, p domain.PactParams) (domain.Pact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Pact
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if ctl.Paused {
			return domain.ErrPaused
		}
		pact, err := c.insertPact(ctx, tx, actor, p, "", now)
		if err != nil {
			return err
		}
		out = pact
		return nil
	})
	if err != nil {
		return domain.Pact{}, wrap("create pact", err)
	}
	c.log.Info("pact created", "pact_id", out.PactID, "version", out.Version, "actor", actor)
	return out, nil
}

// AmendPact creates a successor record for a mutable pact. The source record
// is never touched; claims issued against it keep pointing at it.
func (c *Coordinator) AmendPact(ctx context.Context, actor, pactID string, p domain.PactParams) (domain.Pact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Pact
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if ctl.Paused {
			return domain.ErrPaused
		}
		source, ok, err := tx.GetPact(ctx, pactID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPactNotFound
		}
		if !source.Mutable {
			return domain.ErrPactImmutable
		}
		pact, err := c.insertPact(ctx, tx, actor, p, source.PactID, now)
		if err != nil {
			return err
		}
		out = pact
		return nil
	})
	if err != nil {
		return domain.Pact{}, wrap("amend pact", err)
	}
	c.log.Info("pact amended", "pact_id", out.PactID, "supersedes", out.SupersedesPactID, "actor", actor)
	return out, nil
}

func (c *Coordinator) insertPact(ctx context.Context, tx store.Tx, actor string, p domain.PactParams, supersedes string, at time.Time) (domain.Pact, error) {
	if err := p.Validate(); err != nil {
		return domain.Pact{}, err
	}
	pactID := identity.DerivePactID(c.issuerID, p.ContentHash, p.Version)
	if _, ok, err := tx.GetPact(ctx, pactID); err != nil {
		return domain.Pact{}, err
	} else if ok {
		return domain.Pact{}, domain.ErrPactExists
	}
	pact := domain.Pact{
		PactID:                   pactID,
		IssuerID:                 c.issuerID,
		ContentHash:              p.ContentHash,
		RightsRoot:               p.RightsRoot,
		URI:                      p.URI,
		Version:                  p.Version,
		Mutable:                  p.Mutable,
		RevocationMode:           p.RevocationMode,
		DefaultRevocableUnvested: p.DefaultRevocableUnvested,
		SupersedesPactID:         supersedes,
		CreatedAt:                at,
	}
	if err := tx.InsertPact(ctx, pact); err != nil {
		return domain.Pact{}, err
	}
	typ := domain.EventPactCreated
	payload := map[string]any{"version": pact.Version, "content_hash": pact.ContentHash}
	if supersedes != "" {
		typ = domain.EventPactAmended
		payload["supersedes_pact_id"] = supersedes
	}
	if err := appendEvent(ctx, tx, typ, pactID, actor, payload, at); err != nil {
		return domain.Pact{}, err
	}
	return pact, nil
}
