package ledger

import (
	"context"
	"strings"
	"time"

	"grantlane/pkg/domain"
	"grantlane/pkg/identity"
	"grantlane/services/ledger/internal/store"
)

type IssueParams struct {
	IssuanceKey  string
	Recipient    string
	PactID       string
	MaxUnits     int64
	UnitType     domain.UnitType
	RedeemableAt time.Time
}

// issueFingerprint is the canonical parameter image stored next to an
// issuance key. Replays compare against it bit for bit.
type issueFingerprint struct {
	Recipient    string `json:"recipient"`
	PactID       string `json:"pact_id"`
	MaxUnits     int64  `json:"max_units"`
	UnitType     string `json:"unit_type"`
	RedeemableAt string `json:"redeemable_at"`
}

func (p IssueParams) fingerprint() (string, error) {
	return identity.Fingerprint(issueFingerprint{
		Recipient:    p.Recipient,
		PactID:       p.PactID,
		MaxUnits:     p.MaxUnits,
		UnitType:     string(p.UnitType),
		RedeemableAt: p.RedeemableAt.UTC().Format(time.RFC3339Nano),
	})
}

// Issue creates one claim under an issuance key. Replaying the key with the
// same parameters returns the original claim and changes nothing; replaying
// it with different parameters fails with IDEMPOTENCE_MISMATCH.
func (c *Coordinator) Issue(ctx context.Context, actor string, p IssueParams) (domain.Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Claim
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if ctl.Paused {
			return domain.ErrPaused
		}
		claim, err := c.issueOne(ctx, tx, actor, p, now)
		if err != nil {
			return err
		}
		out = claim
		return nil
	})
	if err != nil {
		return domain.Claim{}, wrap("issue", err)
	}
	c.log.Info("claim issued", "claim_id", out.ClaimID, "pact_id", out.PactID, "max_units", out.MaxUnits, "actor", actor)
	return out, nil
}

// IssueBatch creates one claim per element of the parallel arrays, all inside
// a single transaction. The first failing element aborts the whole batch with
// its index attached; no earlier element survives.
func (c *Coordinator) IssueBatch(ctx context.Context, actor string, b BatchIssueParams) ([]domain.Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out []domain.Claim
	err := c.store.Update(ctx, func(tx store.Tx) error {
		ctl, err := requireAuthority(ctx, tx, actor)
		if err != nil {
			return err
		}
		if ctl.Paused {
			return domain.ErrPaused
		}
		if err := b.validateShape(); err != nil {
			return err
		}
		claims := make([]domain.Claim, 0, len(b.IssuanceKeys))
		for i := range b.IssuanceKeys {
			claim, err := c.issueOne(ctx, tx, actor, b.element(i), now)
			if err != nil {
				return &domain.BatchItemError{Index: i, Err: err}
			}
			claims = append(claims, claim)
		}
		out = claims
		return nil
	})
	if err != nil {
		return nil, wrap("issue batch", err)
	}
	c.log.Info("claim batch issued", "count", len(out), "actor", actor)
	return out, nil
}

type BatchIssueParams struct {
	IssuanceKeys  []string
	Recipients    []string
	PactIDs       []string
	MaxUnits      []int64
	UnitTypes     []domain.UnitType
	RedeemableAts []time.Time
}

func (b BatchIssueParams) validateShape() error {
	n := len(b.IssuanceKeys)
	if n == 0 {
		return domain.ErrArrayLengthMismatch
	}
	if len(b.Recipients) != n || len(b.PactIDs) != n || len(b.MaxUnits) != n ||
		len(b.UnitTypes) != n || len(b.RedeemableAts) != n {
		return domain.ErrArrayLengthMismatch
	}
	return nil
}

func (b BatchIssueParams) element(i int) IssueParams {
	return IssueParams{
		IssuanceKey:  b.IssuanceKeys[i],
		Recipient:    b.Recipients[i],
		PactID:       b.PactIDs[i],
		MaxUnits:     b.MaxUnits[i],
		UnitType:     b.UnitTypes[i],
		RedeemableAt: b.RedeemableAts[i],
	}
}

func (c *Coordinator) issueOne(ctx context.Context, tx store.Tx, actor string, p IssueParams, now time.Time) (domain.Claim, error) {
	if strings.TrimSpace(p.IssuanceKey) == "" {
		return domain.Claim{}, &domain.FieldError{Field: "issuance_key", Reason: "must be non-empty"}
	}
	fp, err := p.fingerprint()
	if err != nil {
		return domain.Claim{}, err
	}
	if rec, ok, err := tx.GetIdempotencyRecord(ctx, store.IdemIssue, p.IssuanceKey); err != nil {
		return domain.Claim{}, err
	} else if ok {
		if rec.ParamsHash != fp {
			return domain.Claim{}, domain.ErrIdempotenceMismatch
		}
		existing, ok, err := tx.GetClaim(ctx, rec.RecordID)
		if err != nil {
			return domain.Claim{}, err
		}
		if !ok {
			return domain.Claim{}, domain.ErrClaimNotFound
		}
		return existing, nil
	}
	if strings.TrimSpace(p.Recipient) == "" {
		return domain.Claim{}, domain.ErrInvalidRecipient
	}
	if p.MaxUnits <= 0 {
		return domain.Claim{}, domain.ErrInvalidUnits
	}
	if !p.UnitType.Valid() {
		return domain.Claim{}, domain.ErrInvalidUnitType
	}
	if _, ok, err := tx.GetPact(ctx, p.PactID); err != nil {
		return domain.Claim{}, err
	} else if !ok {
		return domain.Claim{}, domain.ErrPactNotFound
	}
	claim := domain.Claim{
		ClaimID:      newClaimID(),
		Owner:        p.Recipient,
		PactID:       p.PactID,
		MaxUnits:     p.MaxUnits,
		UnitType:     p.UnitType,
		RedeemableAt: p.RedeemableAt,
		IssuanceKey:  p.IssuanceKey,
		CreatedAt:    now,
	}
	if err := tx.InsertClaim(ctx, claim); err != nil {
		return domain.Claim{}, err
	}
	if err := tx.SaveIdempotencyRecord(ctx, store.IdemIssue, p.IssuanceKey, store.IdempotencyRecord{
		ParamsHash: fp,
		RecordID:   claim.ClaimID,
	}); err != nil {
		return domain.Claim{}, err
	}
	if err := appendEvent(ctx, tx, domain.EventClaimIssued, claim.ClaimID, actor, map[string]any{
		"owner":        claim.Owner,
		"pact_id":      claim.PactID,
		"max_units":    claim.MaxUnits,
		"unit_type":    string(claim.UnitType),
		"issuance_key": claim.IssuanceKey,
	}, now); err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

// VoidClaim cancels the claim addressed by its issuance key. Units already
// redeemed stay redeemed; the remainder becomes unredeemable.
func (c *Coordinator) VoidClaim(ctx context.Context, actor, issuanceKey, reasonHash string) (domain.Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Claim
	err := c.store.Update(ctx, func(tx store.Tx) error {
		if _, err := requireAuthority(ctx, tx, actor); err != nil {
			return err
		}
		claim, ok, err := tx.GetClaimByIssuanceKey(ctx, issuanceKey)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrClaimNotFound
		}
		if claim.Voided {
			return domain.ErrAlreadyVoided
		}
		claim.Voided = true
		claim.ReasonHash = reasonHash
		if err := tx.UpdateClaim(ctx, claim); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, domain.EventClaimVoided, claim.ClaimID, actor, map[string]any{
			"issuance_key": issuanceKey,
			"reason_hash":  reasonHash,
		}, now); err != nil {
			return err
		}
		out = claim
		return nil
	})
	if err != nil {
		return domain.Claim{}, wrap("void claim", err)
	}
	c.log.Info("claim voided", "claim_id", out.ClaimID, "actor", actor)
	return out, nil
}
