package ledger

import (
	"context"
	"strings"
	"time"

	"grantlane/pkg/domain"
	"grantlane/pkg/identity"
	"grantlane/services/ledger/internal/store"
)

type RedeemParams struct {
	RedemptionKey string
	ClaimID       string
	Units         int64
	UnitType      domain.UnitType
	VestStart     time.Time
	VestCliff     time.Time
	VestEnd       time.Time
	Note          string
}

type redeemFingerprint struct {
	ClaimID   string `json:"claim_id"`
	Units     int64  `json:"units"`
	UnitType  string `json:"unit_type"`
	VestStart string `json:"vest_start"`
	VestCliff string `json:"vest_cliff"`
	VestEnd   string `json:"vest_end"`
	Note      string `json:"note"`
}

func (p RedeemParams) fingerprint() (string, error) {
	return identity.Fingerprint(redeemFingerprint{
		ClaimID:   p.ClaimID,
		Units:     p.Units,
		UnitType:  string(p.UnitType),
		VestStart: p.VestStart.UTC().Format(time.RFC3339Nano),
		VestCliff: p.VestCliff.UTC().Format(time.RFC3339Nano),
		VestEnd:   p.VestEnd.UTC().Format(time.RFC3339Nano),
		Note:      p.Note,
	})
}

// Redeem converts part or all of a claim's remaining units into a vesting
// stake. Precondition failures surface in a fixed order: missing claim, then
// vesting order, then redeemability, then the unit range. The redemption key
// replay contract mirrors issuance, and the replay check runs before the
// preconditions so that a retry of a completed redemption still returns its
// stake after the claim has moved on.
func (c *Coordinator) Redeem(ctx context.Context, actor string, p RedeemParams) (domain.Stake, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Stake
	err := c.store.Update(ctx, func(tx store.Tx) error {
		if _, err := requireAuthority(ctx, tx, actor); err != nil {
			return err
		}
		stake, err := c.redeemOne(ctx, tx, actor, p, now)
		if err != nil {
			return err
		}
		out = stake
		return nil
	})
	if err != nil {
		return domain.Stake{}, wrap("redeem", err)
	}
	c.log.Info("claim redeemed", "stake_id", out.StakeID, "claim_id", out.ClaimID, "units", out.Units, "actor", actor)
	return out, nil
}

func (c *Coordinator) redeemOne(ctx context.Context, tx store.Tx, actor string, p RedeemParams, now time.Time) (domain.Stake, error) {
	if strings.TrimSpace(p.RedemptionKey) == "" {
		return domain.Stake{}, &domain.FieldError{Field: "redemption_key", Reason: "must be non-empty"}
	}
	fp, err := p.fingerprint()
	if err != nil {
		return domain.Stake{}, err
	}
	if rec, ok, err := tx.GetIdempotencyRecord(ctx, store.IdemRedeem, p.RedemptionKey); err != nil {
		return domain.Stake{}, err
	} else if ok {
		if rec.ParamsHash != fp {
			return domain.Stake{}, domain.ErrIdempotenceMismatch
		}
		existing, ok, err := tx.GetStake(ctx, rec.RecordID)
		if err != nil {
			return domain.Stake{}, err
		}
		if !ok {
			return domain.Stake{}, domain.ErrStakeNotFound
		}
		return existing, nil
	}
	claim, ok, err := tx.GetClaim(ctx, p.ClaimID)
	if err != nil {
		return domain.Stake{}, err
	}
	if !ok {
		return domain.Stake{}, domain.ErrClaimNotFound
	}
	if !domain.ValidVestingOrder(p.VestStart, p.VestCliff, p.VestEnd) {
		return domain.Stake{}, domain.ErrInvalidVesting
	}
	if !claim.Redeemable(now) {
		return domain.Stake{}, domain.ErrNotRedeemable
	}
	if p.Units <= 0 || p.Units > claim.RemainingUnits() {
		return domain.Stake{}, domain.ErrInvalidUnits
	}
	if !p.UnitType.Valid() {
		return domain.Stake{}, domain.ErrInvalidUnitType
	}

	claim.RedeemedUnits += p.Units
	claim.FullyRedeemed = claim.RedeemedUnits == claim.MaxUnits
	if err := tx.UpdateClaim(ctx, claim); err != nil {
		return domain.Stake{}, err
	}
	stake := domain.Stake{
		StakeID:       newStakeID(),
		Owner:         claim.Owner,
		ClaimID:       claim.ClaimID,
		UnitType:      p.UnitType,
		Units:         p.Units,
		VestStart:     p.VestStart,
		VestCliff:     p.VestCliff,
		VestEnd:       p.VestEnd,
		RedemptionKey: p.RedemptionKey,
		Note:          p.Note,
		CreatedAt:     now,
	}
	if err := tx.InsertStake(ctx, stake); err != nil {
		return domain.Stake{}, err
	}
	if err := tx.SaveIdempotencyRecord(ctx, store.IdemRedeem, p.RedemptionKey, store.IdempotencyRecord{
		ParamsHash: fp,
		RecordID:   stake.StakeID,
	}); err != nil {
		return domain.Stake{}, err
	}
	if err := appendEvent(ctx, tx, domain.EventClaimRedeemed, claim.ClaimID, actor, map[string]any{
		"stake_id":       stake.StakeID,
		"units":          p.Units,
		"redeemed_units": claim.RedeemedUnits,
		"fully_redeemed": claim.FullyRedeemed,
	}, now); err != nil {
		return domain.Stake{}, err
	}
	if err := appendEvent(ctx, tx, domain.EventStakeCreated, stake.StakeID, actor, map[string]any{
		"claim_id":       stake.ClaimID,
		"owner":          stake.Owner,
		"units":          stake.Units,
		"unit_type":      string(stake.UnitType),
		"redemption_key": stake.RedemptionKey,
	}, now); err != nil {
		return domain.Stake{}, err
	}
	return stake, nil
}
