package ledger

import (
	"context"
	"fmt"

	"grantlane/pkg/domain"
	"grantlane/services/ledger/internal/store"
)

// RevokeStake claws back a stake under the revocation mode of the pact its
// claim was issued against. UNVESTED_ONLY keeps the vested portion and
// freezes vesting at the revocation time; ANY takes everything regardless of
// vesting. Revocation is terminal either way.
func (c *Coordinator) RevokeStake(ctx context.Context, actor, stakeID, reasonHash string) (domain.Stake, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out domain.Stake
	err := c.store.Update(ctx, func(tx store.Tx) error {
		if _, err := requireAuthority(ctx, tx, actor); err != nil {
			return err
		}
		stake, ok, err := tx.GetStake(ctx, stakeID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStakeNotFound
		}
		claim, ok, err := tx.GetClaim(ctx, stake.ClaimID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("stake %s references missing claim %s", stakeID, stake.ClaimID)
		}
		pact, ok, err := tx.GetPact(ctx, claim.PactID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("claim %s references missing pact %s", claim.ClaimID, claim.PactID)
		}
		revoked, err := stake.ApplyRevocation(pact.RevocationMode, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateStake(ctx, revoked); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, domain.EventStakeRevoked, revoked.StakeID, actor, map[string]any{
			"mode":           string(pact.RevocationMode),
			"revoked_units":  revoked.RevokedUnits,
			"retained_units": revoked.Units,
			"reason_hash":    reasonHash,
		}, now); err != nil {
			return err
		}
		out = revoked
		return nil
	})
	if err != nil {
		return domain.Stake{}, wrap("revoke stake", err)
	}
	c.log.Info("stake revoked", "stake_id", out.StakeID, "revoked_units", out.RevokedUnits, "retained_units", out.Units, "actor", actor)
	return out, nil
}
