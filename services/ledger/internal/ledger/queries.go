package ledger

import (
	"context"
	"strings"
	"time"

	"grantlane/pkg/domain"
	"grantlane/services/ledger/internal/store"
)

// GetPact returns the pact or PACT_NOT_FOUND.
func (c *Coordinator) GetPact(ctx context.Context, pactID string) (domain.Pact, error) {
	var out domain.Pact
	err := c.store.View(ctx, func(tx store.Tx) error {
		pact, ok, err := tx.GetPact(ctx, pactID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPactNotFound
		}
		out = pact
		return nil
	})
	return out, err
}

// TryGetPact is the non-failing probe: absence is reported in the boolean,
// never as an error.
func (c *Coordinator) TryGetPact(ctx context.Context, pactID string) (domain.Pact, bool, error) {
	var (
		out   domain.Pact
		found bool
	)
	err := c.store.View(ctx, func(tx store.Tx) error {
		pact, ok, err := tx.GetPact(ctx, pactID)
		if err != nil {
			return err
		}
		out, found = pact, ok
		return nil
	})
	return out, found, err
}

func (c *Coordinator) GetClaim(ctx context.Context, claimID string) (domain.Claim, error) {
	var out domain.Claim
	err := c.store.View(ctx, func(tx store.Tx) error {
		claim, ok, err := tx.GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrClaimNotFound
		}
		out = claim
		return nil
	})
	return out, err
}

func (c *Coordinator) GetClaimByIssuanceKey(ctx context.Context, key string) (domain.Claim, error) {
	var out domain.Claim
	err := c.store.View(ctx, func(tx store.Tx) error {
		claim, ok, err := tx.GetClaimByIssuanceKey(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrClaimNotFound
		}
		out = claim
		return nil
	})
	return out, err
}

func (c *Coordinator) GetStake(ctx context.Context, stakeID string) (domain.Stake, error) {
	var out domain.Stake
	err := c.store.View(ctx, func(tx store.Tx) error {
		stake, ok, err := tx.GetStake(ctx, stakeID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStakeNotFound
		}
		out = stake
		return nil
	})
	return out, err
}

func (c *Coordinator) GetStakeByRedemptionKey(ctx context.Context, key string) (domain.Stake, error) {
	var out domain.Stake
	err := c.store.View(ctx, func(tx store.Tx) error {
		stake, ok, err := tx.GetStakeByRedemptionKey(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStakeNotFound
		}
		out = stake
		return nil
	})
	return out, err
}

// VestingStatus is a stake's vested split evaluated at a single instant.
type VestingStatus struct {
	Stake    domain.Stake
	At       time.Time
	Vested   int64
	Unvested int64
}

// VestingAt evaluates the stake's schedule at the given instant, or at the
// current time when at is nil. Revoked stakes answer from their frozen
// horizon whatever instant is asked for.
func (c *Coordinator) VestingAt(ctx context.Context, stakeID string, at *time.Time) (VestingStatus, error) {
	eval := c.now()
	if at != nil {
		eval = *at
	}
	stake, err := c.GetStake(ctx, stakeID)
	if err != nil {
		return VestingStatus{}, err
	}
	vested := stake.VestedUnits(eval)
	return VestingStatus{
		Stake:    stake,
		At:       eval,
		Vested:   vested,
		Unvested: stake.Units - vested,
	}, nil
}

// LockStatus reports a record's transfer lock. Claims and stakes are bound to
// their holder for life, so Locked is true for every record that exists;
// custodial movement after transition is an ownership correction, not an
// unlock.
type LockStatus struct {
	RecordID string
	Kind     string
	Owner    string
	Locked   bool
	URI      string
}

func (c *Coordinator) RecordLock(ctx context.Context, recordID string) (LockStatus, error) {
	var out LockStatus
	err := c.store.View(ctx, func(tx store.Tx) error {
		ctl, _, err := tx.GetControl(ctx)
		if err != nil {
			return err
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
			out = LockStatus{RecordID: recordID, Kind: "claim", Owner: claim.Owner, Locked: true}
			if ctl.ClaimBaseURI != "" {
				out.URI = ctl.ClaimBaseURI + recordID
			}
		case strings.HasPrefix(recordID, "stk_"):
			stake, ok, err := tx.GetStake(ctx, recordID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrRecordNotFound
			}
			out = LockStatus{RecordID: recordID, Kind: "stake", Owner: stake.Owner, Locked: true}
			if ctl.StakeBaseURI != "" {
				out.URI = ctl.StakeBaseURI + recordID
			}
		default:
			return domain.ErrRecordNotFound
		}
		return nil
	})
	return out, err
}

// Control returns the control singleton.
func (c *Coordinator) Control(ctx context.Context) (domain.Control, error) {
	var out domain.Control
	err := c.store.View(ctx, func(tx store.Tx) error {
		ctl, ok, err := tx.GetControl(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrRecordNotFound
		}
		out = ctl
		return nil
	})
	return out, err
}

// EventsForRecord returns the record's audit trail in chain order.
func (c *Coordinator) EventsForRecord(ctx context.Context, recordID string) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	err := c.store.View(ctx, func(tx store.Tx) error {
		events, err := tx.EventsForRecord(ctx, recordID)
		if err != nil {
			return err
		}
		out = events
		return nil
	})
	return out, err
}

// Events pages through the audit chain from a sequence number, capped at 500
// per call. Auditors replay pages in order and verify each link's hash.
func (c *Coordinator) Events(ctx context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []domain.LedgerEvent
	err := c.store.View(ctx, func(tx store.Tx) error {
		events, err := tx.ListEvents(ctx, fromSeq, limit)
		if err != nil {
			return err
		}
		out = events
		return nil
	})
	return out, err
}

// ChainHead returns the newest audit event, if any exists yet.
func (c *Coordinator) ChainHead(ctx context.Context) (domain.LedgerEvent, bool, error) {
	var (
		out   domain.LedgerEvent
		found bool
	)
	err := c.store.View(ctx, func(tx store.Tx) error {
		head, ok, err := tx.ChainHead(ctx)
		if err != nil {
			return err
		}
		out, found = head, ok
		return nil
	})
	return out, found, err
}
