package domain

import "time"

type UnitType string

const (
	UnitShare  UnitType = "SHARE"
	UnitOption UnitType = "OPTION"
	UnitRight  UnitType = "RIGHT"
)

func (u UnitType) Valid() bool {
	switch u {
	case UnitShare, UnitOption, UnitRight:
		return true
	default:
		return false
	}
}

// Claim is one non-transferable issuance record. RedeemedUnits only ever
// grows, never past MaxUnits; FullyRedeemed holds exactly when they are equal.
type Claim struct {
	ClaimID       string    `json:"claim_id"`
	Owner         string    `json:"owner"`
	PactID        string    `json:"pact_id"`
	MaxUnits      int64     `json:"max_units"`
	UnitType      UnitType  `json:"unit_type"`
	RedeemedUnits int64     `json:"redeemed_units"`
	Voided        bool      `json:"voided"`
	ReasonHash    string    `json:"reason_hash,omitempty"`
	FullyRedeemed bool      `json:"fully_redeemed"`
	RedeemableAt  time.Time `json:"redeemable_at"`
	IssuanceKey   string    `json:"issuance_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// RemainingUnits reports how many units can still be redeemed. A voided claim
// has nothing left to redeem regardless of its cursor.
func (c Claim) RemainingUnits() int64 {
	if c.Voided {
		return 0
	}
	return c.MaxUnits - c.RedeemedUnits
}

// Redeemable reports whether a redemption may consume the claim at now.
func (c Claim) Redeemable(now time.Time) bool {
	return !c.Voided && !c.FullyRedeemed && !now.Before(c.RedeemableAt)
}
