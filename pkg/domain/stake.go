package domain

import (
	"fmt"
	"math/bits"
	"time"
)

// Stake is one non-transferable redemption record carrying a linear vesting
// schedule. Units is the currently retained amount: the full redeemed amount
// until revocation, the frozen post-revocation amount afterwards.
type Stake struct {
	StakeID       string     `json:"stake_id"`
	Owner         string     `json:"owner"`
	ClaimID       string     `json:"claim_id"`
	UnitType      UnitType   `json:"unit_type"`
	Units         int64      `json:"units"`
	VestStart     time.Time  `json:"vest_start"`
	VestCliff     time.Time  `json:"vest_cliff"`
	VestEnd       time.Time  `json:"vest_end"`
	Revoked       bool       `json:"revoked"`
	RevokedUnits  int64      `json:"revoked_units"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RedemptionKey string     `json:"redemption_key"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ValidVestingOrder checks vestStart <= vestCliff <= vestEnd.
func ValidVestingOrder(start, cliff, end time.Time) bool {
	return !cliff.Before(start) && !end.Before(cliff)
}

// VestedUnits reports how many of the stake's retained units are vested at t.
// Revocation fixes the evaluation horizon: the stored revocation time caps t,
// the original total (retained + revoked) feeds the formula, and the result is
// clamped to the retained amount. At any t at or past the revocation time the
// answer is therefore exactly Units, forever.
func (s Stake) VestedUnits(t time.Time) int64 {
	total := s.Units
	if s.Revoked {
		total += s.RevokedUnits
		if s.RevokedAt != nil && t.After(*s.RevokedAt) {
			t = *s.RevokedAt
		}
	}
	v := linearVested(total, s.VestStart, s.VestCliff, s.VestEnd, t)
	if v > s.Units {
		v = s.Units
	}
	return v
}

// UnvestedUnits is always Units - VestedUnits(t).
func (s Stake) UnvestedUnits(t time.Time) int64 {
	return s.Units - s.VestedUnits(t)
}

// linearVested: 0 before the cliff, everything at or past the end, otherwise
// units * elapsed / span in whole seconds, truncated toward zero. The
// remainder stays unvested until a later evaluation crosses it. An empty
// schedule (start == cliff == end) is fully vested at any t >= start.
func linearVested(units int64, start, cliff, end, t time.Time) int64 {
	if units <= 0 {
		return 0
	}
	if t.Before(cliff) {
		return 0
	}
	if !t.Before(end) {
		return units
	}
	elapsed := t.Unix() - start.Unix()
	if elapsed <= 0 {
		return 0
	}
	span := end.Unix() - start.Unix()
	// elapsed < span here, so the 128-bit quotient fits in units' range.
	hi, lo := bits.Mul64(uint64(units), uint64(elapsed))
	q, _ := bits.Div64(hi, lo, uint64(span))
	return int64(q)
}

// ApplyRevocation returns the stake after clawback under the pact's policy,
// leaving the receiver untouched. now becomes the frozen evaluation horizon.
func (s Stake) ApplyRevocation(mode RevocationMode, now time.Time) (Stake, error) {
	if s.Revoked {
		return s, ErrAlreadyRevoked
	}
	switch mode {
	case RevocationNone:
		return s, ErrRevocationDisabled
	case RevocationUnvestedOnly:
		vested := s.VestedUnits(now)
		if vested == s.Units {
			return s, ErrStakeFullyVested
		}
		s.RevokedUnits = s.Units - vested
		s.Units = vested
	case RevocationAny:
		s.RevokedUnits = s.Units
		s.Units = 0
	default:
		return s, fmt.Errorf("unknown revocation mode %q", mode)
	}
	s.Revoked = true
	at := now
	s.RevokedAt = &at
	return s, nil
}
