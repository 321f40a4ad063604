package domain

import (
	"errors"
	"testing"
	"time"
)

var vestBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func fourYearStake(units int64) Stake {
	return Stake{
		StakeID:   "stk_test",
		Owner:     "prn_alice",
		UnitType:  UnitShare,
		Units:     units,
		VestStart: vestBase,
		VestCliff: vestBase.Add(day(365)),
		VestEnd:   vestBase.Add(day(1460)),
	}
}

func TestLinearVestingSchedule(t *testing.T) {
	s := fourYearStake(1000)
	cases := []struct {
		at   time.Time
		want int64
	}{
		{vestBase, 0},
		{vestBase.Add(day(364)), 0},
		{vestBase.Add(day(365)), 250},
		{vestBase.Add(day(730)), 500},
		{vestBase.Add(day(1460)), 1000},
		{vestBase.Add(day(1825)), 1000},
	}
	for _, c := range cases {
		if got := s.VestedUnits(c.at); got != c.want {
			t.Fatalf("vested at %s = %d, want %d", c.at.Format(time.RFC3339), got, c.want)
		}
		if got := s.UnvestedUnits(c.at); got != s.Units-c.want {
			t.Fatalf("unvested at %s = %d, want %d", c.at.Format(time.RFC3339), got, s.Units-c.want)
		}
	}
}

func TestVestingTruncatesTowardZero(t *testing.T) {
	s := Stake{Units: 3, VestStart: vestBase, VestCliff: vestBase, VestEnd: vestBase.Add(day(4))}
	if got := s.VestedUnits(vestBase.Add(day(1))); got != 0 {
		t.Fatalf("vested at day 1 = %d, want 0 (3*1/4 truncated)", got)
	}
	if got := s.VestedUnits(vestBase.Add(day(3))); got != 2 {
		t.Fatalf("vested at day 3 = %d, want 2 (3*3/4 truncated)", got)
	}
}

func TestVestingMonotonicWithoutCliff(t *testing.T) {
	s := Stake{Units: 1000, VestStart: vestBase, VestCliff: vestBase, VestEnd: vestBase.Add(day(1460))}
	prev := int64(-1)
	for d := 0; d <= 1460; d += 10 {
		got := s.VestedUnits(vestBase.Add(day(d)))
		if got < prev {
			t.Fatalf("vested decreased at day %d: %d after %d", d, got, prev)
		}
		prev = got
	}
	if prev != 1000 {
		t.Fatalf("vested at end = %d, want 1000", prev)
	}
}

func TestImmediateScheduleFullyVested(t *testing.T) {
	s := Stake{Units: 42, VestStart: vestBase, VestCliff: vestBase, VestEnd: vestBase}
	if got := s.VestedUnits(vestBase); got != 42 {
		t.Fatalf("vested at start = %d, want 42", got)
	}
	if got := s.VestedUnits(vestBase.Add(day(9000))); got != 42 {
		t.Fatalf("vested much later = %d, want 42", got)
	}
	if got := s.VestedUnits(vestBase.Add(-time.Second)); got != 0 {
		t.Fatalf("vested before start = %d, want 0", got)
	}
}

func TestLargeUnitsDoNotOverflow(t *testing.T) {
	s := Stake{
		Units:     1 << 62,
		VestStart: vestBase,
		VestCliff: vestBase,
		VestEnd:   vestBase.Add(day(1460)),
	}
	got := s.VestedUnits(vestBase.Add(day(730)))
	if got != 1<<61 {
		t.Fatalf("vested at midpoint = %d, want %d", got, int64(1)<<61)
	}
}

func TestRevocationUnvestedOnlyFreezesHorizon(t *testing.T) {
	s := fourYearStake(1000)
	revokedAt := vestBase.Add(day(730))
	r, err := s.ApplyRevocation(RevocationUnvestedOnly, revokedAt)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if r.Units != 500 || r.RevokedUnits != 500 {
		t.Fatalf("after revocation units=%d revokedUnits=%d, want 500/500", r.Units, r.RevokedUnits)
	}
	if !r.Revoked || r.RevokedAt == nil || !r.RevokedAt.Equal(revokedAt) {
		t.Fatalf("revocation metadata wrong: %+v", r)
	}
	for _, later := range []time.Time{revokedAt, revokedAt.Add(day(365)), revokedAt.Add(day(3650))} {
		if got := r.VestedUnits(later); got != 500 {
			t.Fatalf("vested at %s = %d, want frozen 500", later.Format(time.RFC3339), got)
		}
		if got := r.UnvestedUnits(later); got != 0 {
			t.Fatalf("unvested at %s = %d, want 0", later.Format(time.RFC3339), got)
		}
	}
}

func TestRevokedStakeReportsHistoricalVesting(t *testing.T) {
	s := fourYearStake(1000)
	r, err := s.ApplyRevocation(RevocationUnvestedOnly, vestBase.Add(day(730)))
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got := r.VestedUnits(vestBase.Add(day(547))); got != 374 {
		t.Fatalf("historical vested = %d, want 374 (1000*547/1460)", got)
	}
	if got := r.VestedUnits(vestBase.Add(day(100))); got != 0 {
		t.Fatalf("historical vested before cliff = %d, want 0", got)
	}
}

func TestRevocationAnyClawsEverything(t *testing.T) {
	s := fourYearStake(1000)
	r, err := s.ApplyRevocation(RevocationAny, vestBase.Add(day(1095)))
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if r.Units != 0 || r.RevokedUnits != 1000 {
		t.Fatalf("after ANY revocation units=%d revokedUnits=%d, want 0/1000", r.Units, r.RevokedUnits)
	}
	if got := r.VestedUnits(vestBase.Add(day(9000))); got != 0 {
		t.Fatalf("vested after full clawback = %d, want 0", got)
	}
}

func TestRevocationAnyAllowsFullyVested(t *testing.T) {
	s := fourYearStake(1000)
	at := vestBase.Add(day(2000))
	if got := s.VestedUnits(at); got != 1000 {
		t.Fatalf("precondition: vested = %d, want 1000", got)
	}
	if _, err := s.ApplyRevocation(RevocationAny, at); err != nil {
		t.Fatalf("ANY revocation of fully vested stake failed: %v", err)
	}
}

func TestRevocationUnvestedOnlyRejectsFullyVested(t *testing.T) {
	s := fourYearStake(1000)
	_, err := s.ApplyRevocation(RevocationUnvestedOnly, vestBase.Add(day(2000)))
	if !errors.Is(err, ErrStakeFullyVested) {
		t.Fatalf("expected ErrStakeFullyVested, got %v", err)
	}
}

func TestRevocationDisabledMode(t *testing.T) {
	s := fourYearStake(1000)
	_, err := s.ApplyRevocation(RevocationNone, vestBase.Add(day(10)))
	if !errors.Is(err, ErrRevocationDisabled) {
		t.Fatalf("expected ErrRevocationDisabled, got %v", err)
	}
}

func TestRevocationIsTerminal(t *testing.T) {
	s := fourYearStake(1000)
	r, err := s.ApplyRevocation(RevocationUnvestedOnly, vestBase.Add(day(730)))
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := r.ApplyRevocation(RevocationAny, vestBase.Add(day(731))); !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
}

func TestValidVestingOrder(t *testing.T) {
	a, b, c := vestBase, vestBase.Add(day(1)), vestBase.Add(day(2))
	if !ValidVestingOrder(a, b, c) || !ValidVestingOrder(a, a, a) || !ValidVestingOrder(a, a, c) {
		t.Fatalf("valid orders rejected")
	}
	if ValidVestingOrder(b, a, c) {
		t.Fatalf("cliff before start accepted")
	}
	if ValidVestingOrder(a, c, b) {
		t.Fatalf("end before cliff accepted")
	}
}
