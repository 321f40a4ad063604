package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"grantlane/pkg/domain"
)

func TestIssueCreatesClaim(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	claim, err := c.Issue(ctx, testAuthority, IssueParams{
		IssuanceKey:  "grant-2025-001",
		Recipient:    "hld_alice",
		PactID:       pact.PactID,
		MaxUnits:     1000,
		UnitType:     domain.UnitOption,
		RedeemableAt: day(30),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(claim.ClaimID, "clm_") {
		t.Fatalf("claim id %q missing clm_ prefix", claim.ClaimID)
	}
	if claim.Owner != "hld_alice" || claim.MaxUnits != 1000 || claim.RedeemedUnits != 0 {
		t.Fatalf("claim = %+v", claim)
	}
	if claim.Voided || claim.FullyRedeemed {
		t.Fatalf("fresh claim must be live: %+v", claim)
	}

	byKey, err := c.GetClaimByIssuanceKey(ctx, "grant-2025-001")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ClaimID != claim.ClaimID {
		t.Fatalf("lookup by key = %q, want %q", byKey.ClaimID, claim.ClaimID)
	}

	events, err := c.EventsForRecord(ctx, claim.ClaimID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventClaimIssued {
		t.Fatalf("events = %+v, want one CLAIM_ISSUED", events)
	}
}

func TestIssueReplayReturnsOriginalClaim(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	params := IssueParams{
		IssuanceKey:  "grant-2025-001",
		Recipient:    "hld_alice",
		PactID:       pact.PactID,
		MaxUnits:     1000,
		UnitType:     domain.UnitShare,
		RedeemableAt: day(30),
	}
	first, err := c.Issue(ctx, testAuthority, params)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	replay, err := c.Issue(ctx, testAuthority, params)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.ClaimID != first.ClaimID {
		t.Fatalf("replay claim = %q, want %q", replay.ClaimID, first.ClaimID)
	}

	// No second issuance event was recorded.
	events, err := c.EventsForRecord(ctx, first.ClaimID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("replay appended events: %d, want 1", len(events))
	}
}

func TestIssueReplayWithDifferentParamsFails(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")
	mustIssue(t, c, pact.PactID, "grant-2025-001", 1000)

	cases := []struct {
		name string
		p    IssueParams
	}{
		{"different units", IssueParams{IssuanceKey: "grant-2025-001", Recipient: "hld_alice", PactID: pact.PactID, MaxUnits: 999, UnitType: domain.UnitShare}},
		{"different recipient", IssueParams{IssuanceKey: "grant-2025-001", Recipient: "hld_bob", PactID: pact.PactID, MaxUnits: 1000, UnitType: domain.UnitShare}},
		{"different unit type", IssueParams{IssuanceKey: "grant-2025-001", Recipient: "hld_alice", PactID: pact.PactID, MaxUnits: 1000, UnitType: domain.UnitOption}},
		{"different redeemable at", IssueParams{IssuanceKey: "grant-2025-001", Recipient: "hld_alice", PactID: pact.PactID, MaxUnits: 1000, UnitType: domain.UnitShare, RedeemableAt: day(1)}},
	}
	for _, tc := range cases {
		if _, err := c.Issue(ctx, testAuthority, tc.p); !errors.Is(err, domain.ErrIdempotenceMismatch) {
			t.Fatalf("%s: err = %v, want ErrIdempotenceMismatch", tc.name, err)
		}
	}
}

func TestIssuePreconditions(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	_, err := c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "k1", Recipient: "  ", PactID: pact.PactID, MaxUnits: 10, UnitType: domain.UnitShare})
	if !errors.Is(err, domain.ErrInvalidRecipient) {
		t.Fatalf("blank recipient err = %v, want ErrInvalidRecipient", err)
	}
	_, err = c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "k2", Recipient: "hld_a", PactID: pact.PactID, MaxUnits: 0, UnitType: domain.UnitShare})
	if !errors.Is(err, domain.ErrInvalidUnits) {
		t.Fatalf("zero units err = %v, want ErrInvalidUnits", err)
	}
	_, err = c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "k3", Recipient: "hld_a", PactID: pact.PactID, MaxUnits: -5, UnitType: domain.UnitShare})
	if !errors.Is(err, domain.ErrInvalidUnits) {
		t.Fatalf("negative units err = %v, want ErrInvalidUnits", err)
	}
	_, err = c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "k4", Recipient: "hld_a", PactID: pact.PactID, MaxUnits: 10, UnitType: "BOND"})
	if !errors.Is(err, domain.ErrInvalidUnitType) {
		t.Fatalf("bad unit type err = %v, want ErrInvalidUnitType", err)
	}
	_, err = c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "k5", Recipient: "hld_a", PactID: "pct_missing", MaxUnits: 10, UnitType: domain.UnitShare})
	if !errors.Is(err, domain.ErrPactNotFound) {
		t.Fatalf("missing pact err = %v, want ErrPactNotFound", err)
	}
	var fe *domain.FieldError
	_, err = c.Issue(ctx, testAuthority, IssueParams{IssuanceKey: "", Recipient: "hld_a", PactID: pact.PactID, MaxUnits: 10, UnitType: domain.UnitShare})
	if !errors.As(err, &fe) || fe.Field != "issuance_key" {
		t.Fatalf("blank key err = %v, want FieldError{issuance_key}", err)
	}

	// None of the failures burned an issuance key.
	if _, err := c.GetClaimByIssuanceKey(ctx, "k1"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("failed issue left a claim behind: %v", err)
	}
}

func TestIssueBatchIsAtomic(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	_, err := c.IssueBatch(ctx, testAuthority, BatchIssueParams{
		IssuanceKeys:  []string{"b-1", "b-2", "b-3"},
		Recipients:    []string{"hld_a", "hld_b", "hld_c"},
		PactIDs:       []string{pact.PactID, "pct_missing", pact.PactID},
		MaxUnits:      []int64{100, 200, 300},
		UnitTypes:     []domain.UnitType{domain.UnitShare, domain.UnitShare, domain.UnitShare},
		RedeemableAts: []time.Time{{}, {}, {}},
	})
	var bie *domain.BatchItemError
	if !errors.As(err, &bie) {
		t.Fatalf("err = %v, want BatchItemError", err)
	}
	if bie.Index != 1 {
		t.Fatalf("failing index = %d, want 1", bie.Index)
	}
	if !errors.Is(err, domain.ErrPactNotFound) {
		t.Fatalf("cause = %v, want ErrPactNotFound through the wrapper", err)
	}

	// The aborted batch left nothing behind; the first element's key is free.
	if _, err := c.GetClaimByIssuanceKey(ctx, "b-1"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("element before failure persisted: %v", err)
	}
	claims, err := c.IssueBatch(ctx, testAuthority, BatchIssueParams{
		IssuanceKeys:  []string{"b-1", "b-2", "b-3"},
		Recipients:    []string{"hld_a", "hld_b", "hld_c"},
		PactIDs:       []string{pact.PactID, pact.PactID, pact.PactID},
		MaxUnits:      []int64{100, 200, 300},
		UnitTypes:     []domain.UnitType{domain.UnitShare, domain.UnitShare, domain.UnitShare},
		RedeemableAts: []time.Time{{}, {}, {}},
	})
	if err != nil {
		t.Fatalf("retry batch: %v", err)
	}
	if len(claims) != 3 {
		t.Fatalf("claims = %d, want 3", len(claims))
	}
	for i, cl := range claims {
		if cl.MaxUnits != []int64{100, 200, 300}[i] {
			t.Fatalf("claim %d units = %d", i, cl.MaxUnits)
		}
	}
}

func TestIssueBatchShape(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	_, err := c.IssueBatch(ctx, testAuthority, BatchIssueParams{})
	if !errors.Is(err, domain.ErrArrayLengthMismatch) {
		t.Fatalf("empty batch err = %v, want ErrArrayLengthMismatch", err)
	}
	_, err = c.IssueBatch(ctx, testAuthority, BatchIssueParams{
		IssuanceKeys:  []string{"b-1", "b-2"},
		Recipients:    []string{"hld_a"},
		PactIDs:       []string{pact.PactID, pact.PactID},
		MaxUnits:      []int64{100, 200},
		UnitTypes:     []domain.UnitType{domain.UnitShare, domain.UnitShare},
		RedeemableAts: []time.Time{{}, {}},
	})
	if !errors.Is(err, domain.ErrArrayLengthMismatch) {
		t.Fatalf("ragged batch err = %v, want ErrArrayLengthMismatch", err)
	}
}

func TestIssueBatchReplaysDuplicateKeyWithinBatch(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	claims, err := c.IssueBatch(ctx, testAuthority, BatchIssueParams{
		IssuanceKeys:  []string{"dup", "dup"},
		Recipients:    []string{"hld_a", "hld_a"},
		PactIDs:       []string{pact.PactID, pact.PactID},
		MaxUnits:      []int64{100, 100},
		UnitTypes:     []domain.UnitType{domain.UnitShare, domain.UnitShare},
		RedeemableAts: []time.Time{{}, {}},
	})
	if err != nil {
		t.Fatalf("batch with identical duplicates: %v", err)
	}
	if claims[0].ClaimID != claims[1].ClaimID {
		t.Fatalf("identical duplicate keys minted two claims: %q %q", claims[0].ClaimID, claims[1].ClaimID)
	}

	_, err = c.IssueBatch(ctx, testAuthority, BatchIssueParams{
		IssuanceKeys:  []string{"dup2", "dup2"},
		Recipients:    []string{"hld_a", "hld_a"},
		PactIDs:       []string{pact.PactID, pact.PactID},
		MaxUnits:      []int64{100, 999},
		UnitTypes:     []domain.UnitType{domain.UnitShare, domain.UnitShare},
		RedeemableAts: []time.Time{{}, {}},
	})
	var bie *domain.BatchItemError
	if !errors.As(err, &bie) || bie.Index != 1 || !errors.Is(err, domain.ErrIdempotenceMismatch) {
		t.Fatalf("conflicting duplicate err = %v, want BatchItemError{1, ErrIdempotenceMismatch}", err)
	}
	// Atomicity again: the conflicting batch rolled back its first element.
	if _, err := c.GetClaimByIssuanceKey(ctx, "dup2"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("aborted batch persisted dup2: %v", err)
	}
}

func TestVoidClaim(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")
	claim := mustIssue(t, c, pact.PactID, "grant-2025-001", 1000)
	mustRedeem(t, c, claim.ClaimID, "rdm-1", 400, testBase, testBase, testBase)

	voided, err := c.VoidClaim(ctx, testAuthority, "grant-2025-001", "sha256:termination")
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !voided.Voided || voided.ReasonHash != "sha256:termination" {
		t.Fatalf("voided claim = %+v", voided)
	}
	if voided.RemainingUnits() != 0 {
		t.Fatalf("remaining = %d, want 0 after void", voided.RemainingUnits())
	}
	// The already redeemed portion stays on the books.
	if voided.RedeemedUnits != 400 {
		t.Fatalf("redeemed = %d, want 400", voided.RedeemedUnits)
	}

	_, err = c.Redeem(ctx, testAuthority, RedeemParams{
		RedemptionKey: "rdm-2", ClaimID: claim.ClaimID, Units: 100,
		UnitType: domain.UnitShare, VestStart: testBase, VestCliff: testBase, VestEnd: testBase,
	})
	if !errors.Is(err, domain.ErrNotRedeemable) {
		t.Fatalf("redeem voided err = %v, want ErrNotRedeemable", err)
	}

	if _, err := c.VoidClaim(ctx, testAuthority, "grant-2025-001", ""); !errors.Is(err, domain.ErrAlreadyVoided) {
		t.Fatalf("double void err = %v, want ErrAlreadyVoided", err)
	}
	if _, err := c.VoidClaim(ctx, testAuthority, "no-such-key", ""); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Fatalf("void missing err = %v, want ErrClaimNotFound", err)
	}
}
