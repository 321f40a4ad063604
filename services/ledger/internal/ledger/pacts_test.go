package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"grantlane/pkg/domain"
)

func TestPactIdentityIsContentAddressed(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	pact, err := c.CreatePact(ctx, testAuthority, domain.PactParams{
		ContentHash:    "sha256:aaaa",
		Version:        "v1",
		RevocationMode: domain.RevocationNone,
	})
	if err != nil {
		t.Fatalf("create pact: %v", err)
	}
	if want := c.DerivePactID("sha256:aaaa", "v1"); pact.PactID != want {
		t.Fatalf("pact id = %q, want derivable %q", pact.PactID, want)
	}
	if !strings.HasPrefix(pact.PactID, "pct_") {
		t.Fatalf("pact id %q missing pct_ prefix", pact.PactID)
	}
	if pact.IssuerID != c.IssuerID() {
		t.Fatalf("issuer id = %q, want %q", pact.IssuerID, c.IssuerID())
	}

	_, err = c.CreatePact(ctx, testAuthority, domain.PactParams{
		ContentHash:    "sha256:aaaa",
		Version:        "v1",
		RevocationMode: domain.RevocationAny,
	})
	if !errors.Is(err, domain.ErrPactExists) {
		t.Fatalf("same identity err = %v, want ErrPactExists", err)
	}

	v2, err := c.CreatePact(ctx, testAuthority, domain.PactParams{
		ContentHash:    "sha256:aaaa",
		Version:        "v2",
		RevocationMode: domain.RevocationNone,
	})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if v2.PactID == pact.PactID {
		t.Fatal("distinct versions must produce distinct pact ids")
	}
}

func TestPactIdentitySurvivesAuthorityRotation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	before := c.DerivePactID("sha256:cccc", "v1")
	if err := c.TransferAuthority(ctx, testAuthority, "prn_next"); err != nil {
		t.Fatalf("transfer authority: %v", err)
	}
	if after := c.DerivePactID("sha256:cccc", "v1"); after != before {
		t.Fatalf("pact id changed across rotation: %q != %q", after, before)
	}
	pact, err := c.CreatePact(ctx, "prn_next", domain.PactParams{
		ContentHash:    "sha256:cccc",
		Version:        "v1",
		RevocationMode: domain.RevocationNone,
	})
	if err != nil {
		t.Fatalf("create pact as rotated authority: %v", err)
	}
	if pact.PactID != before {
		t.Fatalf("pact id = %q, want %q", pact.PactID, before)
	}
	if pact.IssuerID != c.IssuerID() {
		t.Fatalf("issuer id = %q, want stable %q", pact.IssuerID, c.IssuerID())
	}
}

func TestPactValidation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	var fe *domain.FieldError
	_, err := c.CreatePact(ctx, testAuthority, domain.PactParams{Version: "v1", RevocationMode: domain.RevocationNone})
	if !errors.As(err, &fe) || fe.Field != "content_hash" {
		t.Fatalf("missing content hash err = %v, want FieldError{content_hash}", err)
	}
	_, err = c.CreatePact(ctx, testAuthority, domain.PactParams{ContentHash: "sha256:aaaa", Version: "v1", RevocationMode: "SOMETIMES"})
	if !errors.As(err, &fe) || fe.Field != "revocation_mode" {
		t.Fatalf("bad mode err = %v, want FieldError{revocation_mode}", err)
	}
	_, err = c.CreatePact(ctx, "prn_random", domain.PactParams{ContentHash: "sha256:aaaa", Version: "v1", RevocationMode: domain.RevocationNone})
	if !errors.Is(err, domain.ErrNotAuthority) {
		t.Fatalf("non-authority err = %v, want ErrNotAuthority", err)
	}
}

func TestAmendCreatesSuccessorRecord(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	source := mustCreatePact(t, c, domain.RevocationNone, true, "v1")

	amended, err := c.AmendPact(ctx, testAuthority, source.PactID, domain.PactParams{
		ContentHash:    "sha256:eeee",
		Version:        "v2",
		Mutable:        false,
		RevocationMode: domain.RevocationUnvestedOnly,
	})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if amended.SupersedesPactID != source.PactID {
		t.Fatalf("supersedes = %q, want %q", amended.SupersedesPactID, source.PactID)
	}
	if amended.PactID == source.PactID {
		t.Fatal("amendment must mint a fresh identity")
	}

	// The source record is untouched and still resolvable.
	got, err := c.GetPact(ctx, source.PactID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if got.ContentHash != source.ContentHash || got.SupersedesPactID != "" {
		t.Fatalf("source mutated by amendment: %+v", got)
	}

	// The successor was created immutable, so the chain ends there.
	_, err = c.AmendPact(ctx, testAuthority, amended.PactID, domain.PactParams{
		ContentHash:    "sha256:ffff",
		Version:        "v3",
		RevocationMode: domain.RevocationNone,
	})
	if !errors.Is(err, domain.ErrPactImmutable) {
		t.Fatalf("amend immutable err = %v, want ErrPactImmutable", err)
	}

	_, err = c.AmendPact(ctx, testAuthority, "pct_missing", domain.PactParams{
		ContentHash:    "sha256:ffff",
		Version:        "v3",
		RevocationMode: domain.RevocationNone,
	})
	if !errors.Is(err, domain.ErrPactNotFound) {
		t.Fatalf("amend missing err = %v, want ErrPactNotFound", err)
	}
}

func TestTryGetPactReportsAbsenceWithoutError(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	pact := mustCreatePact(t, c, domain.RevocationNone, false, "v1")

	got, ok, err := c.TryGetPact(ctx, pact.PactID)
	if err != nil || !ok {
		t.Fatalf("try get existing: ok=%v err=%v", ok, err)
	}
	if got.PactID != pact.PactID {
		t.Fatalf("pact id = %q, want %q", got.PactID, pact.PactID)
	}
	_, ok, err = c.TryGetPact(ctx, "pct_missing")
	if err != nil {
		t.Fatalf("try get missing: %v", err)
	}
	if ok {
		t.Fatal("missing pact reported as found")
	}

	_, err = c.GetPact(ctx, "pct_missing")
	if !errors.Is(err, domain.ErrPactNotFound) {
		t.Fatalf("get missing err = %v, want ErrPactNotFound", err)
	}
}
