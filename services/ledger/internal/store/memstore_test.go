package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"grantlane/pkg/domain"
)

func testClaim(id, key string) domain.Claim {
	return domain.Claim{
		ClaimID:      id,
		Owner:        "prn_alice",
		PactID:       "pct_x",
		MaxUnits:     1000,
		UnitType:     domain.UnitShare,
		RedeemableAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		IssuanceKey:  key,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpdateCommitsOnSuccess(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	err := m.Update(ctx, func(tx Tx) error {
		return tx.InsertClaim(ctx, testClaim("clm_1", "key-1"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	err = m.View(ctx, func(tx Tx) error {
		c, ok, err := tx.GetClaim(ctx, "clm_1")
		if err != nil || !ok {
			t.Fatalf("claim not visible after commit: ok=%v err=%v", ok, err)
		}
		if c.IssuanceKey != "key-1" {
			t.Fatalf("claim key = %q, want key-1", c.IssuanceKey)
		}
		byKey, ok, _ := tx.GetClaimByIssuanceKey(ctx, "key-1")
		if !ok || byKey.ClaimID != "clm_1" {
			t.Fatalf("lookup by key failed: ok=%v got=%+v", ok, byKey)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	boom := errors.New("boom")
	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.InsertClaim(ctx, testClaim("clm_1", "key-1")); err != nil {
			return err
		}
		if err := tx.InsertClaim(ctx, testClaim("clm_2", "key-2")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = m.View(ctx, func(tx Tx) error {
		for _, id := range []string{"clm_1", "clm_2"} {
			if _, ok, _ := tx.GetClaim(ctx, id); ok {
				t.Fatalf("claim %s survived a failed transaction", id)
			}
		}
		if _, ok, _ := tx.GetClaimByIssuanceKey(ctx, "key-1"); ok {
			t.Fatalf("key index survived a failed transaction")
		}
		return nil
	})
}

func TestViewRejectsMutation(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	err := m.View(ctx, func(tx Tx) error {
		return tx.InsertClaim(ctx, testClaim("clm_1", "key-1"))
	})
	if err == nil {
		t.Fatalf("mutation inside View succeeded")
	}
}

func TestInsertClaimRejectsDuplicateID(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	_ = m.Update(ctx, func(tx Tx) error { return tx.InsertClaim(ctx, testClaim("clm_1", "key-1")) })
	err := m.Update(ctx, func(tx Tx) error { return tx.InsertClaim(ctx, testClaim("clm_1", "key-2")) })
	if err == nil {
		t.Fatalf("duplicate claim id accepted")
	}
}

func TestIdempotencyRecordRoundTrip(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	rec := IdempotencyRecord{ParamsHash: "sha256:abc", RecordID: "clm_1"}
	_ = m.Update(ctx, func(tx Tx) error {
		return tx.SaveIdempotencyRecord(ctx, IdemIssue, "key-1", rec)
	})
	_ = m.View(ctx, func(tx Tx) error {
		got, ok, err := tx.GetIdempotencyRecord(ctx, IdemIssue, "key-1")
		if err != nil || !ok || got != rec {
			t.Fatalf("idempotency record = %+v ok=%v err=%v", got, ok, err)
		}
		if _, ok, _ := tx.GetIdempotencyRecord(ctx, IdemRedeem, "key-1"); ok {
			t.Fatalf("kinds are not namespaced")
		}
		return nil
	})
}

func TestEventChainHeadAndRecordQuery(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	_ = m.Update(ctx, func(tx Tx) error {
		for i, rid := range []string{"clm_1", "stk_1", "clm_1"} {
			e := domain.LedgerEvent{Seq: int64(i + 1), Type: domain.EventClaimIssued, RecordID: rid, Actor: "prn_a", EventHash: "h", OccurredAt: at}
			if err := tx.AppendEvent(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	_ = m.View(ctx, func(tx Tx) error {
		head, ok, _ := tx.ChainHead(ctx)
		if !ok || head.Seq != 3 {
			t.Fatalf("chain head = %+v ok=%v, want seq 3", head, ok)
		}
		events, err := tx.EventsForRecord(ctx, "clm_1")
		if err != nil || len(events) != 2 {
			t.Fatalf("events for clm_1 = %d (%v), want 2", len(events), err)
		}
		if events[0].Seq != 1 || events[1].Seq != 3 {
			t.Fatalf("events out of order: %+v", events)
		}
		return nil
	})
}

func TestUpsertPrincipalRehashesToken(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	p := domain.Principal{PrincipalID: "prn_a", TokenHash: "hash1", Status: domain.PrincipalActive}
	_ = m.Update(ctx, func(tx Tx) error { return tx.UpsertPrincipal(ctx, p) })
	p.TokenHash = "hash2"
	_ = m.Update(ctx, func(tx Tx) error { return tx.UpsertPrincipal(ctx, p) })
	_ = m.View(ctx, func(tx Tx) error {
		if _, ok, _ := tx.GetPrincipalByTokenHash(ctx, "hash1"); ok {
			t.Fatalf("stale token hash still resolves")
		}
		got, ok, _ := tx.GetPrincipalByTokenHash(ctx, "hash2")
		if !ok || got.PrincipalID != "prn_a" {
			t.Fatalf("new token hash lookup = %+v ok=%v", got, ok)
		}
		return nil
	})
}

func TestControlRoundTrip(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	_ = m.View(ctx, func(tx Tx) error {
		if _, ok, _ := tx.GetControl(ctx); ok {
			t.Fatalf("control present before bootstrap")
		}
		return nil
	})
	c := domain.Control{Authority: "prn_root", Paused: true}
	_ = m.Update(ctx, func(tx Tx) error { return tx.PutControl(ctx, c) })
	_ = m.View(ctx, func(tx Tx) error {
		got, ok, _ := tx.GetControl(ctx)
		if !ok || got != c {
			t.Fatalf("control = %+v ok=%v, want %+v", got, ok, c)
		}
		return nil
	})
}
