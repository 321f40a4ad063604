package canonhash

import (
	"strings"
	"testing"
)

func TestSumObjectIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{
		"unit_type": "credits.compute",
		"terms":     map[string]any{"revocation_policy": "UNVESTED_ONLY", "vest_cliff_seconds": 86400},
		"authority": "acct_granter",
	}
	b := map[string]any{
		"authority": "acct_granter",
		"terms":     map[string]any{"vest_cliff_seconds": 86400, "revocation_policy": "UNVESTED_ONLY"},
		"unit_type": "credits.compute",
	}

	ha, _, err := SumObject(a)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	hb, _, err := SumObject(b)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected same hash, got %s vs %s", ha, hb)
	}
	if !strings.HasPrefix(ha, "sha256:") {
		t.Fatalf("unexpected digest shape %q", ha)
	}
}

func TestSumObjectSeparatesDifferentTerms(t *testing.T) {
	a := map[string]any{"unit_type": "credits.compute"}
	b := map[string]any{"unit_type": "credits.storage"}
	ha, _, _ := SumObject(a)
	hb, _, _ := SumObject(b)
	if ha == hb {
		t.Fatalf("expected different hashes")
	}
}

func TestSumBytesMatchesPrefixConvention(t *testing.T) {
	h := SumBytes([]byte("rights document body"))
	if len(h) != len("sha256:")+64 {
		t.Fatalf("unexpected digest shape %q", h)
	}
	if h != SumBytes([]byte("rights document body")) {
		t.Fatalf("expected deterministic digest")
	}
	if h == SumBytes([]byte("other body")) {
		t.Fatalf("expected different digest for different bytes")
	}
}
