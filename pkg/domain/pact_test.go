package domain

import "testing"

func TestPactParamsValidate(t *testing.T) {
	good := PactParams{ContentHash: "sha256:abc", Version: "v1", RevocationMode: RevocationUnvestedOnly}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	bad := good
	bad.ContentHash = "  "
	if err := bad.Validate(); err == nil {
		t.Fatalf("blank content hash accepted")
	}
	bad = good
	bad.Version = ""
	if err := bad.Validate(); err == nil {
		t.Fatalf("empty version accepted")
	}
	bad = good
	bad.RevocationMode = "SOMETIMES"
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown revocation mode accepted")
	}
}

func TestRevocationModeClosedSet(t *testing.T) {
	for _, m := range []RevocationMode{RevocationNone, RevocationUnvestedOnly, RevocationAny} {
		if !m.Valid() {
			t.Fatalf("%s rejected", m)
		}
	}
	if RevocationMode("").Valid() {
		t.Fatalf("empty mode accepted")
	}
}
