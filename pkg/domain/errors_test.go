package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyFamilies(t *testing.T) {
	cases := []struct {
		err    error
		family ErrorFamily
		code   string
	}{
		{ErrClaimNotFound, FamilyNotFound, "CLAIM_NOT_FOUND"},
		{ErrPactExists, FamilyConflict, "PACT_ALREADY_EXISTS"},
		{ErrIdempotenceMismatch, FamilyConflict, "IDEMPOTENCE_MISMATCH"},
		{ErrNotRedeemable, FamilyPrecondition, "NOT_REDEEMABLE"},
		{ErrStakeFullyVested, FamilyState, "STAKE_FULLY_VESTED"},
		{ErrAlreadyTransitioned, FamilyPrivilege, "ALREADY_TRANSITIONED"},
		{ErrArrayLengthMismatch, FamilyInputShape, "ARRAY_LENGTH_MISMATCH"},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.family {
			t.Fatalf("Classify(%v) = %s, want %s", c.err, got, c.family)
		}
		if got := Code(c.err); got != c.code {
			t.Fatalf("Code(%v) = %s, want %s", c.err, got, c.code)
		}
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("redeem claim clm_x: %w", ErrInvalidUnits)
	if got := Classify(err); got != FamilyPrecondition {
		t.Fatalf("Classify(wrapped) = %s, want %s", got, FamilyPrecondition)
	}
	if got := Code(err); got != "INVALID_UNITS" {
		t.Fatalf("Code(wrapped) = %s, want INVALID_UNITS", got)
	}
}

func TestClassifyUnknownIsInternal(t *testing.T) {
	if got := Classify(errors.New("disk on fire")); got != FamilyInternal {
		t.Fatalf("Classify(unknown) = %s, want %s", got, FamilyInternal)
	}
}

func TestBatchItemErrorUnwraps(t *testing.T) {
	err := &BatchItemError{Index: 2, Err: ErrInvalidRecipient}
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("BatchItemError does not unwrap to its cause")
	}
	if got := Classify(err); got != FamilyInputShape {
		t.Fatalf("Classify(batch item) = %s, want %s", got, FamilyInputShape)
	}
	if err.Error() != "batch element 2: recipient must be non-empty" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFieldErrorClassification(t *testing.T) {
	err := fmt.Errorf("create pact: %w", &FieldError{Field: "version", Reason: "must be non-empty"})
	if got := Classify(err); got != FamilyInputShape {
		t.Fatalf("Classify(field error) = %s, want %s", got, FamilyInputShape)
	}
	if got := Code(err); got != "INVALID_FIELD" {
		t.Fatalf("Code(field error) = %s, want INVALID_FIELD", got)
	}
}
