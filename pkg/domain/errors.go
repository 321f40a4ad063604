package domain

import (
	"errors"
	"fmt"
)

// Every failure is synchronous and names the exact caller mistake; nothing
// here is retryable without changing the call.
var (
	ErrPactNotFound   = errors.New("pact not found")
	ErrClaimNotFound  = errors.New("claim not found")
	ErrStakeNotFound  = errors.New("stake not found")
	ErrRecordNotFound = errors.New("record not found")

	ErrPactExists          = errors.New("pact already exists for this identity")
	ErrIdempotenceMismatch = errors.New("idempotency key replayed with different parameters")

	ErrInvalidUnits    = errors.New("units out of range")
	ErrInvalidUnitType = errors.New("unit type not in the supported set")
	ErrInvalidVesting  = errors.New("vesting times out of order")
	ErrNotRedeemable   = errors.New("claim is not redeemable")

	ErrPactImmutable      = errors.New("pact is not amendable")
	ErrAlreadyVoided      = errors.New("claim already voided")
	ErrAlreadyRevoked     = errors.New("stake already revoked")
	ErrRevocationDisabled = errors.New("pact revocation mode is NONE")
	ErrStakeFullyVested   = errors.New("stake is fully vested")
	ErrPaused             = errors.New("issuance is paused")

	ErrNotAuthority        = errors.New("caller is not the authority")
	ErrAlreadyTransitioned = errors.New("administrative capability destroyed by transition")
	ErrNotCustodian        = errors.New("caller is not the custodial vault")
	ErrTransferLocked      = errors.New("record is locked against transfer")

	ErrInvalidRecipient    = errors.New("recipient must be non-empty")
	ErrInvalidVault        = errors.New("vault must be non-empty")
	ErrInvalidAuthority    = errors.New("new authority must be non-empty")
	ErrArrayLengthMismatch = errors.New("batch arrays must have equal non-zero length")
)

type ErrorFamily string

const (
	FamilyNotFound     ErrorFamily = "NOT_FOUND"
	FamilyConflict     ErrorFamily = "CONFLICT"
	FamilyPrecondition ErrorFamily = "PRECONDITION_VIOLATION"
	FamilyState        ErrorFamily = "STATE_VIOLATION"
	FamilyPrivilege    ErrorFamily = "PRIVILEGE_VIOLATION"
	FamilyInputShape   ErrorFamily = "INPUT_SHAPE"
	FamilyInternal     ErrorFamily = "INTERNAL"
)

var errorCatalog = []struct {
	err    error
	family ErrorFamily
	code   string
}{
	{ErrPactNotFound, FamilyNotFound, "PACT_NOT_FOUND"},
	{ErrClaimNotFound, FamilyNotFound, "CLAIM_NOT_FOUND"},
	{ErrStakeNotFound, FamilyNotFound, "STAKE_NOT_FOUND"},
	{ErrRecordNotFound, FamilyNotFound, "RECORD_NOT_FOUND"},
	{ErrPactExists, FamilyConflict, "PACT_ALREADY_EXISTS"},
	{ErrIdempotenceMismatch, FamilyConflict, "IDEMPOTENCE_MISMATCH"},
	{ErrInvalidUnits, FamilyPrecondition, "INVALID_UNITS"},
	{ErrInvalidUnitType, FamilyPrecondition, "INVALID_UNIT_TYPE"},
	{ErrInvalidVesting, FamilyPrecondition, "INVALID_VESTING"},
	{ErrNotRedeemable, FamilyPrecondition, "NOT_REDEEMABLE"},
	{ErrPactImmutable, FamilyState, "PACT_IMMUTABLE"},
	{ErrAlreadyVoided, FamilyState, "CLAIM_ALREADY_VOIDED"},
	{ErrAlreadyRevoked, FamilyState, "STAKE_ALREADY_REVOKED"},
	{ErrRevocationDisabled, FamilyState, "REVOCATION_DISABLED"},
	{ErrStakeFullyVested, FamilyState, "STAKE_FULLY_VESTED"},
	{ErrPaused, FamilyState, "PAUSED"},
	{ErrNotAuthority, FamilyPrivilege, "NOT_AUTHORITY"},
	{ErrAlreadyTransitioned, FamilyPrivilege, "ALREADY_TRANSITIONED"},
	{ErrNotCustodian, FamilyPrivilege, "NOT_CUSTODIAN"},
	{ErrTransferLocked, FamilyPrivilege, "TRANSFER_LOCKED"},
	{ErrInvalidRecipient, FamilyInputShape, "INVALID_RECIPIENT"},
	{ErrInvalidVault, FamilyInputShape, "INVALID_VAULT"},
	{ErrInvalidAuthority, FamilyInputShape, "INVALID_AUTHORITY"},
	{ErrArrayLengthMismatch, FamilyInputShape, "ARRAY_LENGTH_MISMATCH"},
}

// Classify maps an error chain onto the failure taxonomy. Unrecognized errors
// are FamilyInternal.
func Classify(err error) ErrorFamily {
	var fe *FieldError
	if errors.As(err, &fe) {
		return FamilyInputShape
	}
	for _, c := range errorCatalog {
		if errors.Is(err, c.err) {
			return c.family
		}
	}
	return FamilyInternal
}

// Code returns the stable machine code for a domain error, or "INTERNAL".
func Code(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return "INVALID_FIELD"
	}
	for _, c := range errorCatalog {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// BatchItemError pins a batch failure to the element that caused it. The whole
// batch aborts; nothing before or after the element is applied.
type BatchItemError struct {
	Index int
	Err   error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("batch element %d: %v", e.Index, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }
