package domain

import (
	"fmt"
	"strings"
	"time"
)

type RevocationMode string

const (
	RevocationNone         RevocationMode = "NONE"
	RevocationUnvestedOnly RevocationMode = "UNVESTED_ONLY"
	RevocationAny          RevocationMode = "ANY"
)

func (m RevocationMode) Valid() bool {
	switch m {
	case RevocationNone, RevocationUnvestedOnly, RevocationAny:
		return true
	default:
		return false
	}
}

// Pact is an immutable versioned rights document. Amendment never mutates a
// record; it creates a new one whose SupersedesPactID points at the source.
type Pact struct {
	PactID                   string         `json:"pact_id"`
	IssuerID                 string         `json:"issuer_id"`
	ContentHash              string         `json:"content_hash"`
	RightsRoot               string         `json:"rights_root,omitempty"`
	URI                      string         `json:"uri,omitempty"`
	Version                  string         `json:"version"`
	Mutable                  bool           `json:"mutable"`
	RevocationMode           RevocationMode `json:"revocation_mode"`
	DefaultRevocableUnvested bool           `json:"default_revocable_unvested"`
	SupersedesPactID         string         `json:"supersedes_pact_id,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
}

type PactParams struct {
	ContentHash              string
	RightsRoot               string
	URI                      string
	Version                  string
	Mutable                  bool
	RevocationMode           RevocationMode
	DefaultRevocableUnvested bool
}

func (p PactParams) Validate() error {
	if strings.TrimSpace(p.ContentHash) == "" {
		return &FieldError{Field: "content_hash", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(p.Version) == "" {
		return &FieldError{Field: "version", Reason: "must be non-empty"}
	}
	if !p.RevocationMode.Valid() {
		return &FieldError{Field: "revocation_mode", Reason: "must be NONE, UNVESTED_ONLY or ANY"}
	}
	return nil
}

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q invalid: %s", e.Field, e.Reason)
}
