// Recomputes issuer and pact identities from an identity tuple, so other
// implementations can check their derivation against this one. Input is one
// JSON argument, output one JSON object on stdout.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"grantlane/pkg/identity"
)

type input struct {
	Realm        string `json:"realm"`
	IssuerEntity string `json:"issuer_entity"`
	ContentHash  string `json:"content_hash"`
	Version      string `json:"version"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: identity_helper '<tuple-json>'")
		os.Exit(2)
	}

	var in input
	if err := json.Unmarshal([]byte(os.Args[1]), &in); err != nil {
		fmt.Fprintln(os.Stderr, "invalid tuple json:", err)
		os.Exit(2)
	}
	if in.Realm == "" || in.IssuerEntity == "" {
		fmt.Fprintln(os.Stderr, "realm and issuer_entity are required")
		os.Exit(2)
	}

	issuerID := identity.DeriveIssuerID(in.Realm, in.IssuerEntity)
	out := map[string]any{"issuer_id": issuerID}
	if in.ContentHash != "" && in.Version != "" {
		out["pact_id"] = identity.DerivePactID(issuerID, in.ContentHash, in.Version)
	}

	b, err := json.Marshal(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal result:", err)
		os.Exit(2)
	}
	fmt.Print(string(b))
}
