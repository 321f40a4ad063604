// Evaluates the vesting formula for a stake at an instant, including the
// frozen horizon of a revoked stake, so other implementations can compare
// their arithmetic against this one.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"grantlane/pkg/domain"
)

type input struct {
	Units        int64      `json:"units"`
	VestStart    time.Time  `json:"vest_start"`
	VestCliff    time.Time  `json:"vest_cliff"`
	VestEnd      time.Time  `json:"vest_end"`
	Revoked      bool       `json:"revoked"`
	RevokedUnits int64      `json:"revoked_units"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	At           time.Time  `json:"at"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: vesting_helper '<stake-json>'")
		os.Exit(2)
	}

	var in input
	if err := json.Unmarshal([]byte(os.Args[1]), &in); err != nil {
		fmt.Fprintln(os.Stderr, "invalid stake json:", err)
		os.Exit(2)
	}
	if !domain.ValidVestingOrder(in.VestStart, in.VestCliff, in.VestEnd) {
		fmt.Fprintln(os.Stderr, "vesting times out of order")
		os.Exit(2)
	}
	if in.Revoked && in.RevokedAt == nil {
		fmt.Fprintln(os.Stderr, "revoked stakes need revoked_at")
		os.Exit(2)
	}

	s := domain.Stake{
		Units:        in.Units,
		VestStart:    in.VestStart,
		VestCliff:    in.VestCliff,
		VestEnd:      in.VestEnd,
		Revoked:      in.Revoked,
		RevokedUnits: in.RevokedUnits,
		RevokedAt:    in.RevokedAt,
	}
	out := map[string]any{
		"vested_units":   s.VestedUnits(in.At),
		"unvested_units": s.UnvestedUnits(in.At),
	}

	b, err := json.Marshal(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal result:", err)
		os.Exit(2)
	}
	fmt.Print(string(b))
}
