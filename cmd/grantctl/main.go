// grantctl is the operator CLI for the grantlane services. Every command is a
// thin call against the HTTP API; output is the raw response envelope, pretty
// printed, so scripts can parse exactly what the server said.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const usageText = `usage: grantctl <command> [flags]

commands:
  pact create|amend|get|derive
  claim issue|get|void
  stake redeem|get|vesting|revoke
  control show|pause|unpause|transfer-authority|transition|set-uris
  custody transfer
  events list|head
  lock show
  identity show

global environment:
  GRANTLANE_URL    service base URL (default http://localhost:8080)
  GRANTLANE_TOKEN  bearer token for admin and custody calls
`

func main() {
	if len(os.Args) < 2 {
		fail(usageText)
	}
	c := newClientFromEnv()
	switch os.Args[1] {
	case "pact":
		runPact(c, os.Args[2:])
	case "claim":
		runClaim(c, os.Args[2:])
	case "stake":
		runStake(c, os.Args[2:])
	case "control":
		runControl(c, os.Args[2:])
	case "custody":
		runCustody(c, os.Args[2:])
	case "events":
		runEvents(c, os.Args[2:])
	case "lock":
		runLock(c, os.Args[2:])
	case "identity":
		runIdentity(c, os.Args[2:])
	default:
		fail(usageText)
	}
}

type client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func newClientFromEnv() *client {
	base := strings.TrimSpace(os.Getenv("GRANTLANE_URL"))
	if base == "" {
		base = "http://localhost:8080"
	}
	return &client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(os.Getenv("GRANTLANE_TOKEN")),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// do executes one API call and prints the response envelope. A non-2xx
// status exits nonzero after printing, so shells can branch on the result.
func (c *client) do(method, path string, body any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fail("encode request: " + err.Error())
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		fail("build request: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		fail("call " + path + ": " + err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fail("read response: " + err.Error())
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "%s %s -> %d\n%s\n", method, path, resp.StatusCode, string(raw))
		os.Exit(1)
	}
	fmt.Println(string(raw))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseOrDie(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
}

func requireFlags(fs *flag.FlagSet, pairs ...string) {
	// pairs alternate flag name and value; empty values abort with usage.
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			fmt.Fprintf(os.Stderr, "--%s is required\n", pairs[i])
			fs.Usage()
			os.Exit(2)
		}
	}
}

func runPact(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: grantctl pact create|amend|get|derive [flags]")
	}
	switch args[0] {
	case "create", "amend":
		fs := newFlagSet("pact " + args[0])
		contentHash := fs.String("content-hash", "", "rights document digest")
		rightsRoot := fs.String("rights-root", "", "optional rights merkle root")
		uri := fs.String("uri", "", "optional document URI")
		version := fs.String("version", "", "pact version label")
		mutable := fs.Bool("mutable", false, "allow later amendment")
		mode := fs.String("revocation-mode", "NONE", "NONE, UNVESTED_ONLY or ANY")
		defaultRevocable := fs.Bool("default-revocable-unvested", false, "default stakes to unvested-only revocation")
		source := fs.String("id", "", "pact to amend (amend only)")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "content-hash", *contentHash, "version", *version)
		body := map[string]any{
			"content_hash":               *contentHash,
			"rights_root":                *rightsRoot,
			"uri":                        *uri,
			"version":                    *version,
			"mutable":                    *mutable,
			"revocation_mode":            *mode,
			"default_revocable_unvested": *defaultRevocable,
		}
		if args[0] == "amend" {
			requireFlags(fs, "id", *source)
			c.do("POST", "/v1/admin/pacts/"+url.PathEscape(*source)+"/amendments", body)
			return
		}
		c.do("POST", "/v1/admin/pacts", body)
	case "get":
		fs := newFlagSet("pact get")
		id := fs.String("id", "", "pact id")
		try := fs.Bool("try", false, "report absence instead of failing")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "id", *id)
		path := "/v1/pacts/" + url.PathEscape(*id)
		if *try {
			path += "?try=true"
		}
		c.do("GET", path, nil)
	case "derive":
		fs := newFlagSet("pact derive")
		contentHash := fs.String("content-hash", "", "rights document digest")
		version := fs.String("version", "", "pact version label")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "content-hash", *contentHash, "version", *version)
		c.do("POST", "/v1/identity/derive", map[string]any{
			"content_hash": *contentHash,
			"version":      *version,
		})
	default:
		fail("usage: grantctl pact create|amend|get|derive [flags]")
	}
}

func runClaim(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: grantctl claim issue|get|void [flags]")
	}
	switch args[0] {
	case "issue":
		fs := newFlagSet("claim issue")
		key := fs.String("key", "", "issuance key")
		recipient := fs.String("recipient", "", "holder id")
		pact := fs.String("pact", "", "pact id")
		units := fs.Int64("units", 0, "maximum units")
		unitType := fs.String("unit-type", "SHARE", "SHARE, OPTION or RIGHT")
		redeemableAt := fs.String("redeemable-at", "", "RFC 3339 instant (default now)")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "key", *key, "recipient", *recipient, "pact", *pact)
		at := *redeemableAt
		if at == "" {
			at = time.Now().UTC().Format(time.RFC3339)
		}
		c.do("POST", "/v1/admin/claims", map[string]any{
			"issuance_key":  *key,
			"recipient":     *recipient,
			"pact_id":       *pact,
			"max_units":     *units,
			"unit_type":     *unitType,
			"redeemable_at": at,
		})
	case "get":
		fs := newFlagSet("claim get")
		id := fs.String("id", "", "claim id")
		key := fs.String("key", "", "issuance key")
		parseOrDie(fs, args[1:])
		switch {
		case *id != "":
			c.do("GET", "/v1/claims/"+url.PathEscape(*id), nil)
		case *key != "":
			c.do("GET", "/v1/claims/by-key/"+url.PathEscape(*key), nil)
		default:
			fail("one of --id or --key is required")
		}
	case "void":
		fs := newFlagSet("claim void")
		key := fs.String("key", "", "issuance key")
		reason := fs.String("reason-hash", "", "optional reason digest")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "key", *key)
		c.do("POST", "/v1/admin/claims/void", map[string]any{
			"issuance_key": *key,
			"reason_hash":  *reason,
		})
	default:
		fail("usage: grantctl claim issue|get|void [flags]")
	}
}

func runStake(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: grantctl stake redeem|get|vesting|revoke [flags]")
	}
	switch args[0] {
	case "redeem":
		fs := newFlagSet("stake redeem")
		key := fs.String("key", "", "redemption key")
		claim := fs.String("claim", "", "claim id")
		units := fs.Int64("units", 0, "units to redeem")
		unitType := fs.String("unit-type", "SHARE", "SHARE, OPTION or RIGHT")
		start := fs.String("start", "", "vesting start, RFC 3339")
		cliff := fs.String("cliff", "", "vesting cliff, RFC 3339 (default start)")
		end := fs.String("end", "", "vesting end, RFC 3339 (default start)")
		note := fs.String("note", "", "optional note")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "key", *key, "claim", *claim, "start", *start)
		if *cliff == "" {
			*cliff = *start
		}
		if *end == "" {
			*end = *start
		}
		c.do("POST", "/v1/admin/stakes", map[string]any{
			"redemption_key": *key,
			"claim_id":       *claim,
			"units":          *units,
			"unit_type":      *unitType,
			"vest_start":     *start,
			"vest_cliff":     *cliff,
			"vest_end":       *end,
			"note":           *note,
		})
	case "get":
		fs := newFlagSet("stake get")
		id := fs.String("id", "", "stake id")
		key := fs.String("key", "", "redemption key")
		parseOrDie(fs, args[1:])
		switch {
		case *id != "":
			c.do("GET", "/v1/stakes/"+url.PathEscape(*id), nil)
		case *key != "":
			c.do("GET", "/v1/stakes/by-key/"+url.PathEscape(*key), nil)
		default:
			fail("one of --id or --key is required")
		}
	case "vesting":
		fs := newFlagSet("stake vesting")
		id := fs.String("id", "", "stake id")
		at := fs.String("at", "", "evaluation instant, RFC 3339 (default now)")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "id", *id)
		path := "/v1/stakes/" + url.PathEscape(*id) + "/vesting"
		if *at != "" {
			path += "?at=" + url.QueryEscape(*at)
		}
		c.do("GET", path, nil)
	case "revoke":
		fs := newFlagSet("stake revoke")
		id := fs.String("id", "", "stake id")
		reason := fs.String("reason-hash", "", "optional reason digest")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "id", *id)
		c.do("POST", "/v1/admin/stakes/"+url.PathEscape(*id)+"/revoke", map[string]any{
			"reason_hash": *reason,
		})
	default:
		fail("usage: grantctl stake redeem|get|vesting|revoke [flags]")
	}
}

func runControl(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: grantctl control show|pause|unpause|transfer-authority|transition|set-uris [flags]")
	}
	switch args[0] {
	case "show":
		c.do("GET", "/v1/control", nil)
	case "pause":
		c.do("POST", "/v1/admin/control/pause", nil)
	case "unpause":
		c.do("POST", "/v1/admin/control/unpause", nil)
	case "transfer-authority":
		fs := newFlagSet("control transfer-authority")
		to := fs.String("to", "", "new authority principal id")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "to", *to)
		c.do("POST", "/v1/admin/control/authority", map[string]any{"new_authority": *to})
	case "transition":
		fs := newFlagSet("control transition")
		vault := fs.String("vault", "", "custodial vault principal id")
		parseOrDie(fs, args[1:])
		requireFlags(fs, "vault", *vault)
		c.do("POST", "/v1/admin/control/transition", map[string]any{"vault": *vault})
	case "set-uris":
		fs := newFlagSet("control set-uris")
		claimBase := fs.String("claim-base", "", "claim metadata base URI")
		stakeBase := fs.String("stake-base", "", "stake metadata base URI")
		parseOrDie(fs, args[1:])
		c.do("PUT", "/v1/admin/control/uris", map[string]any{
			"claim_base_uri": *claimBase,
			"stake_base_uri": *stakeBase,
		})
	default:
		fail("usage: grantctl control show|pause|unpause|transfer-authority|transition|set-uris [flags]")
	}
}

func runCustody(c *client, args []string) {
	if len(args) < 1 || args[0] != "transfer" {
		fail("usage: grantctl custody transfer --record <id> --to <owner>")
	}
	fs := newFlagSet("custody transfer")
	record := fs.String("record", "", "claim or stake id")
	to := fs.String("to", "", "new owner id")
	parseOrDie(fs, args[1:])
	requireFlags(fs, "record", *record, "to", *to)
	c.do("POST", "/v1/custody/transfers", map[string]any{
		"record_id": *record,
		"new_owner": *to,
	})
}

func runEvents(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: grantctl events list|head [flags]")
	}
	switch args[0] {
	case "list":
		fs := newFlagSet("events list")
		from := fs.Int64("from", 1, "first sequence number")
		limit := fs.Int("limit", 100, "page size")
		record := fs.String("record", "", "restrict to one record's trail")
		parseOrDie(fs, args[1:])
		if *record != "" {
			prefix := "/v1/claims/"
			if strings.HasPrefix(*record, "stk_") {
				prefix = "/v1/stakes/"
			}
			c.do("GET", prefix+url.PathEscape(*record)+"/events", nil)
			return
		}
		c.do("GET", fmt.Sprintf("/v1/events?from=%d&limit=%d", *from, *limit), nil)
	case "head":
		c.do("GET", "/v1/events/head", nil)
	default:
		fail("usage: grantctl events list|head [flags]")
	}
}

func runLock(c *client, args []string) {
	if len(args) < 1 || args[0] != "show" {
		fail("usage: grantctl lock show --record <id>")
	}
	fs := newFlagSet("lock show")
	record := fs.String("record", "", "claim or stake id")
	parseOrDie(fs, args[1:])
	requireFlags(fs, "record", *record)
	c.do("GET", "/v1/records/"+url.PathEscape(*record)+"/lock", nil)
}

func runIdentity(c *client, args []string) {
	if len(args) < 1 || args[0] != "show" {
		fail("usage: grantctl identity show")
	}
	c.do("GET", "/v1/identity", nil)
}
