package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"grantlane/pkg/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pacts (
  pact_id TEXT PRIMARY KEY,
  issuer_id TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  rights_root TEXT NOT NULL DEFAULT '',
  uri TEXT NOT NULL DEFAULT '',
  version TEXT NOT NULL,
  mutable BOOLEAN NOT NULL,
  revocation_mode TEXT NOT NULL,
  default_revocable_unvested BOOLEAN NOT NULL,
  supersedes_pact_id TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
  claim_id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  pact_id TEXT NOT NULL REFERENCES pacts(pact_id),
  max_units BIGINT NOT NULL,
  unit_type TEXT NOT NULL,
  redeemed_units BIGINT NOT NULL DEFAULT 0,
  voided BOOLEAN NOT NULL DEFAULT FALSE,
  reason_hash TEXT NOT NULL DEFAULT '',
  fully_redeemed BOOLEAN NOT NULL DEFAULT FALSE,
  redeemable_at TIMESTAMPTZ NOT NULL,
  issuance_key TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS stakes (
  stake_id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  claim_id TEXT NOT NULL REFERENCES claims(claim_id),
  unit_type TEXT NOT NULL,
  units BIGINT NOT NULL,
  vest_start TIMESTAMPTZ NOT NULL,
  vest_cliff TIMESTAMPTZ NOT NULL,
  vest_end TIMESTAMPTZ NOT NULL,
  revoked BOOLEAN NOT NULL DEFAULT FALSE,
  revoked_units BIGINT NOT NULL DEFAULT 0,
  revoked_at TIMESTAMPTZ,
  redemption_key TEXT NOT NULL UNIQUE,
  note TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS control (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  authority TEXT NOT NULL,
  paused BOOLEAN NOT NULL DEFAULT FALSE,
  transitioned BOOLEAN NOT NULL DEFAULT FALSE,
  vault TEXT NOT NULL DEFAULT '',
  claim_base_uri TEXT NOT NULL DEFAULT '',
  stake_base_uri TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS principals (
  principal_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  token_hash TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
  kind TEXT NOT NULL,
  idem_key TEXT NOT NULL,
  params_hash TEXT NOT NULL,
  record_id TEXT NOT NULL,
  PRIMARY KEY (kind, idem_key)
);

CREATE TABLE IF NOT EXISTS ledger_events (
  seq BIGINT PRIMARY KEY,
  type TEXT NOT NULL,
  record_id TEXT NOT NULL DEFAULT '',
  actor TEXT NOT NULL,
  payload JSONB,
  prev_hash TEXT NOT NULL DEFAULT '',
  event_hash TEXT NOT NULL,
  occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_events_record_idx ON ledger_events (record_id, seq);
`

// PG is the production Store backed by Postgres.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// EnsureSchema creates any missing tables. Safe to run on every startup.
func (p *PG) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *PG) View(ctx context.Context, fn func(Tx) error) error {
	return fn(&pgTx{q: p.pool})
}

func (p *PG) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	q queryer
}

func (t *pgTx) GetControl(ctx context.Context) (domain.Control, bool, error) {
	var c domain.Control
	err := t.q.QueryRow(ctx, `
SELECT authority,paused,transitioned,vault,claim_base_uri,stake_base_uri
FROM control WHERE id=1
`).Scan(&c.Authority, &c.Paused, &c.Transitioned, &c.Vault, &c.ClaimBaseURI, &c.StakeBaseURI)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Control{}, false, nil
	}
	if err != nil {
		return domain.Control{}, false, err
	}
	return c, true, nil
}

func (t *pgTx) PutControl(ctx context.Context, c domain.Control) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO control(id,authority,paused,transitioned,vault,claim_base_uri,stake_base_uri)
VALUES(1,$1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  authority=EXCLUDED.authority,
  paused=EXCLUDED.paused,
  transitioned=EXCLUDED.transitioned,
  vault=EXCLUDED.vault,
  claim_base_uri=EXCLUDED.claim_base_uri,
  stake_base_uri=EXCLUDED.stake_base_uri
`, c.Authority, c.Paused, c.Transitioned, c.Vault, c.ClaimBaseURI, c.StakeBaseURI)
	return err
}

const pactColumns = `pact_id,issuer_id,content_hash,rights_root,uri,version,mutable,revocation_mode,default_revocable_unvested,supersedes_pact_id,created_at`

func scanPact(row pgx.Row) (domain.Pact, error) {
	var p domain.Pact
	err := row.Scan(&p.PactID, &p.IssuerID, &p.ContentHash, &p.RightsRoot, &p.URI, &p.Version,
		&p.Mutable, &p.RevocationMode, &p.DefaultRevocableUnvested, &p.SupersedesPactID, &p.CreatedAt)
	return p, err
}

func (t *pgTx) GetPact(ctx context.Context, pactID string) (domain.Pact, bool, error) {
	p, err := scanPact(t.q.QueryRow(ctx, `SELECT `+pactColumns+` FROM pacts WHERE pact_id=$1`, pactID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pact{}, false, nil
	}
	if err != nil {
		return domain.Pact{}, false, err
	}
	return p, true, nil
}

func (t *pgTx) InsertPact(ctx context.Context, p domain.Pact) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO pacts(`+pactColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, p.PactID, p.IssuerID, p.ContentHash, p.RightsRoot, p.URI, p.Version,
		p.Mutable, p.RevocationMode, p.DefaultRevocableUnvested, p.SupersedesPactID, p.CreatedAt)
	return err
}

const claimColumns = `claim_id,owner,pact_id,max_units,unit_type,redeemed_units,voided,reason_hash,fully_redeemed,redeemable_at,issuance_key,created_at`

func scanClaim(row pgx.Row) (domain.Claim, error) {
	var c domain.Claim
	err := row.Scan(&c.ClaimID, &c.Owner, &c.PactID, &c.MaxUnits, &c.UnitType, &c.RedeemedUnits,
		&c.Voided, &c.ReasonHash, &c.FullyRedeemed, &c.RedeemableAt, &c.IssuanceKey, &c.CreatedAt)
	return c, err
}

func (t *pgTx) GetClaim(ctx context.Context, claimID string) (domain.Claim, bool, error) {
	c, err := scanClaim(t.q.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE claim_id=$1`, claimID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Claim{}, false, nil
	}
	if err != nil {
		return domain.Claim{}, false, err
	}
	return c, true, nil
}

func (t *pgTx) GetClaimByIssuanceKey(ctx context.Context, key string) (domain.Claim, bool, error) {
	c, err := scanClaim(t.q.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE issuance_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Claim{}, false, nil
	}
	if err != nil {
		return domain.Claim{}, false, err
	}
	return c, true, nil
}

func (t *pgTx) InsertClaim(ctx context.Context, c domain.Claim) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO claims(`+claimColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, c.ClaimID, c.Owner, c.PactID, c.MaxUnits, c.UnitType, c.RedeemedUnits,
		c.Voided, c.ReasonHash, c.FullyRedeemed, c.RedeemableAt, c.IssuanceKey, c.CreatedAt)
	return err
}

func (t *pgTx) UpdateClaim(ctx context.Context, c domain.Claim) error {
	tag, err := t.q.Exec(ctx, `
UPDATE claims SET
  owner=$2, redeemed_units=$3, voided=$4, reason_hash=$5, fully_redeemed=$6
WHERE claim_id=$1
`, c.ClaimID, c.Owner, c.RedeemedUnits, c.Voided, c.ReasonHash, c.FullyRedeemed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: claim %s not present", c.ClaimID)
	}
	return nil
}

const stakeColumns = `stake_id,owner,claim_id,unit_type,units,vest_start,vest_cliff,vest_end,revoked,revoked_units,revoked_at,redemption_key,note,created_at`

func scanStake(row pgx.Row) (domain.Stake, error) {
	var s domain.Stake
	err := row.Scan(&s.StakeID, &s.Owner, &s.ClaimID, &s.UnitType, &s.Units, &s.VestStart,
		&s.VestCliff, &s.VestEnd, &s.Revoked, &s.RevokedUnits, &s.RevokedAt, &s.RedemptionKey,
		&s.Note, &s.CreatedAt)
	return s, err
}

func (t *pgTx) GetStake(ctx context.Context, stakeID string) (domain.Stake, bool, error) {
	s, err := scanStake(t.q.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE stake_id=$1`, stakeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stake{}, false, nil
	}
	if err != nil {
		return domain.Stake{}, false, err
	}
	return s, true, nil
}

func (t *pgTx) GetStakeByRedemptionKey(ctx context.Context, key string) (domain.Stake, bool, error) {
	s, err := scanStake(t.q.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE redemption_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stake{}, false, nil
	}
	if err != nil {
		return domain.Stake{}, false, err
	}
	return s, true, nil
}

func (t *pgTx) InsertStake(ctx context.Context, s domain.Stake) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO stakes(`+stakeColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, s.StakeID, s.Owner, s.ClaimID, s.UnitType, s.Units, s.VestStart,
		s.VestCliff, s.VestEnd, s.Revoked, s.RevokedUnits, s.RevokedAt, s.RedemptionKey,
		s.Note, s.CreatedAt)
	return err
}

func (t *pgTx) UpdateStake(ctx context.Context, s domain.Stake) error {
	tag, err := t.q.Exec(ctx, `
UPDATE stakes SET
  owner=$2, units=$3, revoked=$4, revoked_units=$5, revoked_at=$6
WHERE stake_id=$1
`, s.StakeID, s.Owner, s.Units, s.Revoked, s.RevokedUnits, s.RevokedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: stake %s not present", s.StakeID)
	}
	return nil
}

func (t *pgTx) GetPrincipal(ctx context.Context, principalID string) (domain.Principal, bool, error) {
	var p domain.Principal
	err := t.q.QueryRow(ctx, `
SELECT principal_id,display_name,token_hash,status,created_at
FROM principals WHERE principal_id=$1
`, principalID).Scan(&p.PrincipalID, &p.DisplayName, &p.TokenHash, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Principal{}, false, nil
	}
	if err != nil {
		return domain.Principal{}, false, err
	}
	return p, true, nil
}

func (t *pgTx) GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (domain.Principal, bool, error) {
	var p domain.Principal
	err := t.q.QueryRow(ctx, `
SELECT principal_id,display_name,token_hash,status,created_at
FROM principals WHERE token_hash=$1
`, tokenHash).Scan(&p.PrincipalID, &p.DisplayName, &p.TokenHash, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Principal{}, false, nil
	}
	if err != nil {
		return domain.Principal{}, false, err
	}
	return p, true, nil
}

func (t *pgTx) UpsertPrincipal(ctx context.Context, p domain.Principal) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO principals(principal_id,display_name,token_hash,status,created_at)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (principal_id) DO UPDATE SET
  display_name=EXCLUDED.display_name,
  token_hash=EXCLUDED.token_hash,
  status=EXCLUDED.status
`, p.PrincipalID, p.DisplayName, p.TokenHash, p.Status, p.CreatedAt)
	return err
}

func (t *pgTx) GetIdempotencyRecord(ctx context.Context, kind IdemKind, key string) (IdempotencyRecord, bool, error) {
	var rec IdempotencyRecord
	err := t.q.QueryRow(ctx, `
SELECT params_hash,record_id FROM idempotency_keys WHERE kind=$1 AND idem_key=$2
`, kind, key).Scan(&rec.ParamsHash, &rec.RecordID)
	if errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (t *pgTx) SaveIdempotencyRecord(ctx context.Context, kind IdemKind, key string, rec IdempotencyRecord) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO idempotency_keys(kind,idem_key,params_hash,record_id)
VALUES($1,$2,$3,$4)
ON CONFLICT (kind,idem_key) DO NOTHING
`, kind, key, rec.ParamsHash, rec.RecordID)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, e domain.LedgerEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
INSERT INTO ledger_events(seq,type,record_id,actor,payload,prev_hash,event_hash,occurred_at)
VALUES($1,$2,$3,$4,$5::jsonb,$6,$7,$8)
`, e.Seq, e.Type, e.RecordID, e.Actor, string(payload), e.PrevHash, e.EventHash, e.OccurredAt)
	return err
}

func scanEvent(row pgx.Row) (domain.LedgerEvent, error) {
	var e domain.LedgerEvent
	var payload []byte
	err := row.Scan(&e.Seq, &e.Type, &e.RecordID, &e.Actor, &payload, &e.PrevHash, &e.EventHash, &e.OccurredAt)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return domain.LedgerEvent{}, err
		}
	}
	return e, nil
}

func (t *pgTx) ChainHead(ctx context.Context) (domain.LedgerEvent, bool, error) {
	e, err := scanEvent(t.q.QueryRow(ctx, `
SELECT seq,type,record_id,actor,payload,prev_hash,event_hash,occurred_at
FROM ledger_events ORDER BY seq DESC LIMIT 1
`))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerEvent{}, false, nil
	}
	if err != nil {
		return domain.LedgerEvent{}, false, err
	}
	return e, true, nil
}

func (t *pgTx) EventsForRecord(ctx context.Context, recordID string) ([]domain.LedgerEvent, error) {
	rows, err := t.q.Query(ctx, `
SELECT seq,type,record_id,actor,payload,prev_hash,event_hash,occurred_at
FROM ledger_events WHERE record_id=$1 ORDER BY seq ASC
`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) ListEvents(ctx context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := t.q.Query(ctx, `
SELECT seq,type,record_id,actor,payload,prev_hash,event_hash,occurred_at
FROM ledger_events WHERE seq>=$1 ORDER BY seq ASC LIMIT $2
`, fromSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
