package unitstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"grantlane/pkg/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS units_state (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  cap BIGINT NOT NULL,
  supply BIGINT NOT NULL DEFAULT 0,
  lockup_until TIMESTAMPTZ NOT NULL,
  admin_principal TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS units_balances (
  holder TEXT PRIMARY KEY,
  balance BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS units_allowlist (
  holder TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS units_principals (
  principal_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  token_hash TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS units_mint_keys (
  mint_key TEXT PRIMARY KEY,
  params_hash TEXT NOT NULL,
  holder TEXT NOT NULL,
  amount BIGINT NOT NULL,
  supply BIGINT NOT NULL
);
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

func (t *pgTx) GetState(ctx context.Context) (State, bool, error) {
	var s State
	err := t.q.QueryRow(ctx, `
SELECT cap,supply,lockup_until,admin_principal FROM units_state WHERE id=1
`).Scan(&s.Cap, &s.Supply, &s.LockupUntil, &s.Admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (t *pgTx) PutState(ctx context.Context, s State) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO units_state(id,cap,supply,lockup_until,admin_principal)
VALUES(1,$1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
  cap=EXCLUDED.cap,
  supply=EXCLUDED.supply,
  lockup_until=EXCLUDED.lockup_until,
  admin_principal=EXCLUDED.admin_principal
`, s.Cap, s.Supply, s.LockupUntil, s.Admin)
	return err
}

func (t *pgTx) GetBalance(ctx context.Context, holder string) (int64, bool, error) {
	var b int64
	err := t.q.QueryRow(ctx, `SELECT balance FROM units_balances WHERE holder=$1`, holder).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return b, true, nil
}

func (t *pgTx) SetBalance(ctx context.Context, holder string, balance int64) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO units_balances(holder,balance) VALUES($1,$2)
ON CONFLICT (holder) DO UPDATE SET balance=EXCLUDED.balance
`, holder, balance)
	return err
}

func (t *pgTx) ListBalances(ctx context.Context) ([]Balance, error) {
	rows, err := t.q.Query(ctx, `SELECT holder,balance FROM units_balances ORDER BY holder`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.Holder, &b.Balance); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) IsAllowed(ctx context.Context, holder string) (bool, error) {
	var one int
	err := t.q.QueryRow(ctx, `SELECT 1 FROM units_allowlist WHERE holder=$1`, holder).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgTx) PutAllowed(ctx context.Context, holder string) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO units_allowlist(holder) VALUES($1) ON CONFLICT (holder) DO NOTHING
`, holder)
	return err
}

func (t *pgTx) DeleteAllowed(ctx context.Context, holder string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM units_allowlist WHERE holder=$1`, holder)
	return err
}

func (t *pgTx) ListAllowed(ctx context.Context) ([]string, error) {
	rows, err := t.q.Query(ctx, `SELECT holder FROM units_allowlist ORDER BY holder`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var holder string
		if err := rows.Scan(&holder); err != nil {
			return nil, err
		}
		out = append(out, holder)
	}
	return out, rows.Err()
}

const principalColumns = `principal_id,display_name,token_hash,status,created_at`

func scanPrincipal(row pgx.Row) (domain.Principal, error) {
	var p domain.Principal
	err := row.Scan(&p.PrincipalID, &p.DisplayName, &p.TokenHash, &p.Status, &p.CreatedAt)
	return p, err
}

func (t *pgTx) GetPrincipal(ctx context.Context, principalID string) (domain.Principal, bool, error) {
	p, err := scanPrincipal(t.q.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM units_principals WHERE principal_id=$1`, principalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Principal{}, false, nil
	}
	if err != nil {
		return domain.Principal{}, false, err
	}
	return p, true, nil
}

func (t *pgTx) GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (domain.Principal, bool, error) {
	p, err := scanPrincipal(t.q.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM units_principals WHERE token_hash=$1`, tokenHash))
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
INSERT INTO units_principals(`+principalColumns+`)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (principal_id) DO UPDATE SET
  display_name=EXCLUDED.display_name,
  token_hash=EXCLUDED.token_hash,
  status=EXCLUDED.status
`, p.PrincipalID, p.DisplayName, p.TokenHash, p.Status, p.CreatedAt)
	return err
}

func (t *pgTx) GetMintRecord(ctx context.Context, mintKey string) (MintRecord, bool, error) {
	var rec MintRecord
	err := t.q.QueryRow(ctx, `
SELECT params_hash,holder,amount,supply FROM units_mint_keys WHERE mint_key=$1
`, mintKey).Scan(&rec.ParamsHash, &rec.Holder, &rec.Amount, &rec.Supply)
	if errors.Is(err, pgx.ErrNoRows) {
		return MintRecord{}, false, nil
	}
	if err != nil {
		return MintRecord{}, false, err
	}
	return rec, true, nil
}

func (t *pgTx) SaveMintRecord(ctx context.Context, mintKey string, rec MintRecord) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO units_mint_keys(mint_key,params_hash,holder,amount,supply)
VALUES($1,$2,$3,$4,$5)
`, mintKey, rec.ParamsHash, rec.Holder, rec.Amount, rec.Supply)
	return err
}
