package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"grantlane/pkg/domain"
)

var errReadOnly = errors.New("store: mutation inside read-only transaction")

// Mem is the in-memory Store used by tests and local runs. Update stages all
// writes on a copy of the state and swaps it in only when fn succeeds, so the
// all-or-nothing contract holds without a database.
type Mem struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	control      *domain.Control
	pacts        map[string]domain.Pact
	claims       map[string]domain.Claim
	claimByKey   map[string]string
	stakes       map[string]domain.Stake
	stakeByKey   map[string]string
	principals   map[string]domain.Principal
	hashToPrin   map[string]string
	idempotency  map[string]IdempotencyRecord
	events       []domain.LedgerEvent
}

func NewMem() *Mem {
	return &Mem{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		pacts:       map[string]domain.Pact{},
		claims:      map[string]domain.Claim{},
		claimByKey:  map[string]string{},
		stakes:      map[string]domain.Stake{},
		stakeByKey:  map[string]string{},
		principals:  map[string]domain.Principal{},
		hashToPrin:  map[string]string{},
		idempotency: map[string]IdempotencyRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	if s.control != nil {
		ctl := *s.control
		c.control = &ctl
	}
	for k, v := range s.pacts {
		c.pacts[k] = v
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	for k, v := range s.claimByKey {
		c.claimByKey[k] = v
	}
	for k, v := range s.stakes {
		c.stakes[k] = v
	}
	for k, v := range s.stakeByKey {
		c.stakeByKey[k] = v
	}
	for k, v := range s.principals {
		c.principals[k] = v
	}
	for k, v := range s.hashToPrin {
		c.hashToPrin[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	c.events = append(c.events, s.events...)
	return c
}

func (m *Mem) View(ctx context.Context, fn func(Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{st: m.state})
}

func (m *Mem) Update(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.state.clone()
	if err := fn(&memTx{st: staged, writable: true}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

type memTx struct {
	st       *memState
	writable bool
}

func idemMapKey(kind IdemKind, key string) string { return string(kind) + "\x00" + key }

func (t *memTx) GetControl(ctx context.Context) (domain.Control, bool, error) {
	if t.st.control == nil {
		return domain.Control{}, false, nil
	}
	return *t.st.control, true, nil
}

func (t *memTx) PutControl(ctx context.Context, c domain.Control) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.control = &c
	return nil
}

func (t *memTx) GetPact(ctx context.Context, pactID string) (domain.Pact, bool, error) {
	p, ok := t.st.pacts[pactID]
	return p, ok, nil
}

func (t *memTx) InsertPact(ctx context.Context, p domain.Pact) error {
	if !t.writable {
		return errReadOnly
	}
	if _, exists := t.st.pacts[p.PactID]; exists {
		return fmt.Errorf("store: pact %s already present", p.PactID)
	}
	t.st.pacts[p.PactID] = p
	return nil
}

func (t *memTx) GetClaim(ctx context.Context, claimID string) (domain.Claim, bool, error) {
	c, ok := t.st.claims[claimID]
	return c, ok, nil
}

func (t *memTx) GetClaimByIssuanceKey(ctx context.Context, key string) (domain.Claim, bool, error) {
	id, ok := t.st.claimByKey[key]
	if !ok {
		return domain.Claim{}, false, nil
	}
	return t.st.claims[id], true, nil
}

func (t *memTx) InsertClaim(ctx context.Context, c domain.Claim) error {
	if !t.writable {
		return errReadOnly
	}
	if _, exists := t.st.claims[c.ClaimID]; exists {
		return fmt.Errorf("store: claim %s already present", c.ClaimID)
	}
	t.st.claims[c.ClaimID] = c
	t.st.claimByKey[c.IssuanceKey] = c.ClaimID
	return nil
}

func (t *memTx) UpdateClaim(ctx context.Context, c domain.Claim) error {
	if !t.writable {
		return errReadOnly
	}
	if _, exists := t.st.claims[c.ClaimID]; !exists {
		return fmt.Errorf("store: claim %s not present", c.ClaimID)
	}
	t.st.claims[c.ClaimID] = c
	return nil
}

func (t *memTx) GetStake(ctx context.Context, stakeID string) (domain.Stake, bool, error) {
	s, ok := t.st.stakes[stakeID]
	return s, ok, nil
}

func (t *memTx) GetStakeByRedemptionKey(ctx context.Context, key string) (domain.Stake, bool, error) {
	id, ok := t.st.stakeByKey[key]
	if !ok {
		return domain.Stake{}, false, nil
	}
	return t.st.stakes[id], true, nil
}

func (t *memTx) InsertStake(ctx context.Context, s domain.Stake) error {
	if !t.writable {
		return errReadOnly
	}
	if _, exists := t.st.stakes[s.StakeID]; exists {
		return fmt.Errorf("store: stake %s already present", s.StakeID)
	}
	t.st.stakes[s.StakeID] = s
	t.st.stakeByKey[s.RedemptionKey] = s.StakeID
	return nil
}

func (t *memTx) UpdateStake(ctx context.Context, s domain.Stake) error {
	if !t.writable {
		return errReadOnly
	}
	if _, exists := t.st.stakes[s.StakeID]; !exists {
		return fmt.Errorf("store: stake %s not present", s.StakeID)
	}
	t.st.stakes[s.StakeID] = s
	return nil
}

func (t *memTx) GetPrincipal(ctx context.Context, principalID string) (domain.Principal, bool, error) {
	p, ok := t.st.principals[principalID]
	return p, ok, nil
}

func (t *memTx) GetPrincipalByTokenHash(ctx context.Context, tokenHash string) (domain.Principal, bool, error) {
	id, ok := t.st.hashToPrin[tokenHash]
	if !ok {
		return domain.Principal{}, false, nil
	}
	return t.st.principals[id], true, nil
}

func (t *memTx) UpsertPrincipal(ctx context.Context, p domain.Principal) error {
	if !t.writable {
		return errReadOnly
	}
	if old, ok := t.st.principals[p.PrincipalID]; ok && old.TokenHash != p.TokenHash {
		delete(t.st.hashToPrin, old.TokenHash)
	}
	t.st.principals[p.PrincipalID] = p
	t.st.hashToPrin[p.TokenHash] = p.PrincipalID
	return nil
}

func (t *memTx) GetIdempotencyRecord(ctx context.Context, kind IdemKind, key string) (IdempotencyRecord, bool, error) {
	rec, ok := t.st.idempotency[idemMapKey(kind, key)]
	return rec, ok, nil
}

func (t *memTx) SaveIdempotencyRecord(ctx context.Context, kind IdemKind, key string, rec IdempotencyRecord) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.idempotency[idemMapKey(kind, key)] = rec
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e domain.LedgerEvent) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.events = append(t.st.events, e)
	return nil
}

func (t *memTx) ChainHead(ctx context.Context) (domain.LedgerEvent, bool, error) {
	if len(t.st.events) == 0 {
		return domain.LedgerEvent{}, false, nil
	}
	return t.st.events[len(t.st.events)-1], true, nil
}

func (t *memTx) EventsForRecord(ctx context.Context, recordID string) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, e := range t.st.events {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) ListEvents(ctx context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []domain.LedgerEvent
	for _, e := range t.st.events {
		if e.Seq < fromSeq {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
