package unitstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"grantlane/pkg/domain"
)

var errReadOnly = errors.New("unitstore: mutation inside read-only transaction")

// Mem is the in-memory Store used by tests and local runs. Update stages all
// writes on a copy of the state and swaps it in only when fn succeeds.
type Mem struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	state      *State
	balances   map[string]int64
	allowed    map[string]struct{}
	principals map[string]domain.Principal
	hashToPrin map[string]string
	mintKeys   map[string]MintRecord
}

func NewMem() *Mem {
	return &Mem{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		balances:   map[string]int64{},
		allowed:    map[string]struct{}{},
		principals: map[string]domain.Principal{},
		hashToPrin: map[string]string{},
		mintKeys:   map[string]MintRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	if s.state != nil {
		st := *s.state
		c.state = &st
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k := range s.allowed {
		c.allowed[k] = struct{}{}
	}
	for k, v := range s.principals {
		c.principals[k] = v
	}
	for k, v := range s.hashToPrin {
		c.hashToPrin[k] = v
	}
	for k, v := range s.mintKeys {
		c.mintKeys[k] = v
	}
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

func (t *memTx) GetState(ctx context.Context) (State, bool, error) {
	if t.st.state == nil {
		return State{}, false, nil
	}
	return *t.st.state, true, nil
}

func (t *memTx) PutState(ctx context.Context, s State) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.state = &s
	return nil
}

func (t *memTx) GetBalance(ctx context.Context, holder string) (int64, bool, error) {
	b, ok := t.st.balances[holder]
	return b, ok, nil
}

func (t *memTx) SetBalance(ctx context.Context, holder string, balance int64) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.balances[holder] = balance
	return nil
}

func (t *memTx) ListBalances(ctx context.Context) ([]Balance, error) {
	out := make([]Balance, 0, len(t.st.balances))
	for holder, balance := range t.st.balances {
		out = append(out, Balance{Holder: holder, Balance: balance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}

func (t *memTx) IsAllowed(ctx context.Context, holder string) (bool, error) {
	_, ok := t.st.allowed[holder]
	return ok, nil
}

func (t *memTx) PutAllowed(ctx context.Context, holder string) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.allowed[holder] = struct{}{}
	return nil
}

func (t *memTx) DeleteAllowed(ctx context.Context, holder string) error {
	if !t.writable {
		return errReadOnly
	}
	delete(t.st.allowed, holder)
	return nil
}

func (t *memTx) ListAllowed(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(t.st.allowed))
	for holder := range t.st.allowed {
		out = append(out, holder)
	}
	sort.Strings(out)
	return out, nil
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
	p, ok := t.st.principals[id]
	return p, ok, nil
}

func (t *memTx) UpsertPrincipal(ctx context.Context, p domain.Principal) error {
	if !t.writable {
		return errReadOnly
	}
	if prev, ok := t.st.principals[p.PrincipalID]; ok {
		delete(t.st.hashToPrin, prev.TokenHash)
	}
	t.st.principals[p.PrincipalID] = p
	t.st.hashToPrin[p.TokenHash] = p.PrincipalID
	return nil
}

func (t *memTx) GetMintRecord(ctx context.Context, mintKey string) (MintRecord, bool, error) {
	rec, ok := t.st.mintKeys[mintKey]
	return rec, ok, nil
}

func (t *memTx) SaveMintRecord(ctx context.Context, mintKey string, rec MintRecord) error {
	if !t.writable {
		return errReadOnly
	}
	t.st.mintKeys[mintKey] = rec
	return nil
}
