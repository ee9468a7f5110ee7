package repo

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

// Memory implementa engine.Store em memória. Um único mutex serializa as
// transações, equivalente a um lock de tabela; as escritas ficam em staging e
// só são aplicadas quando fn retorna nil.
// Usado em testes e com STORE_DRIVER=memory.
type Memory struct {
	mu         sync.Mutex
	users      map[string]engine.User
	challenges map[string]engine.Challenge
	disputes   map[string]engine.Dispute
	txs        []engine.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]engine.User),
		challenges: make(map[string]engine.Challenge),
		disputes:   make(map[string]engine.Dispute),
	}
}

// PutUser cria ou substitui um usuário (provisionamento externo / seed).
func (m *Memory) PutUser(id string, balanceCents int64, isAdmin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = engine.User{ID: id, BalanceCents: balanceCents, IsAdmin: isAdmin}
}

// PromoteAdmin marca o usuário como administrador, criando-o se necessário.
func (m *Memory) PromoteAdmin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.ID = id
	u.IsAdmin = true
	m.users[id] = u
	return nil
}

// IsAdmin implementa engine.AdminChecker.
func (m *Memory) IsAdmin(_ context.Context, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[actorID].IsAdmin, nil
}

// WithinTx executa fn com acesso exclusivo; erro descarta o staging inteiro.
func (m *Memory) WithinTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &memTx{
		m:          m,
		users:      make(map[string]engine.User),
		challenges: make(map[string]engine.Challenge),
		disputes:   make(map[string]engine.Dispute),
	}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (m *Memory) GetUser(_ context.Context, userID string) (engine.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return engine.User{}, engine.ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetChallenge(_ context.Context, challengeID string) (engine.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[challengeID]
	if !ok {
		return engine.Challenge{}, engine.ErrNotFound
	}
	return c, nil
}

func (m *Memory) GetDispute(_ context.Context, disputeID string) (engine.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[disputeID]
	if !ok {
		return engine.Dispute{}, engine.ErrNotFound
	}
	return d, nil
}

func (m *Memory) ListChallenges(_ context.Context, status engine.Status, limit int) ([]engine.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Challenge
	for _, c := range m.challenges {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListDisputes(_ context.Context, status engine.DisputeStatus) ([]engine.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Dispute
	for _, d := range m.disputes {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListDisputesByChallenge(_ context.Context, challengeID string) ([]engine.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Dispute
	for _, d := range m.disputes {
		if d.ChallengeID == challengeID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListTransactionsByUser retorna o histórico do usuário, mais recente primeiro.
func (m *Memory) ListTransactionsByUser(_ context.Context, userID string) ([]engine.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Transaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *Memory) ListTransactionsByReference(_ context.Context, referenceID string) ([]engine.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Transaction
	for _, t := range m.txs {
		if t.ReferenceID == referenceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) SumByReference(_ context.Context, referenceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.txs {
		if t.ReferenceID == referenceID {
			sum += t.AmountCents
		}
	}
	return sum, nil
}

// memTx guarda as escritas da transação até o commit.
type memTx struct {
	m          *Memory
	users      map[string]engine.User
	challenges map[string]engine.Challenge
	disputes   map[string]engine.Dispute
	txs        []engine.Transaction
}

func (t *memTx) commit() {
	maps.Copy(t.m.users, t.users)
	maps.Copy(t.m.challenges, t.challenges)
	maps.Copy(t.m.disputes, t.disputes)
	t.m.txs = append(t.m.txs, t.txs...)
}

func (t *memTx) challenge(id string) (engine.Challenge, bool) {
	if c, ok := t.challenges[id]; ok {
		return c, true
	}
	c, ok := t.m.challenges[id]
	return c, ok
}

func (t *memTx) dispute(id string) (engine.Dispute, bool) {
	if d, ok := t.disputes[id]; ok {
		return d, true
	}
	d, ok := t.m.disputes[id]
	return d, ok
}

func (t *memTx) user(id string) (engine.User, bool) {
	if u, ok := t.users[id]; ok {
		return u, true
	}
	u, ok := t.m.users[id]
	return u, ok
}

func (t *memTx) LockChallenge(_ context.Context, challengeID string) (engine.Challenge, error) {
	c, ok := t.challenge(challengeID)
	if !ok {
		return engine.Challenge{}, engine.ErrNotFound
	}
	return c, nil
}

func (t *memTx) InsertChallenge(_ context.Context, c *engine.Challenge) error {
	t.challenges[c.ID] = *c
	return nil
}

func (t *memTx) UpdateChallenge(_ context.Context, c *engine.Challenge) error {
	if _, ok := t.challenge(c.ID); !ok {
		return engine.ErrNotFound
	}
	t.challenges[c.ID] = *c
	return nil
}

func (t *memTx) GetDispute(_ context.Context, disputeID string) (engine.Dispute, error) {
	d, ok := t.dispute(disputeID)
	if !ok {
		return engine.Dispute{}, engine.ErrNotFound
	}
	return d, nil
}

func (t *memTx) LockDispute(ctx context.Context, disputeID string) (engine.Dispute, error) {
	return t.GetDispute(ctx, disputeID)
}

func (t *memTx) InsertDispute(_ context.Context, d *engine.Dispute) error {
	t.disputes[d.ID] = *d
	return nil
}

func (t *memTx) UpdateDispute(_ context.Context, d *engine.Dispute) error {
	if _, ok := t.dispute(d.ID); !ok {
		return engine.ErrNotFound
	}
	t.disputes[d.ID] = *d
	return nil
}

func (t *memTx) GetUser(_ context.Context, userID string) (engine.User, error) {
	u, ok := t.user(userID)
	if !ok {
		return engine.User{}, engine.ErrNotFound
	}
	return u, nil
}

func (t *memTx) LockUser(ctx context.Context, userID string) (engine.User, error) {
	return t.GetUser(ctx, userID)
}

func (t *memTx) EnsureUser(_ context.Context, userID string) (engine.User, error) {
	u, ok := t.user(userID)
	if !ok {
		u = engine.User{ID: userID}
		t.users[userID] = u
	}
	return u, nil
}

func (t *memTx) AddBalance(_ context.Context, userID string, delta int64) (int64, error) {
	u, ok := t.user(userID)
	if !ok {
		return 0, engine.ErrNotFound
	}
	if u.BalanceCents+delta < 0 {
		return 0, engine.ErrInsufficientBalance
	}
	u.BalanceCents += delta
	t.users[userID] = u
	return u.BalanceCents, nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *engine.Transaction) error {
	cp := *tr
	cp.Metadata = maps.Clone(tr.Metadata)
	t.txs = append(t.txs, cp)
	return nil
}

func (t *memTx) HasTransaction(_ context.Context, userID string, typ engine.TxType, referenceID string) (bool, error) {
	for _, list := range [][]engine.Transaction{t.m.txs, t.txs} {
		for _, tr := range list {
			if tr.UserID == userID && tr.Type == typ && tr.ReferenceID == referenceID {
				return true, nil
			}
		}
	}
	return false, nil
}
