package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spinwheel-backend/internal/models"
)

// MemoryStore is an in-process Store and SessionStore. A single mutex
// serializes every transaction.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	lastSweep time.Time

	data         map[string][]byte
	processed    map[string]time.Time
	spins        map[string][]*models.SpinResult
	transactions []*models.Transaction

	challenges map[string]*models.Challenge
	sessions   map[string]*models.UserSession
	expiries   map[string]time.Time
	rates      map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

type memoryView struct {
	data map[string][]byte
}

func (v memoryView) get(key string) ([]byte, error) {
	return v.data[key], nil
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		data:       make(map[string][]byte),
		processed:  make(map[string]time.Time),
		spins:      make(map[string][]*models.SpinResult),
		challenges: make(map[string]*models.Challenge),
		sessions:   make(map[string]*models.UserSession),
		expiries:   make(map[string]time.Time),
		rates:      make(map[string]*rateWindow),
	}
}

func (m *MemoryStore) Execute(ctx context.Context, requestID string, fn func(tx *Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if requestID != "" {
		if at, ok := m.processed[requestID]; ok && m.now().Sub(at) < TTLProcessed {
			return fmt.Errorf("%w: %s", ErrAlreadyProcessed, requestID)
		}
	}

	tx := newTx(memoryView{data: m.data})
	if err := fn(tx); err != nil {
		return err
	}
	writes, err := tx.writes()
	if err != nil {
		return err
	}

	for key, value := range writes {
		m.data[key] = value
	}
	for _, spin := range tx.spins {
		history := append(m.spins[spin.Player], spin)
		if len(history) > maxHistory {
			history = history[len(history)-maxHistory:]
		}
		m.spins[spin.Player] = history
	}
	m.transactions = append(m.transactions, tx.transactions...)
	if requestID != "" {
		m.processed[requestID] = m.now()
	}
	m.sweepProcessed()
	return nil
}

// sweepProcessed drops request markers older than TTLProcessed, at most
// once an hour.
func (m *MemoryStore) sweepProcessed() {
	now := m.now()
	if now.Sub(m.lastSweep) < time.Hour {
		return
	}
	m.lastSweep = now
	for id, at := range m.processed {
		if now.Sub(at) >= TTLProcessed {
			delete(m.processed, id)
		}
	}
}

func (m *MemoryStore) SpinHistory(ctx context.Context, player string, limit int64) ([]*models.SpinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.spins[player]
	out := make([]*models.SpinResult, 0, len(history))
	for i := len(history) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		cp := *history[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) RecentTransactions(ctx context.Context, limit int64) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Transaction, 0, limit)
	for i := len(m.transactions) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		cp := *m.transactions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) StoreChallenge(ctx context.Context, ch *models.Challenge, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyChallenge, ch.Address)
	cp := *ch
	m.challenges[key] = &cp
	m.expiries[key] = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) TakeChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyChallenge, address)
	ch, ok := m.challenges[key]
	expired := m.expired(key)
	delete(m.challenges, key)
	delete(m.expiries, key)
	if !ok || expired {
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

func (m *MemoryStore) StoreUserSession(ctx context.Context, session *models.UserSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyUserSession, session.Address, session.SessionID)
	cp := *session
	m.sessions[key] = &cp
	m.expiries[key] = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) GetUserSession(ctx context.Context, address, sessionID string) (*models.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyUserSession, address, sessionID)
	session, ok := m.sessions[key]
	if !ok || m.expired(key) {
		return nil, ErrSessionNotFound
	}
	session.LastAccessed = m.now()
	cp := *session
	return &cp, nil
}

func (m *MemoryStore) DeleteUserSession(ctx context.Context, address, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyUserSession, address, sessionID)
	delete(m.sessions, key)
	delete(m.expiries, key)
	return nil
}

func (m *MemoryStore) CheckRateLimit(ctx context.Context, address, action string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf(KeyRateLimit, address, action)
	now := m.now()
	w, ok := m.rates[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		m.rates[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

// Snapshot copies the raw ledger. Two equal snapshots mean no state change.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = string(v)
	}
	return out
}

func (m *MemoryStore) expired(key string) bool {
	exp, ok := m.expiries[key]
	return ok && m.now().After(exp)
}
