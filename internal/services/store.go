package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/wheel"
)

var (
	// ErrAlreadyProcessed means the request id was committed before. It is
	// not a settlement failure and callers should report it as such.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrTxConflict means the transaction lost every optimistic retry.
	ErrTxConflict = errors.New("transaction conflict")
	// ErrSessionNotFound is returned for expired or unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrChallengeNotFound is returned when no sign-in nonce is pending.
	ErrChallengeNotFound = errors.New("challenge not found")
)

// Store is the execution environment: it runs fn as one atomic,
// serializable transaction. Nothing fn writes is visible unless fn returns
// nil. A non-empty requestID that was already committed yields
// ErrAlreadyProcessed without running fn.
type Store interface {
	Execute(ctx context.Context, requestID string, fn func(tx *Tx) error) error
	SpinHistory(ctx context.Context, player string, limit int64) ([]*models.SpinResult, error)
	RecentTransactions(ctx context.Context, limit int64) ([]*models.Transaction, error)
}

// SessionStore keeps sign-in challenges, sessions and rate limit counters.
type SessionStore interface {
	StoreChallenge(ctx context.Context, ch *models.Challenge, ttl time.Duration) error
	TakeChallenge(ctx context.Context, address string) (*models.Challenge, error)
	StoreUserSession(ctx context.Context, session *models.UserSession, ttl time.Duration) error
	GetUserSession(ctx context.Context, address, sessionID string) (*models.UserSession, error)
	DeleteUserSession(ctx context.Context, address, sessionID string) error
	CheckRateLimit(ctx context.Context, address, action string, limit int, window time.Duration) (bool, error)
}

// txView is the read side of a backend. get returns nil, nil for a missing
// key.
type txView interface {
	get(key string) ([]byte, error)
}

// Tx is a staged view over the store. Reads go through to the backend once
// and are cached; writes stay in the Tx until the backend commits them.
type Tx struct {
	view  txView
	now   time.Time
	cache map[string]any
	dirty map[string]bool

	spins        []*models.SpinResult
	transactions []*models.Transaction
}

func newTx(view txView) *Tx {
	return &Tx{
		view:  view,
		now:   time.Now().UTC(),
		cache: make(map[string]any),
		dirty: make(map[string]bool),
	}
}

// Now is the transaction timestamp.
func (tx *Tx) Now() time.Time { return tx.now }

func loadRecord[T any](tx *Tx, key string) (*T, error) {
	if v, ok := tx.cache[key]; ok {
		if v == nil {
			return nil, nil
		}
		cp := *(v.(*T))
		return &cp, nil
	}

	data, err := tx.view.get(key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if data == nil {
		tx.cache[key] = nil
		return nil, nil
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	tx.cache[key] = &rec
	cp := rec
	return &cp, nil
}

func putRecord[T any](tx *Tx, key string, rec *T) {
	cp := *rec
	tx.cache[key] = &cp
	tx.dirty[key] = true
}

// GameState returns the singleton, or nil when the game is not initialized.
func (tx *Tx) GameState() (*models.GameState, error) {
	return loadRecord[models.GameState](tx, KeyGameState)
}

func (tx *Tx) SaveGameState(state *models.GameState) {
	putRecord(tx, KeyGameState, state)
}

// Mint returns the mint at addr or ErrInvalidMint.
func (tx *Tx) Mint(addr string) (*models.Mint, error) {
	mint, err := loadRecord[models.Mint](tx, fmt.Sprintf(KeyMint, addr))
	if err != nil {
		return nil, err
	}
	if mint == nil {
		return nil, fmt.Errorf("%w: mint %s does not exist", wheel.ErrInvalidMint, addr)
	}
	return mint, nil
}

// CreateMint registers a new mint.
func (tx *Tx) CreateMint(mint *models.Mint) error {
	key := fmt.Sprintf(KeyMint, mint.Address)
	existing, err := loadRecord[models.Mint](tx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: mint %s", wheel.ErrAccountExists, mint.Address)
	}
	putRecord(tx, key, mint)
	return nil
}

// FindAccount returns the token account at addr, or nil if absent.
func (tx *Tx) FindAccount(addr string) (*models.TokenAccount, error) {
	return loadRecord[models.TokenAccount](tx, fmt.Sprintf(KeyAccount, addr))
}

// Account returns the token account at addr or ErrAccountNotFound.
func (tx *Tx) Account(addr string) (*models.TokenAccount, error) {
	acc, err := tx.FindAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", wheel.ErrAccountNotFound, addr)
	}
	return acc, nil
}

// BalanceOf returns the balance of the token account at addr.
func (tx *Tx) BalanceOf(addr string) (uint64, error) {
	acc, err := tx.Account(addr)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// CreateAccount opens an empty token account.
func (tx *Tx) CreateAccount(addr, mint, owner string) (*models.TokenAccount, error) {
	if _, err := tx.Mint(mint); err != nil {
		return nil, err
	}
	existing, err := tx.FindAccount(addr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", wheel.ErrAccountExists, addr)
	}

	acc := &models.TokenAccount{Address: addr, Mint: mint, Owner: owner}
	putRecord(tx, fmt.Sprintf(KeyAccount, addr), acc)
	return acc, nil
}

// Transfer moves amount from one token account to another. signer must own
// the source account.
func (tx *Tx) Transfer(from, to, signer string, amount uint64) error {
	if from == to {
		return fmt.Errorf("%w: transfer to self", wheel.ErrInvalidOperation)
	}
	src, err := tx.Account(from)
	if err != nil {
		return err
	}
	dst, err := tx.Account(to)
	if err != nil {
		return err
	}
	if src.Owner != signer {
		return fmt.Errorf("%w: %s cannot sign for %s", wheel.ErrUnauthorized, signer, from)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s and %s hold different mints", wheel.ErrInvalidMint, from, to)
	}
	debited, err := wheel.CheckedSub(src.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d", wheel.ErrInsufficientFunds, from, src.Amount, amount)
	}
	credited, err := wheel.CheckedAdd(dst.Amount, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	src.Amount = debited
	dst.Amount = credited

	putRecord(tx, fmt.Sprintf(KeyAccount, from), src)
	putRecord(tx, fmt.Sprintf(KeyAccount, to), dst)
	return nil
}

// MintTo creates new supply into the token account at to.
func (tx *Tx) MintTo(mintAddr, to, signer string, amount uint64) error {
	mint, err := tx.Mint(mintAddr)
	if err != nil {
		return err
	}
	if mint.MintAuthority != signer {
		return fmt.Errorf("%w: %s is not the mint authority", wheel.ErrUnauthorized, signer)
	}
	dst, err := tx.Account(to)
	if err != nil {
		return err
	}
	if dst.Mint != mintAddr {
		return fmt.Errorf("%w: %s does not hold %s", wheel.ErrInvalidMint, to, mintAddr)
	}

	supply, err := wheel.CheckedAdd(mint.Supply, amount)
	if err != nil {
		return fmt.Errorf("supply: %w", err)
	}
	balance, err := wheel.CheckedAdd(dst.Amount, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	mint.Supply = supply
	dst.Amount = balance

	putRecord(tx, fmt.Sprintf(KeyMint, mintAddr), mint)
	putRecord(tx, fmt.Sprintf(KeyAccount, to), dst)
	return nil
}

// RecordSpin stages a settlement record for commit.
func (tx *Tx) RecordSpin(res *models.SpinResult) {
	tx.spins = append(tx.spins, res)
}

// RecordTransaction stages an audit entry for commit.
func (tx *Tx) RecordTransaction(t *models.Transaction) {
	tx.transactions = append(tx.transactions, t)
}

// writes encodes every dirty record.
func (tx *Tx) writes() (map[string][]byte, error) {
	out := make(map[string][]byte, len(tx.dirty))
	for key := range tx.dirty {
		data, err := json.Marshal(tx.cache[key])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}
