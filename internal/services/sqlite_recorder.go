package services

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/decred/slog"
	_ "modernc.org/sqlite"

	"spinwheel-backend/internal/models"
)

// SQLiteRecorder keeps a queryable copy of every committed settlement.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log slog.Logger
}

// NewSQLiteRecorder opens (or creates) the database at path and runs
// migrations.
func NewSQLiteRecorder(path string, log slog.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = slog.Disabled
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets analytics read while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("SQLite recorder opened: %s", path)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS spins (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			spin_index   INTEGER NOT NULL,
			player       TEXT NOT NULL,
			bet_amount   INTEGER NOT NULL,
			multiplier   INTEGER NOT NULL,
			outcome      TEXT NOT NULL,
			payout       INTEGER NOT NULL,
			fee          INTEGER NOT NULL,
			random_value INTEGER NOT NULL,
			pool_after   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spins_player ON spins(player, spin_index)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			type        TEXT NOT NULL,
			address     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			pool_before INTEGER,
			pool_after  INTEGER,
			spin_id     TEXT,
			description TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(timestamp)`,

		`CREATE TABLE IF NOT EXISTS pool_snapshots (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			balance            INTEGER NOT NULL,
			min_bet            INTEGER NOT NULL,
			max_bet            INTEGER NOT NULL,
			total_spins        INTEGER NOT NULL,
			dev_fees_collected INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON pool_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSpin(res *models.SpinResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals, err := sqlAmounts(res.SpinIndex, res.BetAmount, res.Payout, res.Fee, res.PoolBalanceAfter)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO spins
		(id, timestamp, spin_index, player, bet_amount, multiplier, outcome, payout, fee, random_value, pool_after)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		res.ID, res.CreatedAt.Unix(), vals[0], res.Player, vals[1],
		res.Multiplier, res.Outcome, vals[2], vals[3], res.RandomValue, vals[4],
	)
	return err
}

func (r *SQLiteRecorder) RecordTransaction(t *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals, err := sqlAmounts(t.Amount, t.PoolBefore, t.PoolAfter)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO transactions
		(id, timestamp, type, address, amount, pool_before, pool_after, spin_id, description)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CreatedAt.Unix(), string(t.Type), t.Address,
		vals[0], vals[1], vals[2], t.SpinID, t.Description,
	)
	return err
}

func (r *SQLiteRecorder) RecordPoolSnapshot(snap *PoolSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals, err := sqlAmounts(snap.Balance, snap.MinBet, snap.MaxBet, snap.TotalSpins, snap.DevFeesCollected)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO pool_snapshots
		(timestamp, balance, min_bet, max_bet, total_spins, dev_fees_collected)
		VALUES (?,?,?,?,?,?)`,
		snap.TakenAt.Unix(), vals[0], vals[1], vals[2], vals[3], vals[4],
	)
	return err
}

// Summary totals everything recorded so far.
func (r *SQLiteRecorder) Summary() (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Summary
	var wagered, paid, fees int64
	err := r.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN payout > 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(bet_amount), 0), COALESCE(SUM(payout), 0), COALESCE(SUM(fee), 0)
		FROM spins`).Scan(&s.Spins, &s.Wins, &wagered, &paid, &fees)
	if err != nil {
		return nil, fmt.Errorf("query spins: %w", err)
	}
	s.TotalWagered, s.TotalPaid, s.TotalFees = uint64(wagered), uint64(paid), uint64(fees)

	rows, err := r.db.Query(`SELECT type, COALESCE(SUM(amount), 0) FROM transactions GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var total int64
		if err := rows.Scan(&typ, &total); err != nil {
			return nil, err
		}
		switch models.TransactionType(typ) {
		case models.TransactionTypeFund:
			s.Funded = uint64(total)
		case models.TransactionTypeWithdraw:
			s.Withdrawn = uint64(total)
		}
	}
	return &s, rows.Err()
}

// LatestSnapshot returns the most recent pool snapshot, or nil if none.
func (r *SQLiteRecorder) LatestSnapshot() (*PoolSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ts, balance, minBet, maxBet, spins, fees int64
	err := r.db.QueryRow(`SELECT timestamp, balance, min_bet, max_bet, total_spins, dev_fees_collected
		FROM pool_snapshots ORDER BY id DESC LIMIT 1`).Scan(&ts, &balance, &minBet, &maxBet, &spins, &fees)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &PoolSnapshot{
		Balance:          uint64(balance),
		MinBet:           uint64(minBet),
		MaxBet:           uint64(maxBet),
		TotalSpins:       uint64(spins),
		DevFeesCollected: uint64(fees),
		TakenAt:          time.Unix(ts, 0).UTC(),
	}, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// sqlAmounts converts token amounts to SQLite integers, which are signed.
func sqlAmounts(vals ...uint64) ([]int64, error) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("amount %d does not fit an sqlite integer", v)
		}
		out[i] = int64(v)
	}
	return out, nil
}
