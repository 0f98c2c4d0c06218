package services

import (
	"time"

	"spinwheel-backend/internal/models"
)

// PoolSnapshot is a periodic sample of the pool and counters.
type PoolSnapshot struct {
	Balance          uint64
	MinBet           uint64
	MaxBet           uint64
	TotalSpins       uint64
	DevFeesCollected uint64
	TakenAt          time.Time
}

// Summary aggregates recorded settlements.
type Summary struct {
	Spins        int64  `json:"spins"`
	Wins         int64  `json:"wins"`
	TotalWagered uint64 `json:"total_wagered"`
	TotalPaid    uint64 `json:"total_paid"`
	TotalFees    uint64 `json:"total_fees"`
	Funded       uint64 `json:"funded"`
	Withdrawn    uint64 `json:"withdrawn"`
}

// Recorder persists committed events for later analysis. It is written to
// after commit and never read by settlement.
type Recorder interface {
	RecordSpin(res *models.SpinResult) error
	RecordTransaction(t *models.Transaction) error
	RecordPoolSnapshot(snap *PoolSnapshot) error
	Summary() (*Summary, error)
	Close() error
}

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSpin(_ *models.SpinResult) error         { return nil }
func (n *NoopRecorder) RecordTransaction(_ *models.Transaction) error { return nil }
func (n *NoopRecorder) RecordPoolSnapshot(_ *PoolSnapshot) error      { return nil }
func (n *NoopRecorder) Summary() (*Summary, error)                    { return &Summary{}, nil }
func (n *NoopRecorder) Close() error                                  { return nil }
