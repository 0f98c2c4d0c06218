package models

import "time"

type TransactionType string

const (
	TransactionTypeSpin     TransactionType = "spin"
	TransactionTypeFund     TransactionType = "fund"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeMint     TransactionType = "mint"
)

// Transaction is an audit entry for a committed operation that moved funds.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Address     string          `json:"address"`
	Amount      uint64          `json:"amount"`
	PoolBefore  uint64          `json:"pool_before"`
	PoolAfter   uint64          `json:"pool_after"`
	SpinID      string          `json:"spin_id,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
