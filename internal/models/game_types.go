package models

import "time"

type SpinRequest struct {
	Amount             uint64 `json:"amount" binding:"required"`
	PlayerTokenAccount string `json:"player_token_account,omitempty"`
	DevFeeAccount      string `json:"dev_fee_account,omitempty"`
	RewardPool         string `json:"reward_pool,omitempty"`
	RequestID          string `json:"request_id,omitempty"`

	Player string `json:"-"`
}

type FundRequest struct {
	Amount             uint64 `json:"amount" binding:"required"`
	FunderTokenAccount string `json:"funder_token_account,omitempty"`
	RequestID          string `json:"request_id,omitempty"`

	Funder string `json:"-"`
}

type WithdrawRequest struct {
	Amount      uint64 `json:"amount" binding:"required"`
	Destination string `json:"destination,omitempty"`
	RequestID   string `json:"request_id,omitempty"`

	Caller string `json:"-"`
}

type InitializeRequest struct {
	TokenMint string `json:"token_mint" binding:"required"`

	Authority string `json:"-"`
}

// SpinResult is the settlement record emitted for every successful spin.
type SpinResult struct {
	ID               string    `json:"id"`
	Player           string    `json:"player"`
	BetAmount        uint64    `json:"bet_amount"`
	Multiplier       uint64    `json:"multiplier"` // hundredths, 120 = 1.2x
	Outcome          string    `json:"outcome"`
	Payout           uint64    `json:"payout"`
	Fee              uint64    `json:"fee"`
	RandomValue      uint8     `json:"random_value"`
	PoolBalanceAfter uint64    `json:"pool_balance_after"`
	SpinIndex        uint64    `json:"spin_index"`
	CreatedAt        time.Time `json:"created_at"`
}

// Won reports whether the spin paid out.
func (r *SpinResult) Won() bool {
	return r.Payout > 0
}
