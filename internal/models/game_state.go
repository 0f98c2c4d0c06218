package models

import "time"

// GameState is the singleton record of the wheel program.
type GameState struct {
	ProgramID        string    `json:"program_id"`
	Authority        string    `json:"authority"`
	TokenMint        string    `json:"token_mint"`
	RewardPool       string    `json:"reward_pool"`
	DevFeeAccount    string    `json:"dev_fee_account"`
	TotalSpins       uint64    `json:"total_spins"`
	DevFeesCollected uint64    `json:"dev_fees_collected"`
	CreatedAt        time.Time `json:"created_at"`
}

type PoolInfo struct {
	Balance uint64 `json:"balance"`
	MinBet  uint64 `json:"min_bet"`
	MaxBet  uint64 `json:"max_bet"`
	Open    bool   `json:"open"`
}

type GameStateResponse struct {
	State *GameState `json:"state"`
	Pool  PoolInfo   `json:"pool"`
}
