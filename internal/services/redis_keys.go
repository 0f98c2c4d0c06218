package services

import "time"

const (
	KeyGameState    = "game:state"
	KeyMint         = "mint:%s"
	KeyAccount      = "account:%s"
	KeyProcessed    = "processed:%s"
	KeySpin         = "spin:%s"
	KeyPlayerSpins  = "player:%s:spins"
	KeyTransaction  = "transaction:%s"
	KeyTransactions = "transactions"
	KeyUserSession  = "user:%s:session:%s"
	KeyChallenge    = "challenge:%s"
	KeyRateLimit    = "ratelimit:%s:%s"

	TTLSpin        = 30 * 24 * time.Hour // 30 days
	TTLTransaction = 30 * 24 * time.Hour // 30 days
	TTLProcessed   = 7 * 24 * time.Hour  // 7 days

	maxHistory    = 100
	maxTxAttempts = 8
)
