package wheel

import "fmt"

const (
	// TokenDecimals is the decimal scale of the accepted token.
	TokenDecimals = 9
	// UnitsPerToken is the number of smallest units in one display unit.
	UnitsPerToken = 1_000_000_000

	// FloorMinBet is 0.0001 tokens.
	FloorMinBet = 100_000

	minBetDivisor = 1000 // 0.1% of pool
	maxBetDivisor = 8    // 12.5% of pool, so a 4x payout takes at most half the pool
)

// Limits are the bet bounds derived from a pool balance.
type Limits struct {
	Min uint64 `json:"min_bet"`
	Max uint64 `json:"max_bet"`
}

// BetLimits derives the bounds for the next bet from the pool balance before
// that bet is applied.
func BetLimits(poolBalance uint64) Limits {
	minBet := poolBalance / minBetDivisor
	if minBet < FloorMinBet {
		minBet = FloorMinBet
	}
	return Limits{
		Min: minBet,
		Max: poolBalance / maxBetDivisor,
	}
}

// Check validates amount against the bounds.
func (l Limits) Check(amount uint64) error {
	if amount < l.Min {
		return fmt.Errorf("%w: %d < min %d", ErrBetTooLow, amount, l.Min)
	}
	if amount > l.Max {
		return fmt.Errorf("%w: %d > max %d", ErrBetTooHigh, amount, l.Max)
	}
	return nil
}

// Open reports whether any bet can currently satisfy the bounds.
func (l Limits) Open() bool {
	return l.Min <= l.Max
}

// FormatTokens renders smallest units as a display amount.
func FormatTokens(units uint64) string {
	return fmt.Sprintf("%d.%09d", units/UnitsPerToken, units%UnitsPerToken)
}
