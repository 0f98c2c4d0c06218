package wheel_test

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwheel-backend/internal/wheel"
)

func TestBetLimitsScenario(t *testing.T) {
	limits := wheel.BetLimits(1_000_000_000_000)
	assert.Equal(t, uint64(1_000_000_000), limits.Min)
	assert.Equal(t, uint64(125_000_000_000), limits.Max)

	big := wheel.Resolve(95)
	require.Equal(t, wheel.OutcomeBigWin, big.Outcome)

	s, err := wheel.Settle(1_000_000_000, 1_000_000_000_000, big, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000_000), s.Payout)
	assert.Equal(t, uint64(1_000_000_000_000-3_000_000_000), s.PoolAfter)
}

func TestBetLimitsFloor(t *testing.T) {
	limits := wheel.BetLimits(50_000_000)
	assert.Equal(t, uint64(wheel.FloorMinBet), limits.Min)
	assert.Equal(t, uint64(6_250_000), limits.Max)

	empty := wheel.BetLimits(0)
	assert.False(t, empty.Open())
	assert.ErrorIs(t, empty.Check(wheel.FloorMinBet), wheel.ErrBetTooHigh)
}

func TestBetLimitsOrdered(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))
	for i := 0; i < 10_000; i++ {
		b := 800_000 + rng.Uint64N(math.MaxUint64-800_000)
		l := wheel.BetLimits(b)
		require.LessOrEqual(t, l.Min, l.Max, "pool %d", b)
	}
	assert.True(t, wheel.BetLimits(800_000).Open())
	assert.False(t, wheel.BetLimits(799_999).Open())
}

func TestBetLimitsBoundaries(t *testing.T) {
	for _, pool := range []uint64{800_000, 3_000_000_000, 1_000_000_000_000, 987_654_321_987} {
		l := wheel.BetLimits(pool)
		assert.NoError(t, l.Check(l.Min), "pool %d", pool)
		assert.NoError(t, l.Check(l.Max), "pool %d", pool)
		assert.ErrorIs(t, l.Check(l.Min-1), wheel.ErrBetTooLow, "pool %d", pool)
		assert.ErrorIs(t, l.Check(l.Max+1), wheel.ErrBetTooHigh, "pool %d", pool)
	}
}

func TestResolveTable(t *testing.T) {
	cases := []struct {
		roll    uint8
		outcome wheel.Outcome
		percent uint64
	}{
		{0, wheel.OutcomeLoss, 0},
		{59, wheel.OutcomeLoss, 0},
		{60, wheel.OutcomeSmallWin, 120},
		{79, wheel.OutcomeSmallWin, 120},
		{80, wheel.OutcomeMediumWin, 200},
		{89, wheel.OutcomeMediumWin, 200},
		{90, wheel.OutcomeBigWin, 400},
		{99, wheel.OutcomeBigWin, 400},
	}
	for _, c := range cases {
		seg := wheel.Resolve(c.roll)
		assert.Equal(t, c.outcome, seg.Outcome, "roll %d", c.roll)
		assert.Equal(t, c.percent, seg.Multiplier.Percent(), "roll %d", c.roll)
	}
	assert.Equal(t, uint64(8400), wheel.ExpectedReturn())
}

func TestOutcomeDistribution(t *testing.T) {
	const n = 100_000
	rng := rand.New(rand.NewPCG(42, 0))
	counts := map[wheel.Outcome]int{}

	var seed [32]byte
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint64(seed[:8], rng.Uint64())
		counts[wheel.Resolve(wheel.RollFromSeed(seed)).Outcome]++
	}

	want := map[wheel.Outcome]float64{
		wheel.OutcomeLoss:      0.60,
		wheel.OutcomeSmallWin:  0.20,
		wheel.OutcomeMediumWin: 0.10,
		wheel.OutcomeBigWin:    0.10,
	}
	for outcome, p := range want {
		freq := float64(counts[outcome]) / n
		assert.InDelta(t, p, freq, 0.01, "outcome %s", outcome)
	}
}

func TestDeriveSeedVaries(t *testing.T) {
	a := wheel.DeriveSeed([]byte("slot"), 0, "player")
	b := wheel.DeriveSeed([]byte("slot"), 1, "player")
	c := wheel.DeriveSeed([]byte("slot"), 0, "other")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, wheel.DeriveSeed([]byte("slot"), 0, "player"))
}

func TestSettleIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	const start = uint64(1_000_000_000_000)
	pool := start
	for i := 0; i < 5_000; i++ {
		// The pool drifts upward; restart it before a max bet could overflow.
		if pool > math.MaxUint64/4 {
			pool = start
		}
		l := wheel.BetLimits(pool)
		require.True(t, l.Open())
		amount := l.Min + rng.Uint64N(l.Max-l.Min+1)
		seg := wheel.Resolve(uint8(rng.UintN(100)))

		s, err := wheel.Settle(amount, pool, seg, 100)
		require.NoError(t, err)
		require.Equal(t, pool+amount-s.Payout, s.PoolAfter)
		require.Equal(t, amount+s.Fee, s.PlayerDebit)
		pool = s.PoolAfter
	}
}

func TestSettleSmallWinTruncates(t *testing.T) {
	s, err := wheel.Settle(1_000_001, 10_000_000, wheel.Resolve(70), 150)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_200_001), s.Payout)
	assert.Equal(t, uint64(15_000), s.Fee)
}

func TestSettleOverflow(t *testing.T) {
	_, err := wheel.Settle(math.MaxUint64, 0, wheel.Resolve(95), 0)
	assert.ErrorIs(t, err, wheel.ErrCalculation)

	_, err = wheel.Settle(10, math.MaxUint64, wheel.Resolve(0), 0)
	assert.ErrorIs(t, err, wheel.ErrCalculation)

	_, err = wheel.Fee(100, wheel.MaxFeeBps+1)
	assert.ErrorIs(t, err, wheel.ErrCalculation)
}

func TestSettleInsufficientPool(t *testing.T) {
	_, err := wheel.Settle(1_000, 1_000, wheel.Resolve(99), 0)
	assert.ErrorIs(t, err, wheel.ErrInsufficientPool)
}

func TestCheckedArithmetic(t *testing.T) {
	diff, err := wheel.CheckedSub(10, 10)
	require.NoError(t, err)
	assert.Zero(t, diff)
	_, err = wheel.CheckedSub(10, 11)
	assert.ErrorIs(t, err, wheel.ErrCalculation)

	_, err = wheel.CheckedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, wheel.ErrCalculation)
}

func TestCodes(t *testing.T) {
	assert.Equal(t, "not_initialized", wheel.Code(wheel.ErrNotInitialized))
	assert.Equal(t, "invalid_operation", wheel.Code(wheel.ErrInvalidAmount))
	assert.ErrorIs(t, wheel.ErrAlreadyInitialized, wheel.ErrInvalidOperation)
	assert.Equal(t, "bet_too_high", wheel.Code(wheel.ErrBetTooHigh))
	assert.Equal(t, "internal_error", wheel.Code(assert.AnError))
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "1000.000000000", wheel.FormatTokens(1_000_000_000_000))
	assert.Equal(t, "0.000100000", wheel.FormatTokens(wheel.FloorMinBet))
}
