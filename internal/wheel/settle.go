package wheel

import (
	"fmt"
	"math/bits"
)

const (
	// BpsDenominator is the basis point scale for fee rates.
	BpsDenominator = 10_000
	// MaxFeeBps caps the dev fee at 10% of the stake.
	MaxFeeBps = 1_000
)

// Settlement is the arithmetic outcome of one bet. The fee is charged to the
// player on top of the stake and never touches the pool.
type Settlement struct {
	Amount      uint64
	Payout      uint64
	Fee         uint64
	PoolBefore  uint64
	PoolAfter   uint64
	Multiplier  Ratio
	Outcome     Outcome
	PlayerDebit uint64 // stake + fee
}

// Fee returns amount * bps / 10000.
func Fee(amount, bps uint64) (uint64, error) {
	if bps > MaxFeeBps {
		return 0, fmt.Errorf("%w: fee %d bps above cap", ErrCalculation, bps)
	}
	return Ratio{Num: bps, Den: BpsDenominator}.Apply(amount)
}

// Settle computes payout, fee and the resulting pool balance for a bet that
// landed on seg. The pool receives the stake and pays the gross payout, so
// PoolAfter = PoolBefore + Amount - Payout.
func Settle(amount, poolBalance uint64, seg Segment, feeBps uint64) (Settlement, error) {
	payout, err := seg.Multiplier.Apply(amount)
	if err != nil {
		return Settlement{}, fmt.Errorf("payout: %w", err)
	}
	fee, err := Fee(amount, feeBps)
	if err != nil {
		return Settlement{}, fmt.Errorf("fee: %w", err)
	}

	funded, carry := bits.Add64(poolBalance, amount, 0)
	if carry != 0 {
		return Settlement{}, fmt.Errorf("pool credit: %w", ErrCalculation)
	}
	if payout > funded {
		return Settlement{}, fmt.Errorf("%w: payout %d exceeds pool %d", ErrInsufficientPool, payout, funded)
	}

	debit, carry := bits.Add64(amount, fee, 0)
	if carry != 0 {
		return Settlement{}, fmt.Errorf("player debit: %w", ErrCalculation)
	}

	return Settlement{
		Amount:      amount,
		Payout:      payout,
		Fee:         fee,
		PoolBefore:  poolBalance,
		PoolAfter:   funded - payout,
		Multiplier:  seg.Multiplier,
		Outcome:     seg.Outcome,
		PlayerDebit: debit,
	}, nil
}

// CheckedAdd returns a+b or ErrCalculation on overflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrCalculation
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrCalculation on underflow.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrCalculation
	}
	return diff, nil
}
