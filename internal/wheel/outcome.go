package wheel

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
)

// Outcome identifies a wheel segment.
type Outcome string

const (
	OutcomeLoss      Outcome = "loss"
	OutcomeSmallWin  Outcome = "small_win"
	OutcomeMediumWin Outcome = "medium_win"
	OutcomeBigWin    Outcome = "big_win"
)

// Ratio is a payout multiplier expressed as Num/Den.
type Ratio struct {
	Num uint64
	Den uint64
}

// Apply returns floor(amount * Num / Den), failing with ErrCalculation on
// overflow or a zero denominator.
func (r Ratio) Apply(amount uint64) (uint64, error) {
	if r.Den == 0 {
		return 0, ErrCalculation
	}
	hi, lo := bits.Mul64(amount, r.Num)
	if hi >= r.Den {
		return 0, ErrCalculation
	}
	q, _ := bits.Div64(hi, lo, r.Den)
	return q, nil
}

// Percent returns the multiplier in hundredths (120 for 1.2x).
func (r Ratio) Percent() uint64 {
	if r.Den == 0 {
		return 0
	}
	return r.Num * 100 / r.Den
}

// Segment is one slice of the wheel. A roll r lands on the first segment
// with r < Upper.
type Segment struct {
	Outcome    Outcome
	Upper      uint8
	Multiplier Ratio
}

// Segments is the cumulative distribution over rolls in [0,100).
var Segments = []Segment{
	{Outcome: OutcomeLoss, Upper: 60, Multiplier: Ratio{Num: 0, Den: 1}},
	{Outcome: OutcomeSmallWin, Upper: 80, Multiplier: Ratio{Num: 6, Den: 5}},
	{Outcome: OutcomeMediumWin, Upper: 90, Multiplier: Ratio{Num: 2, Den: 1}},
	{Outcome: OutcomeBigWin, Upper: 100, Multiplier: Ratio{Num: 4, Den: 1}},
}

// RollRange is the exclusive upper bound of a roll.
const RollRange = 100

// Resolve maps a roll in [0,100) to its segment. Rolls outside the range
// are reduced modulo 100.
func Resolve(roll uint8) Segment {
	roll %= RollRange
	for _, s := range Segments {
		if roll < s.Upper {
			return s
		}
	}
	return Segments[0]
}

// DeriveSeed mixes environment entropy with the spin index and the player so
// that a seed cannot be reused across bets. This is not a verifiable or
// unbiasable randomness source: whoever controls the seed material can
// grind outcomes.
func DeriveSeed(material []byte, spinIndex uint64, player string) [32]byte {
	h := sha256.New()
	h.Write(material)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], spinIndex)
	h.Write(idx[:])
	h.Write([]byte(player))

	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

// RollFromSeed reduces a seed to a roll in [0,100). Using 64 bits keeps the
// modulo bias negligible.
func RollFromSeed(seed [32]byte) uint8 {
	return uint8(binary.BigEndian.Uint64(seed[:8]) % RollRange)
}

// ExpectedReturn is the payout per unit staked, in basis points, assuming a
// uniform roll.
func ExpectedReturn() uint64 {
	var total uint64
	var lower uint8
	for _, s := range Segments {
		width := uint64(s.Upper - lower)
		total += width * s.Multiplier.Num * 100 / s.Multiplier.Den
		lower = s.Upper
	}
	return total
}
