package services

import (
	"context"
	"encoding/binary"
	"time"
)

// SlotDuration approximates the ledger slot time used as seed material.
const SlotDuration = 400 * time.Millisecond

// SeedSource supplies environment entropy for a spin. Implementations are
// not required to be unpredictable; see SlotSeedSource.
type SeedSource interface {
	SeedMaterial(ctx context.Context) ([]byte, error)
}

// SeedSourceFunc adapts a function to SeedSource.
type SeedSourceFunc func(ctx context.Context) ([]byte, error)

func (f SeedSourceFunc) SeedMaterial(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// SlotSeedSource derives seed material from the current slot number and the
// clock. Anyone who can time a submission can bias it; replace with a
// verifiable randomness oracle before real money is involved.
type SlotSeedSource struct {
	now func() time.Time
}

func NewSlotSeedSource() *SlotSeedSource {
	return &SlotSeedSource{now: time.Now}
}

func (s *SlotSeedSource) SeedMaterial(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[:8], uint64(now.UnixNano()/int64(SlotDuration)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(now.UnixNano()))
	return buf, nil
}
