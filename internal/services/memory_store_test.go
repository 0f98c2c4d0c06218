package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwheel-backend/internal/services"
)

func TestMemoryStoreProcessedExpiry(t *testing.T) {
	store := services.NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	ctx := context.Background()
	noop := func(*services.Tx) error { return nil }

	require.NoError(t, store.Execute(ctx, "req-old", noop))
	assert.ErrorIs(t, store.Execute(ctx, "req-old", noop), services.ErrAlreadyProcessed)

	now = now.Add(services.TTLProcessed)
	require.NoError(t, store.Execute(ctx, "req-new", noop))
	assert.Equal(t, 1, store.ProcessedCount())

	require.NoError(t, store.Execute(ctx, "req-old", noop))
	assert.Equal(t, 2, store.ProcessedCount())
}
