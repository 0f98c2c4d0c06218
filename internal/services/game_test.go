package services_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

const (
	tokens       uint64 = wheel.UnitsPerToken
	initialPool         = 1_000 * tokens
	playerWallet        = 1_000 * tokens
)

type fixture struct {
	ctx    context.Context
	store  *services.MemoryStore
	tokens *services.TokenService
	engine *services.GameEngine

	programID string
	authority string
	player    string
	mint      string

	// material, when set, is returned by the seed source verbatim.
	material []byte
	seedErr  error
	counter  uint64
}

func testAddress(name string) string {
	return models.DeriveAddress("test", name)
}

// newFixture returns an initialized game whose pool holds poolFunds and
// whose player holds playerWallet.
func newFixture(t *testing.T, poolFunds uint64) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		store:     services.NewMemoryStore(),
		programID: testAddress("program"),
		authority: testAddress("authority"),
		player:    testAddress("player"),
	}
	f.tokens = services.NewTokenService(f.store, slog.Disabled)
	f.engine = services.NewGameEngine(f.store, services.EngineConfig{
		ProgramID: f.programID,
		DevFeeBps: 100,
		Seeds:     services.SeedSourceFunc(f.seed),
		Log:       slog.Disabled,
	})

	mint, err := f.tokens.EnsureMint(f.ctx, f.authority, "spin", wheel.TokenDecimals)
	require.NoError(t, err)
	f.mint = mint.Address

	_, err = f.engine.Initialize(f.ctx, &models.InitializeRequest{TokenMint: f.mint, Authority: f.authority})
	require.NoError(t, err)

	if poolFunds > 0 {
		_, err = f.tokens.MintTo(f.ctx, f.authority, f.mint, f.authority, poolFunds)
		require.NoError(t, err)
		_, err = f.engine.FundPool(f.ctx, &models.FundRequest{Amount: poolFunds, Funder: f.authority})
		require.NoError(t, err)
	}

	_, err = f.tokens.MintTo(f.ctx, f.authority, f.mint, f.player, playerWallet)
	require.NoError(t, err)
	return f
}

func (f *fixture) seed(ctx context.Context) ([]byte, error) {
	if f.seedErr != nil {
		return nil, f.seedErr
	}
	if f.material != nil {
		return f.material, nil
	}
	f.counter++
	return binary.BigEndian.AppendUint64(nil, f.counter), nil
}

// force makes the next spin by player land on want.
func (f *fixture) force(t *testing.T, want wheel.Outcome) {
	t.Helper()
	state := f.state(t)
	for i := uint64(0); i < 100_000; i++ {
		m := binary.BigEndian.AppendUint64([]byte("forced"), i)
		roll := wheel.RollFromSeed(wheel.DeriveSeed(m, state.State.TotalSpins, f.player))
		if wheel.Resolve(roll).Outcome == want {
			f.material = m
			return
		}
	}
	t.Fatalf("no seed material lands on %s", want)
}

func (f *fixture) state(t *testing.T) *models.GameStateResponse {
	t.Helper()
	resp, err := f.engine.State(f.ctx)
	require.NoError(t, err)
	return resp
}

func (f *fixture) balance(t *testing.T, owner string) uint64 {
	t.Helper()
	resp, err := f.engine.Balance(f.ctx, owner)
	require.NoError(t, err)
	return resp.Amount
}

func (f *fixture) spin(amount uint64) (*models.SpinResult, error) {
	return f.engine.Spin(f.ctx, &models.SpinRequest{Amount: amount, Player: f.player})
}

func TestInitialize(t *testing.T) {
	f := newFixture(t, 0)

	resp := f.state(t)
	assert.Equal(t, f.authority, resp.State.Authority)
	assert.Equal(t, f.mint, resp.State.TokenMint)
	assert.Equal(t, models.RewardPoolAddress(f.programID), resp.State.RewardPool)
	assert.Equal(t, models.AssociatedTokenAddress(f.authority, f.mint), resp.State.DevFeeAccount)
	assert.Zero(t, resp.State.TotalSpins)
	assert.Zero(t, resp.Pool.Balance)
	assert.False(t, resp.Pool.Open)

	before := f.store.Snapshot()
	_, err := f.engine.Initialize(f.ctx, &models.InitializeRequest{TokenMint: f.mint, Authority: f.player})
	assert.ErrorIs(t, err, wheel.ErrAlreadyInitialized)
	assert.ErrorIs(t, err, wheel.ErrInvalidOperation)
	assert.Equal(t, before, f.store.Snapshot())
}

func TestInitializeUnknownMint(t *testing.T) {
	store := services.NewMemoryStore()
	engine := services.NewGameEngine(store, services.EngineConfig{ProgramID: testAddress("program"), Log: slog.Disabled})

	_, err := engine.Initialize(context.Background(), &models.InitializeRequest{
		TokenMint: testAddress("nothing"),
		Authority: testAddress("authority"),
	})
	assert.ErrorIs(t, err, wheel.ErrInvalidMint)

	_, err = engine.State(context.Background())
	assert.ErrorIs(t, err, wheel.ErrNotInitialized)

	_, err = engine.Spin(context.Background(), &models.SpinRequest{Amount: 1_000_000, Player: testAddress("player")})
	assert.ErrorIs(t, err, wheel.ErrNotInitialized)
}

func TestSpinForcedBigWin(t *testing.T) {
	f := newFixture(t, initialPool)
	f.force(t, wheel.OutcomeBigWin)

	bet := 100 * tokens
	res, err := f.spin(bet)
	require.NoError(t, err)

	assert.Equal(t, string(wheel.OutcomeBigWin), res.Outcome)
	assert.Equal(t, uint64(400), res.Multiplier)
	assert.Equal(t, 4*bet, res.Payout)
	assert.Equal(t, bet/100, res.Fee)
	assert.Equal(t, initialPool+bet-4*bet, res.PoolBalanceAfter)
	assert.Zero(t, res.SpinIndex)
	assert.GreaterOrEqual(t, res.RandomValue, uint8(90))

	assert.Equal(t, playerWallet-bet-bet/100+4*bet, f.balance(t, f.player))
	assert.Equal(t, bet/100, f.balance(t, f.authority))

	resp := f.state(t)
	assert.Equal(t, uint64(1), resp.State.TotalSpins)
	assert.Equal(t, bet/100, resp.State.DevFeesCollected)
	assert.Equal(t, res.PoolBalanceAfter, resp.Pool.Balance)
}

func TestSpinOutcomes(t *testing.T) {
	tests := []struct {
		outcome wheel.Outcome
		payout  uint64
	}{
		{wheel.OutcomeLoss, 0},
		{wheel.OutcomeSmallWin, 1_200_000_000},
		{wheel.OutcomeMediumWin, 2_000_000_000},
		{wheel.OutcomeBigWin, 4_000_000_000},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			f := newFixture(t, initialPool)
			f.force(t, tt.outcome)

			res, err := f.spin(tokens)
			require.NoError(t, err)
			assert.Equal(t, string(tt.outcome), res.Outcome)
			assert.Equal(t, tt.payout, res.Payout)
			assert.Equal(t, initialPool+tokens-tt.payout, res.PoolBalanceAfter)
			assert.Equal(t, res.Payout > 0, res.Won())
		})
	}
}

func TestSpinPoolDelta(t *testing.T) {
	f := newFixture(t, initialPool)

	var fees uint64
	for i := 0; i < 200; i++ {
		pool := f.state(t).Pool
		playerBefore := f.balance(t, f.player)
		bet := pool.MinBet + uint64(i%10)*tokens/10

		res, err := f.spin(bet)
		require.NoError(t, err)

		assert.Equal(t, pool.Balance+bet-res.Payout, res.PoolBalanceAfter, "spin %d", i)
		assert.Equal(t, playerBefore-bet-res.Fee+res.Payout, f.balance(t, f.player), "spin %d", i)
		assert.Equal(t, uint64(i), res.SpinIndex)
		fees += res.Fee
	}

	resp := f.state(t)
	assert.Equal(t, uint64(200), resp.State.TotalSpins)
	assert.Equal(t, fees, resp.State.DevFeesCollected)
	assert.Equal(t, fees, f.balance(t, f.authority))

	history, err := f.engine.SpinHistory(f.ctx, f.player, 10)
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, uint64(199), history[0].SpinIndex)
	assert.Equal(t, uint64(190), history[9].SpinIndex)
}

func TestSpinFailuresLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, initialPool)

	otherMint, err := f.tokens.EnsureMint(f.ctx, f.authority, "other", wheel.TokenDecimals)
	require.NoError(t, err)
	wrongMintAccount, err := f.tokens.EnsureAccount(f.ctx, f.player, otherMint.Address)
	require.NoError(t, err)
	stranger := testAddress("stranger")
	_, err = f.tokens.MintTo(f.ctx, f.authority, f.mint, stranger, 10*tokens)
	require.NoError(t, err)
	poor := testAddress("poor")
	_, err = f.tokens.MintTo(f.ctx, f.authority, f.mint, poor, tokens)
	require.NoError(t, err)

	limits := f.state(t).Pool

	tests := []struct {
		name string
		req  models.SpinRequest
		seed error
		want error
	}{
		{
			name: "below min",
			req:  models.SpinRequest{Amount: limits.MinBet - 1, Player: f.player},
			want: wheel.ErrBetTooLow,
		},
		{
			name: "above max",
			req:  models.SpinRequest{Amount: limits.MaxBet + 1, Player: f.player},
			want: wheel.ErrBetTooHigh,
		},
		{
			name: "zero amount",
			req:  models.SpinRequest{Player: f.player},
			want: wheel.ErrInvalidAmount,
		},
		{
			name: "malformed player",
			req:  models.SpinRequest{Amount: limits.MinBet, Player: "not-an-address"},
			want: wheel.ErrInvalidAddress,
		},
		{
			name: "stake plus fee exceeds balance",
			req:  models.SpinRequest{Amount: limits.MinBet, Player: poor},
			want: wheel.ErrInsufficientFunds,
		},
		{
			name: "wrong reward pool",
			req:  models.SpinRequest{Amount: limits.MinBet, Player: f.player, RewardPool: testAddress("fake-pool")},
			want: wheel.ErrInvalidRewardPool,
		},
		{
			name: "someone else's token account",
			req: models.SpinRequest{
				Amount:             limits.MinBet,
				Player:             f.player,
				PlayerTokenAccount: models.AssociatedTokenAddress(stranger, f.mint),
			},
			want: wheel.ErrInvalidTokenAccount,
		},
		{
			name: "no token account",
			req:  models.SpinRequest{Amount: limits.MinBet, Player: testAddress("nobody")},
			want: wheel.ErrInvalidTokenAccount,
		},
		{
			name: "token account of another mint",
			req: models.SpinRequest{
				Amount:             limits.MinBet,
				Player:             f.player,
				PlayerTokenAccount: wrongMintAccount.Address,
			},
			want: wheel.ErrInvalidMint,
		},
		{
			name: "dev account not owned by authority",
			req: models.SpinRequest{
				Amount:        limits.MinBet,
				Player:        f.player,
				DevFeeAccount: models.AssociatedTokenAddress(f.player, f.mint),
			},
			want: wheel.ErrInvalidDevAccount,
		},
		{
			name: "entropy unavailable",
			req:  models.SpinRequest{Amount: limits.MinBet, Player: f.player},
			seed: errors.New("clock unavailable"),
			want: wheel.ErrCalculation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.seedErr = tt.seed
			defer func() { f.seedErr = nil }()

			before := f.store.Snapshot()
			req := tt.req
			_, err := f.engine.Spin(f.ctx, &req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, f.store.Snapshot())
		})
	}

	assert.Zero(t, f.state(t).State.TotalSpins)
}

func TestSpinBoundaryBets(t *testing.T) {
	f := newFixture(t, initialPool)
	f.force(t, wheel.OutcomeLoss)

	limits := wheel.BetLimits(initialPool)
	assert.Equal(t, tokens, limits.Min)
	assert.Equal(t, initialPool/8, limits.Max)

	_, err := f.spin(limits.Min)
	require.NoError(t, err)

	// The bounds move with the pool, so recompute before the max bet.
	limits = wheel.BetLimits(f.state(t).Pool.Balance)
	f.force(t, wheel.OutcomeLoss)
	_, err = f.spin(limits.Max)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.state(t).State.TotalSpins)
}

func TestSpinClosedPool(t *testing.T) {
	f := newFixture(t, 799_999)

	pool := f.state(t).Pool
	assert.False(t, pool.Open)
	assert.Less(t, pool.MaxBet, pool.MinBet)

	_, err := f.spin(wheel.FloorMinBet)
	assert.ErrorIs(t, err, wheel.ErrBetTooHigh)
	_, err = f.spin(wheel.FloorMinBet - 1)
	assert.ErrorIs(t, err, wheel.ErrBetTooLow)
}

func TestSpinDuplicateRequest(t *testing.T) {
	f := newFixture(t, initialPool)

	req := &models.SpinRequest{Amount: tokens, Player: f.player, RequestID: "req-1"}
	_, err := f.engine.Spin(f.ctx, req)
	require.NoError(t, err)

	before := f.store.Snapshot()
	_, err = f.engine.Spin(f.ctx, req)
	assert.ErrorIs(t, err, services.ErrAlreadyProcessed)
	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, uint64(1), f.state(t).State.TotalSpins)
}

func TestFundPool(t *testing.T) {
	f := newFixture(t, initialPool)

	info, err := f.engine.FundPool(f.ctx, &models.FundRequest{Amount: 10 * tokens, Funder: f.player})
	require.NoError(t, err)
	assert.Equal(t, initialPool+10*tokens, info.Balance)
	assert.Equal(t, playerWallet-10*tokens, f.balance(t, f.player))

	_, err = f.engine.FundPool(f.ctx, &models.FundRequest{Funder: f.player})
	assert.ErrorIs(t, err, wheel.ErrInvalidAmount)

	_, err = f.engine.FundPool(f.ctx, &models.FundRequest{
		Amount:             tokens,
		Funder:             f.player,
		FunderTokenAccount: models.AssociatedTokenAddress(f.authority, f.mint),
	})
	assert.ErrorIs(t, err, wheel.ErrInvalidTokenAccount)

	_, err = f.engine.FundPool(f.ctx, &models.FundRequest{Amount: 2 * playerWallet, Funder: f.player})
	assert.ErrorIs(t, err, wheel.ErrInsufficientFunds)

	txs, err := f.engine.RecentTransactions(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionTypeFund, txs[0].Type)
	assert.Equal(t, f.player, txs[0].Address)
}

func TestWithdrawProfits(t *testing.T) {
	f := newFixture(t, initialPool)

	before := f.store.Snapshot()
	_, err := f.engine.WithdrawProfits(f.ctx, &models.WithdrawRequest{Amount: tokens, Caller: f.player})
	assert.ErrorIs(t, err, wheel.ErrUnauthorized)
	assert.Equal(t, before, f.store.Snapshot())

	_, err = f.engine.WithdrawProfits(f.ctx, &models.WithdrawRequest{Amount: initialPool + 1, Caller: f.authority})
	assert.ErrorIs(t, err, wheel.ErrInsufficientFunds)

	_, err = f.engine.WithdrawProfits(f.ctx, &models.WithdrawRequest{
		Amount:      tokens,
		Caller:      f.authority,
		Destination: models.AssociatedTokenAddress(f.player, f.mint),
	})
	assert.ErrorIs(t, err, wheel.ErrInvalidTokenAccount)
	assert.Equal(t, before, f.store.Snapshot())

	info, err := f.engine.WithdrawProfits(f.ctx, &models.WithdrawRequest{Amount: 100 * tokens, Caller: f.authority})
	require.NoError(t, err)
	assert.Equal(t, initialPool-100*tokens, info.Balance)
	assert.Equal(t, 100*tokens, f.balance(t, f.authority))

	info, err = f.engine.WithdrawProfits(f.ctx, &models.WithdrawRequest{Amount: info.Balance, Caller: f.authority})
	require.NoError(t, err)
	assert.Zero(t, info.Balance)
	assert.False(t, info.Open)
}

type captureBroadcaster struct {
	spins []*models.SpinResult
	pools []models.PoolInfo
}

func (c *captureBroadcaster) BroadcastSpinResult(r *models.SpinResult) { c.spins = append(c.spins, r) }
func (c *captureBroadcaster) BroadcastPoolUpdate(p models.PoolInfo)    { c.pools = append(c.pools, p) }

func TestSpinBroadcastsAfterCommit(t *testing.T) {
	f := newFixture(t, initialPool)
	capture := &captureBroadcaster{}
	f.engine.SetBroadcaster(capture)

	res, err := f.spin(tokens)
	require.NoError(t, err)
	require.Len(t, capture.spins, 1)
	assert.Equal(t, res.ID, capture.spins[0].ID)
	require.Len(t, capture.pools, 1)
	assert.Equal(t, res.PoolBalanceAfter, capture.pools[0].Balance)

	_, err = f.spin(1)
	require.Error(t, err)
	assert.Len(t, capture.spins, 1)
}

func TestMintTo(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.tokens.MintTo(f.ctx, f.player, f.mint, f.player, tokens)
	assert.ErrorIs(t, err, wheel.ErrUnauthorized)

	_, err = f.tokens.MintTo(f.ctx, f.authority, f.mint, f.player, ^uint64(0))
	assert.ErrorIs(t, err, wheel.ErrCalculation)

	_, err = f.tokens.CreateMint(f.ctx, f.authority, "spin", wheel.TokenDecimals)
	assert.ErrorIs(t, err, wheel.ErrAccountExists)
}
