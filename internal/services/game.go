package services

import (
	"context"
	"fmt"

	"github.com/decred/slog"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/wheel"
)

type EngineConfig struct {
	ProgramID   string
	DevFeeBps   uint64
	Seeds       SeedSource
	Broadcaster Broadcaster
	Recorder    Recorder
	Log         slog.Logger
}

// GameEngine settles spins and runs the administrative operations. Every
// operation is one Store transaction; observers only see committed results.
type GameEngine struct {
	store       Store
	seeds       SeedSource
	programID   string
	feeBps      uint64
	broadcaster Broadcaster
	recorder    Recorder
	log         slog.Logger
}

func NewGameEngine(store Store, cfg EngineConfig) *GameEngine {
	ge := &GameEngine{
		store:       store,
		seeds:       cfg.Seeds,
		programID:   cfg.ProgramID,
		feeBps:      cfg.DevFeeBps,
		broadcaster: cfg.Broadcaster,
		recorder:    cfg.Recorder,
		log:         cfg.Log,
	}
	if ge.seeds == nil {
		ge.seeds = NewSlotSeedSource()
	}
	if ge.broadcaster == nil {
		ge.broadcaster = noopBroadcaster{}
	}
	if ge.recorder == nil {
		ge.recorder = NewNoopRecorder()
	}
	if ge.log == nil {
		ge.log = slog.Disabled
	}
	return ge
}

// SetBroadcaster replaces the live event sink.
func (ge *GameEngine) SetBroadcaster(b Broadcaster) {
	ge.broadcaster = b
}

func (ge *GameEngine) FeeBps() uint64 { return ge.feeBps }

// Initialize creates the game state, the reward pool and the authority's
// dev fee account. The caller becomes the authority.
func (ge *GameEngine) Initialize(ctx context.Context, req *models.InitializeRequest) (*models.GameState, error) {
	if err := validateAddresses(req.Authority, req.TokenMint); err != nil {
		return nil, err
	}

	var state *models.GameState
	err := ge.store.Execute(ctx, "", func(tx *Tx) error {
		existing, err := tx.GameState()
		if err != nil {
			return err
		}
		if existing != nil {
			return wheel.ErrAlreadyInitialized
		}
		if _, err := tx.Mint(req.TokenMint); err != nil {
			return err
		}

		pool := models.RewardPoolAddress(ge.programID)
		if _, err := tx.CreateAccount(pool, req.TokenMint, ge.programID); err != nil {
			return fmt.Errorf("create reward pool: %w", err)
		}
		devAccount, err := ensureAccount(tx, req.Authority, req.TokenMint)
		if err != nil {
			return fmt.Errorf("dev fee account: %w", err)
		}

		state = &models.GameState{
			ProgramID:     ge.programID,
			Authority:     req.Authority,
			TokenMint:     req.TokenMint,
			RewardPool:    pool,
			DevFeeAccount: devAccount,
			CreatedAt:     tx.Now(),
		}
		tx.SaveGameState(state)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ge.log.Infof("Game initialized: authority=%s mint=%s pool=%s", state.Authority, state.TokenMint, state.RewardPool)
	return state, nil
}

// FundPool moves funds from any holder into the reward pool.
func (ge *GameEngine) FundPool(ctx context.Context, req *models.FundRequest) (*models.PoolInfo, error) {
	if req.Amount == 0 {
		return nil, wheel.ErrInvalidAmount
	}
	if err := validateAddresses(req.Funder); err != nil {
		return nil, err
	}

	var (
		info   models.PoolInfo
		record *models.Transaction
	)
	err := ge.store.Execute(ctx, req.RequestID, func(tx *Tx) error {
		state, err := requireState(tx)
		if err != nil {
			return err
		}

		source := req.FunderTokenAccount
		if source == "" {
			source = models.AssociatedTokenAddress(req.Funder, state.TokenMint)
		}
		acc, err := tx.FindAccount(source)
		if err != nil {
			return err
		}
		if acc == nil || acc.Owner != req.Funder {
			return fmt.Errorf("%w: %s is not a token account of %s", wheel.ErrInvalidTokenAccount, source, req.Funder)
		}
		if acc.Mint != state.TokenMint {
			return fmt.Errorf("%w: %s holds %s", wheel.ErrInvalidMint, source, acc.Mint)
		}

		before, err := tx.BalanceOf(state.RewardPool)
		if err != nil {
			return err
		}
		if err := tx.Transfer(source, state.RewardPool, req.Funder, req.Amount); err != nil {
			return err
		}
		after, err := tx.BalanceOf(state.RewardPool)
		if err != nil {
			return err
		}

		record = &models.Transaction{
			ID:          models.GenerateTransactionID(),
			Type:        models.TransactionTypeFund,
			Address:     req.Funder,
			Amount:      req.Amount,
			PoolBefore:  before,
			PoolAfter:   after,
			Description: fmt.Sprintf("Funded pool with %s", wheel.FormatTokens(req.Amount)),
			CreatedAt:   tx.Now(),
		}
		tx.RecordTransaction(record)
		info = poolInfo(after)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ge.publishTransaction(record, info)
	return &info, nil
}

// Spin settles one bet atomically.
func (ge *GameEngine) Spin(ctx context.Context, req *models.SpinRequest) (*models.SpinResult, error) {
	if req.Amount == 0 {
		return nil, wheel.ErrInvalidAmount
	}
	if err := validateAddresses(req.Player); err != nil {
		return nil, err
	}

	var (
		result *models.SpinResult
		record *models.Transaction
	)
	err := ge.store.Execute(ctx, req.RequestID, func(tx *Tx) error {
		state, err := requireState(tx)
		if err != nil {
			return err
		}
		accts, err := resolveSpinAccounts(tx, state, req)
		if err != nil {
			return err
		}

		pool := accts.pool
		if err := wheel.BetLimits(pool.Amount).Check(req.Amount); err != nil {
			return err
		}

		material, err := ge.seeds.SeedMaterial(ctx)
		if err != nil {
			return fmt.Errorf("%w: seed source: %v", wheel.ErrCalculation, err)
		}
		seed := wheel.DeriveSeed(material, state.TotalSpins, req.Player)
		roll := wheel.RollFromSeed(seed)
		segment := wheel.Resolve(roll)

		s, err := wheel.Settle(req.Amount, pool.Amount, segment, ge.feeBps)
		if err != nil {
			return err
		}
		if accts.player.Amount < s.PlayerDebit {
			return fmt.Errorf("%w: balance %d, stake plus fee %d", wheel.ErrInsufficientFunds, accts.player.Amount, s.PlayerDebit)
		}

		if err := tx.Transfer(accts.player.Address, pool.Address, req.Player, s.Amount); err != nil {
			return fmt.Errorf("collect stake: %w", err)
		}
		if s.Payout > 0 {
			if err := tx.Transfer(pool.Address, accts.player.Address, ge.programID, s.Payout); err != nil {
				return fmt.Errorf("pay out: %w", err)
			}
		}
		if s.Fee > 0 && accts.dev.Address != accts.player.Address {
			if err := tx.Transfer(accts.player.Address, accts.dev.Address, req.Player, s.Fee); err != nil {
				return fmt.Errorf("dev fee: %w", err)
			}
		}

		poolAfter, err := tx.BalanceOf(pool.Address)
		if err != nil {
			return err
		}
		if poolAfter != s.PoolAfter {
			return fmt.Errorf("%w: pool %d after settlement, expected %d", wheel.ErrCalculation, poolAfter, s.PoolAfter)
		}

		spinIndex := state.TotalSpins
		if state.TotalSpins, err = wheel.CheckedAdd(state.TotalSpins, 1); err != nil {
			return fmt.Errorf("total spins: %w", err)
		}
		if state.DevFeesCollected, err = wheel.CheckedAdd(state.DevFeesCollected, s.Fee); err != nil {
			return fmt.Errorf("dev fees: %w", err)
		}
		tx.SaveGameState(state)

		result = &models.SpinResult{
			ID:               models.GenerateSpinID(),
			Player:           req.Player,
			BetAmount:        s.Amount,
			Multiplier:       s.Multiplier.Percent(),
			Outcome:          string(s.Outcome),
			Payout:           s.Payout,
			Fee:              s.Fee,
			RandomValue:      roll,
			PoolBalanceAfter: poolAfter,
			SpinIndex:        spinIndex,
			CreatedAt:        tx.Now(),
		}
		tx.RecordSpin(result)

		record = &models.Transaction{
			ID:          models.GenerateTransactionID(),
			Type:        models.TransactionTypeSpin,
			Address:     req.Player,
			Amount:      s.Amount,
			PoolBefore:  s.PoolBefore,
			PoolAfter:   poolAfter,
			SpinID:      result.ID,
			Description: describeSpin(result),
			CreatedAt:   tx.Now(),
		}
		tx.RecordTransaction(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ge.log.Debugf("Spin %d by %s: bet=%d roll=%d payout=%d pool=%d",
		result.SpinIndex, result.Player, result.BetAmount, result.RandomValue, result.Payout, result.PoolBalanceAfter)

	if err := ge.recorder.RecordSpin(result); err != nil {
		ge.log.Warnf("Failed to record spin %s: %v", result.ID, err)
	}
	ge.broadcaster.BroadcastSpinResult(result)
	ge.publishTransaction(record, poolInfo(result.PoolBalanceAfter))

	return result, nil
}

// WithdrawProfits moves funds from the pool to the authority.
func (ge *GameEngine) WithdrawProfits(ctx context.Context, req *models.WithdrawRequest) (*models.PoolInfo, error) {
	if req.Amount == 0 {
		return nil, wheel.ErrInvalidAmount
	}

	var (
		info   models.PoolInfo
		record *models.Transaction
	)
	err := ge.store.Execute(ctx, req.RequestID, func(tx *Tx) error {
		state, err := requireState(tx)
		if err != nil {
			return err
		}
		if req.Caller != state.Authority {
			return fmt.Errorf("%w: %s is not the authority", wheel.ErrUnauthorized, req.Caller)
		}

		dest := req.Destination
		if dest == "" {
			dest = state.DevFeeAccount
		}
		acc, err := tx.FindAccount(dest)
		if err != nil {
			return err
		}
		if acc == nil || acc.Owner != state.Authority || acc.Mint != state.TokenMint {
			return fmt.Errorf("%w: %s is not a token account of the authority", wheel.ErrInvalidTokenAccount, dest)
		}

		before, err := tx.BalanceOf(state.RewardPool)
		if err != nil {
			return err
		}
		if req.Amount > before {
			return fmt.Errorf("%w: pool holds %d, requested %d", wheel.ErrInsufficientFunds, before, req.Amount)
		}
		if err := tx.Transfer(state.RewardPool, dest, ge.programID, req.Amount); err != nil {
			return err
		}

		record = &models.Transaction{
			ID:          models.GenerateTransactionID(),
			Type:        models.TransactionTypeWithdraw,
			Address:     req.Caller,
			Amount:      req.Amount,
			PoolBefore:  before,
			PoolAfter:   before - req.Amount,
			Description: fmt.Sprintf("Withdrew %s from pool", wheel.FormatTokens(req.Amount)),
			CreatedAt:   tx.Now(),
		}
		tx.RecordTransaction(record)
		info = poolInfo(before - req.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ge.log.Infof("Authority withdrew %s, pool now %d", wheel.FormatTokens(req.Amount), info.Balance)
	ge.publishTransaction(record, info)
	return &info, nil
}

// State returns the game state and the current bet bounds.
func (ge *GameEngine) State(ctx context.Context) (*models.GameStateResponse, error) {
	var resp *models.GameStateResponse
	err := ge.store.Execute(ctx, "", func(tx *Tx) error {
		state, err := requireState(tx)
		if err != nil {
			return err
		}
		balance, err := tx.BalanceOf(state.RewardPool)
		if err != nil {
			return err
		}
		resp = &models.GameStateResponse{State: state, Pool: poolInfo(balance)}
		return nil
	})
	return resp, err
}

// Balance returns owner's balance of the game token.
func (ge *GameEngine) Balance(ctx context.Context, owner string) (*models.BalanceResponse, error) {
	if err := validateAddresses(owner); err != nil {
		return nil, err
	}

	var resp *models.BalanceResponse
	err := ge.store.Execute(ctx, "", func(tx *Tx) error {
		state, err := requireState(tx)
		if err != nil {
			return err
		}
		addr := models.AssociatedTokenAddress(owner, state.TokenMint)
		acc, err := tx.FindAccount(addr)
		if err != nil {
			return err
		}
		var amount uint64
		if acc != nil {
			amount = acc.Amount
		}
		resp = &models.BalanceResponse{
			Owner:   owner,
			Account: addr,
			Mint:    state.TokenMint,
			Amount:  amount,
			Display: wheel.FormatTokens(amount),
		}
		return nil
	})
	return resp, err
}

func (ge *GameEngine) SpinHistory(ctx context.Context, player string, limit int64) ([]*models.SpinResult, error) {
	return ge.store.SpinHistory(ctx, player, limit)
}

func (ge *GameEngine) RecentTransactions(ctx context.Context, limit int64) ([]*models.Transaction, error) {
	return ge.store.RecentTransactions(ctx, limit)
}

// Snapshot samples the pool for the recorder.
func (ge *GameEngine) Snapshot(ctx context.Context) (*PoolSnapshot, error) {
	resp, err := ge.State(ctx)
	if err != nil {
		return nil, err
	}
	snap := &PoolSnapshot{
		Balance:          resp.Pool.Balance,
		MinBet:           resp.Pool.MinBet,
		MaxBet:           resp.Pool.MaxBet,
		TotalSpins:       resp.State.TotalSpins,
		DevFeesCollected: resp.State.DevFeesCollected,
	}
	return snap, nil
}

func (ge *GameEngine) publishTransaction(record *models.Transaction, info models.PoolInfo) {
	if err := ge.recorder.RecordTransaction(record); err != nil {
		ge.log.Warnf("Failed to record transaction %s: %v", record.ID, err)
	}
	ge.broadcaster.BroadcastPoolUpdate(info)
}

type spinAccounts struct {
	pool   *models.TokenAccount
	player *models.TokenAccount
	dev    *models.TokenAccount
}

// resolveSpinAccounts checks the caller supplied accounts against the
// references stored in the game state.
func resolveSpinAccounts(tx *Tx, state *models.GameState, req *models.SpinRequest) (*spinAccounts, error) {
	if req.RewardPool != "" && req.RewardPool != state.RewardPool {
		return nil, fmt.Errorf("%w: %s", wheel.ErrInvalidRewardPool, req.RewardPool)
	}
	pool, err := tx.FindAccount(state.RewardPool)
	if err != nil {
		return nil, err
	}
	if pool == nil || pool.Mint != state.TokenMint {
		return nil, fmt.Errorf("%w: %s", wheel.ErrInvalidRewardPool, state.RewardPool)
	}

	playerAddr := req.PlayerTokenAccount
	if playerAddr == "" {
		playerAddr = models.AssociatedTokenAddress(req.Player, state.TokenMint)
	}
	player, err := tx.FindAccount(playerAddr)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, fmt.Errorf("%w: %s does not exist", wheel.ErrInvalidTokenAccount, playerAddr)
	}
	if player.Mint != state.TokenMint {
		return nil, fmt.Errorf("%w: %s holds %s", wheel.ErrInvalidMint, playerAddr, player.Mint)
	}
	if player.Owner != req.Player {
		return nil, fmt.Errorf("%w: %s is not owned by %s", wheel.ErrInvalidTokenAccount, playerAddr, req.Player)
	}

	devAddr := req.DevFeeAccount
	if devAddr == "" {
		devAddr = state.DevFeeAccount
	}
	dev, err := tx.FindAccount(devAddr)
	if err != nil {
		return nil, err
	}
	if dev == nil || dev.Owner != state.Authority || dev.Mint != state.TokenMint {
		return nil, fmt.Errorf("%w: %s", wheel.ErrInvalidDevAccount, devAddr)
	}

	return &spinAccounts{pool: pool, player: player, dev: dev}, nil
}

func requireState(tx *Tx) (*models.GameState, error) {
	state, err := tx.GameState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, wheel.ErrNotInitialized
	}
	return state, nil
}

// ensureAccount returns owner's associated account for mint, creating it
// when missing.
func ensureAccount(tx *Tx, owner, mint string) (string, error) {
	addr := models.AssociatedTokenAddress(owner, mint)
	acc, err := tx.FindAccount(addr)
	if err != nil {
		return "", err
	}
	if acc == nil {
		if _, err := tx.CreateAccount(addr, mint, owner); err != nil {
			return "", err
		}
		return addr, nil
	}
	if acc.Owner != owner || acc.Mint != mint {
		return "", fmt.Errorf("%w: %s", wheel.ErrInvalidTokenAccount, addr)
	}
	return addr, nil
}

func validateAddresses(addrs ...string) error {
	for _, a := range addrs {
		if _, err := models.DecodeAddress(a); err != nil {
			return fmt.Errorf("%w: %v", wheel.ErrInvalidAddress, err)
		}
	}
	return nil
}

func poolInfo(balance uint64) models.PoolInfo {
	limits := wheel.BetLimits(balance)
	return models.PoolInfo{
		Balance: balance,
		MinBet:  limits.Min,
		MaxBet:  limits.Max,
		Open:    limits.Open(),
	}
}

func describeSpin(r *models.SpinResult) string {
	if !r.Won() {
		return fmt.Sprintf("Lost %s", wheel.FormatTokens(r.BetAmount))
	}
	return fmt.Sprintf("Won %s (%d.%02dx)", wheel.FormatTokens(r.Payout), r.Multiplier/100, r.Multiplier%100)
}
