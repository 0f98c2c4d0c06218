package services

import (
	"context"
	"fmt"

	"github.com/decred/slog"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/wheel"
)

// TokenService runs the token runtime operations that sit outside the game:
// creating mints, minting supply and opening accounts.
type TokenService struct {
	store Store
	log   slog.Logger
}

func NewTokenService(store Store, log slog.Logger) *TokenService {
	if log == nil {
		log = slog.Disabled
	}
	return &TokenService{store: store, log: log}
}

// CreateMint registers a new mint controlled by authority. The address is
// derived from authority and salt, so the same pair cannot be created twice.
func (ts *TokenService) CreateMint(ctx context.Context, authority, salt string, decimals uint8) (*models.Mint, error) {
	if err := validateAddresses(authority); err != nil {
		return nil, err
	}

	mint := &models.Mint{
		Address:       models.MintAddress(authority, salt),
		Decimals:      decimals,
		MintAuthority: authority,
	}
	err := ts.store.Execute(ctx, "", func(tx *Tx) error {
		return tx.CreateMint(mint)
	})
	if err != nil {
		return nil, err
	}

	ts.log.Infof("Created mint %s (decimals=%d, authority=%s)", mint.Address, decimals, authority)
	return mint, nil
}

// EnsureMint returns the mint derived from authority and salt, creating it
// on first use.
func (ts *TokenService) EnsureMint(ctx context.Context, authority, salt string, decimals uint8) (*models.Mint, error) {
	if err := validateAddresses(authority); err != nil {
		return nil, err
	}

	addr := models.MintAddress(authority, salt)
	var mint *models.Mint
	err := ts.store.Execute(ctx, "", func(tx *Tx) error {
		existing, err := tx.Mint(addr)
		if err == nil {
			mint = existing
			return nil
		}
		mint = &models.Mint{Address: addr, Decimals: decimals, MintAuthority: authority}
		return tx.CreateMint(mint)
	})
	if err != nil {
		return nil, err
	}
	return mint, nil
}

// EnsureAccount returns owner's associated account for mint, opening it if
// needed.
func (ts *TokenService) EnsureAccount(ctx context.Context, owner, mint string) (*models.TokenAccount, error) {
	if err := validateAddresses(owner); err != nil {
		return nil, err
	}

	var acc *models.TokenAccount
	err := ts.store.Execute(ctx, "", func(tx *Tx) error {
		if _, err := tx.Mint(mint); err != nil {
			return err
		}
		addr, err := ensureAccount(tx, owner, mint)
		if err != nil {
			return err
		}
		acc, err = tx.Account(addr)
		return err
	})
	return acc, err
}

// MintTo creates amount new units of mint into owner's associated account.
// signer must be the mint authority.
func (ts *TokenService) MintTo(ctx context.Context, signer, mint, owner string, amount uint64) (*models.TokenAccount, error) {
	if amount == 0 {
		return nil, wheel.ErrInvalidAmount
	}
	if err := validateAddresses(signer, owner); err != nil {
		return nil, err
	}

	var acc *models.TokenAccount
	err := ts.store.Execute(ctx, "", func(tx *Tx) error {
		if _, err := tx.Mint(mint); err != nil {
			return err
		}
		addr, err := ensureAccount(tx, owner, mint)
		if err != nil {
			return err
		}
		if err := tx.MintTo(mint, addr, signer, amount); err != nil {
			return err
		}

		tx.RecordTransaction(&models.Transaction{
			ID:          models.GenerateTransactionID(),
			Type:        models.TransactionTypeMint,
			Address:     owner,
			Amount:      amount,
			Description: fmt.Sprintf("Minted %s", wheel.FormatTokens(amount)),
			CreatedAt:   tx.Now(),
		})
		acc, err = tx.Account(addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	ts.log.Debugf("Minted %d of %s to %s", amount, mint, owner)
	return acc, nil
}
