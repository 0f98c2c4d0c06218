package wheel

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBetTooLow           = errors.New("bet too low")
	ErrBetTooHigh          = errors.New("bet too high")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientPool    = errors.New("insufficient pool")
	ErrCalculation         = errors.New("calculation error")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrInvalidTokenAccount = errors.New("invalid token account")
	ErrInvalidMint         = errors.New("invalid mint")
	ErrInvalidRewardPool   = errors.New("invalid reward pool")
	ErrInvalidDevAccount   = errors.New("invalid dev account")

	// The following are all invalid operations.
	ErrAlreadyInitialized = fmt.Errorf("%w: game already initialized", ErrInvalidOperation)
	ErrNotInitialized     = fmt.Errorf("%w: game not initialized", ErrInvalidOperation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrInvalidOperation)
	ErrInvalidAddress     = fmt.Errorf("%w: malformed address", ErrInvalidOperation)
	ErrAccountNotFound    = fmt.Errorf("%w: account not found", ErrInvalidOperation)
	ErrAccountExists      = fmt.Errorf("%w: account already exists", ErrInvalidOperation)
)

// Code returns the stable API code for err. Unknown errors map to
// "internal_error".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrBetTooLow):
		return "bet_too_low"
	case errors.Is(err, ErrBetTooHigh):
		return "bet_too_high"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientPool):
		return "insufficient_pool"
	case errors.Is(err, ErrCalculation):
		return "calculation_error"
	case errors.Is(err, ErrInvalidTokenAccount):
		return "invalid_token_account"
	case errors.Is(err, ErrInvalidMint):
		return "invalid_mint"
	case errors.Is(err, ErrInvalidRewardPool):
		return "invalid_reward_pool"
	case errors.Is(err, ErrInvalidDevAccount):
		return "invalid_dev_account"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	default:
		return "internal_error"
	}
}
