package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/decred/base58"
	"github.com/google/uuid"
)

// AddressLen is the decoded length of every account address.
const AddressLen = 32

func GenerateSpinID() string {
	return fmt.Sprintf("spin_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString())
}

func GenerateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// EncodeAddress renders a 32-byte key as an address.
func EncodeAddress(key []byte) string {
	return base58.Encode(key)
}

// DecodeAddress returns the raw key behind addr.
func DecodeAddress(addr string) ([]byte, error) {
	key := base58.Decode(addr)
	if len(key) != AddressLen {
		return nil, fmt.Errorf("address %q: decoded %d bytes, want %d", addr, len(key), AddressLen)
	}
	return key, nil
}

// ValidAddress reports whether addr decodes to a 32-byte key.
func ValidAddress(addr string) bool {
	_, err := DecodeAddress(addr)
	return err == nil
}

// DeriveAddress deterministically derives an address from seeds, in the
// spirit of program-derived addresses. No private key exists for it.
func DeriveAddress(seeds ...string) string {
	h := sha256.New()
	for i, s := range seeds {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(s))
	}
	return EncodeAddress(h.Sum(nil))
}

// AssociatedTokenAddress is the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint string) string {
	return DeriveAddress(owner, mint, "ata")
}

// RewardPoolAddress is the pool account owned by the program.
func RewardPoolAddress(programID string) string {
	return DeriveAddress(programID, "reward_pool")
}

// MintAddress derives the address of the mint created by authority with the
// given salt.
func MintAddress(authority, salt string) string {
	return DeriveAddress(authority, salt, "mint")
}
