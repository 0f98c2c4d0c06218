package services

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/decred/base58"
	"github.com/decred/slog"
	"github.com/google/uuid"

	"spinwheel-backend/internal/models"
)

var ErrInvalidSignature = errors.New("invalid signature")

// AuthService signs wallets in: the wallet signs a one-time challenge with
// its ed25519 key and receives a session token.
type AuthService struct {
	sessions     SessionStore
	jwt          *JWTService
	challengeTTL time.Duration
	sessionTTL   time.Duration
	log          slog.Logger
}

func NewAuthService(sessions SessionStore, jwt *JWTService, challengeTTL, sessionTTL time.Duration, log slog.Logger) *AuthService {
	if log == nil {
		log = slog.Disabled
	}
	return &AuthService{
		sessions:     sessions,
		jwt:          jwt,
		challengeTTL: challengeTTL,
		sessionTTL:   sessionTTL,
		log:          log,
	}
}

// ChallengeMessage is the exact text a wallet signs.
func ChallengeMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to Spin Wheel\naddress: %s\nnonce: %s", address, nonce)
}

// IssueChallenge creates a fresh nonce for address, replacing any pending one.
func (s *AuthService) IssueChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	if err := validateAddresses(address); err != nil {
		return nil, err
	}

	nonce, err := models.GenerateNonce()
	if err != nil {
		return nil, err
	}
	ch := &models.Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   ChallengeMessage(address, nonce),
		ExpiresAt: time.Now().Add(s.challengeTTL),
	}
	if err := s.sessions.StoreChallenge(ctx, ch, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return ch, nil
}

// Verify checks a base58 signature over the pending challenge and opens a
// session. A challenge can be used once, whether or not it verifies.
func (s *AuthService) Verify(ctx context.Context, address, signature string) (string, *models.UserSession, error) {
	pub, err := models.DecodeAddress(address)
	if err != nil {
		return "", nil, err
	}
	ch, err := s.sessions.TakeChallenge(ctx, address)
	if err != nil {
		return "", nil, err
	}
	if time.Now().After(ch.ExpiresAt) {
		return "", nil, ErrChallengeNotFound
	}

	sig := base58.Decode(signature)
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(pub), []byte(ch.Message), sig) {
		s.log.Debugf("Rejected signature from %s", address)
		return "", nil, ErrInvalidSignature
	}

	now := time.Now()
	session := &models.UserSession{
		Address:      address,
		SessionID:    uuid.NewString(),
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := s.sessions.StoreUserSession(ctx, session, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	token, err := s.jwt.GenerateToken(address, session.SessionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Session opened for %s", address)
	return token, session, nil
}

func (s *AuthService) Session(ctx context.Context, address, sessionID string) (*models.UserSession, error) {
	return s.sessions.GetUserSession(ctx, address, sessionID)
}

func (s *AuthService) Logout(ctx context.Context, address, sessionID string) error {
	return s.sessions.DeleteUserSession(ctx, address, sessionID)
}
