package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/satriadhikara/dock/internal/domain"
)

const sessionTokenPrefix = "dock_"

// DefaultSessionTTL matches the session lifetime of the main application.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionRepository persists and resolves user sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// AuthService resolves session tokens to owner IDs. Every knowledge query
// and write is scoped by the owner it resolves.
type AuthService struct {
	sessions SessionRepository
	uuidGen  UUIDGenerator
	// anonOwnerID, when non-empty, is the shared owner used for requests
	// without a session token. Disabled in production.
	anonOwnerID string
}

// NewAuthService creates a new AuthService instance
func NewAuthService(sessions SessionRepository, uuidGen UUIDGenerator, anonOwnerID string) *AuthService {
	return &AuthService{
		sessions:    sessions,
		uuidGen:     uuidGen,
		anonOwnerID: anonOwnerID,
	}
}

// ResolveOwner maps a bearer token to the owning user ID. An empty token is
// only accepted when an anonymous owner is configured.
func (s *AuthService) ResolveOwner(ctx context.Context, token string) (string, error) {
	if token == "" {
		if s.anonOwnerID != "" {
			return s.anonOwnerID, nil
		}
		return "", domain.NewDomainError(domain.ErrCodeUnauthorized, "missing session token")
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}

	if session.IsExpired(time.Now().UTC()) {
		return "", domain.ErrSessionExpired
	}

	return session.UserID, nil
}

// CreateSession issues a new session token for a user. Used by the admin
// CLI for local bootstrap; production sessions come from the auth layer of
// the main application.
func (s *AuthService) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        s.uuidGen.NewString(),
		Token:     sessionTokenPrefix + hex.EncodeToString(raw),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := domain.ValidateSession(session); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// SweepExpired deletes sessions past their expiry. Called by the background
// session sweeper.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, time.Now().UTC())
}
