// Package sessions issues, resolves and revokes server-side login sessions.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/wye/wye-server/internal/dependencies/clock"
	"github.com/wye/wye-server/internal/dependencies/random"
	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage"
)

// tokenBytes is the entropy of a session token before encoding
const tokenBytes = 32

// Config holds configuration for the session service
type Config struct {
	TTL time.Duration
}

// DefaultConfig returns default session configuration (two weeks)
func DefaultConfig() Config {
	return Config{
		TTL: 14 * 24 * time.Hour,
	}
}

// Service handles session lifecycle. A user may hold any number of live sessions.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	ttl     time.Duration
}

// New creates a new session Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		ttl:     cfg.TTL,
	}
}

// TTL returns how long a new session stays valid
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// HashToken returns the hex SHA-256 under which a token's session is stored
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create starts a session for user and returns the opaque token the client must present
func (s *Service) Create(ctx context.Context, user *model.User) (string, *model.Session, error) {
	token, err := s.random.Token(tokenBytes)
	if err != nil {
		return "", nil, err
	}

	now := s.clock.Now()
	session := &model.Session{
		ID:        model.NewSessionID(),
		TokenHash: HashToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// Resolve returns the user and session bound to token.
// Unknown, malformed, expired and revoked tokens, and sessions of accounts
// that can no longer authenticate, all resolve to nil with no error.
func (s *Service) Resolve(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	hash := HashToken(token)
	session, err := s.storage.GetSession(ctx, hash)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if session.IsExpired(s.clock.Now()) {
		// Best effort; an expired record never resolves either way
		_ = s.storage.DeleteSession(ctx, hash)
		return nil, nil, nil
	}

	user, err := s.storage.GetUser(ctx, session.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if !user.CanAuthenticate() {
		return nil, nil, nil
	}

	return user, session, nil
}

// Invalidate revokes the session bound to token. Revoking an unknown token is not an error.
func (s *Service) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.storage.DeleteSession(ctx, HashToken(token))
}

// PurgeExpired deletes every expired session record and returns how many were removed
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.storage.DeleteExpiredSessions(ctx, s.clock.Now())
}
