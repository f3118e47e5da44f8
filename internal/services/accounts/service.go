// Package accounts registers users and checks their credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wye/wye-server/internal/dependencies/clock"
	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/services/password"
	"github.com/wye/wye-server/internal/storage"
	"github.com/wye/wye-server/internal/validation"
)

// Verified against when the email is unknown, so a miss costs a full hash check.
const dummyPassword = "wye-dummy-password"

// Service handles account registration and credential verification
type Service struct {
	storage   storage.Storage
	hasher    password.Hasher
	clock     clock.Clock
	validator *validation.Validator
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// New creates a new accounts Service
func New(storage storage.Storage, hasher password.Hasher, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage:   storage,
		hasher:    hasher,
		clock:     clock,
		validator: validation.New(),
		logger:    logger,
	}
}

type registration struct {
	Email  string `field:"email" validate:"required,max=254"`
	Pseudo string `field:"pseudo" validate:"required,max=255"`
}

// Register creates an active account.
// Returns a *model.ValidationError for bad input and model.ErrEmailTaken for a duplicate email.
func (s *Service) Register(ctx context.Context, email, pseudo, plaintext string) (*model.User, error) {
	return s.create(ctx, email, pseudo, plaintext, false)
}

// CreateSuperuser creates an active staff account with every privilege
func (s *Service) CreateSuperuser(ctx context.Context, email, pseudo, plaintext string) (*model.User, error) {
	return s.create(ctx, email, pseudo, plaintext, true)
}

func (s *Service) create(ctx context.Context, email, pseudo, plaintext string, superuser bool) (*model.User, error) {
	if err := s.validator.Struct(registration{Email: email, Pseudo: pseudo}); err != nil {
		return nil, err
	}
	if limit := s.hasher.MaxBytes(); limit > 0 && len(plaintext) > limit {
		return nil, model.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", limit))
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           model.NewUserID(),
		Email:        email,
		Pseudo:       pseudo,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		DateJoined:   s.clock.Now(),
	}

	// The store enforces uniqueness atomically; no pre-check here
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByEmail returns the account with exactly this email, or nil if none exists
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyCredentials returns the account when email and password match an
// active account, and nil otherwise. Errors are reserved for store failures.
func (s *Service) VerifyCredentials(ctx context.Context, email, plaintext string) (*model.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		s.hasher.Verify(plaintext, s.dummy())
		return nil, nil
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, nil
	}

	if !user.CanAuthenticate() {
		return nil, nil
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, plaintext)
	}

	return user, nil
}

// upgradeHash re-hashes with the preferred settings; failure does not block login
func (s *Service) upgradeHash(ctx context.Context, user *model.User, plaintext string) {
	hash, err := s.hasher.Hash(plaintext)
	if err == nil {
		err = s.storage.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("password hash upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.Info("password hash upgraded", "user_id", user.ID)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("dummy hash generation failed", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
