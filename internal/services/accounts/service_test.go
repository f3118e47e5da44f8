package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/wye/wye-server/internal/dependencies/mocks"
	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/services/password"
	"github.com/wye/wye-server/internal/storage/memory"
	"github.com/wye/wye-server/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, testutil.FastHasher(), s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// Register tests

func (s *ServiceSuite) TestRegisterSucceeds() {
	user, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")
	s.Require().NoError(err)

	s.NotEmpty(user.ID)
	s.Equal("romain@wye.com", user.Email)
	s.Equal("Romain", user.Pseudo)
	s.True(user.IsActive)
	s.False(user.IsStaff)
	s.False(user.IsSuperuser)
	s.Equal(s.clock.Now(), user.DateJoined)
}

func (s *ServiceSuite) TestRegisterNeverStoresPlaintext() {
	user, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")
	s.Require().NoError(err)

	stored, err := s.storage.GetUser(s.ctx, user.ID)
	s.Require().NoError(err)
	s.NotEqual("pass", stored.PasswordHash)
	s.NotContains(stored.PasswordHash, "pass")
}

func (s *ServiceSuite) TestRegisterThenFindByEmail() {
	registered, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")
	s.Require().NoError(err)

	found, err := s.service.FindByEmail(s.ctx, "romain@wye.com")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(registered.ID, found.ID)
	s.Equal("Romain", found.Pseudo)
}

func (s *ServiceSuite) TestRegisterValidation() {
	cases := []struct {
		name, email, pseudo, password, field string
	}{
		{"empty email", "", "Romain", "pass", "email"},
		{"empty pseudo", "romain@wye.com", "", "pass", "pseudo"},
		{"password over bcrypt limit", "romain@wye.com", "Romain", strings.Repeat("é", 37), "password"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Register(s.ctx, tc.email, tc.pseudo, tc.password)
			s.Require().ErrorIs(err, model.ErrValidation)

			var verr *model.ValidationError
			s.Require().True(errors.As(err, &verr))
			s.Equal(tc.field, verr.Fields[0].Field)
		})
	}

	_, err := s.storage.GetUserByEmail(s.ctx, "romain@wye.com")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *ServiceSuite) TestRegisterAcceptsLooseInput() {
	user, err := s.service.Register(s.ctx, "romain", "Romain", "")
	s.Require().NoError(err)
	s.Equal("romain", user.Email)

	found, err := s.service.VerifyCredentials(s.ctx, "romain", "")
	s.Require().NoError(err)
	s.Require().NotNil(found)
}

func (s *ServiceSuite) TestRegisterMultibytePasswordWithinLimit() {
	plaintext := strings.Repeat("é", 36)
	s.Require().Len(plaintext, password.BcryptMaxBytes)

	_, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", plaintext)
	s.Require().NoError(err)

	user, err := s.service.VerifyCredentials(s.ctx, "romain@wye.com", plaintext)
	s.Require().NoError(err)
	s.NotNil(user)
}

func (s *ServiceSuite) TestRegisterLongPasswordWithArgon2id() {
	argon, err := password.New(password.AlgorithmArgon2id, 0)
	s.Require().NoError(err)
	service := New(s.storage, argon, s.clock, testutil.NopLogger())

	plaintext := strings.Repeat("é", 100)
	_, err = service.Register(s.ctx, "romain@wye.com", "Romain", plaintext)
	s.Require().NoError(err)

	user, err := service.VerifyCredentials(s.ctx, "romain@wye.com", plaintext)
	s.Require().NoError(err)
	s.NotNil(user)
}

func (s *ServiceSuite) TestRegisterDuplicateEmailLeavesFirstIntact() {
	first, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "romain@wye.com", "Impostor", "other")
	s.ErrorIs(err, model.ErrEmailTaken)

	found, err := s.service.FindByEmail(s.ctx, "romain@wye.com")
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.Equal("Romain", found.Pseudo)

	user, err := s.service.VerifyCredentials(s.ctx, "romain@wye.com", "pass")
	s.Require().NoError(err)
	s.NotNil(user)
}

func (s *ServiceSuite) TestConcurrentRegisterOneWinner() {
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Register(s.ctx, "race@wye.com", "Racer", "pass")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, model.ErrEmailTaken):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(7), conflicts.Load())
}

func (s *ServiceSuite) TestCreateSuperuser() {
	user, err := s.service.CreateSuperuser(s.ctx, "admin@wye.com", "Admin", "secret")
	s.Require().NoError(err)
	s.True(user.IsStaff)
	s.True(user.IsSuperuser)
	s.True(user.IsActive)
}

// FindByEmail tests

func (s *ServiceSuite) TestFindByEmailUnknownReturnsNil() {
	user, err := s.service.FindByEmail(s.ctx, "nobody@wye.com")
	s.NoError(err)
	s.Nil(user)
}

func (s *ServiceSuite) TestFindByEmailIsExactMatch() {
	_, err := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")
	s.Require().NoError(err)

	user, err := s.service.FindByEmail(s.ctx, "ROMAIN@wye.com")
	s.NoError(err)
	s.Nil(user)
}

// VerifyCredentials tests

func (s *ServiceSuite) TestVerifyCredentialsSucceeds() {
	registered, _ := s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")

	user, err := s.service.VerifyCredentials(s.ctx, "romain@wye.com", "pass")
	s.Require().NoError(err)
	s.Require().NotNil(user)
	s.Equal(registered.ID, user.ID)
}

func (s *ServiceSuite) TestVerifyCredentialsWrongPassword() {
	_, _ = s.service.Register(s.ctx, "romain@wye.com", "Romain", "pass")

	user, err := s.service.VerifyCredentials(s.ctx, "romain@wye.com", "wrong")
	s.NoError(err)
	s.Nil(user)
}

func (s *ServiceSuite) TestVerifyCredentialsUnknownEmail() {
	user, err := s.service.VerifyCredentials(s.ctx, "nobody@wye.com", "pass")
	s.NoError(err)
	s.Nil(user)
}

func (s *ServiceSuite) TestVerifyCredentialsInactiveAccount() {
	hash, err := testutil.FastHasher().Hash("pass")
	s.Require().NoError(err)
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{
		ID:           "user-inactive",
		Email:        "gone@wye.com",
		Pseudo:       "Gone",
		PasswordHash: hash,
		IsActive:     false,
	}))

	user, err := s.service.VerifyCredentials(s.ctx, "gone@wye.com", "pass")
	s.NoError(err)
	s.Nil(user)
}

func (s *ServiceSuite) TestVerifyCredentialsUpgradesHash() {
	argon, err := password.New(password.AlgorithmArgon2id, 0)
	s.Require().NoError(err)
	legacy, err := argon.Hash("pass")
	s.Require().NoError(err)
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{
		ID:           "user-legacy",
		Email:        "legacy@wye.com",
		Pseudo:       "Legacy",
		PasswordHash: legacy,
		IsActive:     true,
	}))

	user, err := s.service.VerifyCredentials(s.ctx, "legacy@wye.com", "pass")
	s.Require().NoError(err)
	s.Require().NotNil(user)

	stored, err := s.storage.GetUser(s.ctx, "user-legacy")
	s.Require().NoError(err)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	s.Require().NoError(err)
	s.Equal(bcrypt.MinCost, cost)

	// Still verifies after the upgrade
	again, err := s.service.VerifyCredentials(s.ctx, "legacy@wye.com", "pass")
	s.Require().NoError(err)
	s.NotNil(again)
}
