package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/wye/wye-server/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// User tests

func (s *StorageSuite) TestCreateAndGetUser() {
	joined := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	user := &model.User{
		ID:           "user-1",
		Email:        "romain@wye.com",
		Pseudo:       "Romain",
		PasswordHash: "hash123",
		IsActive:     true,
		DateJoined:   joined,
	}

	err := s.storage.CreateUser(s.ctx, user)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("romain@wye.com", retrieved.Email)
	s.Equal("Romain", retrieved.Pseudo)
	s.Equal("hash123", retrieved.PasswordHash)
	s.True(retrieved.IsActive)
	s.True(joined.Equal(retrieved.DateJoined))

	byEmail, err := s.storage.GetUserByEmail(s.ctx, "romain@wye.com")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.storage.GetUserByEmail(s.ctx, "nobody@wye.com")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestCreateUserDuplicateEmail() {
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{ID: "user-1", Email: "romain@wye.com", Pseudo: "First"}))

	err := s.storage.CreateUser(s.ctx, &model.User{ID: "user-2", Email: "romain@wye.com", Pseudo: "Second"})
	s.ErrorIs(err, model.ErrEmailTaken)

	existing, err := s.storage.GetUserByEmail(s.ctx, "romain@wye.com")
	s.Require().NoError(err)
	s.Equal("First", existing.Pseudo)

	s.False(s.mini.Exists(userKey("user-2")))
}

func (s *StorageSuite) TestUpdatePasswordHash() {
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{ID: "user-1", Email: "romain@wye.com", PasswordHash: "old"}))

	s.Require().NoError(s.storage.UpdatePasswordHash(s.ctx, "user-1", "new"))

	u, err := s.storage.GetUserByEmail(s.ctx, "romain@wye.com")
	s.Require().NoError(err)
	s.Equal("new", u.PasswordHash)

	s.ErrorIs(s.storage.UpdatePasswordHash(s.ctx, "missing", "x"), model.ErrUserNotFound)
}

func (s *StorageSuite) TestUpdatePasswordHashConcurrent() {
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{ID: "user-1", Email: "romain@wye.com", Pseudo: "Romain", PasswordHash: "old"}))

	hashes := []string{"h1", "h2", "h3", "h4", "h5"}
	var wg sync.WaitGroup
	errs := make(chan error, len(hashes))
	for _, h := range hashes {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			if err := s.storage.UpdatePasswordHash(s.ctx, "user-1", h); err != nil && !errors.Is(err, redis.TxFailedErr) {
				errs <- err
			}
		}(h)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	u, err := s.storage.GetUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Contains(hashes, u.PasswordHash)
	s.Equal("Romain", u.Pseudo)
	s.Equal("romain@wye.com", u.Email)
}

// Session tests

func (s *StorageSuite) TestSaveGetDeleteSession() {
	now := time.Now().UTC()
	session := &model.Session{
		ID:        "session-1",
		TokenHash: "abc",
		UserID:    "user-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))

	retrieved, err := s.storage.GetSession(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(session.ID, retrieved.ID)
	s.Equal(session.UserID, retrieved.UserID)

	s.Require().NoError(s.storage.DeleteSession(s.ctx, "abc"))
	_, err = s.storage.GetSession(s.ctx, "abc")
	s.ErrorIs(err, model.ErrSessionNotFound)

	s.NoError(s.storage.DeleteSession(s.ctx, "abc"))
}

func (s *StorageSuite) TestSessionKeyExpires() {
	now := time.Now().UTC()
	s.Require().NoError(s.storage.SaveSession(s.ctx, &model.Session{
		TokenHash: "abc",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	s.Equal(time.Hour, s.mini.TTL(sessionKey("abc")))

	s.mini.FastForward(time.Hour + time.Second)

	_, err := s.storage.GetSession(s.ctx, "abc")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestDeleteExpiredSessions() {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.storage.SaveSession(s.ctx, &model.Session{TokenHash: "old", CreatedAt: created, ExpiresAt: created.Add(time.Hour)})
	_ = s.storage.SaveSession(s.ctx, &model.Session{TokenHash: "live", CreatedAt: created, ExpiresAt: created.Add(48 * time.Hour)})

	n, err := s.storage.DeleteExpiredSessions(s.ctx, created.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.storage.GetSession(s.ctx, "live")
	s.NoError(err)
	_, err = s.storage.GetSession(s.ctx, "old")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Room session tests

func (s *StorageSuite) TestListRoomSessionsByOwner() {
	played := time.Date(2001, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, rs := range []*model.RoomSession{
		{ID: "rs-1", OwnerID: "alice", Name: "Toulouse", PlayedAt: played, Duration: 50 * time.Minute, NumberOfHints: 2},
		{ID: "rs-2", OwnerID: "bob", Name: "Paris", PlayedAt: played},
		{ID: "rs-3", OwnerID: "alice", Name: "Youkidea", PlayedAt: played, Duration: 20 * time.Minute},
	} {
		s.Require().NoError(s.storage.SaveRoomSession(s.ctx, rs))
	}

	alice, err := s.storage.ListRoomSessionsByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(alice, 2)
	s.Equal("Toulouse", alice[0].Name)
	s.Equal(50*time.Minute, alice[0].Duration)
	s.Equal(2, alice[0].NumberOfHints)
	s.True(played.Equal(alice[0].PlayedAt))
	s.Equal("Youkidea", alice[1].Name)

	bob, err := s.storage.ListRoomSessionsByOwner(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(bob, 1)
	s.Equal("Paris", bob[0].Name)
}

func (s *StorageSuite) TestListRoomSessionsSkipsForeignIndexEntries() {
	s.Require().NoError(s.storage.SaveRoomSession(s.ctx, &model.RoomSession{ID: "rs-1", OwnerID: "bob", Name: "Paris"}))
	_, err := s.mini.RPush(roomSessionsForOwnerIndexKey("alice"), "rs-1")
	s.Require().NoError(err)

	alice, err := s.storage.ListRoomSessionsByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(alice)
}

func (s *StorageSuite) TestListRoomSessionsEmpty() {
	result, err := s.storage.ListRoomSessionsByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.NotNil(result)
	s.Empty(result)
}
