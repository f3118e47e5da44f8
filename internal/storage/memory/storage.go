package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users        map[model.UserID]*model.User
	emailIndex   map[string]model.UserID
	sessions     map[string]*model.Session
	roomSessions map[model.UserID][]*model.RoomSession
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:        make(map[model.UserID]*model.User),
		emailIndex:   make(map[string]model.UserID),
		sessions:     make(map[string]*model.Session),
		roomSessions: make(map[model.UserID][]*model.RoomSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Records are copied on the way in and out so callers never share
// memory with the store.

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emailIndex[user.Email]; taken {
		return model.ErrEmailTaken
	}
	u := *user
	s.users[u.ID] = &u
	s.emailIndex[u.Email] = u.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id model.UserID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[cp.TokenHash] = &cp
	return nil
}

func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Room session operations

func (s *Storage) SaveRoomSession(ctx context.Context, rs *model.RoomSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rs
	s.roomSessions[cp.OwnerID] = append(s.roomSessions[cp.OwnerID], &cp)
	return nil
}

func (s *Storage) ListRoomSessionsByOwner(ctx context.Context, owner model.UserID) ([]*model.RoomSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := s.roomSessions[owner]
	result := make([]*model.RoomSession, 0, len(owned))
	for _, rs := range owned {
		cp := *rs
		result = append(result, &cp)
	}
	return result, nil
}
