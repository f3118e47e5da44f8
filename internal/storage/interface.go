package storage

import (
	"context"
	"time"

	"github.com/wye/wye-server/internal/model"
)

// Storage defines the interface for data persistence.
// Implementations must make CreateUser atomic with respect to email uniqueness.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id model.UserID, hash string) error

	// Session operations, keyed by token hash
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, tokenHash string) (*model.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Room session operations
	SaveRoomSession(ctx context.Context, rs *model.RoomSession) error
	ListRoomSessionsByOwner(ctx context.Context, owner model.UserID) ([]*model.RoomSession, error)
}
