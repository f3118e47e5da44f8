package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// UserID uniquely identifies a registered account
type UserID string

// NewUserID returns a fresh time-ordered user identifier
func NewUserID() UserID {
	return UserID(ulid.Make().String())
}

// User is an account able to authenticate against the API.
// PasswordHash is persisted by the stores but never exposed by the API or CLI.
type User struct {
	ID           UserID
	Email        string // login key, unique, compared exactly
	Pseudo       string // display name, not unique
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	DateJoined   time.Time
}

// CanAuthenticate reports whether the account may log in or hold a session
func (u *User) CanAuthenticate() bool {
	return u != nil && u.IsActive
}
