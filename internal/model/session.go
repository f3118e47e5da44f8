package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a server-side session record
type SessionID string

// NewSessionID returns a fresh time-ordered session identifier
func NewSessionID() SessionID {
	return SessionID(ulid.Make().String())
}

// Session binds an opaque client token to a user.
// Only the SHA-256 of the token is kept; the plaintext lives with the client.
type Session struct {
	ID        SessionID
	TokenHash string
	UserID    UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session is no longer valid at now
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
