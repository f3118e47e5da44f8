package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// RoomSessionID identifies a recorded escape-room play session
type RoomSessionID string

// NewRoomSessionID returns a fresh time-ordered room session identifier
func NewRoomSessionID() RoomSessionID {
	return RoomSessionID(ulid.Make().String())
}

// RoomSession is one escape-room play session owned by a user
type RoomSession struct {
	ID            RoomSessionID
	OwnerID       UserID
	Name          string
	PlayedAt      time.Time
	Duration      time.Duration
	NumberOfHints int
}
