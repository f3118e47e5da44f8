package redis

import (
	"fmt"

	"github.com/wye/wye-server/internal/model"
)

// Key prefix for all wye data
const keyPrefix = "wye"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// emailIndexKey returns the Redis key for the email -> user_id index.
// SETNX on this key is what makes registration unique.
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// sessionKey returns the Redis key for a Session, addressed by token hash
func sessionKey(tokenHash string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, tokenHash)
}

// sessionKeyPattern matches every session key
func sessionKeyPattern() string {
	return fmt.Sprintf("%s:session:*", keyPrefix)
}

// roomSessionKey returns the Redis key for a RoomSession
func roomSessionKey(id model.RoomSessionID) string {
	return fmt.Sprintf("%s:room_session:%s", keyPrefix, id)
}

// roomSessionsForOwnerIndexKey returns the Redis key for the LIST of an owner's room sessions
func roomSessionsForOwnerIndexKey(owner model.UserID) string {
	return fmt.Sprintf("%s:idx:room_sessions_for_owner:%s", keyPrefix, owner)
}
