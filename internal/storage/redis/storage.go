package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage"
)

// maxWatchRetries bounds optimistic-lock retries on user records
const maxWatchRetries = 5

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance, retrying the initial ping
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(cfg.ConnectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Claim the email first; only one concurrent registration wins
	claimed, err := s.client.SetNX(ctx, emailIndexKey(user.Email), string(user.ID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrEmailTaken
	}

	if err := s.client.Set(ctx, userKey(user.ID), data, 0).Err(); err != nil {
		// Release the claim so the email is not locked out forever
		_ = s.client.Del(ctx, emailIndexKey(user.Email)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	userID, err := s.client.Get(ctx, emailIndexKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	return s.GetUser(ctx, model.UserID(userID))
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id model.UserID, hash string) error {
	key := userKey(id)

	// WATCH aborts the write when the record changes under us; retry a few times
	update := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrUserNotFound
			}
			return err
		}

		var user model.User
		if err := json.Unmarshal(data, &user); err != nil {
			return err
		}
		user.PasswordHash = hash

		updated, err := json.Marshal(&user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// Redis drops the key at expiry; Resolve still checks ExpiresAt itself
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.Set(ctx, sessionKey(session.TokenHash), data, ttl).Err()
}

func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, sessionKey(tokenHash)).Err()
}

func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, sessionKeyPattern(), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // Expired between SCAN and GET
			}
			return deleted, err
		}

		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue // Skip invalid data
		}
		if !session.IsExpired(now) {
			continue
		}

		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, iter.Err()
}

// Room session operations

func (s *Storage) SaveRoomSession(ctx context.Context, rs *model.RoomSession) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}

	// Use transaction pipeline for atomic save + index append
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomSessionKey(rs.ID), data, 0)
	pipe.RPush(ctx, roomSessionsForOwnerIndexKey(rs.OwnerID), string(rs.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListRoomSessionsByOwner(ctx context.Context, owner model.UserID) ([]*model.RoomSession, error) {
	ids, err := s.client.LRange(ctx, roomSessionsForOwnerIndexKey(owner), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []*model.RoomSession{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomSessionKey(model.RoomSessionID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.RoomSession, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Missing record
		}
		var rs model.RoomSession
		if err := json.Unmarshal([]byte(str), &rs); err != nil {
			continue // Skip invalid data
		}
		// The index is per owner, but never trust it over the record itself
		if rs.OwnerID != owner {
			continue
		}
		result = append(result, &rs)
	}

	return result, nil
}
