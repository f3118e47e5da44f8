// Package postgres implements storage.Storage on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage"
)

// poolIface is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	pool  poolIface
	close func()
}

// New connects to PostgreSQL, retrying the initial ping with exponential backoff
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(cfg.ConnectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	return &Storage{pool: pool, close: pool.Close}, nil
}

// NewWithPool creates a store over an existing pool (for testing)
func NewWithPool(pool poolIface) *Storage {
	return &Storage{pool: pool}
}

// Close releases the connection pool
func (s *Storage) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

const userColumns = `id, email, pseudo, first_name, last_name, password_hash,
		       is_active, is_staff, is_superuser, date_joined`

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, pseudo, first_name, last_name, password_hash,
			is_active, is_staff, is_superuser, date_joined
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		string(user.ID),
		user.Email,
		user.Pseudo,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		user.IsStaff,
		user.IsSuperuser,
		user.DateJoined,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_EMAIL_TAKEN").
			With("email", user.Email).
			Wrap(model.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", string(id)).Wrap(model.ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", string(id)).
			Wrap(err)
	}
	return user, nil
}

// GetUserByEmail matches the email exactly; there is no case folding.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(model.ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id model.UserID, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, string(id), hash)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", string(id)).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", string(id)).Wrap(model.ErrUserNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var id string
	err := row.Scan(
		&id,
		&u.Email,
		&u.Pseudo,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.DateJoined,
	)
	if err != nil {
		return nil, err
	}
	u.ID = model.UserID(id)
	return &u, nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`,
		string(session.ID),
		session.TokenHash,
		string(session.UserID),
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", string(session.UserID)).
			Wrap(err)
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	var session model.Session
	var id, userID string
	err := s.pool.QueryRow(ctx, `
		SELECT id, token_hash, user_id, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&id, &session.TokenHash, &userID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(model.ErrSessionNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session by token hash").Wrap(err)
	}
	session.ID = model.SessionID(id)
	session.UserID = model.UserID(userID)
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}
	return nil
}

func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Room session operations

func (s *Storage) SaveRoomSession(ctx context.Context, rs *model.RoomSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_sessions (id, owner_id, name, played_at, duration_us, number_of_hints)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		string(rs.ID),
		string(rs.OwnerID),
		rs.Name,
		rs.PlayedAt,
		rs.Duration.Microseconds(),
		int32(rs.NumberOfHints),
	)
	if err != nil {
		return oops.Code("ROOM_SESSION_CREATE_FAILED").
			With("operation", "insert room session").
			With("owner_id", string(rs.OwnerID)).
			Wrap(err)
	}
	return nil
}

// ListRoomSessionsByOwner orders by id; ULIDs sort by creation time.
func (s *Storage) ListRoomSessionsByOwner(ctx context.Context, owner model.UserID) ([]*model.RoomSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, played_at, duration_us, number_of_hints
		FROM room_sessions
		WHERE owner_id = $1
		ORDER BY id
	`, string(owner))
	if err != nil {
		return nil, oops.Code("ROOM_SESSION_LIST_FAILED").
			With("operation", "list room sessions").
			With("owner_id", string(owner)).
			Wrap(err)
	}
	defer rows.Close()

	result := make([]*model.RoomSession, 0)
	for rows.Next() {
		var rs model.RoomSession
		var id, ownerID string
		var durationUS int64
		var hints int32
		if err := rows.Scan(&id, &ownerID, &rs.Name, &rs.PlayedAt, &durationUS, &hints); err != nil {
			return nil, oops.Code("ROOM_SESSION_LIST_FAILED").With("operation", "scan room session row").Wrap(err)
		}
		rs.ID = model.RoomSessionID(id)
		rs.OwnerID = model.UserID(ownerID)
		rs.Duration = time.Duration(durationUS) * time.Microsecond
		rs.NumberOfHints = int(hints)
		result = append(result, &rs)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROOM_SESSION_LIST_FAILED").With("operation", "iterate room sessions").Wrap(err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
