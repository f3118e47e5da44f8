package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/wye/wye-server/internal/dependencies/clock"
	"github.com/wye/wye-server/internal/dependencies/random"
	"github.com/wye/wye-server/internal/observability"
	"github.com/wye/wye-server/internal/services/accounts"
	"github.com/wye/wye-server/internal/services/password"
	"github.com/wye/wye-server/internal/services/rooms"
	"github.com/wye/wye-server/internal/services/sessions"
	"github.com/wye/wye-server/internal/storage"
	"github.com/wye/wye-server/internal/storage/memory"
	pgstorage "github.com/wye/wye-server/internal/storage/postgres"
	redisstorage "github.com/wye/wye-server/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Hasher password.Hasher

	// Services
	AccountsService *accounts.Service
	SessionsService *sessions.Service
	RoomsService    *rooms.Service

	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds PostgreSQL settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// AutoMigrate applies pending migrations before the postgres store is opened
	AutoMigrate bool
	// SessionConfig holds session settings (optional)
	// If zero value, defaults to sessions.DefaultConfig()
	SessionConfig sessions.Config
	// PasswordHasher names the preferred algorithm; defaults to bcrypt
	PasswordHasher string
	// BcryptCost is the bcrypt work factor; zero means the library default
	BcryptCost int
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	algorithm := cfg.PasswordHasher
	if algorithm == "" {
		algorithm = password.AlgorithmBcrypt
	}
	hasher, err := password.New(algorithm, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Use default session config if not provided
	sessionCfg := cfg.SessionConfig
	if sessionCfg.TTL == 0 {
		sessionCfg = sessions.DefaultConfig()
	}

	return newWithDependencies(store, clock.New(), random.New(), hasher, sessionCfg, logger), nil
}

func newStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(ctx, *cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		if cfg.AutoMigrate {
			if err := Migrate(cfg.PostgresConfig.URL, logger); err != nil {
				return nil, err
			}
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}
}

// Migrate applies all pending schema migrations to databaseURL
func Migrate(databaseURL string, logger *slog.Logger) (err error) {
	m, err := pgstorage.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", slog.Uint64("version", uint64(version)))
	return nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, hasher password.Hasher, sessionCfg sessions.Config, logger *slog.Logger) *App {
	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Hasher:          hasher,
		AccountsService: accounts.New(store, hasher, clk, logger),
		SessionsService: sessions.New(store, clk, rnd, sessionCfg),
		RoomsService:    rooms.New(store),
		Metrics:         observability.NewMetrics(),
		Logger:          logger,
	}
}

// Close releases the storage connection, if the backend holds one
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
