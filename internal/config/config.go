// Package config loads server settings from flags, an optional YAML file,
// the environment and a .env file.
//
// Precedence, lowest first: flag defaults, file, environment, flags set on
// the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/wye/wye-server/internal/logging"
	"github.com/wye/wye-server/internal/services/password"
)

// Keys shared by flags, the YAML file and the environment table
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyStorage        = "storage"
	KeyRedisURL       = "redis-url"
	KeyDatabaseURL    = "database-url"
	KeyAutoMigrate    = "auto-migrate"
	KeySessionTTL     = "session-ttl"
	KeyCookieName     = "cookie-name"
	KeyCookieDomain   = "cookie-domain"
	KeyCookieSecure   = "cookie-secure"
	KeyAllowedOrigins = "allowed-origins"
	KeyPasswordHasher = "password-hasher"
	KeyBcryptCost     = "bcrypt-cost"
	KeyLogFormat      = "log-format"
	KeyLogLevel       = "log-level"
)

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
	envDuration
	envList
)

type envVar struct {
	name string
	key  string
	kind envKind
}

var envVars = []envVar{
	{"HOST", KeyHost, envString},
	{"PORT", KeyPort, envInt},
	{"STORAGE_TYPE", KeyStorage, envString},
	{"REDIS_URL", KeyRedisURL, envString},
	{"DATABASE_URL", KeyDatabaseURL, envString},
	{"AUTO_MIGRATE", KeyAutoMigrate, envBool},
	{"SESSION_TTL", KeySessionTTL, envDuration},
	{"SESSION_COOKIE_NAME", KeyCookieName, envString},
	{"SESSION_AND_CSRF_COOKIE_DOMAIN", KeyCookieDomain, envString},
	{"SESSION_COOKIE_SECURE", KeyCookieSecure, envBool},
	{"CLIENT_HOST", KeyAllowedOrigins, envList},
	{"PASSWORD_HASHER", KeyPasswordHasher, envString},
	{"BCRYPT_COST", KeyBcryptCost, envInt},
	{"LOG_FORMAT", KeyLogFormat, envString},
	{"LOG_LEVEL", KeyLogLevel, envString},
}

// Config holds the server settings
type Config struct {
	Host string
	Port int

	Storage     string
	RedisURL    string
	DatabaseURL string
	AutoMigrate bool

	SessionTTL     time.Duration
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	AllowedOrigins []string

	PasswordHasher string
	BcryptCost     int

	LogFormat string
	LogLevel  string
}

// RegisterFlags adds every setting to fs with its default
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyHost, "", "interface to listen on")
	fs.Int(KeyPort, 8000, "port to listen on")
	fs.String(KeyStorage, "memory", "storage backend (memory, redis, postgres)")
	fs.String(KeyRedisURL, "redis://localhost:6379", "Redis URL (storage=redis)")
	fs.String(KeyDatabaseURL, "", "PostgreSQL URL (storage=postgres)")
	fs.Bool(KeyAutoMigrate, false, "apply pending migrations on startup (storage=postgres)")
	fs.Duration(KeySessionTTL, 14*24*time.Hour, "session lifetime")
	fs.String(KeyCookieName, "sessionid", "session cookie name")
	fs.String(KeyCookieDomain, "", "session cookie domain")
	fs.Bool(KeyCookieSecure, false, "mark the session cookie Secure")
	fs.StringSlice(KeyAllowedOrigins, []string{"http://localhost:3000"}, "CORS allowed origins")
	fs.String(KeyPasswordHasher, password.AlgorithmBcrypt, "preferred password hasher (bcrypt, argon2id)")
	fs.Int(KeyBcryptCost, 0, "bcrypt cost, 0 for the library default")
	fs.String(KeyLogFormat, "json", "log format (json, text)")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
}

// Load reads the configuration. path may be empty; fs must have been passed to RegisterFlags.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	// Explicitly set flags win; unset flags only fill keys nothing else provided
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}

	ttl, err := parseDuration(k.String(KeySessionTTL))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeySessionTTL, err)
	}

	cfg := &Config{
		Host:           k.String(KeyHost),
		Port:           k.Int(KeyPort),
		Storage:        k.String(KeyStorage),
		RedisURL:       k.String(KeyRedisURL),
		DatabaseURL:    k.String(KeyDatabaseURL),
		AutoMigrate:    k.Bool(KeyAutoMigrate),
		SessionTTL:     ttl,
		CookieName:     k.String(KeyCookieName),
		CookieDomain:   k.String(KeyCookieDomain),
		CookieSecure:   k.Bool(KeyCookieSecure),
		AllowedOrigins: k.Strings(KeyAllowedOrigins),
		PasswordHasher: k.String(KeyPasswordHasher),
		BcryptCost:     k.Int(KeyBcryptCost),
		LogFormat:      k.String(KeyLogFormat),
		LogLevel:       k.String(KeyLogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(k *koanf.Koanf) error {
	for _, ev := range envVars {
		raw, ok := os.LookupEnv(ev.name)
		if !ok || raw == "" {
			continue
		}

		var (
			val any
			err error
		)
		switch ev.kind {
		case envInt:
			val, err = strconv.Atoi(raw)
		case envBool:
			val, err = strconv.ParseBool(raw)
		case envDuration:
			var d time.Duration
			d, err = parseDuration(raw)
			val = d.String()
		case envList:
			val = splitList(raw)
		default:
			val = raw
		}
		if err != nil {
			return fmt.Errorf("environment variable %s: %w", ev.name, err)
		}

		if err := k.Set(ev.key, val); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration accepts Go duration strings or a bare number of seconds
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	switch c.Storage {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis-url is required when storage is redis"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database-url is required when storage is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session-ttl must be positive, got %s", c.SessionTTL))
	}
	if c.CookieName == "" {
		errs = append(errs, errors.New("cookie-name must not be empty"))
	}

	switch c.PasswordHasher {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unknown password-hasher %q", c.PasswordHasher))
	}
	if c.BcryptCost < 0 {
		errs = append(errs, fmt.Errorf("bcrypt-cost must not be negative, got %d", c.BcryptCost))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log-format %q", c.LogFormat))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
