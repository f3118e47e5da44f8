package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wye/wye-server/internal/config"
	"github.com/wye/wye-server/internal/factory"
	"github.com/wye/wye-server/internal/logging"
	"github.com/wye/wye-server/internal/services/sessions"
	pgstorage "github.com/wye/wye-server/internal/storage/postgres"
	redisstorage "github.com/wye/wye-server/internal/storage/redis"
)

const serviceName = "wye-server"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the wye server.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wyeserver",
		Short: "wye - escape-room session tracker API",
		Long: `wyeserver runs the wye GraphQL API: accounts, login sessions and
per-user escape-room session records.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateSuperuserCmd())
	cmd.AddCommand(NewClearSessionsCmd())

	return cmd
}

// loadConfig reads the configuration for cmd and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, level, os.Stderr)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// newApp wires the application from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*factory.App, error) {
	fc := factory.Config{
		Logger:         logger,
		StorageType:    cfg.Storage,
		AutoMigrate:    cfg.AutoMigrate,
		SessionConfig:  sessions.Config{TTL: cfg.SessionTTL},
		PasswordHasher: cfg.PasswordHasher,
		BcryptCost:     cfg.BcryptCost,
	}

	switch cfg.Storage {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		fc.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = cfg.DatabaseURL
		fc.PostgresConfig = &pgCfg
	}

	return factory.New(ctx, fc)
}
