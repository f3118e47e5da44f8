package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/wye/wye-server/internal/api"
	"github.com/wye/wye-server/internal/api/middleware"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server exposing /graphql/ (public), /private_graphql/
(authenticated), /health and /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !quiet {
				cmd.Println(figure.NewFigure("wye", "cybermedium", true).String())
			}
			return runServe(cmd)
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not print the startup banner")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	}()

	cookie := middleware.DefaultSessionCookie()
	cookie.Name = cfg.CookieName
	cookie.Domain = cfg.CookieDomain
	cookie.Secure = cfg.CookieSecure
	cookie.MaxAge = cfg.SessionTTL

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AccountsService: app.AccountsService,
		SessionsService: app.SessionsService,
		RoomsService:    app.RoomsService,
		Metrics:         app.Metrics,
		Cookie:          cookie,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage),
		slog.String("password_hasher", app.Hasher.Algorithm()),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}
