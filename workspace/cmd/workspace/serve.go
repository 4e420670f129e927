package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/common/middleware"
	"github.com/teamspace-hq/teamspace/workspace/internal/applications"
	"github.com/teamspace-hq/teamspace/workspace/internal/auth"
	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/messages"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
	"github.com/teamspace-hq/teamspace/workspace/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace API server",
	Long: `Run the HTTP API and websocket gateway.

Storage, search and realtime backends are chosen by configuration:
  database_url        Postgres (in-memory when empty)
  opensearch.url      OpenSearch message index (in-memory when empty)
  realtime.transport  nats, amqp or none
  redis.addr          search rate limiting (disabled when empty)`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "override listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting workspace service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("realtime_transport", cfg.Realtime.Transport))

	deps, err := openComponents(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", logging.Error(err))
		return err
	}
	defer deps.Close()

	limiter, err := openSearchLimiter(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("failed to initialize search rate limiter", logging.Error(err))
		return err
	}
	defer limiter.Close()

	appSvc, chanSvc, msgSvc := deps.services()
	origins := cfg.Server.AllowedOrigins
	handler := server.NewRouter(server.Dependencies{
		Applications:     applications.NewController(appSvc, deps.signer),
		Channels:         channels.NewController(chanSvc, deps.signer),
		Messages:         messages.NewMessageController(msgSvc, deps.signer),
		Search:           messages.NewSearchController(messages.NewSearchService(msgSvc), deps.signer),
		Threads:          messages.NewThreadHandler(msgSvc),
		Gateway:          realtime.NewGateway(deps.hub, deps.signer, logger.Logger, originChecker(origins)),
		Auth:             auth.NewMiddleware(auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)),
		SearchLimiter:    limiter,
		SearchRetryAfter: cfg.Search.RateWindow(),
		AllowedOrigins:   origins,
		Readiness:        deps.readiness,
		Logger:           logger.Logger,
	})

	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if serveAddr != "" {
		listenAddr = serveAddr
	}
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("workspace service listening", slog.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server error", logging.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logging.Error(err))
		return err
	}
	logger.Info("workspace service stopped")
	return nil
}

// originChecker admits websocket upgrades from the CORS origins. Clients
// that send no Origin header are not browsers and are let through.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(allowed, origin)
	}
}
