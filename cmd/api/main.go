// Copyright (c) 2026 OpenG7. All rights reserved.

// Command api is the entry point for the OpenG7 platform HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/alert"
	"github.com/OpenG7/openg7-platform-sub001/internal/api"
	"github.com/OpenG7/openg7-platform-sub001/internal/feed"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/config"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/mailer"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/migration"
	pgstore "github.com/OpenG7/openg7-platform-sub001/internal/platform/postgres"
	redisstore "github.com/OpenG7/openg7-platform-sub001/internal/platform/redis"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/webhookurl"
	"github.com/OpenG7/openg7-platform-sub001/internal/session"
	"github.com/OpenG7/openg7-platform-sub001/internal/users/account"
	"github.com/OpenG7/openg7-platform-sub001/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "openg7"))
	slog.SetDefault(log)

	log.Info("[OpenG7] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "openg7"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token & Session Services ───────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	sessionService := session.NewService(session.NewRedisStore(rdb), cfg.IdleTimeout(), log)
	sessionHandler := session.NewHandler(sessionService, jwtSvc)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	mail := buildMailer(cfg, log)

	webhookPolicy := webhookurl.Policy{
		HTTPSOnly:            cfg.WebhookRequireHTTPS,
		AllowPrivateNetworks: cfg.WebhookAllowPrivateNetworks,
		AllowLocalhost:       cfg.WebhookAllowLocalhost,
		AllowedHosts:         cfg.WebhookHostPatterns(),
	}

	authService := auth.NewService(
		auth.NewUserRepository(pool),
		sessionService,
		auth.NewRefreshTokenRepository(rdb),
		auth.NewResetTokenRepository(rdb),
		auth.NewVerificationTokenRepository(rdb),
		jwtSvc,
		mail,
		log,
	)
	authHandler := auth.NewHandler(authService, cfg.IsProduction())

	accountService := account.NewService(
		account.NewAccountRepository(pool),
		account.NewProfileRepository(pool),
		auth.NewEmailChangeTokenRepository(rdb),
		mail,
		webhookPolicy,
		log,
	)
	accountHandler := account.NewHandler(accountService)

	broker := feed.NewStreamBroker(constants.StreamHeartbeatInterval, log)
	feedService := feed.NewService(
		feed.NewRepository(pool),
		feed.NewIdempotencyRepository(rdb),
		broker,
		log,
	)
	feedHandler := feed.NewHandler(feedService, broker)

	dispatcher := alert.NewDispatcher(mail, accountService, nil, webhookPolicy, cfg.WebhookTimeout(), log)
	alertService := alert.NewService(
		alert.NewAlertRepository(pool),
		alert.NewSavedSearchRepository(pool),
		accountService,
		dispatcher,
		log,
	)
	alertHandler := alert.NewHandler(alertService)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Sessions:  sessionHandler,
		Feed:      feedHandler,
		Alerts:    alertHandler,
		Account:   accountHandler,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtSvc, sessionService, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs the error with the given startup step and exits when err is
// non-nil; startup cannot proceed past a failed step.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup failed", slog.String("step", step), slog.Any("error", err))
		os.Exit(1)
	}
}

// buildMailer returns an SMTP mailer when a relay is configured and a no-op
// mailer otherwise, so development environments run without outbound mail.
func buildMailer(cfg *config.Config, log *slog.Logger) mailer.Mailer {
	if cfg.SMTPHost == "" {
		log.Info("mailer_disabled")
		return mailer.Noop{}
	}

	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		log.Warn("smtp_port_invalid", slog.String("value", cfg.SMTPPort))
		port = 587
	}

	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     port,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
