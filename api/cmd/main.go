package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatherly/events-api/internal/audit"
	"github.com/gatherly/events-api/internal/config"
	"github.com/gatherly/events-api/internal/infrastructure/postgres"
	"github.com/gatherly/events-api/internal/infrastructure/redis"
	"github.com/gatherly/events-api/internal/jobs"
	"github.com/gatherly/events-api/internal/payments/razorpay"
	"github.com/gatherly/events-api/internal/pkg/logger"
	"github.com/gatherly/events-api/internal/security"
	"github.com/gatherly/events-api/internal/service"
	"github.com/gatherly/events-api/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "events-api").
		Str("env", cfg.AppEnv).
		Logger()

	// Root ctx with signal cancellation
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	repo := postgres.New(dbPool)

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()

		// Best-effort ping; the service degrades to postgres-only without redis
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Payment gateway ----
	gateway := razorpay.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewaySecret)

	// ---- Application services ----
	eventSvc := service.NewEventService(repo, cache)
	participationSvc := service.NewParticipationService(repo, cache)
	bookingSvc := service.NewBookingService(repo, cache)
	paymentSvc := service.NewPaymentService(repo, repo, gateway, cfg.Currency)
	partnerSvc := service.NewPartnerService(repo)

	h := rest.NewHandler(eventSvc, participationSvc, bookingSvc, paymentSvc, partnerSvc,
		audit.New(log))

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret)

	// ---- Router ----
	httpHandler := rest.NewRouter(rest.RouterDeps{
		Cache:             cache,
		Handler:           h,
		Verifier:          verifier,
		JWTIssuer:         cfg.JWTIssuer,
		RateLimit:         cfg.RLLimit,
		RateLimitWindow:   cfg.RLWindow,
		RateLimitDisabled: !cfg.RLEnabled,
	})

	// ---- Outbox worker + idempotency key cleanup ----
	if cfg.OutboxEnabled {
		repo.StartOutboxWorker(rootCtx, cfg.RabbitURL, cfg.RabbitExchange)
		log.Info().Msg("outbox worker started")
	}
	repo.StartIdempotencyKeyCleanup(rootCtx)

	// ---- Completion sweeper ----
	sweeper := jobs.NewCompletionSweeper(repo, cfg.CompletionSpec)
	if err := sweeper.Start(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("completion sweeper start failed")
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
