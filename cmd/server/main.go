package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retailpos/internal/config"
	"retailpos/internal/infra"
	"retailpos/internal/middleware"
	"retailpos/internal/router"
	"retailpos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps := router.NewComponents(cfg, db, rdb)

	// Workers are wired here (composition root) so the pool shares the
	// services and repositories the API uses.
	worker.NewPool(rdb, comps.WorkerHandlers(cfg)).Start(ctx, cfg.WorkerPoolSize)
	worker.StartReconcileCron(ctx, worker.ReconcileCronConfig{
		Customers: comps.CustomerSvc,
		Orders:    comps.Orders,
		KeyTTL:    cfg.IdempotencyTTL(),
		RDB:       rdb,
		Interval:  cfg.ReconcileInterval(),
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.RunPurge(ctx)

	r := router.New(cfg, db, rdb, comps, limiter)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /v1/events/stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("retailpos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel() // stop workers and cron
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	log.Info().Msg("server exited")
}
