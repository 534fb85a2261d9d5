// Package main is the entry point of the order number allocation API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordernum/internal/config"
	corenumerator "ordernum/internal/core/numerator"
	"ordernum/internal/domain/auth"
	"ordernum/internal/domain/orders"
	v1 "ordernum/internal/infrastructure/http/v1"
	"ordernum/internal/infrastructure/http/v1/middleware"
	"ordernum/internal/infrastructure/numerator"
	"ordernum/internal/infrastructure/storage/postgres"
	"ordernum/internal/infrastructure/storage/postgres/order_repo"
	"ordernum/pkg/logger"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Printf("failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Environment == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting ordernum server")

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	pool.LogStats(ctx)

	txManager := postgres.NewTxManager(pool)

	// --- Numbering ---
	numOpts := corenumerator.DefaultOptions()
	if cfg.PreviewStrategy == "cached" {
		numOpts.Strategy = corenumerator.StrategyCached
		numOpts.RangeSize = cfg.CachedRangeSize
		log.Warnw("cached numbering enabled; previews may lag behind allocated numbers",
			"range_size", cfg.CachedRangeSize)
	}
	numeratorService := numerator.New(pool)

	orderService := orders.NewService(order_repo.New(txManager), numeratorService, txManager, numOpts)

	// --- Auth ---
	var validator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		validator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	} else {
		log.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		DB:           pool,
		Orders:       orderService,
		Previews:     orderService,
		JWTValidator: validator,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port, "numbering", cfg.PreviewStrategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
