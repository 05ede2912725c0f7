package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixellocker/internal/app"
	"pixellocker/internal/platform/config"
	"pixellocker/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if cfg.IsProduction() && cfg.JWTSigningKey == config.DevJWTSigningKey {
		log.Error("JWT_SIGNING_KEY must be set in production")
		os.Exit(1)
	}

	log.Info("initializing pixellocker",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database_driver", cfg.Database.Driver,
		"verdict_cache", cfg.VerdictCacheBackend,
		"require_issuer_role", cfg.RequireIssuerRole,
		"require_proof", cfg.RequireProof,
		"kafka_enabled", cfg.Kafka.Brokers != "",
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	application.Start()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           application.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := application.Close(ctx); err != nil {
		log.Error("failed to release resources", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
