package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/internal/server"
	"github.com/suteetoe/schemadb/internal/store/backend"
	"github.com/suteetoe/schemadb/pkg/config"
	"github.com/suteetoe/schemadb/pkg/jwtutil"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

const serviceName = "schemadb"

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	log, err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: serviceName,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting schemadb service...", cfg.LogFields()...)
	for _, warning := range cfg.Warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the document store
	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Initialize the administrator credential
	var verifier *auth.StaticCredentials
	if cfg.Auth.AdminPasswordHash != "" {
		verifier, err = auth.NewStaticCredentialsFromHash(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash)
	} else {
		verifier, err = auth.NewStaticCredentials(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	}
	if err != nil {
		log.Fatal("Failed to initialize credentials", zap.Error(err))
	}

	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	log.Info("JWT utility initialized", zap.Int("expiration_hours", cfg.JWT.ExpirationHours))

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(serviceName, cfg.Metrics.Prefix, registry)
	log.Info("Prometheus metrics initialized")

	e := server.New(server.Options{
		ServiceName: serviceName,
		BasePath:    cfg.Server.BasePath,
		StaticDir:   cfg.Server.StaticDir,
		Backend:     store,
		Gate:        auth.NewGate(verifier, tokens),
		Metrics:     m,
	})

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
	log.Info("Server exiting")
}
