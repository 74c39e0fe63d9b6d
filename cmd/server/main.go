package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	webAdapter "einvoicing/internal/adapters/web"
	"einvoicing/internal/app"
	"einvoicing/internal/config"
	"einvoicing/internal/core"
	"einvoicing/internal/db"
	"einvoicing/internal/logger"
	"einvoicing/internal/metrics"
	"einvoicing/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_ = logger.Setup(logger.DefaultConfig())
		log := logger.WithComponent("server")
		log.Fatal().Err(err).Msg("configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		_ = logger.Setup(logger.DefaultConfig())
		log := logger.WithComponent("server")
		log.Fatal().Err(err).Msg("logger")
	}
	log := logger.WithComponent("server")

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, LockTimeout: cfg.DBLockTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	store := postgres.New(pool)

	opts := []core.Option{
		core.WithRounding(cfg.RoundingMode),
		core.WithLogger(logger.WithComponent("invoicing")),
	}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		opts = append(opts, core.WithRecorder(metrics.New(registry)))
		metricsHandler = metrics.Handler(registry)
	}
	engine := core.NewInvoiceService(store, store, core.NewPlaceholderReferenceGenerator(cfg.ReferencePrefix), opts...)
	svc := app.NewAppService(engine, store)

	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: webAdapter.NewHandler(svc, webAdapter.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger.WithComponent("http"),
			Metrics:        metricsHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("port", cfg.ServerPort).
		Str("rounding", cfg.RoundingMode.String()).
		Bool("metrics", cfg.MetricsEnabled).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("server stopped")
}
