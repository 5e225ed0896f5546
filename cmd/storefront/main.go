package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/i18n"
	"github.com/KelvenAlvess/marketplace-storefront/internal/localstore"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/observability"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer provider shutdown error", zap.Error(err))
		}
	}()

	store, err := localstore.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to open local store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("local store close error", zap.Error(err))
			}
		}()
	}

	bundle, err := i18n.Default(cfg.Checkout.DefaultLocale)
	if err != nil {
		logger.Fatal("failed to load message catalogs", zap.Error(err))
	}

	transport, err := api.New(cfg.API.BaseURL,
		api.WithLogger(logger.Named("api")),
		api.WithTracerProvider(tp),
		api.WithPolicy(api.Policy{
			Timeout:    cfg.API.Timeout,
			MaxRetries: cfg.API.MaxRetries,
			Backoff:    cfg.API.RetryBackoff,
		}),
	)
	if err != nil {
		logger.Fatal("failed to initialise api client", zap.Error(err))
	}

	srv := newServer(cfg, logger, bundle, store, transport, tp)
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.String("storage", cfg.Storage.Driver),
	)
	go func() {
		serverLogger.Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
