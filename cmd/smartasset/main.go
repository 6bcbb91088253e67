package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"smartasset/internal/amqp"
	"smartasset/internal/cache"
	"smartasset/internal/cli"
	"smartasset/internal/core"
	apphttp "smartasset/internal/http"
	"smartasset/internal/log"
	"smartasset/internal/receipt"
	"smartasset/internal/reconcile"
	"smartasset/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, false)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store := cli.OpenStore(startCtx, logger, cfg)
	startCancel()

	interpreter, err := receipt.NewGeminiInterpreter(context.Background(), receipt.GeminiConfig{
		APIKey:   cfg.GoogleAPIKey,
		Model:    cfg.GeminiModel,
		Timeout:  cfg.InterpretTimeout,
		Fallback: cfg.FallbackCategory,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize receipt interpreter", log.FieldError, err, log.FieldModel, cfg.GeminiModel)
		os.Exit(1)
	}

	opts := []services.Option{services.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// The mirror is a side channel; the ledger works without it.
			logger.Warn("AMQP unavailable, ledger events will not be published", log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(publisher))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ledgerSvc := services.NewLedgerService(store.Store, cfg.ReadCacheTTL, opts...)

	sessions := reconcile.NewSessions(cfg.MaxSessions, cfg.SessionTTL)
	caches := cache.NewManager(logger)
	for name, c := range ledgerSvc.Caches() {
		caches.Register(name, c)
	}
	caches.Register("sessions", sessions.Cache())
	caches.StartCleanup(time.Minute)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:             ":" + cfg.Port,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		RateLimitRPM:     cfg.RateLimitRPM,
		InterpretTimeout: cfg.InterpretTimeout,
	}, apphttp.Deps{
		Ledger:      ledgerSvc,
		Interpreter: interpreter,
		Sessions:    sessions,
		Coercer:     core.NewCoercer(cfg.PlaceholderItem, cfg.FallbackCategory),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// Uploads and model calls can be slow; the write timeout leaves room for both.
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = cfg.InterpretTimeout + 30*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		// Closes the store and the publisher.
		if err := ledgerSvc.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	})

	logger.Info("Starting smartasset server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
