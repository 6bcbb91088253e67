package main

import (
	"context"
	"errors"
	"os"
	"time"

	"smartasset/internal/amqp"
	"smartasset/internal/cli"
	"smartasset/internal/log"
	gsheet "smartasset/internal/sheets/google"
	"smartasset/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, true)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if !cfg.MirrorEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the ledger worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store := cli.OpenStore(startCtx, logger, cfg)
	mirror, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:          cfg.GoogleSpreadsheetID,
		SheetName:              cfg.GoogleSheetName,
		ServiceAccountJSON:     cfg.GoogleServiceAccountJSON,
		ServiceAccountFile:     cfg.GoogleServiceAccountFile,
		ApplicationCredentials: cfg.GoogleApplicationCredentials,
	}, logger)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(store.Store, mirror, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err)
		}
	})

	// Consume until shutdown, reconnecting whenever the broker drops us.
	for {
		err := client.ConsumeLedgerEvents(ctx, mirrorWorker.HandleLedgerEvent)
		if ctx.Err() != nil {
			break
		}
		logger.Warn("Ledger event consumption stopped, reconnecting", log.FieldError, err)
		if err := client.ReconnectWithBackoff(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("AMQP reconnect failed", log.FieldError, err)
			}
			break
		}
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
