package main

import (
	"context"
	"os"
	"time"

	"partita/internal/amqp"
	"partita/internal/cli"
	applog "partita/internal/log"
	"partita/internal/sheets"
	gsheet "partita/internal/sheets/google"
	mem "partita/internal/sheets/memory"
	"partita/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting partita-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Archive destination: the report spreadsheet when configured, an
	// in-memory sink otherwise (useful for local development).
	var archive sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		archive = client
		logger.Info("Google Sheets archive initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		archive = mem.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, archiving summaries in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, archive)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Consume until shutdown; on broker hiccups wait and reattach.
	go func() {
		for {
			err := amqpClient.ConsumeSummaryExports(ctx, exportWorker.HandleExportMessage)
			if err == nil || ctx.Err() != nil {
				return
			}
			logger.Error("Message consumption failed, retrying", "error", err, "retry_in", cfg.ExportRetryInterval)
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.ExportRetryInterval):
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
