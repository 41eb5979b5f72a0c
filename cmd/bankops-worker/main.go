package main

import (
	"context"
	"errors"
	"os"

	"bankops/internal/amqp"
	"bankops/internal/backend"
	"bankops/internal/cli"
	applog "bankops/internal/log"
	"bankops/internal/metrics"
	"bankops/internal/services"
	"bankops/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	logger, logCloser := cli.SetupLogger(cfg, applog.ComponentWorker)
	defer logCloser.Close()
	logger.Info("Starting bankops-worker")

	format, err := cfg.CSVFormat()
	if err != nil {
		logger.Error("Invalid CSV format", applog.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	sinkCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid report sink", applog.FieldError, err)
		os.Exit(1)
	}
	writer, err := backend.NewFactory().CreateWriter(ctx, sinkCfg)
	if err != nil {
		logger.Error("Failed to initialize report sink", applog.FieldError, err, "sink", sinkCfg.Type)
		os.Exit(1)
	}

	reports := services.NewAnalysisService(services.AnalysisConfig{
		Format:    format,
		PageSize:  cfg.PageSize,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}, repo, nil, nil, metrics.Open(cfg.MetricsFile, logger))

	exportWorker := worker.NewExportWorker(repo, reports, writer, cfg.ExportBatchSize, logger)

	logger.Info("Performing startup export check...")
	if err := exportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup export check", applog.FieldError, err)
	}

	scheduler, err := exportWorker.ScheduleSweep(ctx, cfg.ExportSweepSchedule)
	if err != nil {
		logger.Error("Invalid export sweep schedule", applog.FieldError, err, "schedule", cfg.ExportSweepSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		go func() {
			if err := client.ConsumeReportExports(ctx, exportWorker.HandleExportMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("No AMQP_URL, relying on the scheduled sweep only")
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
}
