package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bankops/internal/amqp"
	"bankops/internal/cache"
	"bankops/internal/cli"
	apphttp "bankops/internal/http"
	applog "bankops/internal/log"
	"bankops/internal/metrics"
	"bankops/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	logger, logCloser := cli.SetupLogger(cfg, applog.ComponentApp)
	defer logCloser.Close()

	format, err := cfg.CSVFormat()
	if err != nil {
		logger.Error("Invalid CSV format", applog.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	m := metrics.Open(cfg.MetricsFile, logger)
	m.IncrementAppStarts()

	// The broker is optional: exports still queue in SQLite and the
	// worker's sweep picks them up.
	var publisher services.ExportPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exports will wait for the worker sweep", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}

	analysisSvc := services.NewAnalysisService(services.AnalysisConfig{
		Format:           format,
		DefaultFile:      cfg.OperationsFile,
		DefaultThreshold: cfg.QuantileThreshold(),
		PageSize:         cfg.PageSize,
		CacheSize:        cfg.CacheSize,
		CacheTTL:         cfg.CacheTTL,
		AutoExport:       cfg.AutoExport,
	}, repo, repo, publisher, m)

	caches := cache.NewManager()
	for _, c := range analysisSvc.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Analysis: analysisSvc,
		History:  services.NewHistoryService(repo),
		Uploads:  repo,
		DB:       repo,
		Metrics:  m,
	}, apphttp.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		LogsDir:            cfg.LogDir,
		Logger:             logger,
	})

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	}()

	logger.Info("Starting bankops server", "port", cfg.Port, "operations_file", cfg.OperationsFile)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
