// Package cli holds the startup steps shared by cmd/bankops,
// cmd/bankops-worker and cmd/logmon.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bankops/internal/config"
	applog "bankops/internal/log"
	"bankops/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
// It logs through the default logger because the configured one depends on
// the config.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SetupLogger installs the stdout + daily file logger described by cfg.
// The returned closer flushes the file sink.
func SetupLogger(cfg *config.Config, component string) (*slog.Logger, io.Closer) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("Invalid log level, using info", "value", cfg.LogLevel)
	}
	logger, closer, err := applog.Setup(applog.Options{
		Level:     level,
		Component: component,
		Dir:       cfg.LogDir,
	})
	if err != nil {
		slog.Error("Failed to set up logging", "error", err, "dir", cfg.LogDir)
		os.Exit(1)
	}
	return logger, closer
}

// InitSQLite opens the SQLite repository or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
