// Package cli holds the bootstrap shared by the openbudget binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"openbudget/internal/config"
	"openbudget/internal/forecast"
	"openbudget/internal/log"
	"openbudget/internal/openbudget"
	"openbudget/internal/stats"
	"openbudget/internal/storage"
	"openbudget/internal/syncer"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and exits
// the process if it is invalid.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the repository, applying migrations, or exits.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewOrchestrator wires the API client and the repository into a sync
// orchestrator.
func NewOrchestrator(cfg *config.Config, repo *storage.SQLiteRepository, logger *log.Logger) *syncer.Orchestrator {
	obCfg, err := openbudget.ConfigFromEnv()
	if err != nil {
		logger.Warn("Using default OpenBudget client settings", log.FieldError, err.Error())
		obCfg = openbudget.DefaultConfig()
	}
	obCfg.BaseURL = cfg.OpenBudgetBaseURL
	obCfg.Timeout = cfg.OpenBudgetTimeout
	obCfg.Logger = logger.WithComponent(log.ComponentFetcher).Logger
	fetcher := openbudget.NewClient(obCfg)
	return syncer.New(repo, fetcher, syncer.Config{Concurrency: cfg.SyncConcurrency}, logger)
}

// NewForecastEngine builds the engine over the aggregator series with the
// repository as its cache.
func NewForecastEngine(cfg *config.Config, repo *storage.SQLiteRepository, agg *stats.Aggregator, logger *log.Logger) *forecast.Engine {
	return forecast.NewEngine(agg, repo, forecast.Config{Alpha: cfg.ForecastAlpha, Window: cfg.ForecastWindow}, logger)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned done channel
// closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown has been signalled and cleanup has
// finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
