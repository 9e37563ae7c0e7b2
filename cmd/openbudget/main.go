package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"openbudget/internal/amqp"
	"openbudget/internal/backend"
	"openbudget/internal/cli"
	apphttp "openbudget/internal/http"
	"openbudget/internal/log"
	"openbudget/internal/services"
	"openbudget/internal/stats"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	orchestrator := cli.NewOrchestrator(cfg, repo, logger)
	aggregator := stats.NewAggregator(repo.DB())
	engine := cli.NewForecastEngine(cfg, repo, aggregator, logger)

	// Sync jobs go to the worker when a broker is configured.
	var publisher services.JobPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, sync jobs will run in-process", log.FieldError, err.Error())
		} else {
			amqpClient = c
			publisher = c
			logger.Info("Sync jobs will be published to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	syncService := services.NewSyncService(orchestrator, publisher, logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid report backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize report backend", log.FieldError, err.Error(), "backend", backendCfg.Type)
		os.Exit(1)
	}
	reports := services.NewReportService(aggregator, engine, result.Publisher, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sync:      syncService,
		SyncLog:   repo,
		Stats:     aggregator,
		Structure: aggregator,
		Budgets:   repo,
		Reports:   reports,
		Forecast:  engine,
		DB:        repo,
		Logger:    logger,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StatsCacheSize:     cfg.StatsCacheSize,
		StatsCacheTTL:      cfg.StatsCacheTTL,
	})
	// Summaries cached before an in-process run finished are stale.
	syncService.OnRunFinished(srv.InvalidateStats)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if err := syncService.Close(shutdownCtx); err != nil {
			logger.Warn("Background sync jobs did not finish", log.FieldError, err.Error())
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Report backend cleanup failed", log.FieldError, err.Error())
			}
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	logger.Info("Starting openbudget server", "port", cfg.Port, "report_backend", backendCfg.Type)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
