package main

import (
	"context"
	"errors"
	"os"
	"time"

	"openbudget/internal/amqp"
	"openbudget/internal/cli"
	"openbudget/internal/log"
	"openbudget/internal/services"
	"openbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting openbudget-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	orchestrator := cli.NewOrchestrator(cfg, repo, logger)

	var retryProcessor *services.RetryProcessor
	if cfg.RetryInterval > 0 {
		retryProcessor = services.NewRetryProcessor(orchestrator, services.RetryProcessorConfig{
			Interval:   cfg.RetryInterval,
			RunOnStart: true,
		}, logger)
	} else {
		logger.Info("Periodic retry disabled - RETRY_INTERVAL is 0")
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		amqpClient = c
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if amqpClient == nil && retryProcessor == nil {
		logger.Error("Nothing to do: set AMQP_URL or RETRY_INTERVAL")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if retryProcessor != nil {
			if err := retryProcessor.Stop(shutdownCtx); err != nil {
				logger.Warn("Retry processor stop failed", log.FieldError, err.Error())
			}
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if retryProcessor != nil {
		if err := retryProcessor.Start(ctx); err != nil {
			logger.Error("Failed to start retry processor", log.FieldError, err.Error())
			os.Exit(1)
		}
	}

	if amqpClient != nil {
		syncWorker := worker.NewSyncWorker(orchestrator, logger)
		go func() {
			err := amqpClient.ConsumeSyncJobs(ctx, syncWorker.HandleSyncJob)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Job consumption stopped", log.FieldError, err.Error())
				os.Exit(1)
			}
		}()
		logger.Info("Consuming sync jobs", "queue", cfg.AMQPQueue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
