// Package worker executes queued sync jobs.
package worker

import (
	"context"
	"errors"
	"fmt"

	"openbudget/internal/amqp"
	"openbudget/internal/core"
	"openbudget/internal/log"
	"openbudget/internal/syncer"
)

// Runner executes sync and retry runs.
type Runner interface {
	Run(ctx context.Context, req core.SyncRequest) (syncer.Summary, error)
	RetryFailed(ctx context.Context) (syncer.Summary, error)
}

// SyncWorker runs sync jobs delivered by the queue.
type SyncWorker struct {
	runner Runner
	logger *log.Logger
}

func NewSyncWorker(runner Runner, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{runner: runner, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleSyncJob runs one job. Jobs that can never succeed (invalid
// request, no budgets) are acknowledged after logging; infrastructure
// failures and interrupted runs return an error so the queue redelivers.
func (w *SyncWorker) HandleSyncJob(ctx context.Context, msg *amqp.SyncJobMessage) error {
	logger := w.logger.With(log.FieldJobID, msg.JobID, "kind", msg.Kind)

	var (
		summary syncer.Summary
		err     error
	)
	switch msg.Kind {
	case amqp.JobSync:
		logger.InfoContext(ctx, "Running sync job",
			log.FieldYear, msg.Request.Year,
			"types", msg.Request.Types,
			log.FieldPeriod, msg.Request.Period)
		summary, err = w.runner.Run(ctx, msg.Request)
	case amqp.JobRetry:
		logger.InfoContext(ctx, "Running retry job")
		summary, err = w.runner.RetryFailed(ctx)
	default:
		logger.ErrorContext(ctx, "Dropping job of unknown kind")
		return nil
	}

	if err != nil {
		if isPermanent(err) {
			logger.WarnContext(ctx, "Dropping sync job", log.FieldError, err)
			return nil
		}
		return fmt.Errorf("%s job %s: %w", msg.Kind, msg.JobID, err)
	}

	logger.InfoContext(ctx, "Sync job finished",
		"units", summary.Units,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		log.FieldDuration, summary.Duration.Milliseconds())
	return nil
}

func isPermanent(err error) bool {
	var verr *core.ValidationError
	return errors.As(err, &verr) || errors.Is(err, syncer.ErrNoBudgets)
}
