package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"openbudget/internal/log"
	"openbudget/internal/syncer"
)

// RetryProcessorConfig holds configuration for the retry processor
type RetryProcessorConfig struct {
	// Interval is how often failed units are retried (default: 1h)
	Interval time.Duration

	// RunOnStart retries once immediately when the processor starts
	RunOnStart bool
}

// DefaultRetryProcessorConfig returns sensible defaults
func DefaultRetryProcessorConfig() RetryProcessorConfig {
	return RetryProcessorConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// Retrier re-runs every failed sync unit.
type Retrier interface {
	RetryFailed(ctx context.Context) (syncer.Summary, error)
}

// RetryProcessor periodically retries the units the sync log marks failed.
type RetryProcessor struct {
	retrier Retrier
	config  RetryProcessorConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastRun     time.Time
	lastSummary syncer.Summary
	lastErr     error
}

// NewRetryProcessor creates a new retry processor
func NewRetryProcessor(retrier Retrier, config RetryProcessorConfig, logger *log.Logger) *RetryProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRetryProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RetryProcessor{
		retrier: retrier,
		config:  config,
		logger:  logger.WithComponent(log.ComponentRetry),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *RetryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("retry processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Retry processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the current pass.
func (p *RetryProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Retry processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Retry processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RetryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastRun returns the outcome of the most recent pass.
func (p *RetryProcessor) LastRun() (time.Time, syncer.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastSummary, p.lastErr
}

func (p *RetryProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// The pass stops claiming units once the processor is stopped.
	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-passCtx.Done():
		}
	}()

	if p.config.RunOnStart {
		p.runOnce(passCtx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(passCtx)
		}
	}
}

func (p *RetryProcessor) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := p.retrier.RetryFailed(ctx)

	p.mu.Lock()
	p.lastRun = time.Now()
	p.lastSummary = summary
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		p.logger.ErrorContext(ctx, "Retry pass failed", log.FieldError, err)
		return
	}
	if summary.Units == 0 {
		p.logger.DebugContext(ctx, "Retry pass found no failed units")
		return
	}
	p.logger.InfoContext(ctx, "Retry pass finished",
		"units", summary.Units,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
}
