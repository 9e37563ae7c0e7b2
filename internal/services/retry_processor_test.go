package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"openbudget/internal/syncer"
)

type retrierFunc func(ctx context.Context) (syncer.Summary, error)

func (f retrierFunc) RetryFailed(ctx context.Context) (syncer.Summary, error) { return f(ctx) }

func TestDefaultRetryProcessorConfig(t *testing.T) {
	config := DefaultRetryProcessorConfig()
	if config.Interval != time.Hour {
		t.Errorf("expected Interval 1h, got %v", config.Interval)
	}
	if !config.RunOnStart {
		t.Errorf("expected RunOnStart by default")
	}

	p := NewRetryProcessor(nil, RetryProcessorConfig{}, nil)
	if p.config.Interval != time.Hour {
		t.Errorf("zero interval must take the default, got %v", p.config.Interval)
	}
}

func TestRetryProcessor_IsRunning(t *testing.T) {
	processor := NewRetryProcessor(nil, DefaultRetryProcessorConfig(), nil)
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestRetryProcessor_StartTwice(t *testing.T) {
	processor := NewRetryProcessor(nil, DefaultRetryProcessorConfig(), nil)
	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestRetryProcessor_StopNotRunning(t *testing.T) {
	processor := NewRetryProcessor(nil, DefaultRetryProcessorConfig(), nil)
	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestRetryProcessor_RunsOnStartAndOnTick(t *testing.T) {
	calls := make(chan struct{}, 10)
	retrier := retrierFunc(func(context.Context) (syncer.Summary, error) {
		calls <- struct{}{}
		return syncer.Summary{Units: 1, Succeeded: 1}, nil
	})
	processor := NewRetryProcessor(retrier, RetryProcessorConfig{Interval: 20 * time.Millisecond, RunOnStart: true}, nil)

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected retry pass %d", i+1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processor.IsRunning() {
		t.Fatalf("processor should be stopped")
	}

	last, summary, err := processor.LastRun()
	if last.IsZero() || summary.Succeeded != 1 || err != nil {
		t.Fatalf("unexpected last run: %v %+v %v", last, summary, err)
	}
}

func TestRetryProcessor_StopCancelsPass(t *testing.T) {
	started := make(chan struct{})
	retrier := retrierFunc(func(ctx context.Context) (syncer.Summary, error) {
		close(started)
		<-ctx.Done()
		return syncer.Summary{}, ctx.Err()
	})
	processor := NewRetryProcessor(retrier, RetryProcessorConfig{Interval: time.Hour, RunOnStart: true}, nil)

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("stop must interrupt the running pass: %v", err)
	}
	if _, _, err := processor.LastRun(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled pass, got %v", err)
	}
}
