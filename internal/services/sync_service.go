// Package services runs sync work in the background and assembles
// published reports.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"openbudget/internal/amqp"
	"openbudget/internal/core"
	"openbudget/internal/log"
	"openbudget/internal/syncer"
)

// JobState is the lifecycle of a background job as seen by this process.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

const defaultMaxJobs = 200

// Runner executes sync and retry runs.
type Runner interface {
	Run(ctx context.Context, req core.SyncRequest) (syncer.Summary, error)
	RetryFailed(ctx context.Context) (syncer.Summary, error)
}

// JobPublisher hands jobs to an out-of-process worker.
type JobPublisher interface {
	PublishSyncJob(ctx context.Context, msg *amqp.SyncJobMessage) error
}

// Job is the status of one triggered run. Per-unit outcomes live in the
// sync log; a Job only records the run as a whole.
type Job struct {
	ID         string            `json:"id"`
	Kind       amqp.JobKind      `json:"kind"`
	State      JobState          `json:"state"`
	Remote     bool              `json:"remote"`
	Request    *core.SyncRequest `json:"request,omitempty"`
	Summary    *syncer.Summary   `json:"summary,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// SyncService starts sync and retry runs without waiting for them. Jobs
// go to the queue when a publisher is configured and run in-process
// otherwise, or when publishing fails.
type SyncService struct {
	runner    Runner
	publisher JobPublisher
	logger    *log.Logger
	newID     func() string
	maxJobs   int
	onFinish  func()

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncService creates the service; publisher may be nil.
func NewSyncService(runner Runner, publisher JobPublisher, logger *log.Logger) *SyncService {
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncService{
		runner:    runner,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentSync),
		newID:     uuid.NewString,
		maxJobs:   defaultMaxJobs,
		jobs:      make(map[string]*Job),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// TriggerSync validates req and starts a bulk sync. Validation errors are
// returned synchronously as *core.ValidationError.
func (s *SyncService) TriggerSync(ctx context.Context, req core.SyncRequest) (Job, error) {
	if err := req.Validate(); err != nil {
		return Job{}, err
	}
	id := s.newID()
	r := req
	job := &Job{ID: id, Kind: amqp.JobSync, Request: &r}
	return s.dispatch(ctx, job, amqp.NewSyncJobMessage(id, req), func(ctx context.Context) (syncer.Summary, error) {
		return s.runner.Run(ctx, req)
	})
}

// TriggerRetry starts a sequential retry of every failed unit.
func (s *SyncService) TriggerRetry(ctx context.Context) (Job, error) {
	id := s.newID()
	job := &Job{ID: id, Kind: amqp.JobRetry}
	return s.dispatch(ctx, job, amqp.NewRetryJobMessage(id), s.runner.RetryFailed)
}

// OnRunFinished registers fn to run after every in-process run, failed or
// not, since a failed run may still have written some units. Set it before
// the first trigger.
func (s *SyncService) OnRunFinished(fn func()) {
	s.onFinish = fn
}

// Job returns a copy of the job status.
func (s *SyncService) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Close cancels in-process runs and waits for them to record their outcome.
func (s *SyncService) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every in-process run has finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

func (s *SyncService) dispatch(ctx context.Context, job *Job, msg *amqp.SyncJobMessage, run func(context.Context) (syncer.Summary, error)) (Job, error) {
	if s.ctx.Err() != nil {
		return Job{}, errors.New("sync service is closed")
	}
	job.State = JobQueued
	job.CreatedAt = time.Now()

	logger := s.logger.With(log.FieldJobID, job.ID, "kind", job.Kind)

	if s.publisher != nil {
		err := s.publisher.PublishSyncJob(ctx, msg)
		if err == nil {
			job.Remote = true
			snapshot := s.record(job)
			logger.InfoContext(ctx, "Sync job queued")
			return snapshot, nil
		}
		logger.ErrorContext(ctx, "Failed to publish sync job, running in-process", log.FieldError, err)
	}

	snapshot := s.record(job)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(job.ID, logger, run)
	}()
	logger.InfoContext(ctx, "Sync job started")
	return snapshot, nil
}

func (s *SyncService) execute(id string, logger *log.Logger, run func(context.Context) (syncer.Summary, error)) {
	s.update(id, func(j *Job) {
		j.State = JobRunning
		j.StartedAt = time.Now()
	})

	summary, err := run(s.ctx)

	s.update(id, func(j *Job) {
		j.FinishedAt = time.Now()
		if summary.Units > 0 || summary.Budgets > 0 || summary.Message != "" {
			sum := summary
			sum.JobID = id
			j.Summary = &sum
		}
		if err != nil {
			j.State = JobFailed
			j.Error = err.Error()
			return
		}
		j.State = JobCompleted
	})

	if s.onFinish != nil {
		s.onFinish()
	}

	if err != nil {
		logger.Error("Sync job failed", log.FieldError, err)
		return
	}
	logger.Info("Sync job finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		log.FieldDuration, summary.Duration.Milliseconds())
}

func (s *SyncService) record(job *Job) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.evictLocked()
	return *job
}

func (s *SyncService) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// evictLocked drops the oldest finished or remote jobs beyond maxJobs.
func (s *SyncService) evictLocked() {
	for len(s.order) > s.maxJobs {
		evicted := false
		for i, id := range s.order {
			j := s.jobs[id]
			if j.Remote || j.State == JobCompleted || j.State == JobFailed {
				delete(s.jobs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
