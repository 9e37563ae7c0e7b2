// Package syncer drives budget structure synchronization: a bounded worker
// pool over all budgets of a year, and a sequential retry of failed units.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"openbudget/internal/core"
	"openbudget/internal/log"
	"openbudget/internal/normalize"
	"openbudget/internal/openbudget"
)

// ErrNoBudgets aborts a run when the year has no budgets to sync.
var ErrNoBudgets = errors.New("syncer: no budgets to sync")

const (
	kindPersistence = "persistence"
	kindInternal    = "internal"
)

const (
	DefaultConcurrency = 30
	MaxConcurrency     = 200
)

// Store is the persistence the orchestrator needs.
type Store interface {
	ListBudgetsForSync(ctx context.Context, year, limit int) ([]core.Budget, error)
	GetBudgetByCode(ctx context.Context, code string, year int) (core.Budget, error)
	UpsertStructure(ctx context.Context, budgetID int64, records []core.BudgetStructureRecord, monthly map[int]float64) error
	UpsertSyncLog(ctx context.Context, e core.SyncLogEntry) error
	ListSyncLog(ctx context.Context, status core.SyncStatus, limit int) ([]core.SyncLogEntry, error)
	LogRaw(ctx context.Context, endpoint string, params map[string]string, response []byte) error
}

// Fetcher retrieves the raw rows of one unit.
type Fetcher interface {
	Fetch(ctx context.Context, r openbudget.Request) (*openbudget.Result, error)
}

type Config struct {
	// Concurrency is the number of budgets processed at once.
	Concurrency int
}

// Summary describes a finished run.
type Summary struct {
	JobID     string        `json:"job_id,omitempty"`
	Budgets   int           `json:"budgets"`
	Units     int           `json:"units"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped,omitempty"`
	Records   int           `json:"records"`
	Duration  time.Duration `json:"duration"`
	Message   string        `json:"message"`
}

// UnitResult is the outcome of one unit as written to the sync log.
type UnitResult struct {
	Unit    Unit
	Records int
	Err     error
}

type Orchestrator struct {
	store   Store
	fetcher Fetcher
	config  Config
	logger  *log.Logger
	units   *log.StructuredLogger
}

func New(store Store, fetcher Fetcher, cfg Config, logger *log.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSync)
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
		units:   log.NewStructuredLogger(logger),
	}
}

// Run syncs every requested classification type for every budget of the
// year. Setup problems (invalid request, no budgets) are returned before any
// worker starts; unit failures are recorded in the sync log and counted.
// Cancelling ctx stops workers from claiming further budgets.
func (o *Orchestrator) Run(ctx context.Context, req core.SyncRequest) (Summary, error) {
	if err := req.Validate(); err != nil {
		return Summary{}, err
	}
	types, _ := req.ClassificationTypes()
	period, _ := req.ReportPeriod()

	budgets, err := o.store.ListBudgetsForSync(ctx, req.Year, req.Limit)
	if err != nil {
		return Summary{}, fmt.Errorf("load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return Summary{}, fmt.Errorf("%w for year %d", ErrNoBudgets, req.Year)
	}

	workers := min(o.config.Concurrency, len(budgets))
	o.logger.InfoContext(ctx, "Sync run started",
		log.FieldYear, req.Year,
		log.FieldPeriod, string(period),
		"types", types,
		"budgets", len(budgets),
		"workers", workers)

	start := time.Now()
	var (
		mu  sync.Mutex
		sum = Summary{Budgets: len(budgets)}
		g   errgroup.Group
	)
	g.SetLimit(workers)

	// Go blocks while all workers are busy. A budget claimed after
	// cancellation is skipped.
	for _, b := range budgets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			for _, t := range types {
				res := o.runUnit(ctx, b, Unit{Type: t, BudgetCode: b.Code, Period: period, Year: req.Year})
				mu.Lock()
				sum.add(res)
				mu.Unlock()
			}
			return nil
		})
	}
	// Unit failures live in the summary; workers never return an error.
	_ = g.Wait()

	sum.Duration = time.Since(start)
	sum.Message = fmt.Sprintf("Sync complete: %d budgets, %d units, %d succeeded, %d failed",
		sum.Budgets, sum.Units, sum.Succeeded, sum.Failed)

	o.logger.InfoContext(ctx, "Sync run finished",
		log.FieldYear, req.Year,
		"units", sum.Units,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		log.FieldRecords, sum.Records,
		log.FieldDuration, sum.Duration.Milliseconds())

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("sync run interrupted: %w", err)
	}
	return sum, nil
}

func (s *Summary) add(r UnitResult) {
	s.Units++
	if r.Err != nil {
		s.Failed++
		return
	}
	s.Succeeded++
	s.Records += r.Records
}

// runUnit fetches, normalizes and stores one unit and records the outcome
// in the sync log. It never returns an error; the outcome is in the result.
func (o *Orchestrator) runUnit(ctx context.Context, b core.Budget, u Unit) UnitResult {
	endpoint := u.Endpoint()
	details := map[string]any{
		"budgetId":   b.ID,
		"budgetCode": b.Code,
		"year":       u.Year,
		"period":     string(u.Period),
		"type":       u.Type.Lower(),
	}

	records, err := o.syncUnit(ctx, b, u, details)

	entry := core.SyncLogEntry{
		Endpoint:   endpoint,
		Status:     core.StatusSuccess,
		LastSynced: time.Now().UTC(),
	}
	if err != nil {
		entry.Status = core.StatusError
		details["error"] = err.Error()
		details["errorKind"] = errorKind(err)
		var fe *openbudget.FetchError
		if errors.As(err, &fe) {
			if fe.StatusCode != 0 {
				details["statusCode"] = fe.StatusCode
			}
			if fe.BodyPrefix != "" {
				details["bodyPrefix"] = fe.BodyPrefix
			}
			details["transient"] = fe.Transient()
		}
		o.units.LogUnitFailure(ctx, endpoint, u.BudgetCode, u.Type.Lower(), string(u.Period), u.Year, errorKind(err), err)
	} else {
		entry.TotalRecords = records
		o.units.LogUnitSuccess(ctx, endpoint, u.BudgetCode, u.Type.Lower(), string(u.Period), u.Year, records)
	}
	entry.Details = details

	// The outcome is recorded even when the run is being cancelled.
	if lerr := o.store.UpsertSyncLog(context.WithoutCancel(ctx), entry); lerr != nil {
		o.logger.ErrorContext(ctx, "Failed to write sync log",
			log.FieldEndpoint, endpoint,
			log.FieldError, lerr.Error())
	}
	return UnitResult{Unit: u, Records: records, Err: err}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func (o *Orchestrator) syncUnit(ctx context.Context, b core.Budget, u Unit, details map[string]any) (int, error) {
	res, err := o.fetcher.Fetch(ctx, openbudget.Request{
		BudgetCode: u.BudgetCode,
		Year:       u.Year,
		Type:       u.Type,
		Period:     u.Period,
	})
	if err != nil {
		return 0, &stageError{stage: "fetch", err: err}
	}
	details["url"] = res.URL
	details["params"] = res.Params
	details["format"] = res.Format

	if err := o.store.LogRaw(ctx, RawEndpoint(u.Type), res.Params, res.Body); err != nil {
		o.logger.WarnContext(ctx, "Failed to capture raw response",
			log.FieldEndpoint, RawEndpoint(u.Type),
			log.FieldBudgetCode, u.BudgetCode,
			log.FieldError, err.Error())
	}

	batch := normalize.Normalize(res.Rows, u.Type)
	details["fetched"] = batch.Fetched
	details["dropped"] = batch.Dropped
	details["duplicates"] = batch.Duplicates

	if err := o.store.UpsertStructure(ctx, b.ID, batch.Records, batch.Monthly); err != nil {
		return 0, &stageError{stage: "store", err: err}
	}
	return len(batch.Records), nil
}

func errorKind(err error) string {
	if k := openbudget.KindOf(err); k != "" {
		return string(k)
	}
	var se *stageError
	if errors.As(err, &se) && se.stage == "store" {
		return kindPersistence
	}
	return kindInternal
}
