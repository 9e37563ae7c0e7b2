package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/log"
	"openbudget/internal/sheets"
	"openbudget/internal/stats"
)

// ReportSource computes the snapshot aggregates of a scope.
type ReportSource interface {
	Report(ctx context.Context, s stats.Scope) (*stats.Report, error)
}

// Forecaster produces the forecast attached to a report.
type Forecaster interface {
	Forecast(ctx context.Context, budgetCode string, t core.ClassificationType, p forecast.Params) (*forecast.Response, error)
}

// ErrNoPublisher is returned by Publish when no report backend is configured.
var ErrNoPublisher = errors.New("services: no report publisher configured")

// PublishResult is the outcome of a publish.
type PublishResult struct {
	Ref      string                `json:"ref"`
	Snapshot sheets.ReportSnapshot `json:"snapshot"`
}

// ReportService assembles report snapshots and hands them to a publisher.
type ReportService struct {
	reports    ReportSource
	forecaster Forecaster
	publisher  sheets.ReportPublisher
	logger     *log.Logger
	now        func() time.Time
}

// NewReportService creates the service. forecaster may be nil, in which
// case reports carry no forecast.
func NewReportService(reports ReportSource, forecaster Forecaster, publisher sheets.ReportPublisher, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		reports:    reports,
		forecaster: forecaster,
		publisher:  publisher,
		logger:     logger.WithComponent(log.ComponentSheets),
		now:        time.Now,
	}
}

// Build computes the snapshot for scope. A failing forecast leaves the
// snapshot without one.
func (s *ReportService) Build(ctx context.Context, scope stats.Scope) (sheets.ReportSnapshot, error) {
	report, err := s.reports.Report(ctx, scope)
	if err != nil {
		return sheets.ReportSnapshot{}, err
	}
	snap := sheets.ReportSnapshot{Report: report, GeneratedAt: s.now()}

	if s.forecaster != nil {
		f, err := s.forecaster.Forecast(ctx, scope.BudgetCode, scope.Type, forecast.Params{})
		if err != nil {
			s.logger.WarnContext(ctx, "Report forecast unavailable",
				log.FieldBudgetCode, scope.BudgetCode,
				log.FieldClassificationType, string(scope.Type),
				log.FieldError, err)
		} else {
			snap.Forecast = f
		}
	}
	return snap, nil
}

// Publish builds the snapshot and publishes it.
func (s *ReportService) Publish(ctx context.Context, scope stats.Scope) (PublishResult, error) {
	if s.publisher == nil {
		return PublishResult{}, ErrNoPublisher
	}
	snap, err := s.Build(ctx, scope)
	if err != nil {
		return PublishResult{}, err
	}
	ref, err := s.publisher.PublishReport(ctx, snap)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish report: %w", err)
	}
	s.logger.InfoContext(ctx, "Report published",
		log.FieldBudgetCode, scope.BudgetCode,
		log.FieldClassificationType, string(scope.Type),
		"year", scope.Year,
		"ref", ref)
	return PublishResult{Ref: ref, Snapshot: snap}, nil
}
