package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/sheets"
	"openbudget/internal/sheets/memory"
	"openbudget/internal/stats"
)

type reportFunc func(ctx context.Context, s stats.Scope) (*stats.Report, error)

func (f reportFunc) Report(ctx context.Context, s stats.Scope) (*stats.Report, error) {
	return f(ctx, s)
}

type forecastFunc func(ctx context.Context, code string, t core.ClassificationType, p forecast.Params) (*forecast.Response, error)

func (f forecastFunc) Forecast(ctx context.Context, code string, t core.ClassificationType, p forecast.Params) (*forecast.Response, error) {
	return f(ctx, code, t, p)
}

type failingPublisher struct{}

func (failingPublisher) PublishReport(context.Context, sheets.ReportSnapshot) (string, error) {
	return "", errors.New("quota exceeded")
}

var reportScope = stats.Scope{BudgetCode: "0100000000", Type: core.Program, Year: 2024}

func staticReport() reportFunc {
	return func(_ context.Context, s stats.Scope) (*stats.Report, error) {
		return &stats.Report{Budget: s.BudgetCode, Type: s.Type.Lower(), Year: s.Year}, nil
	}
}

func TestReportServicePublish(t *testing.T) {
	store := memory.New()
	fc := forecastFunc(func(_ context.Context, code string, _ core.ClassificationType, p forecast.Params) (*forecast.Response, error) {
		if p.Force {
			t.Errorf("report forecasts must use the cache")
		}
		return &forecast.Response{Budget: code, Methods: &forecast.Methods{}}, nil
	})
	svc := NewReportService(staticReport(), fc, store, nil)
	fixed := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Publish(context.Background(), reportScope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ref != "mem:1" {
		t.Fatalf("unexpected ref %q", res.Ref)
	}
	if res.Snapshot.Forecast == nil || !res.Snapshot.GeneratedAt.Equal(fixed) {
		t.Fatalf("unexpected snapshot %+v", res.Snapshot)
	}
	if got := store.Reports("0100000000"); len(got) != 1 || got[0].Report.Year != 2024 {
		t.Fatalf("report not stored: %+v", got)
	}
}

func TestReportServiceForecastFailureIsNotFatal(t *testing.T) {
	fc := forecastFunc(func(context.Context, string, core.ClassificationType, forecast.Params) (*forecast.Response, error) {
		return nil, errors.New("database is locked")
	})
	svc := NewReportService(staticReport(), fc, memory.New(), nil)

	snap, err := svc.Build(context.Background(), reportScope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Report == nil || snap.Forecast != nil {
		t.Fatalf("expected report without forecast, got %+v", snap)
	}
}

func TestReportServiceErrors(t *testing.T) {
	boom := errors.New("boom")
	failingReport := reportFunc(func(context.Context, stats.Scope) (*stats.Report, error) { return nil, boom })

	if _, err := NewReportService(failingReport, nil, memory.New(), nil).Publish(context.Background(), reportScope); !errors.Is(err, boom) {
		t.Fatalf("expected report error, got %v", err)
	}
	if _, err := NewReportService(staticReport(), nil, failingPublisher{}, nil).Publish(context.Background(), reportScope); err == nil {
		t.Fatalf("expected publisher error")
	}
	if _, err := NewReportService(staticReport(), nil, nil, nil).Publish(context.Background(), reportScope); !errors.Is(err, ErrNoPublisher) {
		t.Fatalf("expected ErrNoPublisher, got %v", err)
	}
}
