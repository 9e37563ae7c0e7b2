// Package sheets defines where published budget reports go.
package sheets

import (
	"context"
	"time"

	"openbudget/internal/forecast"
	"openbudget/internal/stats"
)

// ReportSnapshot is one published report: snapshot aggregates plus the
// forecast computed at publish time. Forecast may be nil.
type ReportSnapshot struct {
	Report      *stats.Report
	Forecast    *forecast.Response
	GeneratedAt time.Time
}

// Ports for outbound adapters.
type (
	ReportPublisher interface {
		// PublishReport stores the snapshot and returns a reference to it.
		PublishReport(ctx context.Context, s ReportSnapshot) (ref string, err error)
	}
)
