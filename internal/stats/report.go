package stats

import (
	"context"
	"fmt"

	"openbudget/internal/core"
)

// Summary is the headline statistics bundle for one budget, type and year.
// Top10 and Structure use cumulative per-code sums.
type Summary struct {
	Budget    string                `json:"budget"`
	Type      string                `json:"type"`
	Year      int                   `json:"year"`
	Monthly   []core.PeriodAmounts  `json:"monthly"`
	Quarterly []core.QuarterAmounts `json:"quarterly"`
	Yearly    core.YearTotals       `json:"yearly"`
	Top10     []core.CodeAmount     `json:"top10"`
	Structure []core.StructureItem  `json:"structure"`
	Dynamics  []core.YearAmount     `json:"dynamics"`
}

// Report is the snapshot bundle used for published reports. Yearly, Top10
// and Structure use each code's latest reporting period.
type Report struct {
	Budget    string                `json:"budget"`
	Type      string                `json:"type"`
	Year      int                   `json:"year"`
	Monthly   []core.PeriodAmounts  `json:"monthly"`
	Quarterly []core.QuarterAmounts `json:"quarterly"`
	Yearly    core.YearTotals       `json:"yearly"`
	Top10     []core.CodeAmount     `json:"top10"`
	Structure []core.StructureItem  `json:"structure"`
	Dynamics  []core.YearAmount     `json:"dynamics"`
}

// Summary runs every headline aggregate for the scope.
func (a *Aggregator) Summary(ctx context.Context, s Scope) (*Summary, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	out := &Summary{Budget: s.BudgetCode, Type: s.Type.Lower(), Year: s.Year}

	var err error
	if out.Monthly, err = a.Monthly(ctx, s); err != nil {
		return nil, err
	}
	if out.Quarterly, err = a.Quarterly(ctx, s); err != nil {
		return nil, err
	}
	if out.Yearly, err = a.Yearly(ctx, s); err != nil {
		return nil, err
	}
	if out.Top10, err = a.Top10Cumulative(ctx, s); err != nil {
		return nil, err
	}
	if out.Structure, err = a.Structure(ctx, s); err != nil {
		return nil, err
	}
	if out.Dynamics, err = a.Dynamics(ctx, s.BudgetCode, s.Type); err != nil {
		return nil, err
	}
	return out, nil
}

// Report runs the snapshot aggregates for the scope.
func (a *Aggregator) Report(ctx context.Context, s Scope) (*Report, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	out := &Report{Budget: s.BudgetCode, Type: s.Type.Lower(), Year: s.Year}

	var err error
	if out.Monthly, err = a.Monthly(ctx, s); err != nil {
		return nil, err
	}
	if out.Quarterly, err = a.Quarterly(ctx, s); err != nil {
		return nil, err
	}
	if out.Yearly, err = a.YearlySnapshot(ctx, s); err != nil {
		return nil, err
	}
	if out.Top10, err = a.Top10Snapshot(ctx, s); err != nil {
		return nil, err
	}
	if out.Structure, err = a.StructureSnapshot(ctx, s); err != nil {
		return nil, err
	}
	if out.Dynamics, err = a.Dynamics(ctx, s.BudgetCode, s.Type); err != nil {
		return nil, fmt.Errorf("report dynamics: %w", err)
	}
	return out, nil
}
