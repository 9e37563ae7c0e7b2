package google

import (
	"time"

	ports "openbudget/internal/sheets"
)

// buildRows lays a snapshot out as sheet rows: a header line, yearly
// totals, quarters, top codes, the structure breakdown and forecasts,
// each section preceded by its title and followed by a blank row.
func buildRows(snap ports.ReportSnapshot) [][]interface{} {
	r := snap.Report
	generated := snap.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	rows := [][]interface{}{
		{"Budget", r.Budget, "Type", r.Type, "Year", r.Year, "Generated", generated.UTC().Format(time.RFC3339)},
		{"Yearly", "zat", "plan", "plan_final", "fact", "execution_percent"},
		{"", r.Yearly.Approved, r.Yearly.Plan, r.Yearly.PlanFinal, r.Yearly.Actual, r.Yearly.ExecutionPercent},
	}

	rows = append(rows, []interface{}{"Quarter", "rep_period", "zat", "plan", "fact"})
	for _, q := range r.Quarterly {
		rows = append(rows, []interface{}{q.Quarter, q.RepPeriod, q.Approved, q.Plan, q.Actual})
	}

	rows = append(rows, []interface{}{"Top10", "code", "name", "total"})
	for i, c := range r.Top10 {
		rows = append(rows, []interface{}{i + 1, c.Code, c.Name, c.Amount})
	}

	rows = append(rows, []interface{}{"Structure", "code", "name", "amount", "percent"})
	for _, s := range r.Structure {
		rows = append(rows, []interface{}{"", s.Code, s.Name, s.Amount, s.Percent})
	}

	if f := snap.Forecast; f != nil && f.Methods != nil {
		rows = append(rows, []interface{}{"Forecast", "method", "forecast_year", "forecast_value"})
		m := f.Methods
		if m.ArithmeticGrowth != nil {
			rows = append(rows, []interface{}{"", m.ArithmeticGrowth.Method, m.ArithmeticGrowth.ForecastYear, m.ArithmeticGrowth.ForecastValue})
		}
		if m.MovingAverage != nil {
			rows = append(rows, []interface{}{"", m.MovingAverage.Method, m.MovingAverage.ForecastYear, m.MovingAverage.ForecastValue})
		}
		if m.Exponential != nil {
			rows = append(rows, []interface{}{"", m.Exponential.Method, m.Exponential.ForecastYear, m.Exponential.ForecastValue})
		}
		if m.Regression != nil {
			rows = append(rows, []interface{}{"", m.Regression.Method, m.Regression.ForecastYear, m.Regression.ForecastValue})
		}
	}

	return append(rows, []interface{}{})
}
