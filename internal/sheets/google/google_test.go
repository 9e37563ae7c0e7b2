package google

import (
	"context"
	"os"
	"testing"
	"time"

	"openbudget/internal/core"
	"openbudget/internal/forecast"
	ports "openbudget/internal/sheets"
	"openbudget/internal/stats"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil {
		t.Fatal("expected error when spreadsheet id is missing")
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	orig := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	os.Unsetenv("GOOGLE_APPLICATION_CREDENTIALS")
	defer os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", orig)

	if _, err := newSheetsService(context.Background(), "", ""); err == nil {
		t.Fatal("expected error without credentials")
	}
	if _, err := newSheetsService(context.Background(), "", "/nonexistent/sa.json"); err == nil {
		t.Fatal("expected error for unreadable credentials file")
	}
}

func TestPublishReport_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetBase: "Reports"}
	if _, err := c.PublishReport(context.Background(), ports.ReportSnapshot{}); err == nil {
		t.Fatal("expected error for missing report")
	}
	snap := ports.ReportSnapshot{Report: &stats.Report{Budget: "01", Year: 2024}}
	if _, err := c.PublishReport(context.Background(), snap); err == nil {
		t.Fatal("expected error for missing service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Reports", 2025, "2025 Reports"},
		{"", 2023, ""},
		{"Budget Reports", 2022, "2022 Budget Reports"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("2024 Reports"); got != "'2024 Reports'" {
		t.Fatalf("unexpected quoting %q", got)
	}
	if got := quoteSheet("O'Brien"); got != "'O''Brien'" {
		t.Fatalf("apostrophes must be doubled, got %q", got)
	}
}

func TestBuildRows(t *testing.T) {
	snap := ports.ReportSnapshot{
		Report: &stats.Report{
			Budget: "0100000000",
			Type:   "program",
			Year:   2024,
			Yearly: core.YearTotals{Approved: 1400, Plan: 1200, PlanFinal: 1700, Actual: 520, ExecutionPercent: 30.59},
			Quarterly: []core.QuarterAmounts{
				{Quarter: "Q1", RepPeriod: "03.2024", Approved: 100, Plan: 120, Actual: 50},
			},
			Top10: []core.CodeAmount{
				{Code: "A", Name: "Alpha", Amount: 400},
				{Code: "B", Name: "Beta", Amount: 120},
			},
			Structure: []core.StructureItem{
				{Code: "A", Name: "Alpha", Amount: 400, Percent: 76.92},
				{Code: "B", Name: "Beta", Amount: 120, Percent: 23.08},
			},
		},
		Forecast: &forecast.Response{
			Methods: &forecast.Methods{
				Exponential: &forecast.ExponentialSmoothingResult{Method: forecast.MethodExponentialSmoothing, ForecastYear: 2025, ForecastValue: 108.4},
			},
		},
		GeneratedAt: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC),
	}

	rows := buildRows(snap)

	// header, yearly title + values, quarter title + 1, top title + 2,
	// structure title + 2, forecast title + 1, trailing blank
	if len(rows) != 14 {
		t.Fatalf("expected 14 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][1] != "0100000000" || rows[0][7] != "2024-10-01T08:00:00Z" {
		t.Fatalf("unexpected header row %v", rows[0])
	}
	if rows[2][4] != 520.0 || rows[2][5] != 30.59 {
		t.Fatalf("unexpected yearly row %v", rows[2])
	}
	if rows[6][0] != 1 || rows[6][1] != "A" || rows[7][3] != 120.0 {
		t.Fatalf("unexpected top10 rows %v %v", rows[6], rows[7])
	}
	if rows[12][1] != forecast.MethodExponentialSmoothing || rows[12][3] != 108.4 {
		t.Fatalf("unexpected forecast row %v", rows[12])
	}
	if len(rows[13]) != 0 {
		t.Fatalf("expected blank separator, got %v", rows[13])
	}
}

func TestBuildRowsWithoutForecast(t *testing.T) {
	rows := buildRows(ports.ReportSnapshot{Report: &stats.Report{Budget: "01", Year: 2024}})
	// header, yearly title + values, empty section titles, trailing blank
	if len(rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(rows))
	}
}

func TestReadRows_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.ReadRows(context.Background(), "A1:B2"); err == nil {
		t.Fatal("expected error without a sheets service")
	}
}

func TestValuesToRows(t *testing.T) {
	got := valuesToRows([][]interface{}{
		{" Код бюджету ", "Найменування бюджету"},
		{float64(1000000000), nil, " Київ "},
		{},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0][0] != "Код бюджету" || got[1][0] != "1e+09" || got[1][1] != "" || got[1][2] != "Київ" || len(got[2]) != 0 {
		t.Fatalf("unexpected rows %q", got)
	}
}
