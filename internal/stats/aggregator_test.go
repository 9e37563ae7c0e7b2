package stats

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"openbudget/internal/core"
	"openbudget/internal/storage"
)

func rec(period, code, name string, zat, plan, fact float64, t core.ClassificationType) core.BudgetStructureRecord {
	return core.BudgetStructureRecord{
		RepPeriod: period, BudgetCode: "01", ClassificationCode: code, ClassificationName: name,
		Approved: zat, Plan: plan, Actual: fact, Type: t,
	}
}

func seed(t *testing.T, records ...core.BudgetStructureRecord) *Aggregator {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "stats.db"), storage.Options{})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	b, err := repo.UpsertBudget(context.Background(), "01", "Test", 2024)
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if err := repo.UpsertStructure(context.Background(), b.ID, records, nil); err != nil {
		t.Fatalf("seed structure: %v", err)
	}
	return NewAggregator(repo.DB())
}

func fixture(t *testing.T) *Aggregator {
	return seed(t,
		rec("01.2024", "A", "Освіта", 900, 1000, 100, core.Program),
		rec("02.2024", "A", "Освіта", 900, 1000, 250, core.Program),
		rec("04.2024", "A", "Освіта", 900, 1200, 400, core.Program),
		rec("01.2024", "B", "Культура", 500, 0, 50, core.Program),
		rec("02.2024", "B", "Культура", 500, 0, 120, core.Program),
		rec("06.2023", "A", "Освіта", 900, 1000, 300, core.Program),
		rec("12.2023", "A", "Освіта", 900, 1000, 800, core.Program),
		rec("02.2024", "2210", "Предмети", 10, 10, 9999, core.Economic),
	)
}

var scope = Scope{BudgetCode: "01", Type: "program", Year: 2024}

func TestMonthly(t *testing.T) {
	got, err := fixture(t).Monthly(context.Background(), scope)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	want := []core.PeriodAmounts{
		{RepPeriod: "01.2024", Approved: 1400, Plan: 1000, Actual: 150},
		{RepPeriod: "02.2024", Approved: 1400, Plan: 1000, Actual: 370},
		{RepPeriod: "04.2024", Approved: 900, Plan: 1200, Actual: 400},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d periods, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("period %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestQuarterlyUsesLatestPeriod(t *testing.T) {
	got, err := fixture(t).Quarterly(context.Background(), scope)
	if err != nil {
		t.Fatalf("quarterly: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected Q1 and Q2, got %+v", got)
	}
	if got[0].Quarter != "Q1" || got[0].RepPeriod != "02.2024" || got[0].Actual != 370 {
		t.Errorf("Q1 must be the 02.2024 snapshot, got %+v", got[0])
	}
	if got[1].Quarter != "Q2" || got[1].Actual != 400 || got[1].Plan != 1200 {
		t.Errorf("unexpected Q2 %+v", got[1])
	}
}

func TestYearly(t *testing.T) {
	got, err := fixture(t).Yearly(context.Background(), scope)
	if err != nil {
		t.Fatalf("yearly: %v", err)
	}
	want := core.YearTotals{Approved: 3700, Plan: 3200, PlanFinal: 3200, Actual: 920, ExecutionPercent: 28.75}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestYearlySnapshot(t *testing.T) {
	got, err := fixture(t).YearlySnapshot(context.Background(), scope)
	if err != nil {
		t.Fatalf("yearly snapshot: %v", err)
	}
	want := core.YearTotals{Approved: 1400, Plan: 1200, PlanFinal: 1700, Actual: 520, ExecutionPercent: 30.59}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCodesSnapshot(t *testing.T) {
	got, err := fixture(t).CodesSnapshot(context.Background(), scope)
	if err != nil {
		t.Fatalf("codes snapshot: %v", err)
	}
	want := []core.CodeSnapshot{
		{Code: "A", Name: "Освіта", Approved: 900, Plan: 1200, Actual: 400, RepPeriod: "04.2024", ClassificationType: "program"},
		{Code: "B", Name: "Культура", Approved: 500, Plan: 500, Actual: 120, RepPeriod: "02.2024", ClassificationType: "program"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d codes, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("code %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := fixture(t).CodesSnapshot(context.Background(), Scope{}); err == nil {
		t.Fatalf("expected validation error for empty scope")
	}
}

func TestYearlyZeroPlan(t *testing.T) {
	a := seed(t, rec("03.2024", "A", "", 400, 0, 100, core.Program))
	got, err := a.Yearly(context.Background(), scope)
	if err != nil {
		t.Fatalf("yearly: %v", err)
	}
	if got.ExecutionPercent != 0 || got.PlanFinal != 400 {
		t.Fatalf("zero plan: expected 0%% and approved as plan, got %+v", got)
	}
}

func TestYearlyScenarioSum(t *testing.T) {
	a := seed(t,
		rec("01.2024", "0110150", "", 0, 0, 100, core.Program),
		rec("02.2024", "0110150", "", 0, 0, 150, core.Program),
		rec("03.2024", "0110150", "", 0, 0, 200, core.Program),
	)
	got, err := a.Yearly(context.Background(), scope)
	if err != nil || got.Actual != 450 {
		t.Fatalf("expected actual 450, got %+v (%v)", got, err)
	}
}

func TestTop10VariantsDiffer(t *testing.T) {
	a := fixture(t)
	ctx := context.Background()

	cum, err := a.Top10Cumulative(ctx, scope)
	if err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	snap, err := a.Top10Snapshot(ctx, scope)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(cum) != 2 || cum[0] != (core.CodeAmount{Code: "A", Name: "Освіта", Amount: 750}) || cum[1].Amount != 170 {
		t.Fatalf("unexpected cumulative top10 %+v", cum)
	}
	if len(snap) != 2 || snap[0].Amount != 400 || snap[1].Amount != 120 {
		t.Fatalf("unexpected snapshot top10 %+v", snap)
	}
}

func TestStructurePercentages(t *testing.T) {
	got, err := fixture(t).Structure(context.Background(), scope)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if len(got) != 2 || got[0].Percent != 81.52 || got[1].Percent != 18.48 {
		t.Fatalf("unexpected structure %+v", got)
	}
}

func TestStructureOtherBucket(t *testing.T) {
	var records []core.BudgetStructureRecord
	for i := 1; i <= 12; i++ {
		records = append(records, rec("05.2024", fmt.Sprintf("C%02d", i), "", 0, 0, float64(i), core.Functional))
	}
	a := seed(t, records...)
	s := Scope{BudgetCode: "01", Type: core.Functional, Year: 2024}

	got, err := a.StructureSnapshot(context.Background(), s)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("expected 10 codes plus other, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.Code != core.OtherBucketCode || last.Name != core.OtherBucketName || last.Amount != 3 {
		t.Fatalf("unexpected other bucket %+v", last)
	}
	if last.Percent != core.Percent(3, 78) {
		t.Fatalf("other percent %v", last.Percent)
	}
	var sum float64
	for _, it := range got {
		sum += it.Amount
	}
	if sum != 78 {
		t.Fatalf("buckets must cover the total, got %v", sum)
	}
}

func TestStructureWithoutRemainder(t *testing.T) {
	a := seed(t, rec("05.2024", "X", "", 0, 0, 0, core.Program))
	got, err := a.Structure(context.Background(), scope)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if len(got) != 1 || got[0].Percent != 0 {
		t.Fatalf("zero total must give 0%% and no other bucket: %+v", got)
	}
}

func TestDynamicsLatestPeriodPerYear(t *testing.T) {
	got, err := fixture(t).Dynamics(context.Background(), "01", core.Program)
	if err != nil {
		t.Fatalf("dynamics: %v", err)
	}
	want := []core.YearAmount{{Year: 2023, Amount: 800}, {Year: 2024, Amount: 400}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEmptyScopeReturnsEmptySlices(t *testing.T) {
	a := fixture(t)
	s := Scope{BudgetCode: "99", Type: core.Program, Year: 2024}
	sum, err := a.Summary(context.Background(), s)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Monthly == nil || sum.Top10 == nil || sum.Dynamics == nil || len(sum.Structure) != 0 {
		t.Fatalf("empty aggregates must be empty slices: %+v", sum)
	}
	if sum.Yearly != (core.YearTotals{}) {
		t.Fatalf("missing sums coalesce to 0: %+v", sum.Yearly)
	}
}

func TestScopeValidation(t *testing.T) {
	_, err := fixture(t).Monthly(context.Background(), Scope{Type: "bogus"})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 3 {
		t.Fatalf("expected 3 problems, got %v", err)
	}
	if !errors.Is(err, core.ErrYearRequired) || !errors.Is(err, core.ErrInvalidClassificationType) {
		t.Fatalf("problems must be matchable: %v", err)
	}
}

func TestReportUsesSnapshots(t *testing.T) {
	r, err := fixture(t).Report(context.Background(), scope)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Type != "program" || r.Yearly.Actual != 520 || r.Top10[0].Amount != 400 || len(r.Dynamics) != 2 {
		t.Fatalf("unexpected report %+v", r)
	}
}
