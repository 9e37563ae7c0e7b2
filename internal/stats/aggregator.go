// Package stats derives read-only aggregates from the budget structure
// table: per-period, per-quarter and per-year totals, top codes, percentage
// structure and year-over-year dynamics.
//
// Reporting periods are cumulative year-to-date snapshots labelled MM.YYYY.
// Snapshot aggregates therefore use only the latest period (per quarter,
// per code or per year) instead of summing across periods.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	"openbudget/internal/core"
)

const topN = 10

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Aggregator struct {
	db Querier
}

func NewAggregator(db Querier) *Aggregator {
	return &Aggregator{db: db}
}

// Scope selects the rows an aggregate runs over.
type Scope struct {
	BudgetCode string
	Type       core.ClassificationType
	Year       int
}

func (s Scope) validate() error {
	var problems []error
	if s.BudgetCode == "" {
		problems = append(problems, fmt.Errorf("budget code is required"))
	}
	if _, err := core.ParseClassificationType(string(s.Type)); err != nil {
		problems = append(problems, err)
	}
	if s.Year <= 0 {
		problems = append(problems, core.ErrYearRequired)
	}
	if len(problems) > 0 {
		return &core.ValidationError{Problems: problems}
	}
	return nil
}

func (s Scope) args() []any {
	return []any{s.BudgetCode, string(s.Type), strconv.Itoa(s.Year)}
}

// Rows of one budget and classification type in one year. Parameters are
// budget code, classification type and year.
const scopeFilter = `
    cod_budget = ?1
    AND LOWER(classification_type) = LOWER(?2)
    AND substr(rep_period, -4) = ?3`

// Monthly sums approved, plan and actual per reporting period.
func (a *Aggregator) Monthly(ctx context.Context, s Scope) ([]core.PeriodAmounts, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, `
SELECT rep_period,
       COALESCE(SUM(zat_amt), 0),
       COALESCE(SUM(plans_amt), 0),
       COALESCE(SUM(fakt_amt), 0)
FROM budget_structure
WHERE`+scopeFilter+`
GROUP BY rep_period
ORDER BY rep_period`, s.args()...)
	if err != nil {
		return nil, fmt.Errorf("monthly aggregate: %w", err)
	}
	defer rows.Close()

	out := []core.PeriodAmounts{}
	for rows.Next() {
		var p core.PeriodAmounts
		if err := rows.Scan(&p.RepPeriod, &p.Approved, &p.Plan, &p.Actual); err != nil {
			return nil, fmt.Errorf("scan monthly aggregate: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Quarterly returns, for each quarter present, the sums of the latest
// reporting period within that quarter.
func (a *Aggregator) Quarterly(ctx context.Context, s Scope) ([]core.QuarterAmounts, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, `
WITH months AS (
    SELECT rep_period,
           (CAST(substr(rep_period, 1, 2) AS INTEGER) - 1) / 3 + 1 AS quarter
    FROM budget_structure
    WHERE`+scopeFilter+`
      AND CAST(substr(rep_period, 1, 2) AS INTEGER) BETWEEN 1 AND 12
),
last_months AS (
    SELECT quarter, MAX(rep_period) AS rep_period
    FROM months
    GROUP BY quarter
)
SELECT lm.quarter,
       lm.rep_period,
       COALESCE(SUM(bs.zat_amt), 0),
       COALESCE(SUM(bs.plans_amt), 0),
       COALESCE(SUM(bs.fakt_amt), 0)
FROM last_months lm
JOIN budget_structure bs
  ON bs.rep_period = lm.rep_period
 AND bs.cod_budget = ?1
 AND LOWER(bs.classification_type) = LOWER(?2)
GROUP BY lm.quarter, lm.rep_period
ORDER BY lm.quarter`, s.args()...)
	if err != nil {
		return nil, fmt.Errorf("quarterly aggregate: %w", err)
	}
	defer rows.Close()

	out := []core.QuarterAmounts{}
	for rows.Next() {
		var (
			q       int
			amounts core.QuarterAmounts
		)
		if err := rows.Scan(&q, &amounts.RepPeriod, &amounts.Approved, &amounts.Plan, &amounts.Actual); err != nil {
			return nil, fmt.Errorf("scan quarterly aggregate: %w", err)
		}
		amounts.Quarter = core.QuarterLabel(q)
		out = append(out, amounts)
	}
	return out, rows.Err()
}

// Yearly sums every row of the year. ExecutionPercent is actual over the
// revised plan; PlanFinal falls back to the approved amount when no revised
// plan exists.
func (a *Aggregator) Yearly(ctx context.Context, s Scope) (core.YearTotals, error) {
	if err := s.validate(); err != nil {
		return core.YearTotals{}, err
	}
	var y core.YearTotals
	err := queryRow(ctx, a.db, `
SELECT COALESCE(SUM(zat_amt), 0),
       COALESCE(SUM(plans_amt), 0),
       COALESCE(SUM(fakt_amt), 0)
FROM budget_structure
WHERE`+scopeFilter, s.args(), &y.Approved, &y.Plan, &y.Actual)
	if err != nil {
		return core.YearTotals{}, fmt.Errorf("yearly aggregate: %w", err)
	}
	y.PlanFinal = core.EffectivePlan(y.Plan, y.Approved)
	y.ExecutionPercent = core.Percent(y.Actual, y.Plan)
	return y, nil
}

// YearlySnapshot sums the latest period of each code. The effective plan
// falls back to approved per code, and execution is measured against it.
func (a *Aggregator) YearlySnapshot(ctx context.Context, s Scope) (core.YearTotals, error) {
	if err := s.validate(); err != nil {
		return core.YearTotals{}, err
	}
	var y core.YearTotals
	err := queryRow(ctx, a.db, lastPeriodPerCode+`
SELECT COALESCE(SUM(bs.zat_amt), 0),
       COALESCE(SUM(bs.plans_amt), 0),
       COALESCE(SUM(CASE WHEN bs.plans_amt IS NULL OR bs.plans_amt = 0 THEN bs.zat_amt ELSE bs.plans_amt END), 0),
       COALESCE(SUM(bs.fakt_amt), 0)
FROM last_periods lp
JOIN budget_structure bs
  ON bs.cod_cons_mb_pk = lp.code
 AND bs.rep_period = lp.rep_period
 AND bs.cod_budget = ?1
 AND LOWER(bs.classification_type) = LOWER(?2)`, s.args(), &y.Approved, &y.Plan, &y.PlanFinal, &y.Actual)
	if err != nil {
		return core.YearTotals{}, fmt.Errorf("yearly snapshot: %w", err)
	}
	y.ExecutionPercent = core.Percent(y.Actual, y.PlanFinal)
	return y, nil
}

// lastPeriodPerCode selects the latest reporting period of each code in the
// scoped year.
const lastPeriodPerCode = `
WITH last_periods AS (
    SELECT cod_cons_mb_pk AS code, MAX(rep_period) AS rep_period
    FROM budget_structure
    WHERE` + scopeFilter + `
    GROUP BY cod_cons_mb_pk
)`

// Top10Cumulative ranks codes by actual amount summed across every period
// of the year.
func (a *Aggregator) Top10Cumulative(ctx context.Context, s Scope) ([]core.CodeAmount, error) {
	all, err := a.cumulativeByCode(ctx, s)
	if err != nil {
		return nil, err
	}
	return head(all, topN), nil
}

// Top10Snapshot ranks codes by the actual amount of each code's latest period.
func (a *Aggregator) Top10Snapshot(ctx context.Context, s Scope) ([]core.CodeAmount, error) {
	all, err := a.snapshotByCode(ctx, s)
	if err != nil {
		return nil, err
	}
	return head(all, topN), nil
}

// Structure is the percentage breakdown of the cumulative per-code sums.
func (a *Aggregator) Structure(ctx context.Context, s Scope) ([]core.StructureItem, error) {
	all, err := a.cumulativeByCode(ctx, s)
	if err != nil {
		return nil, err
	}
	return breakdown(all), nil
}

// StructureSnapshot is the percentage breakdown of latest-period amounts.
func (a *Aggregator) StructureSnapshot(ctx context.Context, s Scope) ([]core.StructureItem, error) {
	all, err := a.snapshotByCode(ctx, s)
	if err != nil {
		return nil, err
	}
	return breakdown(all), nil
}

// CodesSnapshot lists every code of the scope with the amounts of its
// latest reporting period, ordered by code.
func (a *Aggregator) CodesSnapshot(ctx context.Context, s Scope) ([]core.CodeSnapshot, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, lastPeriodPerCode+`
SELECT bs.cod_cons_mb_pk,
       MAX(bs.cod_cons_mb_pk_name),
       COALESCE(SUM(bs.zat_amt), 0),
       COALESCE(SUM(CASE WHEN bs.plans_amt IS NULL OR bs.plans_amt = 0 THEN bs.zat_amt ELSE bs.plans_amt END), 0),
       COALESCE(SUM(bs.fakt_amt), 0),
       lp.rep_period
FROM last_periods lp
JOIN budget_structure bs
  ON bs.cod_cons_mb_pk = lp.code
 AND bs.rep_period = lp.rep_period
 AND bs.cod_budget = ?1
 AND LOWER(bs.classification_type) = LOWER(?2)
GROUP BY bs.cod_cons_mb_pk, lp.rep_period
ORDER BY bs.cod_cons_mb_pk`, s.args()...)
	if err != nil {
		return nil, fmt.Errorf("codes snapshot: %w", err)
	}
	defer rows.Close()

	out := []core.CodeSnapshot{}
	for rows.Next() {
		c := core.CodeSnapshot{ClassificationType: s.Type.Lower()}
		if err := rows.Scan(&c.Code, &c.Name, &c.Approved, &c.Plan, &c.Actual, &c.RepPeriod); err != nil {
			return nil, fmt.Errorf("scan codes snapshot: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *Aggregator) cumulativeByCode(ctx context.Context, s Scope) ([]core.CodeAmount, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return a.codeAmounts(ctx, `
SELECT cod_cons_mb_pk,
       MAX(cod_cons_mb_pk_name),
       COALESCE(SUM(fakt_amt), 0) AS total
FROM budget_structure
WHERE`+scopeFilter+`
GROUP BY cod_cons_mb_pk
ORDER BY total DESC, cod_cons_mb_pk`, s.args())
}

func (a *Aggregator) snapshotByCode(ctx context.Context, s Scope) ([]core.CodeAmount, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return a.codeAmounts(ctx, lastPeriodPerCode+`
SELECT bs.cod_cons_mb_pk,
       MAX(bs.cod_cons_mb_pk_name),
       COALESCE(SUM(bs.fakt_amt), 0) AS total
FROM last_periods lp
JOIN budget_structure bs
  ON bs.cod_cons_mb_pk = lp.code
 AND bs.rep_period = lp.rep_period
 AND bs.cod_budget = ?1
 AND LOWER(bs.classification_type) = LOWER(?2)
GROUP BY bs.cod_cons_mb_pk
ORDER BY total DESC, bs.cod_cons_mb_pk`, s.args())
}

func (a *Aggregator) codeAmounts(ctx context.Context, query string, args []any) ([]core.CodeAmount, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("per-code aggregate: %w", err)
	}
	defer rows.Close()

	out := []core.CodeAmount{}
	for rows.Next() {
		var c core.CodeAmount
		if err := rows.Scan(&c.Code, &c.Name, &c.Amount); err != nil {
			return nil, fmt.Errorf("scan per-code aggregate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Dynamics returns one point per year, each the actual sum of that year's
// latest reporting period, ascending by year.
func (a *Aggregator) Dynamics(ctx context.Context, budgetCode string, t core.ClassificationType) ([]core.YearAmount, error) {
	if budgetCode == "" {
		return nil, &core.ValidationError{Problems: []error{fmt.Errorf("budget code is required")}}
	}
	if _, err := core.ParseClassificationType(string(t)); err != nil {
		return nil, &core.ValidationError{Problems: []error{err}}
	}
	rows, err := a.db.QueryContext(ctx, `
WITH last_months AS (
    SELECT substr(rep_period, -4) AS year, MAX(rep_period) AS rep_period
    FROM budget_structure
    WHERE cod_budget = ?1
      AND LOWER(classification_type) = LOWER(?2)
    GROUP BY substr(rep_period, -4)
)
SELECT CAST(lm.year AS INTEGER) AS y,
       COALESCE(SUM(bs.fakt_amt), 0)
FROM last_months lm
JOIN budget_structure bs
  ON bs.rep_period = lm.rep_period
 AND bs.cod_budget = ?1
 AND LOWER(bs.classification_type) = LOWER(?2)
GROUP BY lm.year
ORDER BY y`, budgetCode, string(t))
	if err != nil {
		return nil, fmt.Errorf("dynamics aggregate: %w", err)
	}
	defer rows.Close()

	out := []core.YearAmount{}
	for rows.Next() {
		var p core.YearAmount
		if err := rows.Scan(&p.Year, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan dynamics aggregate: %w", err)
		}
		if p.Year <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func queryRow(ctx context.Context, db Querier, query string, args []any, dest ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Close()
}

func head(all []core.CodeAmount, n int) []core.CodeAmount {
	if len(all) > n {
		return all[:n]
	}
	return all
}

// breakdown keeps the top codes and folds the rest into an "other" bucket
// when its sum is positive. Percentages are of the combined total.
func breakdown(all []core.CodeAmount) []core.StructureItem {
	top := head(all, topN)
	var rest float64
	for _, c := range all[len(top):] {
		rest += c.Amount
	}

	items := make([]core.StructureItem, 0, len(top)+1)
	var total float64
	for _, c := range top {
		items = append(items, core.StructureItem{Code: c.Code, Name: c.Name, Amount: c.Amount})
		total += c.Amount
	}
	if rest > 0 {
		items = append(items, core.StructureItem{Code: core.OtherBucketCode, Name: core.OtherBucketName, Amount: rest})
		total += rest
	}
	for i := range items {
		items[i].Percent = core.Percent(items[i].Amount, total)
	}
	sortByAmountDesc(items)
	return items
}

func sortByAmountDesc(items []core.StructureItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Amount > items[j].Amount })
}
