package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"openbudget/internal/core"
)

// maxRowsPerStatement keeps multi-row inserts below SQLite's bound
// parameter limit (9 columns per structure row).
const maxRowsPerStatement = 500

const structureColumns = 9

// UpsertStructure writes one sync unit atomically: the structure rows, the
// derived monthly expense indicators and the budget's last_update stamp.
// Any failure rolls the whole unit back. Errors are returned, not logged.
func (r *SQLiteRepository) UpsertStructure(ctx context.Context, budgetID int64, records []core.BudgetStructureRecord, monthly map[int]float64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(records); start += maxRowsPerStatement {
			end := min(start+maxRowsPerStatement, len(records))
			if err := upsertStructureChunk(ctx, tx, records[start:end]); err != nil {
				return err
			}
		}
		if err := upsertMonthlyExpense(ctx, tx, budgetID, monthly); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE budgets SET last_update = ? WHERE id = ?`, now(), budgetID)
		if err != nil {
			return fmt.Errorf("touch budget %d: %w", budgetID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("touch budget %d: %w", budgetID, ErrNotFound)
		}
		return nil
	})
}

func upsertStructureChunk(ctx context.Context, tx *sql.Tx, chunk []core.BudgetStructureRecord) error {
	var b strings.Builder
	b.WriteString(`INSERT INTO budget_structure (
    rep_period, cod_budget, cod_cons_mb_pk, cod_cons_mb_pk_name, fund_typ,
    zat_amt, plans_amt, fakt_amt, classification_type
) VALUES `)

	args := make([]any, 0, len(chunk)*structureColumns)
	for i, rec := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.RepPeriod, rec.BudgetCode, rec.ClassificationCode, rec.ClassificationName,
			rec.FundType, rec.Approved, rec.Plan, rec.Actual, string(rec.Type))
	}
	b.WriteString(`
ON CONFLICT (rep_period, cod_budget, cod_cons_mb_pk, classification_type) DO UPDATE SET
    cod_cons_mb_pk_name = excluded.cod_cons_mb_pk_name,
    fund_typ            = excluded.fund_typ,
    zat_amt             = excluded.zat_amt,
    plans_amt           = excluded.plans_amt,
    fakt_amt            = excluded.fakt_amt,
    updated_at          = CURRENT_TIMESTAMP`)

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("upsert %d structure rows: %w", len(chunk), err)
	}
	return nil
}

func upsertMonthlyExpense(ctx context.Context, tx *sql.Tx, budgetID int64, monthly map[int]float64) error {
	if len(monthly) == 0 {
		return nil
	}
	months := make([]int, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Ints(months)

	var b strings.Builder
	b.WriteString(`INSERT INTO monthly_indicators (budget_id, month, expense) VALUES `)
	args := make([]any, 0, len(months)*3)
	for i, m := range months {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, budgetID, m, monthly[m])
	}
	b.WriteString(`
ON CONFLICT (budget_id, month) DO UPDATE SET expense = excluded.expense`)

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("upsert monthly indicators for budget %d: %w", budgetID, err)
	}
	return nil
}

// MonthlyIndicator is one (budget, month) row. Income and balance are owned
// by other writers and may be unset.
type MonthlyIndicator struct {
	Month   int
	Income  sql.NullFloat64
	Expense sql.NullFloat64
	Balance sql.NullFloat64
}

func (r *SQLiteRepository) ListMonthlyIndicators(ctx context.Context, budgetID int64) ([]MonthlyIndicator, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT month, income, expense, balance
FROM monthly_indicators
WHERE budget_id = ?
ORDER BY month`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list monthly indicators: %w", err)
	}
	defer rows.Close()

	var out []MonthlyIndicator
	for rows.Next() {
		var mi MonthlyIndicator
		if err := rows.Scan(&mi.Month, &mi.Income, &mi.Expense, &mi.Balance); err != nil {
			return nil, fmt.Errorf("scan monthly indicator: %w", err)
		}
		out = append(out, mi)
	}
	return out, rows.Err()
}

// CountStructure counts structure rows of a budget, optionally of one type.
func (r *SQLiteRepository) CountStructure(ctx context.Context, budgetCode string, t core.ClassificationType) (int, error) {
	q := `SELECT COUNT(*) FROM budget_structure WHERE cod_budget = ?`
	args := []any{budgetCode}
	if t != "" {
		q += ` AND LOWER(classification_type) = LOWER(?)`
		args = append(args, string(t))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count structure rows: %w", err)
	}
	return n, nil
}
