package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"openbudget/internal/core"
)

// UpsertBudget registers a budget for a year and returns it with its id.
// An existing (code, year) row keeps its id and gets the new name.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, code, name string, year int) (core.Budget, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return core.Budget{}, errors.New("budget code is empty")
	}
	if year <= 0 {
		return core.Budget{}, core.ErrYearRequired
	}

	const q = `
INSERT INTO budgets (code, name, year) VALUES (?, ?, ?)
ON CONFLICT (code, year) DO UPDATE SET name = excluded.name
RETURNING id, code, name, year, last_update`

	b, err := scanBudget(r.db.QueryRowContext(ctx, q, code, strings.TrimSpace(name), year))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget %s/%d: %w", code, year, err)
	}
	return b, nil
}

// ImportBudgets upserts budgets for year in one transaction, keyed by
// (code, year) like UpsertBudget. Any failure rolls the whole batch back.
// It returns the number of rows written.
func (r *SQLiteRepository) ImportBudgets(ctx context.Context, year int, budgets []core.Budget) (int, error) {
	if year <= 0 {
		return 0, core.ErrYearRequired
	}
	written := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO budgets (code, name, year, last_update) VALUES (?, ?, ?, ?)
ON CONFLICT (code, year) DO UPDATE SET name = excluded.name, last_update = excluded.last_update`)
		if err != nil {
			return fmt.Errorf("prepare budget import: %w", err)
		}
		defer stmt.Close()

		ts := now()
		for i, b := range budgets {
			code := strings.TrimSpace(b.Code)
			if code == "" {
				return fmt.Errorf("budget %d: code is empty", i+1)
			}
			if _, err := stmt.ExecContext(ctx, code, strings.TrimSpace(b.Name), year, ts); err != nil {
				return fmt.Errorf("import budget %s/%d: %w", code, year, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListBudgetsForSync returns budgets of year with a code, ordered by code.
// A positive limit truncates the list.
func (r *SQLiteRepository) ListBudgetsForSync(ctx context.Context, year, limit int) ([]core.Budget, error) {
	q := `
SELECT id, code, name, year, last_update
FROM budgets
WHERE year = ? AND code IS NOT NULL AND code <> ''
ORDER BY code`
	args := []any{year}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets for %d: %w", year, err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBudgetByCode looks a budget up by code and year; year 0 picks the
// most recent year registered for the code.
func (r *SQLiteRepository) GetBudgetByCode(ctx context.Context, code string, year int) (core.Budget, error) {
	q := `SELECT id, code, name, year, last_update FROM budgets WHERE code = ?`
	args := []any{code}
	if year > 0 {
		q += " AND year = ?"
		args = append(args, year)
	}
	q += " ORDER BY year DESC LIMIT 1"

	b, err := scanBudget(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s/%d: %w", code, year, ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s/%d: %w", code, year, err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b          core.Budget
		code       sql.NullString
		lastUpdate sql.NullTime
	)
	if err := s.Scan(&b.ID, &code, &b.Name, &b.Year, &lastUpdate); err != nil {
		return core.Budget{}, err
	}
	b.Code = code.String
	if lastUpdate.Valid {
		b.LastUpdate = lastUpdate.Time
	}
	return b, nil
}

func now() time.Time {
	return time.Now().UTC()
}
