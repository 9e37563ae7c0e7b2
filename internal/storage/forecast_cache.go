package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"openbudget/internal/core"
)

// ForecastCacheEntry is one memoized forecast method result. The key
// includes alpha and window, so different parameters never overwrite each
// other.
type ForecastCacheEntry struct {
	BudgetCode string
	Type       core.ClassificationType
	Method     string
	Alpha      float64
	Window     int
	Params     json.RawMessage
	Series     json.RawMessage
	Result     json.RawMessage
	UpdatedAt  time.Time
}

// GetForecastCache returns every cached method for the key, ordered by method.
func (r *SQLiteRepository) GetForecastCache(ctx context.Context, budgetCode string, t core.ClassificationType, alpha float64, window int) ([]ForecastCacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT budget_code, classification_type, method, alpha, window_size, params, series, result, updated_at
FROM forecast_cache
WHERE budget_code = ? AND classification_type = ? AND alpha = ? AND window_size = ?
ORDER BY method`, budgetCode, string(t), alpha, window)
	if err != nil {
		return nil, fmt.Errorf("get forecast cache: %w", err)
	}
	defer rows.Close()

	var out []ForecastCacheEntry
	for rows.Next() {
		var (
			e                      ForecastCacheEntry
			typ                    string
			params, series, result string
		)
		if err := rows.Scan(&e.BudgetCode, &typ, &e.Method, &e.Alpha, &e.Window, &params, &series, &result, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan forecast cache: %w", err)
		}
		e.Type = core.ClassificationType(typ)
		e.Params = json.RawMessage(params)
		e.Series = json.RawMessage(series)
		e.Result = json.RawMessage(result)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveForecastCache upserts all entries in one transaction.
func (r *SQLiteRepository) SaveForecastCache(ctx context.Context, entries []ForecastCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO forecast_cache (
    budget_code, classification_type, method, alpha, window_size, params, series, result, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (budget_code, classification_type, method, alpha, window_size) DO UPDATE SET
    params     = excluded.params,
    series     = excluded.series,
    result     = excluded.result,
    updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare forecast cache upsert: %w", err)
		}
		defer stmt.Close()

		ts := now()
		for _, e := range entries {
			params := jsonOr(e.Params, "{}")
			series := jsonOr(e.Series, "[]")
			if _, err := stmt.ExecContext(ctx, e.BudgetCode, string(e.Type), e.Method, e.Alpha, e.Window,
				params, series, string(e.Result), ts); err != nil {
				return fmt.Errorf("save forecast %s for %s: %w", e.Method, e.BudgetCode, err)
			}
		}
		return nil
	})
}

func jsonOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
