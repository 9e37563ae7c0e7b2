package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"openbudget/internal/core"
)

// UpsertSyncLog records the latest outcome for an endpoint, replacing any
// previous attempt.
func (r *SQLiteRepository) UpsertSyncLog(ctx context.Context, e core.SyncLogEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode sync details: %w", err)
	}
	last := e.LastSynced
	if last.IsZero() {
		last = now()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO api_sync (endpoint, status, total_records, details, last_synced)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (endpoint) DO UPDATE SET
    status        = excluded.status,
    total_records = excluded.total_records,
    details       = excluded.details,
    last_synced   = excluded.last_synced`,
		e.Endpoint, string(e.Status), e.TotalRecords, string(raw), last.UTC())
	if err != nil {
		return fmt.Errorf("upsert sync log %s: %w", e.Endpoint, err)
	}
	return nil
}

// ListSyncLog returns log rows ordered by endpoint. An empty status lists
// every row; a positive limit truncates.
func (r *SQLiteRepository) ListSyncLog(ctx context.Context, status core.SyncStatus, limit int) ([]core.SyncLogEntry, error) {
	q := `SELECT endpoint, status, total_records, details, last_synced FROM api_sync`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY endpoint`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	defer rows.Close()

	var out []core.SyncLogEntry
	for rows.Next() {
		e, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetSyncLog(ctx context.Context, endpoint string) (core.SyncLogEntry, error) {
	e, err := scanSyncLog(r.db.QueryRowContext(ctx, `
SELECT endpoint, status, total_records, details, last_synced
FROM api_sync WHERE endpoint = ?`, endpoint))
	if errors.Is(err, sql.ErrNoRows) {
		return core.SyncLogEntry{}, fmt.Errorf("sync log %s: %w", endpoint, ErrNotFound)
	}
	return e, err
}

func scanSyncLog(s rowScanner) (core.SyncLogEntry, error) {
	var (
		e       core.SyncLogEntry
		status  string
		details string
	)
	if err := s.Scan(&e.Endpoint, &status, &e.TotalRecords, &details, &e.LastSynced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan sync log: %w", err)
	}
	e.Status = core.SyncStatus(status)
	if details != "" {
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return e, fmt.Errorf("decode sync details for %s: %w", e.Endpoint, err)
		}
	}
	return e, nil
}

// LogRaw appends an audit row with the raw response of a fetch.
func (r *SQLiteRepository) LogRaw(ctx context.Context, endpoint string, params map[string]string, response []byte) error {
	p, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode raw params: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO api_raw (endpoint, params, response, created_at) VALUES (?, ?, ?, ?)`,
		endpoint, string(p), string(response), now())
	if err != nil {
		return fmt.Errorf("log raw response for %s: %w", endpoint, err)
	}
	return nil
}

// CountRaw counts audit rows captured for an endpoint name.
func (r *SQLiteRepository) CountRaw(ctx context.Context, endpoint string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_raw WHERE endpoint = ?`, endpoint).Scan(&n); err != nil {
		return 0, fmt.Errorf("count raw rows: %w", err)
	}
	return n, nil
}
