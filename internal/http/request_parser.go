package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/stats"
)

const maxBodyBytes = 64 << 10

// ParseScope reads the {budget}/{type}/{year} path values.
func ParseScope(r *http.Request) (stats.Scope, error) {
	var problems []error
	s := stats.Scope{BudgetCode: strings.TrimSpace(r.PathValue("budget"))}
	if s.BudgetCode == "" {
		problems = append(problems, errors.New("budget code is required"))
	}
	t, err := core.ParseClassificationType(r.PathValue("type"))
	if err != nil {
		problems = append(problems, err)
	}
	s.Type = t
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year <= 0 {
		problems = append(problems, fmt.Errorf("%w: %q", core.ErrYearRequired, r.PathValue("year")))
	}
	s.Year = year
	if len(problems) > 0 {
		return stats.Scope{}, &core.ValidationError{Problems: problems}
	}
	return s, nil
}

// ParseForecastParams reads alpha, window and force from the query. Absent
// values stay zero so the engine defaults apply.
func ParseForecastParams(query url.Values) (forecast.Params, error) {
	var (
		p        forecast.Params
		problems []error
	)
	if raw := query.Get("alpha"); raw != "" {
		alpha, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(alpha > 0 && alpha <= 1) {
			problems = append(problems, fmt.Errorf("%w, got %q", forecast.ErrInvalidAlpha, raw))
		}
		p.Alpha = alpha
	}
	if raw := query.Get("window"); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil || window <= 0 {
			problems = append(problems, fmt.Errorf("window must be a positive integer, got %q", raw))
		}
		p.Window = window
	}
	switch strings.ToLower(query.Get("force")) {
	case "", "0", "false":
	case "1", "true":
		p.Force = true
	default:
		problems = append(problems, fmt.Errorf("force must be 0 or 1, got %q", query.Get("force")))
	}
	if len(problems) > 0 {
		return forecast.Params{}, &core.ValidationError{Problems: problems}
	}
	return p, nil
}

// DecodeSyncRequest reads and validates a sync trigger body.
func DecodeSyncRequest(w http.ResponseWriter, r *http.Request) (core.SyncRequest, error) {
	var req core.SyncRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		return core.SyncRequest{}, &core.ValidationError{Problems: []error{fmt.Errorf("decode body: %w", err)}}
	}
	if err := req.Validate(); err != nil {
		return core.SyncRequest{}, err
	}
	return req, nil
}

// parseYear reads the required year query value.
func parseYear(query url.Values) (int, error) {
	raw := query.Get("year")
	year, err := strconv.Atoi(raw)
	if err != nil || year <= 0 {
		return 0, &core.ValidationError{Problems: []error{fmt.Errorf("%w: %q", core.ErrYearRequired, raw)}}
	}
	return year, nil
}

// parseLimit reads an optional non-negative limit query value.
func parseLimit(query url.Values) (int, error) {
	raw := query.Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &core.ValidationError{Problems: []error{core.ErrInvalidLimit}}
	}
	return n, nil
}

func parseSyncStatus(raw string) (core.SyncStatus, error) {
	switch s := core.SyncStatus(strings.ToLower(raw)); s {
	case "", core.StatusSuccess, core.StatusError:
		return s, nil
	}
	return "", &core.ValidationError{Problems: []error{fmt.Errorf("status must be success or error, got %q", raw)}}
}
