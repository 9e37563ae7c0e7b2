package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"openbudget/internal/core"
	"openbudget/internal/log"
	"openbudget/internal/stats"
)

func statsKey(s stats.Scope) string {
	return s.BudgetCode + "|" + string(s.Type) + "|" + strconv.Itoa(s.Year)
}

// getSummary serves summaries from the LRU cache, computing on a miss.
func (s *Server) getSummary(ctx context.Context, scope stats.Scope) (*stats.Summary, error) {
	key := statsKey(scope)
	if sum, ok := s.statsCache.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Stats cache hit", log.FieldBudgetCode, scope.BudgetCode)
		return sum, nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sum, err := s.deps.Stats.Summary(cctx, scope)
	if err != nil {
		return nil, fmt.Errorf("stats summary (budget=%s, type=%s, year=%d): %w", scope.BudgetCode, scope.Type.Lower(), scope.Year, err)
	}
	s.statsCache.Set(key, sum)
	return sum, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		unavailable(w, "statistics")
		return
	}
	scope, err := ParseScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.getSummary(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	if s.deps.Structure == nil {
		unavailable(w, "structure")
		return
	}
	scope, err := ParseScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	codes, err := s.deps.Structure.CodesSnapshot(ctx, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

type budgetView struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Year       int        `json:"year"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Budgets == nil {
		unavailable(w, "budgets")
		return
	}
	year, err := parseYear(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	budgets, err := s.deps.Budgets.ListBudgetsForSync(ctx, year, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		v := budgetView{ID: b.ID, Code: b.Code, Name: b.Name, Year: b.Year}
		if !b.LastUpdate.IsZero() {
			lu := b.LastUpdate
			v.LastUpdate = &lu
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": out, "count": len(out)})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		unavailable(w, "reports")
		return
	}
	scope, err := ParseScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	snap, err := s.deps.Reports.Build(ctx, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePublishReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		unavailable(w, "reports")
		return
	}
	scope, err := ParseScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.deps.Reports.Publish(ctx, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if s.deps.Forecast == nil {
		unavailable(w, "forecast")
		return
	}
	code := r.PathValue("budget")
	t, err := core.ParseClassificationType(r.PathValue("type"))
	if err != nil {
		writeError(w, r, &core.ValidationError{Problems: []error{err}})
		return
	}
	params, err := ParseForecastParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	resp, err := s.deps.Forecast.Forecast(ctx, code, t, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
