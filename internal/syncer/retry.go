package syncer

import (
	"context"
	"fmt"
	"time"

	"openbudget/internal/core"
	"openbudget/internal/log"
)

// RetryFailed re-drives every unit whose latest outcome is an error, one
// at a time. Each attempt overwrites the unit's sync log row. Keys that do
// not decode, or whose budget is unknown, are skipped.
func (o *Orchestrator) RetryFailed(ctx context.Context) (Summary, error) {
	entries, err := o.store.ListSyncLog(ctx, core.StatusError, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("list failed endpoints: %w", err)
	}

	logger := o.logger.WithComponent(log.ComponentRetry)
	logger.InfoContext(ctx, "Retry started", "failed_endpoints", len(entries))

	start := time.Now()
	sum := Summary{}
	budgets := make(map[string]struct{})
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		res, err := o.RetrySingle(ctx, e.Endpoint)
		if err != nil {
			sum.Skipped++
			logger.WarnContext(ctx, "Skipping failed endpoint",
				log.FieldEndpoint, e.Endpoint,
				log.FieldError, err.Error())
			continue
		}
		budgets[res.Unit.BudgetCode] = struct{}{}
		sum.add(res)
	}
	sum.Budgets = len(budgets)
	sum.Duration = time.Since(start)
	sum.Message = fmt.Sprintf("Retry complete: %d units, %d succeeded, %d failed, %d skipped",
		sum.Units, sum.Succeeded, sum.Failed, sum.Skipped)

	logger.InfoContext(ctx, "Retry finished",
		"units", sum.Units,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		log.FieldDuration, sum.Duration.Milliseconds())

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("retry interrupted: %w", err)
	}
	return sum, nil
}

// RetrySingle re-runs the unit identified by an endpoint key. The returned
// error covers only decoding and budget lookup; the unit outcome itself is
// in the result and the sync log.
func (o *Orchestrator) RetrySingle(ctx context.Context, endpoint string) (UnitResult, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return UnitResult{}, err
	}
	b, err := o.store.GetBudgetByCode(ctx, u.BudgetCode, u.Year)
	if err != nil {
		return UnitResult{}, fmt.Errorf("resolve budget for %s: %w", endpoint, err)
	}
	return o.runUnit(ctx, b, u), nil
}
