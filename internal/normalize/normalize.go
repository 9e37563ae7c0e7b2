// Package normalize maps raw OpenBudget rows with inconsistent column names
// onto canonical budget structure records.
package normalize

import (
	"openbudget/internal/core"
	"openbudget/internal/openbudget"
)

// Batch is the normalized outcome of one fetch.
type Batch struct {
	Type    core.ClassificationType
	Records []core.BudgetStructureRecord
	// Monthly maps month (1-12) to the summed actual amount. Only filled for PROGRAM.
	Monthly map[int]float64

	Fetched    int
	Dropped    int
	Duplicates int
}

// Normalize resolves field variants, drops incomplete rows and removes
// duplicates by natural key, keeping the first occurrence.
func Normalize(rows []openbudget.Row, t core.ClassificationType) Batch {
	b := Batch{
		Type:    t,
		Records: make([]core.BudgetStructureRecord, 0, len(rows)),
		Monthly: make(map[int]float64),
		Fetched: len(rows),
	}
	seen := make(map[core.RecordKey]struct{}, len(rows))

	for _, row := range rows {
		rec, ok := normalizeRow(row, t)
		if !ok {
			b.Dropped++
			continue
		}
		key := rec.Key()
		if _, dup := seen[key]; dup {
			b.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		b.Records = append(b.Records, rec)

		if t == core.Program {
			if m, ok := core.ParseMonth(rec.RepPeriod); ok {
				b.Monthly[m] += rec.Actual
			}
		}
	}
	return b
}

func normalizeRow(row openbudget.Row, t core.ClassificationType) (core.BudgetStructureRecord, bool) {
	period := Get(row, FieldPeriod, t)
	budget := Get(row, FieldBudget, t)
	code := Get(row, FieldCode, t)
	if period == "" || budget == "" || code == "" {
		return core.BudgetStructureRecord{}, false
	}
	return core.BudgetStructureRecord{
		RepPeriod:          period,
		BudgetCode:         budget,
		ClassificationCode: code,
		ClassificationName: Get(row, FieldName, t),
		FundType:           Get(row, FieldFund, t),
		Approved:           core.ParseAmount(Get(row, FieldApproved, t)),
		Plan:               core.ParseAmount(Get(row, FieldPlan, t)),
		Actual:             core.ParseAmount(Get(row, FieldActual, t)),
		Type:               t,
	}, true
}
