package normalize

import (
	"strings"

	"openbudget/internal/core"
	"openbudget/internal/openbudget"
)

// Field is a logical column of a budget structure row.
type Field string

const (
	FieldPeriod   Field = "period"
	FieldBudget   Field = "budget"
	FieldFund     Field = "fund"
	FieldApproved Field = "approved"
	FieldPlan     Field = "plan"
	FieldActual   Field = "actual"
	FieldCode     Field = "code"
	FieldName     Field = "name"
)

// commonVariants lists accepted source keys per field, in resolution order.
var commonVariants = map[Field][]string{
	FieldPeriod:   {"rep_period", "REP_PERIOD"},
	FieldBudget:   {"cod_budget", "COD_BUDGET"},
	FieldFund:     {"fund_typ", "FUND_TYP"},
	FieldApproved: {"zat_amt", "ZAT_AMT"},
	FieldPlan:     {"plans_amt", "PLANS_AMT"},
	FieldActual:   {"fakt_amt", "FAKT_AMT"},
}

// classificationVariants holds the code and name columns per classification type.
var classificationVariants = map[core.ClassificationType]map[Field][]string{
	core.Program: {
		FieldCode: {"cod_cons_mb_pk", "COD_CONS_MB_PK"},
		FieldName: {"cod_cons_mb_pk_name", "COD_CONS_MB_PK_NAME"},
	},
	core.Economic: {
		FieldCode: {"cod_cons_ek", "COD_CONS_EK"},
		FieldName: {"cod_cons_ek_name", "COD_CONS_EK_NAME"},
	},
	core.Functional: {
		FieldCode: {"cod_cons_fun", "COD_FUN", "COD_CONS_FUN"},
		FieldName: {"cod_cons_fun_name", "COD_FUN_NAME", "COD_CONS_FUN_NAME"},
	},
}

// Variants returns the accepted source keys of field for classification type t.
func Variants(field Field, t core.ClassificationType) []string {
	if v, ok := commonVariants[field]; ok {
		return v
	}
	return classificationVariants[t][field]
}

// Resolve returns the first non-empty value among variants.
func Resolve(row openbudget.Row, variants []string) (string, bool) {
	for _, key := range variants {
		if v := strings.TrimSpace(row[key]); v != "" {
			return v, true
		}
	}
	return "", false
}

// Get resolves field for classification type t, empty when absent.
func Get(row openbudget.Row, field Field, t core.ClassificationType) string {
	v, _ := Resolve(row, Variants(field, t))
	return v
}
