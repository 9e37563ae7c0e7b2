// Package core provides amount parsing and rounding helpers.
//
// The OpenBudget API returns amounts as text, sometimes with a decimal comma
// or thousands separated by spaces. Amounts are stored unrounded; rounding to
// two places only happens for derived figures such as percentages.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts an API amount to a float.
//
// It accepts dot or comma decimal separators and ignores spaces (including
// non-breaking ones). Anything unparseable becomes 0 so that NaN never
// reaches storage.
//
// Examples:
//
//	ParseAmount("1234.5")    -> 1234.5
//	ParseAmount("1 234,50")  -> 1234.5
//	ParseAmount("")          -> 0
//	ParseAmount("n/a")       -> 0
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Round rounds half away from zero to the given number of decimal places.
// NaN and infinities round to 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Percent returns round(part*100/total, 2), or 0 when total is not positive.
func Percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(part).
		Mul(hundred).
		DivRound(decimal.NewFromFloat(total), 8).
		Round(2).
		Float64()
	return f
}

// EffectivePlan returns the revised plan, or the approved amount when no
// revised plan was published.
func EffectivePlan(plan, approved float64) float64 {
	if plan == 0 {
		return approved
	}
	return plan
}
