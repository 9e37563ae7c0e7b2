package syncer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"openbudget/internal/core"
)

const operation = "localBudgetData"

// ErrBadEndpoint is returned for log keys that do not decode into a sync unit.
var ErrBadEndpoint = errors.New("syncer: malformed endpoint key")

// Unit identifies one sync unit: a budget, classification type, period and year.
type Unit struct {
	Type       core.ClassificationType
	BudgetCode string
	Period     core.Period
	Year       int
}

// EndpointKey returns localBudgetData_<type>_<budgetCode>_<period>_<year>,
// the sync log identity of a unit.
func EndpointKey(t core.ClassificationType, budgetCode string, p core.Period, year int) string {
	return fmt.Sprintf("%s_%s_%s_%s_%d", operation, t.Lower(), budgetCode, p, year)
}

func (u Unit) Endpoint() string {
	return EndpointKey(u.Type, u.BudgetCode, u.Period, u.Year)
}

// RawEndpoint names the audit rows of raw responses for a type.
func RawEndpoint(t core.ClassificationType) string {
	return operation + "_" + t.Lower()
}

// ParseEndpoint decodes a key produced by EndpointKey. Budget codes may
// themselves contain underscores.
func ParseEndpoint(key string) (Unit, error) {
	rest, ok := strings.CutPrefix(key, operation+"_")
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrBadEndpoint, key)
	}
	parts := strings.Split(rest, "_")
	if len(parts) < 4 {
		return Unit{}, fmt.Errorf("%w: %q", ErrBadEndpoint, key)
	}

	t, err := core.ParseClassificationType(parts[0])
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %q: %v", ErrBadEndpoint, key, err)
	}
	year, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || year <= 0 {
		return Unit{}, fmt.Errorf("%w: %q: bad year", ErrBadEndpoint, key)
	}
	p, err := core.ParsePeriod(parts[len(parts)-2])
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %q: %v", ErrBadEndpoint, key, err)
	}
	code := strings.Join(parts[1:len(parts)-2], "_")
	if code == "" {
		return Unit{}, fmt.Errorf("%w: %q: empty budget code", ErrBadEndpoint, key)
	}

	return Unit{Type: t, BudgetCode: code, Period: p, Year: year}, nil
}
