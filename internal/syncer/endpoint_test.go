package syncer

import (
	"errors"
	"testing"

	"openbudget/internal/core"
)

func TestEndpointKeyRoundTrip(t *testing.T) {
	cases := []Unit{
		{Type: core.Program, BudgetCode: "0100000000", Period: core.PeriodMonth, Year: 2024},
		{Type: core.Economic, BudgetCode: "2556900000", Period: core.PeriodQuarter, Year: 2023},
		{Type: core.Functional, BudgetCode: "a_b", Period: core.PeriodMonth, Year: 2022},
	}
	for _, u := range cases {
		key := u.Endpoint()
		got, err := ParseEndpoint(key)
		if err != nil {
			t.Fatalf("parse %q: %v", key, err)
		}
		if got != u {
			t.Errorf("round trip of %q: got %+v, want %+v", key, got, u)
		}
	}
}

func TestEndpointKeyFormat(t *testing.T) {
	got := EndpointKey(core.Program, "0100000000", core.PeriodMonth, 2024)
	if got != "localBudgetData_program_0100000000_MONTH_2024" {
		t.Fatalf("unexpected key %q", got)
	}
	if RawEndpoint(core.Economic) != "localBudgetData_economic" {
		t.Fatalf("unexpected raw endpoint %q", RawEndpoint(core.Economic))
	}
}

func TestParseEndpointRejects(t *testing.T) {
	for _, key := range []string{
		"",
		"budgets_program_01_MONTH_2024",
		"localBudgetData_program_01_MONTH",
		"localBudgetData_bogus_01_MONTH_2024",
		"localBudgetData_program_01_WEEK_2024",
		"localBudgetData_program_01_MONTH_20x4",
		"localBudgetData_program__MONTH_2024",
	} {
		if _, err := ParseEndpoint(key); !errors.Is(err, ErrBadEndpoint) {
			t.Errorf("%q: expected ErrBadEndpoint, got %v", key, err)
		}
	}
}
