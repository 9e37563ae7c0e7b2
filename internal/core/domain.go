package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Program    ClassificationType = "PROGRAM"
	Functional ClassificationType = "FUNCTIONAL"
	Economic   ClassificationType = "ECONOMIC"
)

const (
	PeriodMonth   Period = "MONTH"
	PeriodQuarter Period = "QUARTER"
)

const (
	StatusSuccess SyncStatus = "success"
	StatusError   SyncStatus = "error"
)

// TypeAll is the request alias that expands to every classification type.
const TypeAll = "all"

type (
	// ClassificationType is the budget expenditure classification scheme.
	ClassificationType string

	// Period is the reporting granularity requested from the API.
	Period string

	SyncStatus string

	// Budget is a local budget known for a given year.
	Budget struct {
		ID         int64
		Code       string
		Name       string
		Year       int
		LastUpdate time.Time
	}

	// BudgetStructureRecord is one (reporting period, budget, classification code) fact row.
	BudgetStructureRecord struct {
		RepPeriod          string
		BudgetCode         string
		ClassificationCode string
		ClassificationName string
		FundType           string
		Approved           float64 // zat_amt
		Plan               float64 // plans_amt
		Actual             float64 // fakt_amt
		Type               ClassificationType
	}

	// RecordKey is the natural key of a BudgetStructureRecord.
	RecordKey struct {
		RepPeriod          string
		BudgetCode         string
		ClassificationCode string
		Type               ClassificationType
	}

	// SyncLogEntry is the latest outcome for one sync endpoint.
	SyncLogEntry struct {
		Endpoint     string         `json:"endpoint"`
		Status       SyncStatus     `json:"status"`
		TotalRecords int            `json:"total_records"`
		Details      map[string]any `json:"details"`
		LastSynced   time.Time      `json:"last_synced"`
	}

	// SyncRequest is the inbound trigger for a bulk sync run.
	SyncRequest struct {
		Year   int      `json:"year"`
		Types  []string `json:"types,omitempty"`
		Period string   `json:"period,omitempty"`
		Limit  int      `json:"limit,omitempty"`
	}
)

var (
	ErrYearRequired              = errors.New("year is required")
	ErrInvalidClassificationType = errors.New("invalid classification type")
	ErrInvalidPeriod             = errors.New("invalid period")
	ErrInvalidLimit              = errors.New("limit must not be negative")
)

// ValidationError collects every problem found in a request so callers can
// reject it as a whole.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// ParseClassificationType accepts any casing of program, functional or economic.
func ParseClassificationType(s string) (ClassificationType, error) {
	t := ClassificationType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case Program, Functional, Economic:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidClassificationType, s)
}

// AllClassificationTypes returns the types in the order they are synced.
func AllClassificationTypes() []ClassificationType {
	return []ClassificationType{Program, Functional, Economic}
}

// Lower returns the lower-case name used in endpoint keys and request bodies.
func (t ClassificationType) Lower() string {
	return strings.ToLower(string(t))
}

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PeriodMonth, PeriodQuarter:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (valid: MONTH, QUARTER)", ErrInvalidPeriod, s)
}

func (r BudgetStructureRecord) Key() RecordKey {
	return RecordKey{
		RepPeriod:          r.RepPeriod,
		BudgetCode:         r.BudgetCode,
		ClassificationCode: r.ClassificationCode,
		Type:               r.Type,
	}
}

// Validate checks the whole request before any sync work begins.
func (r SyncRequest) Validate() error {
	var problems []error
	if r.Year <= 0 {
		problems = append(problems, ErrYearRequired)
	}
	if _, err := r.ClassificationTypes(); err != nil {
		problems = append(problems, err)
	}
	if _, err := r.ReportPeriod(); err != nil {
		problems = append(problems, err)
	}
	if r.Limit < 0 {
		problems = append(problems, ErrInvalidLimit)
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ClassificationTypes expands "all", removes duplicates and defaults to PROGRAM.
func (r SyncRequest) ClassificationTypes() ([]ClassificationType, error) {
	if len(r.Types) == 0 {
		return []ClassificationType{Program}, nil
	}
	seen := make(map[ClassificationType]bool)
	var out []ClassificationType
	var bad []string
	add := func(t ClassificationType) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, raw := range r.Types {
		if strings.EqualFold(strings.TrimSpace(raw), TypeAll) {
			for _, t := range AllClassificationTypes() {
				add(t)
			}
			continue
		}
		t, err := ParseClassificationType(raw)
		if err != nil {
			bad = append(bad, raw)
			continue
		}
		add(t)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: %s (valid: program, functional, economic, all)",
			ErrInvalidClassificationType, strings.Join(bad, ", "))
	}
	return out, nil
}

// ReportPeriod returns the requested period, MONTH when unset.
func (r SyncRequest) ReportPeriod() (Period, error) {
	if strings.TrimSpace(r.Period) == "" {
		return PeriodMonth, nil
	}
	return ParsePeriod(r.Period)
}
