// Package registry loads the list of local budgets that syncs iterate over
// from a tabular export of the treasury budget register.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Field is a logical column of the register.
type Field string

const (
	FieldBudgetCode    Field = "budget_code"
	FieldBudgetName    Field = "budget_name"
	FieldAuthorityName Field = "authority_name"
)

// headerVariants lists accepted header texts per field. The register
// numbers some headers with a footnote digit.
var headerVariants = map[Field][]string{
	FieldBudgetCode:    {"Код бюджету 4", "Код бюджету", "budget_code", "code"},
	FieldBudgetName:    {"Найменування бюджету", "budget_name", "name"},
	FieldAuthorityName: {"Найменування органу місцевого самоврядування", "oms_name"},
}

var (
	ErrNoCodeColumn = errors.New("registry: no budget code column")
	ErrNoNameColumn = errors.New("registry: no budget or authority name column")
)

// Columns maps fields to their column index in the header row.
type Columns map[Field]int

// normalizeHeader trims and collapses inner whitespace.
func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.TrimPrefix(h, "\ufeff")), " ")
}

// ResolveColumns finds each field's column in header. The budget code
// column and at least one name column are required.
func ResolveColumns(header []string) (Columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(normalizeHeader(h))
	}

	cols := Columns{}
	for field, variants := range headerVariants {
	search:
		for _, v := range variants {
			want := strings.ToLower(normalizeHeader(v))
			for i, h := range normalized {
				if h == want {
					cols[field] = i
					break search
				}
			}
		}
	}

	if _, ok := cols[FieldBudgetCode]; !ok {
		return nil, fmt.Errorf("%w in header %q", ErrNoCodeColumn, header)
	}
	_, hasName := cols[FieldBudgetName]
	_, hasAuthority := cols[FieldAuthorityName]
	if !hasName && !hasAuthority {
		return nil, fmt.Errorf("%w in header %q", ErrNoNameColumn, header)
	}
	return cols, nil
}

// Get returns the trimmed cell of field in row, empty when the column is
// absent or the row is short.
func (c Columns) Get(row []string, field Field) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
