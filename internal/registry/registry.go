package registry

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"openbudget/internal/core"
	"openbudget/internal/log"
)

// Source yields the register as rows of cells, header first.
type Source interface {
	Rows(ctx context.Context) ([][]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([][]string, error)

func (f SourceFunc) Rows(ctx context.Context) ([][]string, error) { return f(ctx) }

// Store writes a batch of budgets for a year atomically.
type Store interface {
	ImportBudgets(ctx context.Context, year int, budgets []core.Budget) (int, error)
}

// Result counts what an import did.
type Result struct {
	Year     int `json:"year"`
	Rows     int `json:"rows"`
	Skipped  int `json:"skipped"`
	Imported int `json:"imported"`
}

// Parse turns register rows into budgets. Rows without a budget code are
// skipped. The name is the budget name, then the authority name, then the
// code. A code repeated in the file keeps its first position and its last
// name.
func Parse(rows [][]string) ([]core.Budget, Result, error) {
	if len(rows) == 0 {
		return nil, Result{}, errors.New("registry: no rows")
	}
	cols, err := ResolveColumns(rows[0])
	if err != nil {
		return nil, Result{}, err
	}

	var (
		res    Result
		out    []core.Budget
		byCode = map[string]int{}
	)
	for _, row := range rows[1:] {
		res.Rows++
		code := cols.Get(row, FieldBudgetCode)
		if code == "" {
			res.Skipped++
			continue
		}
		name := cols.Get(row, FieldBudgetName)
		if name == "" {
			name = cols.Get(row, FieldAuthorityName)
		}
		if name == "" {
			name = code
		}
		if i, ok := byCode[code]; ok {
			out[i].Name = name
			continue
		}
		byCode[code] = len(out)
		out = append(out, core.Budget{Code: code, Name: name})
	}
	return out, res, nil
}

// Import reads src and upserts every budget for year in one transaction.
// Nothing is written when any row fails.
func Import(ctx context.Context, src Source, store Store, year int, logger *log.Logger) (Result, error) {
	if year <= 0 {
		return Result{}, core.ErrYearRequired
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentRegistry)

	rows, err := src.Rows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read register: %w", err)
	}
	budgets, res, err := Parse(rows)
	if err != nil {
		return Result{}, err
	}
	res.Year = year

	n, err := store.ImportBudgets(ctx, year, budgets)
	if err != nil {
		logger.ErrorContext(ctx, "Budget import rolled back", log.FieldYear, year, log.FieldError, err.Error())
		return res, fmt.Errorf("import budgets: %w", err)
	}
	res.Imported = n
	logger.InfoContext(ctx, "Budget register imported",
		log.FieldYear, year,
		"rows", res.Rows,
		"skipped", res.Skipped,
		"imported", res.Imported)
	return res, nil
}

// CSVFile reads a register exported as CSV. The delimiter (comma,
// semicolon or tab) is taken from the header line.
type CSVFile struct {
	Path string
}

func (f CSVFile) Rows(ctx context.Context) ([][]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open register: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses CSV text, sniffing the delimiter from the first line.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read register: %w", err)
	}
	line := string(first)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(line)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse register csv: %w", err)
	}
	return rows, nil
}

func sniffDelimiter(line string) rune {
	best, count := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}
