package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"openbudget/internal/core"
)

type fakeStore struct {
	year    int
	budgets []core.Budget
	err     error
}

func (f *fakeStore) ImportBudgets(_ context.Context, year int, budgets []core.Budget) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.year, f.budgets = year, budgets
	return len(budgets), nil
}

func TestResolveColumns(t *testing.T) {
	cases := []struct {
		name    string
		header  []string
		wantErr error
		code    int
	}{
		{"register headers", []string{"Код території 1", "Код  бюджету 4 ", "Найменування бюджету"}, nil, 1},
		{"plain headers", []string{"\ufeffКод бюджету", "Найменування органу місцевого самоврядування"}, nil, 0},
		{"english headers", []string{"name", "CODE"}, nil, 1},
		{"no code", []string{"Найменування бюджету"}, ErrNoCodeColumn, 0},
		{"no name", []string{"Код бюджету", "КАТОТТГ"}, ErrNoNameColumn, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cols, err := ResolveColumns(tc.header)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cols[FieldBudgetCode] != tc.code {
				t.Fatalf("expected code column %d, got %d", tc.code, cols[FieldBudgetCode])
			}
		})
	}
}

func TestParse(t *testing.T) {
	rows := [][]string{
		{"Код бюджету 4", "Найменування бюджету", "Найменування органу місцевого самоврядування"},
		{"0100000000", "Бюджет Києва", "Київська міська рада"},
		{"", "no code", ""},
		{"0200000000", "", "Львівська міська рада"},
		{"0300000000"},
		{"0100000000", "Київ", ""},
	}
	budgets, res, err := Parse(rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Rows != 5 || res.Skipped != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	want := []core.Budget{
		{Code: "0100000000", Name: "Київ"},
		{Code: "0200000000", Name: "Львівська міська рада"},
		{Code: "0300000000", Name: "0300000000"},
	}
	if len(budgets) != len(want) {
		t.Fatalf("expected %d budgets, got %+v", len(want), budgets)
	}
	for i := range want {
		if budgets[i] != want[i] {
			t.Errorf("budget %d: expected %+v, got %+v", i, want[i], budgets[i])
		}
	}

	if _, _, err := Parse(nil); err == nil {
		t.Fatalf("expected error for empty register")
	}
}

func TestReadCSVSniffsDelimiter(t *testing.T) {
	cases := map[string]string{
		"comma":     "Код бюджету,Найменування бюджету\n0100000000,\"Бюджет, Київ\"\n",
		"semicolon": "Код бюджету;Найменування бюджету\n0100000000;Бюджет, Київ\n",
		"tab":       "Код бюджету\tНайменування бюджету\n0100000000\tБюджет, Київ\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := ReadCSV(strings.NewReader(in))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(rows) != 2 || rows[1][0] != "0100000000" || rows[1][1] != "Бюджет, Київ" {
				t.Fatalf("unexpected rows %q", rows)
			}
		})
	}
}

func TestImportFromCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.csv")
	content := "Код бюджету 4;Найменування бюджету\n0100000000;Бюджет Києва\n;\n0200000000;Бюджет Львова\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write register: %v", err)
	}

	store := &fakeStore{}
	res, err := Import(context.Background(), CSVFile{Path: path}, store, 2024, nil)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Year != 2024 || res.Rows != 3 || res.Skipped != 1 || res.Imported != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.year != 2024 || len(store.budgets) != 2 || store.budgets[1].Name != "Бюджет Львова" {
		t.Fatalf("unexpected store call %d %+v", store.year, store.budgets)
	}
}

func TestImportErrors(t *testing.T) {
	rows := SourceFunc(func(context.Context) ([][]string, error) {
		return [][]string{{"Код бюджету", "Найменування бюджету"}, {"01", "x"}}, nil
	})
	if _, err := Import(context.Background(), rows, &fakeStore{}, 0, nil); !errors.Is(err, core.ErrYearRequired) {
		t.Fatalf("expected ErrYearRequired, got %v", err)
	}

	boom := errors.New("disk full")
	if _, err := Import(context.Background(), rows, &fakeStore{err: boom}, 2024, nil); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	unreadable := SourceFunc(func(context.Context) ([][]string, error) { return nil, boom })
	if _, err := Import(context.Background(), unreadable, &fakeStore{}, 2024, nil); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	if _, err := Import(context.Background(), CSVFile{Path: filepath.Join(t.TempDir(), "missing.csv")}, &fakeStore{}, 2024, nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
