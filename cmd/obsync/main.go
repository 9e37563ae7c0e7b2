package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"openbudget/internal/cli"
	"openbudget/internal/config"
	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/log"
	"openbudget/internal/registry"
	"openbudget/internal/sheets/google"
	"openbudget/internal/stats"
	"openbudget/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sync":
		err = runSync(os.Args[2:])
	case "retry":
		err = runRetry(os.Args[2:])
	case "budget":
		err = runBudget(os.Args[2:])
	case "import-budgets":
		err = runImportBudgets(os.Args[2:])
	case "forecast":
		err = runForecast(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "obsync %s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: obsync <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  sync      -year Y [-types program,economic|all] [-period MONTH|QUARTER] [-limit N]")
	fmt.Fprintln(os.Stderr, "  retry     [-endpoint localBudgetData_program_<code>_MONTH_<year>]  retry failed units, or one unit")
	fmt.Fprintln(os.Stderr, "  budget    -code C -year Y [-name N]   register a budget for sync")
	fmt.Fprintln(os.Stderr, "  import-budgets -year Y (-file register.csv | -range 'Sheet'!A1:J [-spreadsheet ID])")
	fmt.Fprintln(os.Stderr, "  forecast  -budget C [-type program] [-alpha A] [-window W] [-force]")
}

type env struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *storage.SQLiteRepository
}

// setup loads configuration and opens the database. Callers close the
// repository.
func setup() *env {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	return &env{cfg: cfg, logger: logger, repo: cli.InitSQLite(logger, cfg.SQLiteDBPath)}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	year := fs.Int("year", 0, "budget year (required)")
	types := fs.String("types", "program", "comma-separated classification types, or all")
	period := fs.String("period", "", "reporting period MONTH or QUARTER (default: SYNC_PERIOD)")
	limit := fs.Int("limit", 0, "limit number of budgets (0 = all)")
	_ = fs.Parse(args)

	e := setup()
	defer e.repo.Close()

	if *period == "" {
		*period = e.cfg.SyncPeriod
	}
	req := core.SyncRequest{Year: *year, Types: splitList(*types), Period: *period, Limit: *limit}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := cli.NewOrchestrator(e.cfg, e.repo, e.logger).Run(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runRetry(args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "retry only this sync log endpoint")
	_ = fs.Parse(args)

	e := setup()
	defer e.repo.Close()

	ctx, cancel := signalContext()
	defer cancel()

	o := cli.NewOrchestrator(e.cfg, e.repo, e.logger)
	if *endpoint != "" {
		res, err := o.RetrySingle(ctx, *endpoint)
		if err != nil {
			return err
		}
		out := map[string]any{"endpoint": res.Unit.Endpoint(), "records": res.Records, "status": core.StatusSuccess}
		if res.Err != nil {
			out["status"] = core.StatusError
			out["error"] = res.Err.Error()
		}
		return printJSON(out)
	}

	summary, err := o.RetryFailed(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runBudget(args []string) error {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	code := fs.String("code", "", "budget code (required)")
	year := fs.Int("year", 0, "budget year (required)")
	name := fs.String("name", "", "budget name")
	_ = fs.Parse(args)

	if strings.TrimSpace(*code) == "" || *year <= 0 {
		return errors.New("-code and -year are required")
	}

	e := setup()
	defer e.repo.Close()

	b, err := e.repo.UpsertBudget(context.Background(), strings.TrimSpace(*code), *name, *year)
	if err != nil {
		return err
	}
	return printJSON(b)
}

func runImportBudgets(args []string) error {
	fs := flag.NewFlagSet("import-budgets", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "budget year")
	file := fs.String("file", "", "register exported as CSV")
	readRange := fs.String("range", "", "read the register from this Google Sheets range instead")
	spreadsheet := fs.String("spreadsheet", "", "spreadsheet id (default: GOOGLE_SPREADSHEET_ID)")
	_ = fs.Parse(args)

	if (*file == "") == (*readRange == "") {
		return errors.New("exactly one of -file or -range is required")
	}

	e := setup()
	defer e.repo.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var src registry.Source = registry.CSVFile{Path: *file}
	if *readRange != "" {
		id := *spreadsheet
		if id == "" {
			id = e.cfg.GoogleSpreadsheetID
		}
		gc, err := google.New(ctx, google.Config{
			SpreadsheetID:   id,
			CredentialsJSON: e.cfg.GoogleServiceAccountJSON,
			CredentialsFile: e.cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return err
		}
		src = registry.SourceFunc(func(ctx context.Context) ([][]string, error) {
			return gc.ReadRows(ctx, *readRange)
		})
	}

	res, err := registry.Import(ctx, src, e.repo, *year, e.logger)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runForecast(args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	budget := fs.String("budget", "", "budget code (required)")
	typ := fs.String("type", "program", "classification type")
	alpha := fs.Float64("alpha", 0, "smoothing factor in (0, 1] (0 = FORECAST_ALPHA)")
	window := fs.Int("window", 0, "moving average window (0 = FORECAST_WINDOW)")
	force := fs.Bool("force", false, "skip the forecast cache")
	_ = fs.Parse(args)

	t, err := core.ParseClassificationType(*typ)
	if err != nil {
		return err
	}

	e := setup()
	defer e.repo.Close()

	engine := cli.NewForecastEngine(e.cfg, e.repo, stats.NewAggregator(e.repo.DB()), e.logger)
	resp, err := engine.Forecast(context.Background(), *budget, t, forecast.Params{Alpha: *alpha, Window: *window, Force: *force})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
