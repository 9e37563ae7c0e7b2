package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"openbudget/internal/core"
	"openbudget/internal/log"
	"openbudget/internal/storage"
)

const (
	DefaultAlpha  = 0.3
	DefaultWindow = 3
)

var ErrInvalidAlpha = errors.New("alpha must be in (0, 1]")

// Cache keys of the four methods.
const (
	keyArithmeticGrowth = "arithmeticGrowth"
	keyMovingAverage    = "movingAverage"
	keyExponential      = "exponential"
	keyRegression       = "regression"
)

var methodKeys = []string{keyArithmeticGrowth, keyMovingAverage, keyExponential, keyRegression}

// SeriesSource provides the yearly latest-period series of a budget.
type SeriesSource interface {
	Dynamics(ctx context.Context, budgetCode string, t core.ClassificationType) ([]core.YearAmount, error)
}

// CacheStore persists one row per method keyed by budget, type, method,
// alpha and window.
type CacheStore interface {
	GetForecastCache(ctx context.Context, budgetCode string, t core.ClassificationType, alpha float64, window int) ([]storage.ForecastCacheEntry, error)
	SaveForecastCache(ctx context.Context, entries []storage.ForecastCacheEntry) error
}

// Params control one forecast request. Zero values take the engine defaults.
type Params struct {
	Alpha  float64
	Window int
	// Force skips the cache lookup; results are still written back.
	Force bool
}

// Methods holds one result per method; a nil entry means too little data.
type Methods struct {
	ArithmeticGrowth *ArithmeticGrowthResult     `json:"arithmeticGrowth"`
	MovingAverage    *MovingAverageResult        `json:"movingAverage"`
	Exponential      *ExponentialSmoothingResult `json:"exponential"`
	Regression       *LinearRegressionResult     `json:"regression"`
}

type AppliedParams struct {
	Alpha  float64 `json:"alpha"`
	Window int     `json:"window"`
}

type Response struct {
	Budget  string            `json:"budget"`
	Type    string            `json:"type"`
	Series  []core.YearAmount `json:"series"`
	Methods *Methods          `json:"methods"`
	Params  AppliedParams     `json:"params"`
	Cached  bool              `json:"cached"`
}

type Config struct {
	Alpha  float64
	Window int
}

type Engine struct {
	series SeriesSource
	cache  CacheStore
	config Config
	logger *log.Logger
}

// NewEngine builds an engine; a nil cache disables memoization.
func NewEngine(series SeriesSource, cache CacheStore, cfg Config, logger *log.Logger) *Engine {
	if !(cfg.Alpha > 0 && cfg.Alpha <= 1) {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		series: series,
		cache:  cache,
		config: cfg,
		logger: logger.WithComponent(log.ComponentForecast),
	}
}

func (e *Engine) resolve(p Params) (AppliedParams, error) {
	ap := AppliedParams{Alpha: p.Alpha, Window: p.Window}
	if ap.Alpha == 0 {
		ap.Alpha = e.config.Alpha
	}
	if !(ap.Alpha > 0 && ap.Alpha <= 1) {
		return ap, fmt.Errorf("%w, got %v", ErrInvalidAlpha, p.Alpha)
	}
	if ap.Window <= 0 {
		ap.Window = e.config.Window
	}
	return ap, nil
}

// Forecast returns the series and all four method results for a budget and
// classification type. An empty series yields empty methods and is never
// cached.
func (e *Engine) Forecast(ctx context.Context, budgetCode string, t core.ClassificationType, p Params) (*Response, error) {
	var problems []error
	if budgetCode == "" {
		problems = append(problems, errors.New("budget code is required"))
	}
	typ, err := core.ParseClassificationType(string(t))
	if err != nil {
		problems = append(problems, err)
	}
	ap, err := e.resolve(p)
	if err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return nil, &core.ValidationError{Problems: problems}
	}

	if e.cache != nil && !p.Force {
		if resp, ok := e.lookup(ctx, budgetCode, typ, ap); ok {
			return resp, nil
		}
	}

	series, err := e.series.Dynamics(ctx, budgetCode, typ)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	resp := &Response{
		Budget:  budgetCode,
		Type:    typ.Lower(),
		Series:  series,
		Methods: &Methods{},
		Params:  ap,
	}
	if len(series) == 0 {
		return resp, nil
	}

	resp.Methods = Compute(series, ap.Alpha, ap.Window)

	if e.cache != nil {
		if err := e.store(ctx, budgetCode, typ, ap, resp); err != nil {
			e.logger.WarnContext(ctx, "Failed to cache forecast",
				log.FieldBudgetCode, budgetCode,
				log.FieldClassificationType, typ.Lower(),
				log.FieldError, err.Error())
		}
	}
	return resp, nil
}

// Compute runs the four methods independently.
func Compute(series []core.YearAmount, alpha float64, window int) *Methods {
	return &Methods{
		ArithmeticGrowth: ArithmeticGrowth(series),
		MovingAverage:    MovingAverage(series, window),
		Exponential:      ExponentialSmoothing(series, alpha),
		Regression:       LinearRegression(series),
	}
}

// lookup is a hit only when every method row exists and decodes.
func (e *Engine) lookup(ctx context.Context, budgetCode string, t core.ClassificationType, ap AppliedParams) (*Response, bool) {
	entries, err := e.cache.GetForecastCache(ctx, budgetCode, t, ap.Alpha, ap.Window)
	if err != nil {
		e.logger.WarnContext(ctx, "Forecast cache lookup failed",
			log.FieldBudgetCode, budgetCode,
			log.FieldError, err.Error())
		return nil, false
	}
	byMethod := make(map[string]storage.ForecastCacheEntry, len(entries))
	for _, en := range entries {
		byMethod[en.Method] = en
	}
	for _, k := range methodKeys {
		if _, ok := byMethod[k]; !ok {
			return nil, false
		}
	}

	resp := &Response{Budget: budgetCode, Type: t.Lower(), Methods: &Methods{}, Params: ap, Cached: true}
	targets := map[string]any{
		keyArithmeticGrowth: &resp.Methods.ArithmeticGrowth,
		keyMovingAverage:    &resp.Methods.MovingAverage,
		keyExponential:      &resp.Methods.Exponential,
		keyRegression:       &resp.Methods.Regression,
	}
	for k, dst := range targets {
		if err := json.Unmarshal(byMethod[k].Result, dst); err != nil {
			e.logger.WarnContext(ctx, "Discarding undecodable cached forecast",
				log.FieldForecastMethod, k,
				log.FieldError, err.Error())
			return nil, false
		}
	}
	if err := json.Unmarshal(byMethod[keyArithmeticGrowth].Series, &resp.Series); err != nil {
		return nil, false
	}
	return resp, true
}

func (e *Engine) store(ctx context.Context, budgetCode string, t core.ClassificationType, ap AppliedParams, resp *Response) error {
	series, err := json.Marshal(resp.Series)
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	params, err := json.Marshal(ap)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	results := map[string]any{
		keyArithmeticGrowth: resp.Methods.ArithmeticGrowth,
		keyMovingAverage:    resp.Methods.MovingAverage,
		keyExponential:      resp.Methods.Exponential,
		keyRegression:       resp.Methods.Regression,
	}

	entries := make([]storage.ForecastCacheEntry, 0, len(methodKeys))
	for _, k := range methodKeys {
		result, err := json.Marshal(results[k])
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		entries = append(entries, storage.ForecastCacheEntry{
			BudgetCode: budgetCode,
			Type:       t,
			Method:     k,
			Alpha:      ap.Alpha,
			Window:     ap.Window,
			Params:     params,
			Series:     series,
			Result:     result,
		})
	}
	return e.cache.SaveForecastCache(ctx, entries)
}
