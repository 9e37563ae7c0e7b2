// Package forecast extrapolates a yearly spending series one year ahead
// with four independent methods and memoizes the results.
package forecast

import (
	"openbudget/internal/core"
)

// Payload method names.
const (
	MethodArithmeticGrowth     = "arithmetic_growth"
	MethodMovingAverage        = "moving_average"
	MethodExponentialSmoothing = "exponential_smoothing"
	MethodLinearRegression     = "linear_regression"
)

const (
	valuePlaces = 2
	ratePlaces  = 4
)

type ArithmeticGrowthResult struct {
	Method        string  `json:"method"`
	LastYear      int     `json:"lastYear"`
	AvgRate       float64 `json:"avgRate"`
	ForecastYear  int     `json:"forecastYear"`
	ForecastValue float64 `json:"forecastValue"`
}

type MovingAverageResult struct {
	Method        string  `json:"method"`
	Window        int     `json:"window"`
	YearsUsed     []int   `json:"yearsUsed"`
	ForecastYear  int     `json:"forecastYear"`
	ForecastValue float64 `json:"forecastValue"`
}

type ExponentialSmoothingResult struct {
	Method        string  `json:"method"`
	Alpha         float64 `json:"alpha"`
	LastYear      int     `json:"lastYear"`
	LastSmoothed  float64 `json:"lastSmoothed"`
	ForecastYear  int     `json:"forecastYear"`
	ForecastValue float64 `json:"forecastValue"`
}

type LinearRegressionResult struct {
	Method        string            `json:"method"`
	A             float64           `json:"a"`
	B             float64           `json:"b"`
	ForecastYear  int               `json:"forecastYear"`
	ForecastValue float64           `json:"forecastValue"`
	Trend         []core.YearAmount `json:"trend"`
}

// ArithmeticGrowth extrapolates the last value by the mean year-over-year
// growth rate. Pairs with a non-positive previous value are skipped. It
// returns nil for fewer than two points or when no pair is usable.
func ArithmeticGrowth(series []core.YearAmount) *ArithmeticGrowthResult {
	n := len(series)
	if n < 2 {
		return nil
	}
	var (
		sum   float64
		count int
	)
	for i := 1; i < n; i++ {
		prev, curr := series[i-1].Amount, series[i].Amount
		if prev <= 0 {
			continue
		}
		sum += (curr - prev) / prev
		count++
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	last := series[n-1]
	return &ArithmeticGrowthResult{
		Method:        MethodArithmeticGrowth,
		LastYear:      last.Year,
		AvgRate:       core.Round(avg, ratePlaces),
		ForecastYear:  last.Year + 1,
		ForecastValue: core.Round(last.Amount*(1+avg), valuePlaces),
	}
}

// MovingAverage forecasts the mean of the last min(window, n) values.
func MovingAverage(series []core.YearAmount, window int) *MovingAverageResult {
	n := len(series)
	if n == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	k := min(window, n)
	tail := series[n-k:]

	var sum float64
	years := make([]int, k)
	for i, p := range tail {
		sum += p.Amount
		years[i] = p.Year
	}
	return &MovingAverageResult{
		Method:        MethodMovingAverage,
		Window:        k,
		YearsUsed:     years,
		ForecastYear:  series[n-1].Year + 1,
		ForecastValue: core.Round(sum/float64(k), valuePlaces),
	}
}

// ExponentialSmoothing starts from the first value and applies
// F = alpha*X + (1-alpha)*F over the rest; the forecast is the final F.
func ExponentialSmoothing(series []core.YearAmount, alpha float64) *ExponentialSmoothingResult {
	n := len(series)
	if n == 0 {
		return nil
	}
	f := series[0].Amount
	for _, p := range series[1:] {
		f = alpha*p.Amount + (1-alpha)*f
	}
	last := series[n-1]
	smoothed := core.Round(f, valuePlaces)
	return &ExponentialSmoothingResult{
		Method:        MethodExponentialSmoothing,
		Alpha:         alpha,
		LastYear:      last.Year,
		LastSmoothed:  smoothed,
		ForecastYear:  last.Year + 1,
		ForecastValue: smoothed,
	}
}

// LinearRegression fits y = a + b*t by least squares over t = 1..n and
// evaluates it at t = n+1. It returns nil for fewer than two points or a
// degenerate denominator.
func LinearRegression(series []core.YearAmount) *LinearRegressionResult {
	n := len(series)
	if n < 2 {
		return nil
	}
	var sumT, sumY, sumT2, sumTY float64
	for i, p := range series {
		t := float64(i + 1)
		sumT += t
		sumY += p.Amount
		sumT2 += t * t
		sumTY += t * p.Amount
	}
	nf := float64(n)
	den := nf*sumT2 - sumT*sumT
	if den == 0 {
		return nil
	}
	b := (nf*sumTY - sumT*sumY) / den
	a := (sumY - b*sumT) / nf

	trend := make([]core.YearAmount, n)
	for i, p := range series {
		trend[i] = core.YearAmount{Year: p.Year, Amount: core.Round(a+b*float64(i+1), valuePlaces)}
	}
	return &LinearRegressionResult{
		Method:        MethodLinearRegression,
		A:             core.Round(a, ratePlaces),
		B:             core.Round(b, ratePlaces),
		ForecastYear:  series[n-1].Year + 1,
		ForecastValue: core.Round(a+b*(nf+1), valuePlaces),
		Trend:         trend,
	}
}
