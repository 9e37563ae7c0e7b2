// Package openbudget fetches local-budget execution data from the public
// OpenBudget API (api.openbudget.gov.ua).
package openbudget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"openbudget/internal/core"
)

const (
	defaultBaseURL    = "https://api.openbudget.gov.ua/api/public"
	dataPath          = "/localBudgetData"
	defaultTimeout    = 60 * time.Second
	defaultUserAgent  = "openbudget-sync/1.0"
	budgetItemExpense = "EXPENSES"
	maxBodyPrefix     = 300
	maxBodyBytes      = 64 << 20
)

// Config configures the API client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   defaultBaseURL,
		Timeout:   defaultTimeout,
		UserAgent: defaultUserAgent,
	}
}

// ConfigFromEnv reads OPENBUDGET_BASE_URL, OPENBUDGET_TIMEOUT and
// OPENBUDGET_USER_AGENT over the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("OPENBUDGET_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENBUDGET_USER_AGENT")); v != "" {
		cfg.UserAgent = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENBUDGET_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("openbudget: invalid OPENBUDGET_TIMEOUT %q", v)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Request identifies one sync unit on the API side.
type Request struct {
	BudgetCode string
	Year       int
	Type       core.ClassificationType
	Period     core.Period
}

// Result holds parsed rows together with request provenance.
type Result struct {
	Rows   []Row
	Params map[string]string
	URL    string
	Format string
	Body   []byte
}

// Client fetches budget structure rows. It never retries.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{config: cfg, http: hc, logger: logger}
}

func (r Request) validate() error {
	var problems []string
	if strings.TrimSpace(r.BudgetCode) == "" {
		problems = append(problems, "budget code is empty")
	}
	if r.Year <= 0 {
		problems = append(problems, "year is required")
	}
	if _, err := core.ParseClassificationType(string(r.Type)); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := core.ParsePeriod(string(r.Period)); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Params returns the query parameters sent for r.
func (r Request) Params() map[string]string {
	return map[string]string{
		"budgetCode":         r.BudgetCode,
		"budgetItem":         budgetItemExpense,
		"classificationType": strings.ToUpper(string(r.Type)),
		"period":             strings.ToUpper(string(r.Period)),
		"year":               strconv.Itoa(r.Year),
	}
}

// URL builds the request URL for r.
func (c *Client) URL(r Request) string {
	q := url.Values{}
	for k, v := range r.Params() {
		q.Set(k, v)
	}
	return c.config.BaseURL + dataPath + "?" + q.Encode()
}

// Fetch retrieves and parses the rows for one request.
func (c *Client) Fetch(ctx context.Context, r Request) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	u := c.URL(r)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.DebugContext(ctx, "OpenBudget response received",
		"url", u,
		"status_code", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	if isHTML(bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))) {
		return nil, &FetchError{
			Kind:       KindMaintenance,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        u,
			BodyPrefix: truncate(body, maxBodyPrefix),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        u,
			BodyPrefix: truncate(body, maxBodyPrefix),
		}
	}

	rows, format, err := ParseBody(body)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.URL = u
			fe.StatusCode = resp.StatusCode
			fe.Status = resp.Status
		}
		return nil, err
	}

	return &Result{
		Rows:   rows,
		Params: r.Params(),
		URL:    u,
		Format: format,
		Body:   body,
	}, nil
}
