package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	SQLiteDBPath string

	// AMQP (optional, sync jobs run in-process when empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// OpenBudget API
	OpenBudgetBaseURL string
	OpenBudgetTimeout time.Duration

	// Sync
	SyncConcurrency int
	SyncPeriod      string
	RetryInterval   time.Duration

	// Forecast defaults
	ForecastAlpha  float64
	ForecastWindow int

	// Stats response cache
	StatsCacheSize int
	StatsCacheTTL  time.Duration

	// Report publishing
	ReportBackend            string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/openbudget.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "openbudget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_jobs"),

		OpenBudgetBaseURL: getEnv("OPENBUDGET_BASE_URL", "https://api.openbudget.gov.ua/api/public"),
		OpenBudgetTimeout: getEnvDuration("OPENBUDGET_TIMEOUT", 60*time.Second),

		SyncConcurrency: getEnvInt("SYNC_CONCURRENCY", 30),
		SyncPeriod:      getEnv("SYNC_PERIOD", "MONTH"),
		RetryInterval:   getEnvDuration("RETRY_INTERVAL", 0),

		ForecastAlpha:  getEnvFloat("FORECAST_ALPHA", 0.3),
		ForecastWindow: getEnvInt("FORECAST_WINDOW", 3),

		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 500),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),

		ReportBackend:            getEnv("REPORT_BACKEND", "memory"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Reports"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if parsedURL, err := url.Parse(c.OpenBudgetBaseURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid OpenBudget base URL '%s'", c.OpenBudgetBaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid OpenBudget base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.OpenBudgetTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid OpenBudget timeout %v: must be at least 1 second", c.OpenBudgetTimeout))
	}

	if c.SyncConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be at least 1", c.SyncConcurrency))
	} else if c.SyncConcurrency > 200 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be at most 200", c.SyncConcurrency))
	}

	if p := strings.ToUpper(c.SyncPeriod); p != "MONTH" && p != "QUARTER" {
		errors = append(errors, fmt.Sprintf("invalid sync period '%s': must be MONTH or QUARTER", c.SyncPeriod))
	}

	if c.RetryInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid retry interval %v: must not be negative", c.RetryInterval))
	} else if c.RetryInterval > 0 && c.RetryInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid retry interval %v: must be 0 (disabled) or at least 1 minute", c.RetryInterval))
	}

	if !(c.ForecastAlpha > 0 && c.ForecastAlpha <= 1) {
		errors = append(errors, fmt.Sprintf("invalid forecast alpha %v: must be in (0, 1]", c.ForecastAlpha))
	}
	if c.ForecastWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid forecast window %d: must be at least 1", c.ForecastWindow))
	}

	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must be positive", c.StatsCacheTTL))
	}

	switch c.ReportBackend {
	case "memory":
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets report backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets report backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid report backend '%s': must be one of [memory sheets]", c.ReportBackend))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
