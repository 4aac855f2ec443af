package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

type Config struct {
	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exchange rates
	RateCache           string
	RedisURL            string
	RateCacheSize       int
	RatesAPIURL         string
	RatesAPIKey         string
	RatesFetchTimeout   time.Duration
	RatesFreshness      time.Duration
	RatesFetchPerSecond float64

	// Ledger
	ReportingCurrency string
	BudgetRollover    bool

	// Worker
	RecurringInterval time.Duration
	RecurringWorkers  int
	MetricsAddr       string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_checks"),

		RateCache:           getEnv("RATE_CACHE", "memory"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RateCacheSize:       getEnvInt("RATE_CACHE_SIZE", 1000),
		RatesAPIURL:         getEnv("RATES_API_URL", "https://v6.exchangerate-api.com/v6"),
		RatesAPIKey:         getEnv("RATES_API_KEY", ""),
		RatesFetchTimeout:   getEnvDuration("RATES_FETCH_TIMEOUT", 10*time.Second),
		RatesFreshness:      getEnvDuration("RATES_FRESHNESS", 24*time.Hour),
		RatesFetchPerSecond: getEnvFloat("RATES_FETCH_PER_SECOND", 1),

		ReportingCurrency: getEnv("REPORTING_CURRENCY", "USD"),
		BudgetRollover:    getEnvBool("BUDGET_ROLLOVER", false),

		RecurringInterval: getEnvDuration("RECURRING_PROCESSOR_INTERVAL", time.Hour),
		RecurringWorkers:  getEnvInt("RECURRING_WORKERS", 4),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"sqlite", "postgres"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if c.SQLiteDBPath != ":memory:" {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
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

	switch c.RateCache {
	case "memory":
		if c.RateCacheSize < 1 {
			errors = append(errors, fmt.Sprintf("invalid rate cache size %d: must be at least 1", c.RateCacheSize))
		}
	case "redis":
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL is required when RATE_CACHE is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid rate cache '%s': must be memory or redis", c.RateCache))
	}

	if c.RatesAPIURL != "" {
		if u, err := url.Parse(c.RatesAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid rates API URL '%s'", c.RatesAPIURL))
		}
	}
	if c.RatesFetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates fetch timeout %v: must be positive", c.RatesFetchTimeout))
	}
	if c.RatesFreshness <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates freshness %v: must be positive", c.RatesFreshness))
	}
	if c.RatesFetchPerSecond <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates fetch rate %v: must be positive", c.RatesFetchPerSecond))
	}

	if _, err := core.ParseCurrency(c.ReportingCurrency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reporting currency '%s'", c.ReportingCurrency))
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}
	if c.RecurringWorkers < 1 || c.RecurringWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid recurring workers %d: must be between 1 and 64", c.RecurringWorkers))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Currency returns the reporting currency. Call after Validate.
func (c *Config) Currency() core.Currency {
	cur, _ := core.ParseCurrency(c.ReportingCurrency)
	return cur
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
