package backend

import (
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		RateCache:           CacheType(appConfig.RateCache),
		RedisURL:            appConfig.RedisURL,
		RateCacheSize:       appConfig.RateCacheSize,
		RatesAPIURL:         appConfig.RatesAPIURL,
		RatesAPIKey:         appConfig.RatesAPIKey,
		RatesFetchTimeout:   appConfig.RatesFetchTimeout,
		RatesFreshness:      appConfig.RatesFreshness,
		RatesFetchPerSecond: appConfig.RatesFetchPerSecond,

		ReportingCurrency: appConfig.Currency(),
		BudgetRollover:    appConfig.BudgetRollover,
		RecurringWorkers:  appConfig.RecurringWorkers,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}

	switch c.RateCache {
	case MemoryCache, "":
	case RedisCache:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis rate cache")
		}
	default:
		return fmt.Errorf("invalid rate cache: %s", c.RateCache)
	}

	if !c.ReportingCurrency.Valid() {
		return fmt.Errorf("invalid reporting currency: %q", c.ReportingCurrency)
	}
	// AMQP is optional, so we don't validate it
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend}
}
