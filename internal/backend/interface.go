package backend

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend bundles the store, the rate provider and the services built on
// them. AMQP is nil when no broker is configured or reachable.
type Backend struct {
	Store  *storage.Store
	Rates  *rates.Provider
	Engine *ledger.Engine
	AMQP   *amqp.Client

	Transactions    *services.TransactionService
	Recurring       *services.RecurringProcessor
	Budgets         *services.BudgetService
	Milestones      *services.MilestoneService
	Reports         *services.ReportService
	Reconciliations *services.ReconciliationService

	caches  *cache.Manager
	cleanup []CleanupFunc
}

// Close releases resources in reverse order of acquisition.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanup) - 1; i >= 0; i-- {
		if err := b.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanup = nil
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	RateCache           CacheType
	RedisURL            string
	RateCacheSize       int
	RatesAPIURL         string
	RatesAPIKey         string
	RatesFetchTimeout   time.Duration
	RatesFreshness      time.Duration
	RatesFetchPerSecond float64

	ReportingCurrency core.Currency
	BudgetRollover    bool
	RecurringWorkers  int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// CacheType selects the exchange rate cache.
type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)
