package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const cacheCleanupInterval = 10 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory. Each wired component logs under
// its own component name; a nil logger writes through slog's default handler.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.Config{Handler: slog.Default().Handler()})
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.cleanup = append(b.cleanup, store.Close)

	rateCache, err := f.createRateCache(ctx, config, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	source := rates.NewHTTPSource(config.RatesAPIURL, config.RatesAPIKey, config.RatesFetchPerSecond, nil)
	b.Rates = rates.NewProvider(store, source, rateCache, rates.Config{
		Freshness:    config.RatesFreshness,
		FetchTimeout: config.RatesFetchTimeout,
	}, f.logger.WithComponent(log.ComponentRates).Slog())
	b.Engine = ledger.NewEngine(b.Rates)

	b.AMQP = f.createPublisher(config)
	var publisher services.EventPublisher
	if b.AMQP != nil {
		publisher = b.AMQP
		b.cleanup = append(b.cleanup, b.AMQP.Close)
	}

	b.Transactions = services.NewTransactionService(store, publisher)
	b.Recurring = services.NewRecurringProcessor(store, publisher, config.RecurringWorkers)
	b.Budgets = services.NewBudgetService(store, store, b.Engine, config.BudgetRollover)
	b.Milestones = services.NewMilestoneService(store, b.Engine)
	b.Reports = services.NewReportService(store, b.Engine, config.ReportingCurrency)
	b.Reconciliations = services.NewReconciliationService(store, store, b.Engine)

	f.logger.Info("Initialized backend",
		"backend", config.Type.String(),
		"rate_cache", string(config.RateCache),
		"reporting_currency", string(config.ReportingCurrency),
		"amqp_enabled", b.AMQP != nil)
	return b, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (*storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.OpenSQLite(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresBackend:
		store, err := storage.OpenPostgres(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRateCache(ctx context.Context, config Config, b *Backend) (cache.Cache[core.ExchangeRate], error) {
	ttl := config.RatesFreshness
	if config.RateCache == RedisCache {
		client, err := cache.NewRedisClient(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.cleanup = append(b.cleanup, client.Close)
		f.logger.Info("Using redis rate cache")
		return cache.NewRedisCache[core.ExchangeRate](client, "fintrack:rate:", ttl, f.logger.WithComponent(log.ComponentCache).Slog()), nil
	}

	lru := cache.NewLRUCache[core.ExchangeRate](config.RateCacheSize, ttl)
	b.caches = cache.NewManager(f.logger.WithComponent(log.ComponentCache).Slog())
	b.caches.Register(lru)
	b.caches.StartCleanup(cacheCleanupInterval)
	b.cleanup = append(b.cleanup, func() error {
		b.caches.Stop()
		return nil
	})
	return lru, nil
}

// createPublisher connects to the broker. A failure is logged and the
// backend continues without events.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	logger := f.logger.WithComponent(log.ComponentAMQP)
	if config.AMQPURL == "" {
		logger.Info("AMQP disabled, transaction events will not be published")
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
