package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/obs"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentBudget)
	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the budget worker")
		os.Exit(1)
	}
	obs.Init()

	b := cli.InitBackend(context.Background(), logger, cfg)
	if b.AMQP == nil {
		logger.Error("AMQP broker unavailable")
		_ = b.Close()
		os.Exit(1)
	}

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	if cfg.MetricsAddr != "" {
		go func() {
			if err := obs.Serve(ctx, cfg.MetricsAddr, logger.WithComponent(log.ComponentMetrics).Slog()); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	budgetWorker := worker.NewBudgetWorker(b.Budgets)

	// Catch up on overspending recorded while the worker was down.
	logger.Info("Performing startup budget check...")
	if _, err := budgetWorker.CheckPeriod(ctx, core.PeriodOf(core.DateOf(time.Now()))); err != nil {
		logger.Error("Failed startup budget check", "error", err)
	}

	// Without a consumer no alerts are raised, so a consume failure stops the
	// process with a non-zero status and leaves the restart to the supervisor.
	consumeErr := make(chan error, 1)
	go func() {
		err := b.AMQP.ConsumeTransactions(ctx, func(ctx context.Context, ev *amqp.TransactionEvent) error {
			_, err := budgetWorker.HandleTransactionEvent(ctx, ev)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed, shutting down", "error", err)
			consumeErr <- err
			stop()
		}
	}()

	cli.WaitForShutdown(ctx, done)
	select {
	case <-consumeErr:
		os.Exit(1)
	default:
	}
}
