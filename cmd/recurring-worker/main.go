package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/obs"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	obs.Init()

	b := cli.InitBackend(context.Background(), logger, cfg)
	ctx, _, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
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

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"workers", cfg.RecurringWorkers,
		"backend", cfg.DataBackend,
		"amqp_enabled", b.AMQP != nil)

	run := func(now time.Time) {
		sum, err := b.Recurring.ProcessDue(ctx, core.DateOf(now))
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Recurring processing failed", "error", err)
			}
			return
		}
		logSummary(logger, sum, now.Add(cfg.RecurringInterval))
	}

	logger.Info("Running initial recurring processing...")
	run(time.Now())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				run(now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

func logSummary(logger *log.Logger, sum services.ProcessSummary, next time.Time) {
	fields := log.NewFields().
		WithOperation(log.OpMaterialize).
		With("templates", sum.Templates).
		With("created", sum.Created).
		With("skipped", sum.Skipped).
		With("failed", sum.Failed).
		With("deactivated", sum.Deactivated).
		With("next_check", next.Format("15:04:05"))
	if sum.Failed > 0 {
		logger.Warn("Recurring processing completed with failures", fields.ToSlice()...)
		return
	}
	logger.Info("Recurring processing complete", fields.ToSlice()...)
}
