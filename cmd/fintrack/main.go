package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/cli"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, log.ComponentCLI)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	if _, ok := findCommand(os.Args[1]); !ok {
		_ = run(context.Background(), nil, os.Args[1:], os.Stderr)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := cli.InitBackend(ctx, logger, cfg)
	err := run(ctx, b, os.Args[1:], os.Stdout)
	if cerr := b.Close(); cerr != nil {
		logger.Warn("Failed to close backend", "error", cerr)
	}
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp), errors.Is(err, errUsage):
		os.Exit(2)
	default:
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
