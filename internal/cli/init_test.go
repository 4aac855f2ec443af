package cli

import (
	"io"
	"testing"
	"time"

	"fintrack/internal/log"
)

func TestGracefulShutdown_Stop(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	cleaned := make(chan struct{})
	ctx, stop, done := GracefulShutdown(logger, time.Second, func() { close(cleaned) })

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before stop")
	default:
	}

	stop()

	finished := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, done)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown() did not return after stop")
	}
	select {
	case <-cleaned:
	default:
		t.Error("cleanup did not run")
	}
}

func TestGracefulShutdown_CleanupTimeout(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	block := make(chan struct{})
	defer close(block)
	ctx, stop, done := GracefulShutdown(logger, 20*time.Millisecond, func() { <-block })

	stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("done not closed after cleanup timeout")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
}
