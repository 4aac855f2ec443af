// Package obs holds the Prometheus metrics shared by the workers.
package obs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate lookup outcomes.
const (
	LookupIdentity    = "identity"
	LookupManual      = "manual"
	LookupCached      = "cached"
	LookupLive        = "live"
	LookupFallback    = "fallback"
	LookupUnavailable = "unavailable"
)

var (
	RateLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_rate_lookups_total",
			Help: "Exchange rate lookups by resolution step.",
		},
		[]string{"source"},
	)

	RateCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_rate_cache_total",
			Help: "Rate cache lookups by result.",
		},
		[]string{"result"},
	)

	RateFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fintrack_rate_fetch_duration_seconds",
			Help:    "Latency of live exchange rate fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	Materialized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_recurring_occurrences_total",
			Help: "Recurring occurrences processed, by result.",
		},
		[]string{"result"},
	)

	RecurringRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fintrack_recurring_run_duration_seconds",
		Help:    "Duration of a full ProcessDue pass.",
		Buckets: prometheus.DefBuckets,
	})

	OverspendAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fintrack_budget_overspend_alerts_total",
		Help: "Overspent allocations detected by the budget worker.",
	})

	Messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_amqp_messages_total",
			Help: "AMQP messages by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		RateLookups, RateCache, RateFetchDuration,
		Materialized, RecurringRunDuration,
		OverspendAlerts, Messages,
	)
}

// Handler is the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
