package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/backend"
	"fintrack/internal/core"
)

func newTestBackend(t *testing.T) *backend.Backend {
	t.Helper()
	b, err := backend.NewFactory(nil).CreateBackend(context.Background(), backend.Config{
		Type:              backend.SQLiteBackend,
		SQLiteDBPath:      filepath.Join(t.TempDir(), "fintrack.db"),
		RateCache:         backend.MemoryCache,
		RateCacheSize:     10,
		RatesFreshness:    time.Hour,
		ReportingCurrency: core.USD,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func runCmd(t *testing.T, b *backend.Backend, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), b, args, &out)
	return out.String(), err
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, nil, tt.args...)
			if !errors.Is(err, errUsage) {
				t.Errorf("run() error = %v, want errUsage", err)
			}
			if !strings.Contains(out, "usage: fintrack") {
				t.Errorf("run() output = %q, want usage", out)
			}
		})
	}
}

func TestSetRateThenRate(t *testing.T) {
	b := newTestBackend(t)

	out, err := runCmd(t, b, "set-rate", "-base", "eur", "-quote", "USD", "-rate", "1.08", "-date", "2024-03-01")
	if err != nil {
		t.Fatalf("set-rate error = %v", err)
	}
	if !strings.Contains(out, "1 EUR = 1.08 USD") {
		t.Errorf("set-rate output = %q", out)
	}

	out, err = runCmd(t, b, "rate", "-base", "EUR", "-quote", "USD", "-date", "2024-03-15")
	if err != nil {
		t.Fatalf("rate error = %v", err)
	}
	if !strings.Contains(out, "1.08 USD (manual") {
		t.Errorf("rate output = %q", out)
	}

	if _, err := runCmd(t, b, "set-rate", "-base", "EUR", "-quote", "USD", "-rate", "abc"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("set-rate with bad rate error = %v, want ErrInvalidAmount", err)
	}
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	if _, err := b.Rates.RecordManualRate(ctx, core.EUR, core.USD, mustRate(t, "1.10"), core.NewDate(2024, 1, 1)); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{
		{AccountID: "checking", Amount: core.FromMinor(10000, core.USD), OccurredOn: core.NewDate(2024, 3, 1)},
		{AccountID: "checking", Amount: core.FromMinor(-1000, core.EUR), OccurredOn: core.NewDate(2024, 3, 2)},
		{AccountID: "checking", Amount: core.FromMinor(-5000, core.USD), OccurredOn: core.NewDate(2024, 4, 2)},
	} {
		if _, err := b.Transactions.CreateTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCmd(t, b, "balance", "-account", "checking", "-as-of", "2024-03-31")
	if err != nil {
		t.Fatalf("balance error = %v", err)
	}
	if !strings.Contains(out, "89.00 USD") || !strings.Contains(out, "2 transactions") {
		t.Errorf("balance output = %q", out)
	}

	if _, err := runCmd(t, b, "balance"); !errors.Is(err, errUsage) {
		t.Errorf("balance without account error = %v, want errUsage", err)
	}
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	tmpl, err := b.Store.CreateTemplate(ctx, core.RecurringTemplate{
		AccountID:   "checking",
		Amount:      core.FromMinor(-1500, core.USD),
		Description: "Gym",
		Rule:        core.IntervalRule{Unit: core.Week, Every: 1},
		StartDate:   core.NewDate(2024, 3, 1),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}

	out, err := runCmd(t, b, "materialize", "-template", tmpl.ID, "-through", "2024-03-31", "-dry-run")
	if err != nil {
		t.Fatalf("materialize -dry-run error = %v", err)
	}
	if !strings.Contains(out, "5 occurrences would be created") {
		t.Errorf("dry run output = %q", out)
	}

	out, err = runCmd(t, b, "materialize", "-template", tmpl.ID, "-through", "2024-03-31")
	if err != nil {
		t.Fatalf("materialize error = %v", err)
	}
	if !strings.Contains(out, "created 5, skipped 0, materialized through 2024-03-31") {
		t.Errorf("materialize output = %q", out)
	}

	out, err = runCmd(t, b, "materialize", "-template", tmpl.ID, "-through", "2024-03-31")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created 0") {
		t.Errorf("second materialize output = %q", out)
	}
}

func mustRate(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// idFrom returns the second field of the first output line starting with prefix.
func idFrom(t *testing.T, out, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			if f := strings.Fields(strings.TrimPrefix(line, prefix)); len(f) > 0 {
				return f[0]
			}
		}
	}
	t.Fatalf("no %q line in %q", prefix, out)
	return ""
}

func TestRecordCommands(t *testing.T) {
	b := newTestBackend(t)

	out, err := runCmd(t, b, "add-category", "-name", "Food")
	if err != nil {
		t.Fatalf("add-category error = %v", err)
	}
	food := idFrom(t, out, "category")

	if _, err := runCmd(t, b, "add-transaction", "-account", "checking", "-category", food, "-amount", "-25.50", "-date", "2024-03-03", "-description", "groceries"); err != nil {
		t.Fatalf("add-transaction error = %v", err)
	}
	if _, err := runCmd(t, b, "allocate", "-category", food, "-amount", "100", "-period", "2024-03"); err != nil {
		t.Fatalf("allocate error = %v", err)
	}
	out, err = runCmd(t, b, "available", "-category", food, "-period", "2024-03")
	if err != nil {
		t.Fatalf("available error = %v", err)
	}
	if !strings.Contains(out, "74.50 USD") {
		t.Errorf("available output = %q", out)
	}

	out, err = runCmd(t, b, "trend", "-category", food, "-through", "2024-03", "-months", "3")
	if err != nil {
		t.Fatalf("trend error = %v", err)
	}
	if !strings.Contains(out, "2024-03") || !strings.Contains(out, "25.50 USD") {
		t.Errorf("trend output = %q", out)
	}

	out, err = runCmd(t, b, "add-milestone", "-name", "Trip", "-target", "5000")
	if err != nil {
		t.Fatalf("add-milestone error = %v", err)
	}
	trip := idFrom(t, out, "milestone")
	out, err = runCmd(t, b, "contribute", "-milestone", trip, "-amount", "100")
	if err != nil {
		t.Fatalf("contribute error = %v", err)
	}
	if !strings.Contains(out, "Trip: 100.00 USD of 5000.00 USD") {
		t.Errorf("contribute output = %q", out)
	}

	out, err = runCmd(t, b, "reconcile", "-account", "checking", "-date", "2024-03-31", "-balance", "-25.50")
	if err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	rec := idFrom(t, out, "reconciliation")
	item := idFrom(t, out, "[ ]")
	if _, err := runCmd(t, b, "clear", "-reconciliation", rec, "-item", item); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	out, err = runCmd(t, b, "finish-reconcile", "-reconciliation", rec)
	if err != nil {
		t.Fatalf("finish-reconcile error = %v", err)
	}
	if !strings.Contains(out, "(completed)") {
		t.Errorf("finish-reconcile output = %q", out)
	}
}

func TestRecordCommands_RequiredFlags(t *testing.T) {
	b := newTestBackend(t)
	tests := [][]string{
		{"add-category"},
		{"add-transaction", "-account", "checking"},
		{"add-template", "-amount", "-10"},
		{"allocate", "-amount", "10"},
		{"reconcile", "-account", "checking"},
		{"trend"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			if _, err := runCmd(t, b, args...); !errors.Is(err, errUsage) {
				t.Errorf("run(%v) error = %v, want errUsage", args, err)
			}
		})
	}
}

func TestAddTemplateThenMaterialize(t *testing.T) {
	b := newTestBackend(t)
	out, err := runCmd(t, b, "add-template", "-account", "checking", "-amount", "-15", "-rule", "weekly", "-start", "2024-03-01", "-description", "Gym")
	if err != nil {
		t.Fatalf("add-template error = %v", err)
	}
	id := idFrom(t, out, "template")
	out, err = runCmd(t, b, "materialize", "-template", id, "-through", "2024-03-31")
	if err != nil {
		t.Fatalf("materialize error = %v", err)
	}
	if !strings.Contains(out, "created 5") {
		t.Errorf("materialize output = %q", out)
	}
}
