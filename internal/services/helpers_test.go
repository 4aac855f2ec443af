package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCategory(t *testing.T, s *storage.Store, name string) string {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c.ID
}

func mustTransaction(t *testing.T, s *storage.Store, tx core.Transaction) core.Transaction {
	t.Helper()
	if tx.AccountID == "" {
		tx.AccountID = "checking"
	}
	saved, err := s.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return saved
}

// staticRates converts between currencies with fixed rates into USD.
type staticRates map[core.Currency]string

func (r staticRates) Rate(_ context.Context, base, quote core.Currency, asOf core.Date) (core.ExchangeRate, error) {
	if base == quote {
		return core.IdentityRate(base, asOf), nil
	}
	toUSD := func(c core.Currency) (decimal.Decimal, bool) {
		if c == core.USD {
			return decimal.NewFromInt(1), true
		}
		s, ok := r[c]
		if !ok {
			return decimal.Decimal{}, false
		}
		return decimal.RequireFromString(s), true
	}
	b, okB := toUSD(base)
	q, okQ := toUSD(quote)
	if !okB || !okQ {
		return core.ExchangeRate{}, &core.RateError{Base: base, Quote: quote, AsOf: asOf, Err: core.ErrRateUnavailable}
	}
	return core.ExchangeRate{Base: base, Quote: quote, Rate: b.DivRound(q, 10), AsOf: asOf, Source: core.SourceManual}, nil
}

func newTestEngine() *ledger.Engine {
	return ledger.NewEngine(staticRates{core.EUR: "1.1", core.KES: "0.0077"})
}

type publishedEvent struct {
	eventType string
	tx        core.Transaction
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, eventType string, tx core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, tx: tx})
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
