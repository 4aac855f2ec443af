// Package ledger projects transactions into balances in a single currency.
// It never mutates its input and holds no state between calls.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"fintrack/internal/core"
)

// RateResolver is satisfied by *rates.Provider.
type RateResolver interface {
	Rate(ctx context.Context, base, quote core.Currency, asOf core.Date) (core.ExchangeRate, error)
}

type Engine struct {
	rates RateResolver
}

func NewEngine(r RateResolver) *Engine {
	return &Engine{rates: r}
}

// GroupBy selects the key Balances aggregates on.
type GroupBy int

const (
	ByAccount GroupBy = iota
	ByCategory
)

// ConvertedBalance sums txs in target currency. Each transaction is
// converted at the rate effective on its own date and rounded to the target
// scale before summing, so the result does not depend on input order.
// Transactions dated after asOf are ignored; a zero asOf includes all.
func (e *Engine) ConvertedBalance(ctx context.Context, txs []core.Transaction, target core.Currency, asOf core.Date) (core.Money, error) {
	if !target.Valid() {
		return core.Money{}, fmt.Errorf("%w: %q", core.ErrUnknownCurrency, string(target))
	}
	conv := e.converter(target)
	acc := NewAccumulator(target)
	for _, tx := range txs {
		if !asOf.IsZero() && tx.OccurredOn.After(asOf) {
			continue
		}
		m, err := conv(ctx, tx)
		if err != nil {
			return core.Money{}, err
		}
		if err := acc.Add(m); err != nil {
			return core.Money{}, err
		}
	}
	return acc.Total(), nil
}

// Balances is ConvertedBalance per account or per category. Transfers have
// no category and are reported under the empty key when grouping by
// category.
func (e *Engine) Balances(ctx context.Context, txs []core.Transaction, target core.Currency, asOf core.Date, by GroupBy) (map[string]core.Money, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCurrency, string(target))
	}
	conv := e.converter(target)
	accs := make(map[string]*Accumulator)
	for _, tx := range txs {
		if !asOf.IsZero() && tx.OccurredOn.After(asOf) {
			continue
		}
		key := tx.AccountID
		if by == ByCategory {
			key = tx.CategoryID
		}
		m, err := conv(ctx, tx)
		if err != nil {
			return nil, err
		}
		acc, ok := accs[key]
		if !ok {
			acc = NewAccumulator(target)
			accs[key] = acc
		}
		if err := acc.Add(m); err != nil {
			return nil, err
		}
	}

	out := make(map[string]core.Money, len(accs))
	for k, acc := range accs {
		out[k] = acc.Total()
	}
	return out, nil
}

// BalancePoint is one step of a running balance.
type BalancePoint struct {
	Date          core.Date
	TransactionID string
	Amount        core.Money // converted
	Balance       core.Money
}

// RunningBalance returns the cumulative converted balance after each
// transaction, ordered by date then id.
func (e *Engine) RunningBalance(ctx context.Context, txs []core.Transaction, target core.Currency) ([]BalancePoint, error) {
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].OccurredOn.Equal(sorted[j].OccurredOn) {
			return sorted[i].OccurredOn.Before(sorted[j].OccurredOn)
		}
		return sorted[i].ID < sorted[j].ID
	})

	conv := e.converter(target)
	acc := NewAccumulator(target)
	points := make([]BalancePoint, 0, len(sorted))
	for _, tx := range sorted {
		m, err := conv(ctx, tx)
		if err != nil {
			return nil, err
		}
		if err := acc.Add(m); err != nil {
			return nil, err
		}
		points = append(points, BalancePoint{
			Date:          tx.OccurredOn,
			TransactionID: tx.ID,
			Amount:        m,
			Balance:       acc.Total(),
		})
	}
	return points, nil
}

// Convert converts a single amount at the rate effective on asOf.
func (e *Engine) Convert(ctx context.Context, m core.Money, target core.Currency, asOf core.Date) (core.Money, error) {
	if m.Currency() == target {
		return m, nil
	}
	r, err := e.rates.Rate(ctx, m.Currency(), target, asOf)
	if err != nil {
		return core.Money{}, err
	}
	return core.Convert(m, r)
}

type convertFunc func(ctx context.Context, tx core.Transaction) (core.Money, error)

// converter memoizes rates per (currency, date) for the duration of one call.
func (e *Engine) converter(target core.Currency) convertFunc {
	memo := make(map[string]core.ExchangeRate)
	return func(ctx context.Context, tx core.Transaction) (core.Money, error) {
		base := tx.Amount.Currency()
		if base == target {
			return tx.Amount, nil
		}
		key := string(base) + "@" + tx.OccurredOn.String()
		r, ok := memo[key]
		if !ok {
			var err error
			r, err = e.rates.Rate(ctx, base, target, tx.OccurredOn)
			if err != nil {
				return core.Money{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
			}
			memo[key] = r
		}
		return core.Convert(tx.Amount, r)
	}
}
