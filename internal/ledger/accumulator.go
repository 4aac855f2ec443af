package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Accumulator sums amounts of one currency in exact decimal arithmetic.
type Accumulator struct {
	currency core.Currency
	sum      decimal.Decimal
	count    int
}

func NewAccumulator(c core.Currency) *Accumulator {
	return &Accumulator{currency: c, sum: decimal.Zero}
}

func (a *Accumulator) Add(m core.Money) error {
	if m.Currency() != a.currency {
		return fmt.Errorf("%w: accumulating %s into %s", core.ErrCurrencyMismatch, m.Currency(), a.currency)
	}
	a.sum = a.sum.Add(m.Amount())
	a.count++
	return nil
}

// Total returns the sum. Inputs are already at scale, so no rounding happens.
func (a *Accumulator) Total() core.Money {
	m, _ := core.NewMoney(a.sum, a.currency)
	return m
}

func (a *Accumulator) Count() int { return a.count }
