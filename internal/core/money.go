// Package core provides the ledger's value types: money, currencies, dates,
// exchange rates and the records built from them.
//
// This file contains Money, a fixed-point amount tagged with its currency.
// All arithmetic stays in one currency; crossing currencies requires Convert
// with an explicit ExchangeRate.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in a single currency, held at the currency's
// minor-unit scale. Negative amounts are outflows.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney rounds amount to the currency scale using round-half-to-even.
func NewMoney(amount decimal.Decimal, c Currency) (Money, error) {
	if !c.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, string(c))
	}
	return Money{amount: amount.RoundBank(c.Scale()), currency: c}, nil
}

// FromMinor builds Money from an integer count of minor units (cents).
func FromMinor(minor int64, c Currency) Money {
	return Money{amount: decimal.New(minor, -c.Scale()), currency: c}
}

// Zero returns a zero amount in c.
func Zero(c Currency) Money {
	return Money{amount: decimal.Zero, currency: c}
}

// ParseMoney parses a decimal string in the given currency.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Digits beyond the currency scale are rounded half to
// even.
//
// Examples:
//
//	ParseMoney("12.34", USD)  -> 12.34 USD
//	ParseMoney("-12,345", USD) -> -12.34 USD
//	ParseMoney("1500", JPY)   -> 1500 JPY
func ParseMoney(s string, c Currency) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	body := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	parts := strings.Split(body, ".")
	if len(parts) > 2 || body == "" || body == "." {
		return Money{}, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewMoney(d, c)
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency of m.
func (m Money) Currency() Currency { return m.currency }

// Minor returns the amount in minor units. Money is always held at scale, so
// this is exact.
func (m Money) Minor() int64 {
	return m.amount.Shift(m.currency.Scale()).IntPart()
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Add returns m+o. It fails with ErrCurrencyMismatch when the currencies differ.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m-o. It fails with ErrCurrencyMismatch when the currencies differ.
func (m Money) Sub(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

// Cmp compares two amounts in the same currency.
func (m Money) Cmp(o Money) (int, error) {
	if m.currency != o.currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return m.amount.Cmp(o.amount), nil
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// Convert returns m expressed in the rate's quote currency, rounded half to
// even at the quote currency's scale.
func Convert(m Money, r ExchangeRate) (Money, error) {
	if m.currency != r.Base {
		return Money{}, fmt.Errorf("%w: amount in %s, rate from %s", ErrCurrencyMismatch, m.currency, r.Base)
	}
	return Money{amount: m.amount.Mul(r.Rate).RoundBank(r.Quote.Scale()), currency: r.Quote}, nil
}

// String formats m as "12.34 USD".
func (m Money) String() string {
	return m.amount.StringFixed(m.currency.Scale()) + " " + string(m.currency)
}

// Float returns the amount as a float64 for display purposes only.
func (m Money) Float() float64 {
	return m.amount.InexactFloat64()
}
