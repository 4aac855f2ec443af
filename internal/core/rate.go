package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource records where an exchange rate observation came from.
type RateSource string

const (
	SourceLive   RateSource = "live"
	SourceCached RateSource = "cached"
	SourceManual RateSource = "manual"
)

// ExchangeRate converts one unit of Base into Rate units of Quote.
type ExchangeRate struct {
	Base   Currency        `json:"base"`
	Quote  Currency        `json:"quote"`
	Rate   decimal.Decimal `json:"rate"`
	AsOf   Date            `json:"as_of"`
	Source RateSource      `json:"source"`
}

// IdentityRate is the 1:1 rate of a currency with itself.
func IdentityRate(c Currency, asOf Date) ExchangeRate {
	return ExchangeRate{Base: c, Quote: c, Rate: decimal.NewFromInt(1), AsOf: asOf, Source: SourceManual}
}

func (r ExchangeRate) Validate() error {
	if !r.Base.Valid() {
		return fmt.Errorf("%w: base %q", ErrUnknownCurrency, string(r.Base))
	}
	if !r.Quote.Valid() {
		return fmt.Errorf("%w: quote %q", ErrUnknownCurrency, string(r.Quote))
	}
	if !r.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive, got %s", ErrInvalidAmount, r.Rate)
	}
	if err := r.AsOf.Validate(); err != nil {
		return err
	}
	switch r.Source {
	case SourceLive, SourceCached, SourceManual:
	default:
		return fmt.Errorf("unknown rate source %q", r.Source)
	}
	return nil
}

// Inverse returns the Quote->Base rate. Rounded to 10 decimal places, so a
// round trip is approximate.
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{
		Base:   r.Quote,
		Quote:  r.Base,
		Rate:   decimal.NewFromInt(1).DivRound(r.Rate, 10),
		AsOf:   r.AsOf,
		Source: r.Source,
	}
}
