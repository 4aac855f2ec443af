package core

import (
	"fmt"
	"sort"
	"strings"
)

// Currency is a validated currency code. The zero value is not a valid currency;
// obtain one through ParseCurrency or the package constants.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	KES Currency = "KES"
	JPY Currency = "JPY"
)

type currencyInfo struct {
	name  string
	scale int32 // minor-unit digits
}

// Supported currencies. TSH is kept as the code the application has always used
// for the Tanzanian shilling.
var currencies = map[Currency]currencyInfo{
	"USD": {"US Dollar", 2},
	"EUR": {"Euro", 2},
	"GBP": {"British Pound", 2},
	"KES": {"Kenyan Shilling", 2},
	"TSH": {"Tanzanian Shilling", 2},
	"CAD": {"Canadian Dollar", 2},
	"AUD": {"Australian Dollar", 2},
	"JPY": {"Japanese Yen", 0},
	"CNY": {"Chinese Yuan", 2},
	"INR": {"Indian Rupee", 2},
	"ZAR": {"South African Rand", 2},
	"NGN": {"Nigerian Naira", 2},
	"GHS": {"Ghanaian Cedi", 2},
	"UGX": {"Ugandan Shilling", 0},
	"CHF": {"Swiss Franc", 2},
	"SEK": {"Swedish Krona", 2},
	"NOK": {"Norwegian Krone", 2},
	"DKK": {"Danish Krone", 2},
	"NZD": {"New Zealand Dollar", 2},
	"SGD": {"Singapore Dollar", 2},
	"HKD": {"Hong Kong Dollar", 2},
	"MXN": {"Mexican Peso", 2},
	"BRL": {"Brazilian Real", 2},
	"AED": {"UAE Dirham", 2},
	"SAR": {"Saudi Riyal", 2},
}

// ParseCurrency normalizes s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := currencies[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

// MustCurrency is ParseCurrency for literals known to be valid.
func MustCurrency(s string) Currency {
	c, err := ParseCurrency(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

// Scale returns the number of minor-unit digits (2 for cents, 0 for yen).
func (c Currency) Scale() int32 {
	return currencies[c].scale
}

// Name returns the display name, or the code itself when unknown.
func (c Currency) Name() string {
	if info, ok := currencies[c]; ok {
		return info.name
	}
	return string(c)
}

func (c Currency) String() string {
	return string(c)
}

// SupportedCurrencies returns all supported codes in alphabetical order.
func SupportedCurrencies() []Currency {
	out := make([]Currency, 0, len(currencies))
	for c := range currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
