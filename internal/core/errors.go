package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCurrencyMismatch is returned when two amounts in different currencies
	// are combined without an explicit conversion.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrRateUnavailable means no manual, cached or live rate could be found.
	// Callers may retry later or ask for a manual rate.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInvalidRecurrenceRule rejects templates whose interval cannot be expanded.
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrMaterializationConflict marks an occurrence that already has a
	// transaction. It is skipped, never surfaced as a failure.
	ErrMaterializationConflict = errors.New("occurrence already materialized")

	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyAccount     = errors.New("empty account")
	ErrNotFound         = errors.New("not found")
	ErrRateExists       = errors.New("exchange rate already recorded")
)

// RateError carries the pair and date of a failed rate lookup.
type RateError struct {
	Base  Currency
	Quote Currency
	AsOf  Date
	Err   error
}

func (e *RateError) Error() string {
	return fmt.Sprintf("%s/%s as of %s: %v", e.Base, e.Quote, e.AsOf, e.Err)
}

func (e *RateError) Unwrap() error {
	return e.Err
}
