// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence schedules. Each
// interval unit (day, week, month, year) has its own stepper that computes
// the n-th occurrence of a schedule from its anchor date.

package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// OccurrenceStepper is the strategy interface for a recurrence unit.
// Occurrences are always computed from the anchor, never from the previous
// occurrence, so a clamped month-end does not drift the anchor day.
type OccurrenceStepper interface {
	// Nth returns occurrence n (0 is the anchor itself) of a schedule that
	// repeats every `every` units.
	Nth(anchor core.Date, every, n int) core.Date
	// PerMonth is how many occurrences a single-unit schedule has in an
	// average month.
	PerMonth() decimal.Decimal
}

// DailyStepper steps by whole days.
type DailyStepper struct{}

func (DailyStepper) Nth(anchor core.Date, every, n int) core.Date {
	return anchor.AddDays(every * n)
}

func (DailyStepper) PerMonth() decimal.Decimal { return decimal.NewFromInt(30) }

// WeeklyStepper steps by 7-day weeks.
type WeeklyStepper struct{}

func (WeeklyStepper) Nth(anchor core.Date, every, n int) core.Date {
	return anchor.AddDays(7 * every * n)
}

func (WeeklyStepper) PerMonth() decimal.Decimal { return decimal.RequireFromString("4.33") }

// MonthlyStepper keeps the anchor's day of month, clamped to the month's
// last day when the month is shorter (Jan 31 -> Feb 29 -> Mar 31).
type MonthlyStepper struct{}

func (MonthlyStepper) Nth(anchor core.Date, every, n int) core.Date {
	return anchor.AddMonthsClamped(every * n)
}

func (MonthlyStepper) PerMonth() decimal.Decimal { return decimal.NewFromInt(1) }

// YearlyStepper keeps month and day; Feb 29 clamps to Feb 28 in common years.
type YearlyStepper struct{}

func (YearlyStepper) Nth(anchor core.Date, every, n int) core.Date {
	return anchor.AddMonthsClamped(12 * every * n)
}

func (YearlyStepper) PerMonth() decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(decimal.NewFromInt(12), 8)
}

// occurrenceSteppers maps interval units to their steppers.
var occurrenceSteppers = map[core.IntervalUnit]OccurrenceStepper{
	core.Day:   DailyStepper{},
	core.Week:  WeeklyStepper{},
	core.Month: MonthlyStepper{},
	core.Year:  YearlyStepper{},
}

// GetOccurrenceStepper returns the stepper for a unit.
func GetOccurrenceStepper(unit core.IntervalUnit) (OccurrenceStepper, error) {
	s, ok := occurrenceSteppers[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interval unit %q", core.ErrInvalidRecurrenceRule, string(unit))
	}
	return s, nil
}

// RegisterOccurrenceStepper adds or replaces the stepper for a unit.
func RegisterOccurrenceStepper(unit core.IntervalUnit, s OccurrenceStepper) {
	occurrenceSteppers[unit] = s
}

// occurrences lists schedule dates strictly after `after` (when set) and up
// to `through` inclusive, returning at most limit dates. capped reports that
// more dates remained.
func occurrences(rule core.IntervalRule, anchor, after, through core.Date, limit int) (dates []core.Date, capped bool, err error) {
	if err := rule.Validate(); err != nil {
		return nil, false, err
	}
	stepper, err := GetOccurrenceStepper(rule.Unit)
	if err != nil {
		return nil, false, err
	}
	for n := 0; ; n++ {
		d := stepper.Nth(anchor, rule.Every, n)
		if d.After(through) {
			return dates, false, nil
		}
		if !after.IsZero() && !d.After(after) {
			continue
		}
		if len(dates) == limit {
			return dates, true, nil
		}
		dates = append(dates, d)
	}
}
