package core

import (
	"fmt"
	"time"
)

// Period is a budget month.
type Period struct {
	Year  int
	Month int // 1-12
}

// PeriodOf returns the period containing d.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 || p.Year < 1 {
		return fmt.Errorf("%w: %d-%d", ErrInvalidPeriod, p.Year, p.Month)
	}
	return nil
}

// Start returns the first day of the period.
func (p Period) Start() Date { return NewDate(p.Year, p.Month, 1) }

// End returns the last day of the period.
func (p Period) End() Date { return NewDate(p.Year, p.Month, DaysInMonth(p.Year, p.Month)) }

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

func (p Period) Next() Period { return PeriodOf(p.Start().AddMonthsClamped(1)) }
func (p Period) Prev() Period { return PeriodOf(p.Start().AddMonthsClamped(-1)) }

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
