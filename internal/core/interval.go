package core

import (
	"fmt"
	"strconv"
	"strings"
)

// IntervalUnit is the calendar unit a recurrence steps by.
type IntervalUnit string

const (
	Day   IntervalUnit = "day"
	Week  IntervalUnit = "week"
	Month IntervalUnit = "month"
	Year  IntervalUnit = "year"
)

// IntervalRule means "every Every Units", e.g. {Month, 3} is quarterly.
type IntervalRule struct {
	Unit  IntervalUnit
	Every int
}

var presets = map[string]IntervalRule{
	"daily":     {Day, 1},
	"weekly":    {Week, 1},
	"biweekly":  {Week, 2},
	"monthly":   {Month, 1},
	"quarterly": {Month, 3},
	"yearly":    {Year, 1},
}

// ParseIntervalRule accepts a preset name (daily, weekly, biweekly, monthly,
// quarterly, yearly) or "<n>:<unit>", e.g. "2:week".
func ParseIntervalRule(s string) (IntervalRule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := presets[s]; ok {
		return r, nil
	}
	n, unit, ok := strings.Cut(s, ":")
	if !ok {
		return IntervalRule{}, fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, s)
	}
	every, err := strconv.Atoi(n)
	if err != nil {
		return IntervalRule{}, fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, s)
	}
	r := IntervalRule{Unit: IntervalUnit(unit), Every: every}
	if err := r.Validate(); err != nil {
		return IntervalRule{}, err
	}
	return r, nil
}

func (r IntervalRule) Validate() error {
	switch r.Unit {
	case Day, Week, Month, Year:
	default:
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidRecurrenceRule, string(r.Unit))
	}
	if r.Every < 1 {
		return fmt.Errorf("%w: every must be >= 1, got %d", ErrInvalidRecurrenceRule, r.Every)
	}
	return nil
}

// String returns the preset name when one matches, otherwise "<n>:<unit>".
func (r IntervalRule) String() string {
	for name, p := range presets {
		if p == r {
			return name
		}
	}
	return strconv.Itoa(r.Every) + ":" + string(r.Unit)
}
