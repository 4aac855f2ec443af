package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMilestoneCompleted = errors.New("milestone already completed")
	ErrExceedsTarget      = errors.New("progress would exceed target amount")
)

// Milestone is a savings goal tracked in a single currency.
type Milestone struct {
	ID            string
	Name          string
	Target        Money
	Current       Money
	TargetDate    Date // optional
	Completed     bool
	CompletedDate Date
}

func (m Milestone) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("milestone name is required")
	}
	if !m.Target.IsPositive() {
		return fmt.Errorf("%w: target must be positive", ErrInvalidAmount)
	}
	if m.Current.Currency() != "" && m.Current.Currency() != m.Target.Currency() {
		return fmt.Errorf("%w: current %s, target %s", ErrCurrencyMismatch, m.Current.Currency(), m.Target.Currency())
	}
	return nil
}

// ProgressPercent returns current/target as a percentage, capped at 100.
func (m Milestone) ProgressPercent() decimal.Decimal {
	if !m.Target.IsPositive() {
		return decimal.Zero
	}
	p := m.Current.Amount().Div(m.Target.Amount()).Mul(decimal.NewFromInt(100)).Round(1)
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return p
}

// Remaining returns how much is left to reach the target.
func (m Milestone) Remaining() Money {
	r, err := m.Target.Sub(m.Current)
	if err != nil || r.IsNegative() {
		return Zero(m.Target.Currency())
	}
	return r
}

// IsOverdue reports whether an open milestone is past its target date.
func (m Milestone) IsOverdue(today Date) bool {
	return !m.Completed && !m.TargetDate.IsZero() && today.After(m.TargetDate)
}
