package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// upcomingDeadlineDays is how far ahead Summary lists target dates.
const upcomingDeadlineDays = 90

type MilestoneService struct {
	store  storage.MilestoneStore
	engine *ledger.Engine
}

func NewMilestoneService(store storage.MilestoneStore, engine *ledger.Engine) *MilestoneService {
	return &MilestoneService{store: store, engine: engine}
}

func (s *MilestoneService) Create(ctx context.Context, name string, target core.Money, targetDate core.Date) (core.Milestone, error) {
	m, err := s.store.CreateMilestone(ctx, core.Milestone{
		Name:       name,
		Target:     target,
		Current:    core.Zero(target.Currency()),
		TargetDate: targetDate,
	})
	if err != nil {
		return core.Milestone{}, err
	}
	slog.InfoContext(ctx, "Milestone created",
		"milestone_id", m.ID,
		"target", m.Target.String())
	return m, nil
}

// AddProgress adds a positive amount in the milestone's currency. Reaching
// the target completes the milestone; going past it is rejected.
func (s *MilestoneService) AddProgress(ctx context.Context, id string, amount core.Money, today core.Date) (core.Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return core.Milestone{}, err
	}
	if m.Completed {
		return core.Milestone{}, core.ErrMilestoneCompleted
	}
	if !amount.IsPositive() {
		return core.Milestone{}, fmt.Errorf("%w: progress must be positive", core.ErrInvalidAmount)
	}

	prev := m.Current
	next, err := m.Current.Add(amount)
	if err != nil {
		return core.Milestone{}, err
	}
	if c, _ := next.Cmp(m.Target); c > 0 {
		return core.Milestone{}, fmt.Errorf("%w: %s + %s > %s", core.ErrExceedsTarget, prev, amount, m.Target)
	} else if c == 0 {
		m.Completed = true
		m.CompletedDate = today
	}
	m.Current = next

	if err := s.store.UpdateMilestoneProgress(ctx, m, prev); err != nil {
		return core.Milestone{}, err
	}
	slog.InfoContext(ctx, "Milestone progress added",
		"milestone_id", m.ID,
		log.FieldAmount, amount.String(),
		"progress", m.ProgressPercent().String(),
		"completed", m.Completed)
	return m, nil
}

// Complete marks the milestone done. With fillTarget the current amount is
// set to the target.
func (s *MilestoneService) Complete(ctx context.Context, id string, fillTarget bool, today core.Date) (core.Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return core.Milestone{}, err
	}
	if m.Completed {
		return core.Milestone{}, core.ErrMilestoneCompleted
	}
	prev := m.Current
	m.Completed = true
	m.CompletedDate = today
	if fillTarget {
		m.Current = m.Target
	}
	if err := s.store.UpdateMilestoneProgress(ctx, m, prev); err != nil {
		return core.Milestone{}, err
	}
	return m, nil
}

type MilestoneStatus string

const (
	MilestoneActive    MilestoneStatus = "active"
	MilestoneOverdue   MilestoneStatus = "overdue"
	MilestoneCompleted MilestoneStatus = "completed"
)

// MilestoneInsight describes where a milestone stands relative to its date.
type MilestoneInsight struct {
	Milestone     core.Milestone
	Status        MilestoneStatus
	Progress      decimal.Decimal
	Remaining     core.Money
	DaysRemaining int // 0 when there is no target date
	// RequiredMonthly is the monthly saving that reaches the target on the
	// target date. Zero when no target date is set or it has passed.
	RequiredMonthly core.Money
}

func Insight(m core.Milestone, today core.Date) MilestoneInsight {
	in := MilestoneInsight{
		Milestone:       m,
		Status:          MilestoneActive,
		Progress:        m.ProgressPercent(),
		Remaining:       m.Remaining(),
		RequiredMonthly: core.Zero(m.Target.Currency()),
	}
	switch {
	case m.Completed:
		in.Status = MilestoneCompleted
		return in
	case m.IsOverdue(today):
		in.Status = MilestoneOverdue
	}
	if m.TargetDate.IsZero() {
		return in
	}
	in.DaysRemaining = int(m.TargetDate.Sub(today.Time).Hours() / 24)
	if in.DaysRemaining > 0 {
		perDay := in.Remaining.Amount().Div(decimal.NewFromInt(int64(in.DaysRemaining)))
		in.RequiredMonthly, _ = core.NewMoney(perDay.Mul(decimal.NewFromInt(30)), m.Target.Currency())
	}
	return in
}

// MilestoneSummary totals all milestones in the reporting currency.
type MilestoneSummary struct {
	Total, Completed, Active, Overdue int
	TargetTotal                       core.Money
	CurrentTotal                      core.Money
	OverallProgress                   decimal.Decimal
	UpcomingDeadlines                 []MilestoneInsight
}

// Summary converts every milestone's amounts into currency at today's rate.
func (s *MilestoneService) Summary(ctx context.Context, currency core.Currency, today core.Date) (MilestoneSummary, error) {
	ms, err := s.store.ListMilestones(ctx)
	if err != nil {
		return MilestoneSummary{}, err
	}

	sum := MilestoneSummary{
		Total:           len(ms),
		TargetTotal:     core.Zero(currency),
		CurrentTotal:    core.Zero(currency),
		OverallProgress: decimal.Zero,
	}
	for _, m := range ms {
		target, err := s.engine.Convert(ctx, m.Target, currency, today)
		if err != nil {
			return MilestoneSummary{}, fmt.Errorf("milestone %s: %w", m.ID, err)
		}
		current, err := s.engine.Convert(ctx, m.Current, currency, today)
		if err != nil {
			return MilestoneSummary{}, fmt.Errorf("milestone %s: %w", m.ID, err)
		}
		if sum.TargetTotal, err = sum.TargetTotal.Add(target); err != nil {
			return MilestoneSummary{}, err
		}
		if sum.CurrentTotal, err = sum.CurrentTotal.Add(current); err != nil {
			return MilestoneSummary{}, err
		}

		in := Insight(m, today)
		switch in.Status {
		case MilestoneCompleted:
			sum.Completed++
		case MilestoneOverdue:
			sum.Overdue++
		default:
			sum.Active++
		}
		if !m.Completed && !m.TargetDate.IsZero() && in.DaysRemaining >= 0 && in.DaysRemaining <= upcomingDeadlineDays {
			sum.UpcomingDeadlines = append(sum.UpcomingDeadlines, in)
		}
	}
	sort.SliceStable(sum.UpcomingDeadlines, func(i, j int) bool {
		return sum.UpcomingDeadlines[i].DaysRemaining < sum.UpcomingDeadlines[j].DaysRemaining
	})
	if sum.TargetTotal.IsPositive() {
		sum.OverallProgress = sum.CurrentTotal.Amount().Div(sum.TargetTotal.Amount()).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return sum, nil
}
