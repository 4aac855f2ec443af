package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var ErrInsufficientAllocation = errors.New("insufficient allocation")

// maxRolloverMonths bounds how many previous periods feed a rollover.
const maxRolloverMonths = 12

// warningShare is the fraction of the budget left below which a category
// is reported as warning.
var warningShare = decimal.RequireFromString("0.2")

type BudgetHealth string

const (
	HealthHealthy   BudgetHealth = "healthy"
	HealthWarning   BudgetHealth = "warning"
	HealthOverspent BudgetHealth = "overspent"
)

// BudgetStatus is the state of one category's allocation in one period.
// All amounts are in the allocation's currency. Available may be negative.
type BudgetStatus struct {
	CategoryID  string
	Period      core.Period
	Allocated   core.Money
	CarriedOver core.Money
	Spent       core.Money
	Available   core.Money
	Overspent   bool
	Health      BudgetHealth
}

// BudgetService tracks spending against per-category monthly allocations.
type BudgetService struct {
	allocations  storage.AllocationStore
	transactions storage.TransactionStore
	engine       *ledger.Engine
	rollover     bool
}

func NewBudgetService(allocations storage.AllocationStore, transactions storage.TransactionStore, engine *ledger.Engine, rollover bool) *BudgetService {
	return &BudgetService{
		allocations:  allocations,
		transactions: transactions,
		engine:       engine,
		rollover:     rollover,
	}
}

// Available returns allocated - spent for the category in the period, where
// spent is the net outflow of the category's transactions converted into the
// allocation currency at each transaction's date. Overspend is reported as a
// negative Available, never clamped. With rollover enabled the previous
// period's Available is carried in.
func (s *BudgetService) Available(ctx context.Context, categoryID string, period core.Period) (BudgetStatus, error) {
	if err := period.Validate(); err != nil {
		return BudgetStatus{}, err
	}
	alloc, err := s.allocations.GetAllocation(ctx, categoryID, period)
	if err != nil {
		return BudgetStatus{}, err
	}
	return s.status(ctx, alloc, maxRolloverMonths)
}

func (s *BudgetService) status(ctx context.Context, alloc core.Allocation, depth int) (BudgetStatus, error) {
	currency := alloc.Allocated.Currency()
	st := BudgetStatus{
		CategoryID:  alloc.CategoryID,
		Period:      alloc.Period,
		Allocated:   alloc.Allocated,
		CarriedOver: core.Zero(currency),
	}

	spent, err := s.spent(ctx, alloc.CategoryID, alloc.Period, currency)
	if err != nil {
		return BudgetStatus{}, err
	}
	st.Spent = spent

	if s.rollover && depth > 0 {
		carried, err := s.carried(ctx, alloc.CategoryID, alloc.Period.Prev(), currency, depth-1)
		if err != nil {
			return BudgetStatus{}, err
		}
		st.CarriedOver = carried
	}

	budget, err := st.Allocated.Add(st.CarriedOver)
	if err != nil {
		return BudgetStatus{}, err
	}
	if st.Available, err = budget.Sub(st.Spent); err != nil {
		return BudgetStatus{}, err
	}
	st.Overspent = st.Available.IsNegative()
	st.Health = health(budget, st.Available)
	return st, nil
}

func (s *BudgetService) spent(ctx context.Context, categoryID string, period core.Period, currency core.Currency) (core.Money, error) {
	txs, err := s.transactions.ListTransactions(ctx, storage.TransactionFilter{
		CategoryID: categoryID,
		From:       period.Start(),
		To:         period.End(),
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("list %s transactions: %w", categoryID, err)
	}
	balance, err := s.engine.ConvertedBalance(ctx, txs, currency, period.End())
	if err != nil {
		return core.Money{}, fmt.Errorf("spent in %s %s: %w", categoryID, period, err)
	}
	// Outflows are negative, so spending is the negated balance.
	return balance.Neg(), nil
}

// carried returns the previous period's available, converted into currency
// at that period's end. A period without an allocation carries nothing.
func (s *BudgetService) carried(ctx context.Context, categoryID string, prev core.Period, currency core.Currency, depth int) (core.Money, error) {
	alloc, err := s.allocations.GetAllocation(ctx, categoryID, prev)
	if errors.Is(err, core.ErrNotFound) {
		return core.Zero(currency), nil
	}
	if err != nil {
		return core.Money{}, err
	}
	st, err := s.status(ctx, alloc, depth)
	if err != nil {
		return core.Money{}, err
	}
	return s.engine.Convert(ctx, st.Available, currency, prev.End())
}

func health(budget, available core.Money) BudgetHealth {
	switch {
	case available.IsNegative():
		return HealthOverspent
	case budget.IsPositive() && available.Amount().LessThan(budget.Amount().Mul(warningShare)):
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// BudgetSummary is the status of every allocation in a period.
type BudgetSummary struct {
	Period     core.Period
	Categories []BudgetStatus
	Overspent  int
	Warning    int
}

func (s *BudgetService) Summary(ctx context.Context, period core.Period) (BudgetSummary, error) {
	if err := period.Validate(); err != nil {
		return BudgetSummary{}, err
	}
	allocs, err := s.allocations.ListAllocations(ctx, period)
	if err != nil {
		return BudgetSummary{}, err
	}

	sum := BudgetSummary{Period: period}
	for _, a := range allocs {
		st, err := s.status(ctx, a, maxRolloverMonths)
		if err != nil {
			return BudgetSummary{}, err
		}
		switch st.Health {
		case HealthOverspent:
			sum.Overspent++
		case HealthWarning:
			sum.Warning++
		}
		sum.Categories = append(sum.Categories, st)
	}
	return sum, nil
}

// TransferAllocation moves amount from one category's allocation to
// another's in the same period. The destination is created when missing and
// the amount is converted when the destination uses another currency. Both
// allocations are written atomically.
func (s *BudgetService) TransferAllocation(ctx context.Context, period core.Period, fromID, toID string, amount core.Money) error {
	if fromID == toID {
		return errors.New("cannot transfer an allocation to itself")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", core.ErrInvalidAmount)
	}
	from, err := s.allocations.GetAllocation(ctx, fromID, period)
	if err != nil {
		return err
	}
	if from.Allocated.Currency() != amount.Currency() {
		return fmt.Errorf("%w: allocation in %s, transfer in %s", core.ErrCurrencyMismatch, from.Allocated.Currency(), amount.Currency())
	}
	if c, _ := from.Allocated.Cmp(amount); c < 0 {
		return fmt.Errorf("%w: %s has %s, transfer of %s", ErrInsufficientAllocation, fromID, from.Allocated, amount)
	}

	to, err := s.allocations.GetAllocation(ctx, toID, period)
	if errors.Is(err, core.ErrNotFound) {
		to = core.Allocation{CategoryID: toID, Period: period, Allocated: core.Zero(amount.Currency())}
	} else if err != nil {
		return err
	}

	credit, err := s.engine.Convert(ctx, amount, to.Allocated.Currency(), period.Start())
	if err != nil {
		return err
	}
	if from.Allocated, err = from.Allocated.Sub(amount); err != nil {
		return err
	}
	if to.Allocated, err = to.Allocated.Add(credit); err != nil {
		return err
	}
	if err := s.allocations.SaveAllocations(ctx, from, to); err != nil {
		return fmt.Errorf("save transfer: %w", err)
	}

	slog.InfoContext(ctx, "Allocation transferred",
		"from_category", fromID,
		"to_category", toID,
		log.FieldPeriod, period.String(),
		log.FieldAmount, amount.String())
	return nil
}
