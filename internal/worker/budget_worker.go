package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/obs"
	"fintrack/internal/services"
)

// BudgetChecker reports a category's budget state for a period.
type BudgetChecker interface {
	Available(ctx context.Context, categoryID string, p core.Period) (services.BudgetStatus, error)
	Summary(ctx context.Context, p core.Period) (services.BudgetSummary, error)
}

// BudgetWorker watches transaction events and raises overspend alerts.
type BudgetWorker struct {
	budgets BudgetChecker
}

func NewBudgetWorker(budgets BudgetChecker) *BudgetWorker {
	return &BudgetWorker{budgets: budgets}
}

// HandleTransactionEvent re-evaluates the budget of the event's category in
// the event's period. It returns true when the category is overspent.
func (w *BudgetWorker) HandleTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) (bool, error) {
	if ev.CategoryID == "" {
		slog.DebugContext(ctx, "Transaction has no category, skipping budget check",
			log.FieldTransactionID, ev.TransactionID)
		return false, nil
	}
	if ev.AmountMinor >= 0 {
		return false, nil
	}

	period := core.PeriodOf(ev.OccurredOn)
	status, err := w.budgets.Available(ctx, ev.CategoryID, period)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "No allocation for category",
			log.FieldCategoryID, ev.CategoryID,
			log.FieldPeriod, period.String())
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check budget for %s: %w", ev.CategoryID, err)
	}

	if !status.Overspent {
		slog.DebugContext(ctx, "Budget checked",
			log.FieldCategoryID, ev.CategoryID,
			log.FieldPeriod, period.String(),
			"available", status.Available.String())
		return false, nil
	}
	w.alert(ctx, status, ev.TransactionID)
	return true, nil
}

// CheckPeriod alerts on every overspent category of a period. The budget
// worker runs it at startup to cover events missed while it was down.
func (w *BudgetWorker) CheckPeriod(ctx context.Context, p core.Period) (int, error) {
	sum, err := w.budgets.Summary(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("budget summary %s: %w", p, err)
	}
	for _, st := range sum.Categories {
		if st.Overspent {
			w.alert(ctx, st, "")
		}
	}
	slog.InfoContext(ctx, "Period budget check completed",
		log.FieldPeriod, p.String(),
		"categories", len(sum.Categories),
		"overspent", sum.Overspent)
	return sum.Overspent, nil
}

func (w *BudgetWorker) alert(ctx context.Context, st services.BudgetStatus, transactionID string) {
	obs.OverspendAlerts.Inc()
	slog.WarnContext(ctx, "Budget overspent",
		log.FieldCategoryID, st.CategoryID,
		log.FieldPeriod, st.Period.String(),
		"allocated", st.Allocated.String(),
		"spent", st.Spent.String(),
		"available", st.Available.String(),
		log.FieldTransactionID, transactionID)
}
