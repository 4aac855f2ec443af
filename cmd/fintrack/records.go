package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"fintrack/internal/backend"
	"fintrack/internal/core"
)

// money parses an amount in the given currency code.
func money(amount, currency string) (core.Money, error) {
	c, err := core.ParseCurrency(currency)
	if err != nil {
		return core.Money{}, err
	}
	return core.ParseMoney(amount, c)
}

// optionalDate parses s, leaving the date zero when empty.
func optionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

// required takes flag name and value pairs and reports the first empty one.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: -%s is required", errUsage, pairs[i])
		}
	}
	return nil
}

func addCategoryCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("add-category", out)
	name := fs.String("name", "", "category name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("name", *name); err != nil {
		return err
	}
	c, err := b.Store.CreateCategory(ctx, core.Category{Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "category %s %s\n", c.ID, c.Name)
	return nil
}

func addTransactionCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("add-transaction", out)
	account := fs.String("account", "", "account id")
	category := fs.String("category", "", "category id (empty for a transfer)")
	amount := fs.String("amount", "", "signed amount, negative for outflows")
	currency := fs.String("currency", "USD", "currency code")
	date := fs.String("date", "", "date (default today)")
	desc := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("account", *account, "amount", *amount); err != nil {
		return err
	}
	m, err := money(*amount, *currency)
	if err != nil {
		return err
	}
	on, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	tx, err := b.Transactions.CreateTransaction(ctx, core.Transaction{
		AccountID:   *account,
		CategoryID:  *category,
		Amount:      m,
		OccurredOn:  on,
		Description: *desc,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "transaction %s %s on %s\n", tx.ID, tx.Amount, tx.OccurredOn)
	return nil
}

func addTemplateCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("add-template", out)
	account := fs.String("account", "", "account id")
	category := fs.String("category", "", "category id")
	amount := fs.String("amount", "", "signed amount per occurrence")
	currency := fs.String("currency", "USD", "currency code")
	rule := fs.String("rule", "monthly", "daily, weekly, biweekly, monthly, quarterly, yearly or <n>:<unit>")
	start := fs.String("start", "", "first occurrence (default today)")
	end := fs.String("end", "", "last possible occurrence (default open-ended)")
	desc := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("account", *account, "amount", *amount); err != nil {
		return err
	}
	m, err := money(*amount, *currency)
	if err != nil {
		return err
	}
	r, err := core.ParseIntervalRule(*rule)
	if err != nil {
		return err
	}
	from, err := dateOrToday(*start)
	if err != nil {
		return err
	}
	until, err := optionalDate(*end)
	if err != nil {
		return err
	}
	tmpl, err := b.Store.CreateTemplate(ctx, core.RecurringTemplate{
		AccountID:   *account,
		CategoryID:  *category,
		Amount:      m,
		Description: *desc,
		Rule:        r,
		StartDate:   from,
		EndDate:     until,
		Active:      true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "template %s %s every %d %s from %s\n", tmpl.ID, tmpl.Amount, tmpl.Rule.Every, tmpl.Rule.Unit, tmpl.StartDate)
	return nil
}

func allocateCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("allocate", out)
	category := fs.String("category", "", "category id")
	period := fs.String("period", "", "budget month YYYY-MM (default current)")
	amount := fs.String("amount", "", "amount allocated")
	currency := fs.String("currency", "USD", "currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("category", *category, "amount", *amount); err != nil {
		return err
	}
	p, err := periodOrCurrent(*period)
	if err != nil {
		return err
	}
	m, err := money(*amount, *currency)
	if err != nil {
		return err
	}
	if err := b.Store.SaveAllocations(ctx, core.Allocation{CategoryID: *category, Period: p, Allocated: m}); err != nil {
		return err
	}
	fmt.Fprintf(out, "allocated %s to %s for %s\n", m, *category, p)
	return nil
}

func moveAllocationCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("move-allocation", out)
	from := fs.String("from", "", "source category id")
	to := fs.String("to", "", "destination category id")
	period := fs.String("period", "", "budget month YYYY-MM (default current)")
	amount := fs.String("amount", "", "amount to move")
	currency := fs.String("currency", "USD", "currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("from", *from, "to", *to, "amount", *amount); err != nil {
		return err
	}
	p, err := periodOrCurrent(*period)
	if err != nil {
		return err
	}
	m, err := money(*amount, *currency)
	if err != nil {
		return err
	}
	if err := b.Budgets.TransferAllocation(ctx, p, *from, *to, m); err != nil {
		return err
	}
	fmt.Fprintf(out, "moved %s from %s to %s for %s\n", m, *from, *to, p)
	return nil
}

func addMilestoneCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("add-milestone", out)
	name := fs.String("name", "", "milestone name")
	target := fs.String("target", "", "target amount")
	currency := fs.String("currency", "USD", "currency code")
	by := fs.String("by", "", "target date (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("name", *name, "target", *target); err != nil {
		return err
	}
	m, err := money(*target, *currency)
	if err != nil {
		return err
	}
	targetDate, err := optionalDate(*by)
	if err != nil {
		return err
	}
	ms, err := b.Milestones.Create(ctx, *name, m, targetDate)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "milestone %s %s target %s\n", ms.ID, ms.Name, ms.Target)
	return nil
}

func contributeCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("contribute", out)
	id := fs.String("milestone", "", "milestone id")
	amount := fs.String("amount", "", "amount to add")
	currency := fs.String("currency", "USD", "currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("milestone", *id, "amount", *amount); err != nil {
		return err
	}
	m, err := money(*amount, *currency)
	if err != nil {
		return err
	}
	ms, err := b.Milestones.AddProgress(ctx, *id, m, today())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s of %s", ms.Name, ms.Current, ms.Target)
	if ms.Completed {
		fmt.Fprintf(out, " (completed %s)", ms.CompletedDate)
	}
	fmt.Fprintln(out)
	return nil
}

func printReconciliation(out io.Writer, r core.Reconciliation) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "reconciliation\t%s (%s)\n", r.ID, r.Status)
	fmt.Fprintf(tw, "statement\t%s on %s\n", r.StatementBalance, r.StatementDate)
	fmt.Fprintf(tw, "cleared\t%s\n", r.BookBalance)
	fmt.Fprintf(tw, "difference\t%s\n", r.Difference)
	for _, it := range r.Items {
		mark := " "
		if it.Cleared {
			mark = "x"
		}
		fmt.Fprintf(tw, "  [%s] %s\ttransaction %s\n", mark, it.ID, it.TransactionID)
	}
	return tw.Flush()
}

func reconcileCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("reconcile", out)
	account := fs.String("account", "", "account id")
	date := fs.String("date", "", "statement date (default today)")
	balance := fs.String("balance", "", "statement closing balance")
	currency := fs.String("currency", "USD", "statement currency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("account", *account, "balance", *balance); err != nil {
		return err
	}
	m, err := money(*balance, *currency)
	if err != nil {
		return err
	}
	on, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	r, err := b.Reconciliations.Start(ctx, *account, on, m)
	if err != nil {
		return err
	}
	return printReconciliation(out, r)
}

func clearCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("clear", out)
	id := fs.String("reconciliation", "", "reconciliation id")
	item := fs.String("item", "", "item id")
	undo := fs.Bool("undo", false, "mark the item uncleared")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("reconciliation", *id, "item", *item); err != nil {
		return err
	}
	r, err := b.Reconciliations.SetCleared(ctx, *id, *item, !*undo)
	if err != nil {
		return err
	}
	return printReconciliation(out, r)
}

func finishReconcileCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("finish-reconcile", out)
	id := fs.String("reconciliation", "", "reconciliation id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("reconciliation", *id); err != nil {
		return err
	}
	r, err := b.Reconciliations.Complete(ctx, *id)
	if err != nil {
		return err
	}
	return printReconciliation(out, r)
}

func yearReportCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("year-report", out)
	year := fs.Int("year", today().Year(), "calendar year")
	if err := fs.Parse(args); err != nil {
		return err
	}
	yo, err := b.Reports.YearOverview(ctx, *year)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "income\t%s\n", yo.Income)
	fmt.Fprintf(tw, "expenses\t%s\n", yo.Expenses)
	fmt.Fprintf(tw, "net\t%s\n", yo.Net)
	for _, m := range yo.Months {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Period, m.Income, m.Expenses)
	}
	for _, c := range yo.Categories {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.CategoryID, c.Total, c.Direction)
	}
	return tw.Flush()
}

func trendCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("trend", out)
	category := fs.String("category", "", "category id")
	through := fs.String("through", "", "last month YYYY-MM (default current)")
	months := fs.Int("months", 6, "number of months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("category", *category); err != nil {
		return err
	}
	p, err := periodOrCurrent(*through)
	if err != nil {
		return err
	}
	ct, err := b.Reports.CategoryTrend(ctx, *category, p, *months)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range ct.Months {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Period, m.Spent, m.Count)
	}
	fmt.Fprintf(tw, "average\t%s\t%s\n", ct.AverageMonthly, ct.Direction)
	return tw.Flush()
}
