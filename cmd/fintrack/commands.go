package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/backend"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error
}

var commands = []command{
	{"rate", "rate -base EUR -quote USD [-date YYYY-MM-DD]", rateCmd},
	{"set-rate", "set-rate -base EUR -quote USD -rate 1.08 [-date YYYY-MM-DD]", setRateCmd},
	{"refresh-rates", "refresh-rates [-bases USD,EUR] [-date YYYY-MM-DD]", refreshRatesCmd},
	{"seed", "seed [-date YYYY-MM-DD]", seedCmd},
	{"balance", "balance -account ID [-currency USD] [-as-of YYYY-MM-DD]", balanceCmd},
	{"available", "available -category ID [-period YYYY-MM]", availableCmd},
	{"report", "report [-period YYYY-MM]", reportCmd},
	{"materialize", "materialize -template ID [-through YYYY-MM-DD] [-dry-run]", materializeCmd},
	{"upcoming", "upcoming [-days 30]", upcomingCmd},
	{"year-report", "year-report [-year YYYY]", yearReportCmd},
	{"trend", "trend -category ID [-through YYYY-MM] [-months 6]", trendCmd},
	{"add-category", "add-category -name NAME", addCategoryCmd},
	{"add-transaction", "add-transaction -account ID -amount -12.50 [-currency USD] [-category ID] [-date YYYY-MM-DD] [-description TEXT]", addTransactionCmd},
	{"add-template", "add-template -account ID -amount -1200 [-currency USD] [-category ID] [-rule monthly] [-start YYYY-MM-DD] [-end YYYY-MM-DD]", addTemplateCmd},
	{"allocate", "allocate -category ID -amount 400 [-currency USD] [-period YYYY-MM]", allocateCmd},
	{"move-allocation", "move-allocation -from ID -to ID -amount 50 [-currency USD] [-period YYYY-MM]", moveAllocationCmd},
	{"add-milestone", "add-milestone -name NAME -target 5000 [-currency USD] [-by YYYY-MM-DD]", addMilestoneCmd},
	{"contribute", "contribute -milestone ID -amount 100 [-currency USD]", contributeCmd},
	{"reconcile", "reconcile -account ID -balance 1945.00 [-currency USD] [-date YYYY-MM-DD]", reconcileCmd},
	{"clear", "clear -reconciliation ID -item ID [-undo]", clearCmd},
	{"finish-reconcile", "finish-reconcile -reconciliation ID", finishReconcileCmd},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: fintrack <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

// run dispatches args[0] to its command.
func run(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errUsage
	}
	c, ok := findCommand(args[0])
	if !ok {
		usage(out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return c.run(ctx, b, args[1:], out)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func today() core.Date { return core.DateOf(time.Now()) }

// dateOrToday parses s, defaulting to today when empty.
func dateOrToday(s string) (core.Date, error) {
	if s == "" {
		return today(), nil
	}
	return core.ParseDate(s)
}

func periodOrCurrent(s string) (core.Period, error) {
	if s == "" {
		return core.PeriodOf(today()), nil
	}
	return core.ParsePeriod(s)
}

func currencies(base, quote string) (core.Currency, core.Currency, error) {
	b, err := core.ParseCurrency(base)
	if err != nil {
		return "", "", err
	}
	q, err := core.ParseCurrency(quote)
	if err != nil {
		return "", "", err
	}
	return b, q, nil
}

func rateCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("rate", out)
	base := fs.String("base", "", "base currency")
	quote := fs.String("quote", "", "quote currency")
	date := fs.String("date", "", "effective date (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bc, qc, err := currencies(*base, *quote)
	if err != nil {
		return err
	}
	asOf, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	r, err := b.Rates.Rate(ctx, bc, qc, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "1 %s = %s %s (%s, as of %s)\n", r.Base, r.Rate.String(), r.Quote, r.Source, r.AsOf)
	return nil
}

func setRateCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("set-rate", out)
	base := fs.String("base", "", "base currency")
	quote := fs.String("quote", "", "quote currency")
	value := fs.String("rate", "", "units of quote per unit of base")
	date := fs.String("date", "", "effective from (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bc, qc, err := currencies(*base, *quote)
	if err != nil {
		return err
	}
	rate, err := decimal.NewFromString(*value)
	if err != nil {
		return fmt.Errorf("%w: rate %q", core.ErrInvalidAmount, *value)
	}
	asOf, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	r, err := b.Rates.RecordManualRate(ctx, bc, qc, rate, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recorded 1 %s = %s %s from %s\n", r.Base, r.Rate.String(), r.Quote, r.AsOf)
	return nil
}

func refreshRatesCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("refresh-rates", out)
	list := fs.String("bases", "USD,EUR", "comma-separated base currencies")
	date := fs.String("date", "", "date to fetch (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var bases []core.Currency
	for _, s := range strings.Split(*list, ",") {
		c, err := core.ParseCurrency(s)
		if err != nil {
			return err
		}
		bases = append(bases, c)
	}
	asOf, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	n, err := b.Rates.Refresh(ctx, bases, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "refreshed %d of %d bases\n", n, len(bases))
	return nil
}

func seedCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("seed", out)
	date := fs.String("date", "", "effective from (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	asOf, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	n, err := b.Rates.SeedDefaults(ctx, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d default rates\n", n)
	return nil
}

func balanceCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("balance", out)
	account := fs.String("account", "", "account id")
	currency := fs.String("currency", "USD", "target currency")
	date := fs.String("as-of", "", "include transactions up to this date (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		return fmt.Errorf("%w: -account is required", errUsage)
	}
	target, err := core.ParseCurrency(*currency)
	if err != nil {
		return err
	}
	asOf, err := dateOrToday(*date)
	if err != nil {
		return err
	}
	txs, err := b.Store.ListTransactions(ctx, storage.TransactionFilter{AccountID: *account, To: asOf})
	if err != nil {
		return err
	}
	bal, err := b.Engine.ConvertedBalance(ctx, txs, target, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s (%d transactions, as of %s)\n", *account, bal, len(txs), asOf)
	return nil
}

func availableCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("available", out)
	category := fs.String("category", "", "category id")
	period := fs.String("period", "", "budget month YYYY-MM (default current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" {
		return fmt.Errorf("%w: -category is required", errUsage)
	}
	p, err := periodOrCurrent(*period)
	if err != nil {
		return err
	}
	st, err := b.Budgets.Available(ctx, *category, p)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "period\t%s\n", st.Period)
	fmt.Fprintf(tw, "allocated\t%s\n", st.Allocated)
	fmt.Fprintf(tw, "carried over\t%s\n", st.CarriedOver)
	fmt.Fprintf(tw, "spent\t%s\n", st.Spent)
	fmt.Fprintf(tw, "available\t%s\n", st.Available)
	fmt.Fprintf(tw, "health\t%s\n", st.Health)
	return tw.Flush()
}

func reportCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("report", out)
	period := fs.String("period", "", "month YYYY-MM (default current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := periodOrCurrent(*period)
	if err != nil {
		return err
	}
	ov, err := b.Reports.MonthOverview(ctx, p)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "income\t%s\n", ov.Income)
	fmt.Fprintf(tw, "expenses\t%s\n", ov.Expenses)
	fmt.Fprintf(tw, "net\t%s\n", ov.Net)
	for _, c := range ov.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\n", c.CategoryID, c.Amount)
	}
	return tw.Flush()
}

func materializeCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("materialize", out)
	id := fs.String("template", "", "recurring template id")
	through := fs.String("through", "", "materialize up to this date (default today)")
	dryRun := fs.Bool("dry-run", false, "list occurrences without writing them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -template is required", errUsage)
	}
	limit, err := dateOrToday(*through)
	if err != nil {
		return err
	}
	tmpl, err := b.Store.GetTemplate(ctx, *id)
	if err != nil {
		return err
	}

	if *dryRun {
		txs, err := b.Recurring.DryRun(ctx, tmpl, limit)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Fprintf(out, "%s  %s  %s\n", tx.OccurredOn, tx.Amount, tx.Description)
		}
		fmt.Fprintf(out, "%d occurrences would be created\n", len(txs))
		return nil
	}

	res, err := b.Recurring.Materialize(ctx, &tmpl, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d, skipped %d, materialized through %s\n", len(res.Created), res.Skipped, res.Through)
	if res.Capped {
		fmt.Fprintln(out, "occurrence cap reached; run again to continue")
	}
	return nil
}

func upcomingCmd(ctx context.Context, b *backend.Backend, args []string, out io.Writer) error {
	fs := newFlagSet("upcoming", out)
	days := fs.Int("days", 30, "look-ahead window in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	templates, err := b.Store.ListActiveTemplates(ctx)
	if err != nil {
		return err
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	for _, o := range b.Recurring.Upcoming(ctx, templates, today(), *days) {
		fmt.Fprintf(out, "%s  %s  %s\n", o.Date, o.Amount, o.Description)
	}
	return nil
}
