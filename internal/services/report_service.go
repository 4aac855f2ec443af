package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage"
)

// ReportService builds period summaries in a single reporting currency.
type ReportService struct {
	transactions storage.TransactionStore
	engine       *ledger.Engine
	currency     core.Currency
}

func NewReportService(transactions storage.TransactionStore, engine *ledger.Engine, currency core.Currency) *ReportService {
	return &ReportService{transactions: transactions, engine: engine, currency: currency}
}

// MonthOverview totals income, expenses and net per category for a month.
// Transfers between accounts count towards neither income nor expenses.
func (s *ReportService) MonthOverview(ctx context.Context, period core.Period) (core.MonthOverview, error) {
	txs, err := s.monthTransactions(ctx, period, "")
	if err != nil {
		return core.MonthOverview{}, err
	}
	return s.overview(ctx, period, txs)
}

func (s *ReportService) monthTransactions(ctx context.Context, period core.Period, categoryID string) ([]core.Transaction, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListTransactions(ctx, storage.TransactionFilter{
		CategoryID: categoryID,
		From:       period.Start(),
		To:         period.End(),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", period, err)
	}
	return txs, nil
}

func (s *ReportService) overview(ctx context.Context, period core.Period, txs []core.Transaction) (core.MonthOverview, error) {
	var inflows, outflows, categorized []core.Transaction
	for _, tx := range txs {
		if tx.IsTransfer() {
			continue
		}
		categorized = append(categorized, tx)
		if tx.Amount.IsNegative() {
			outflows = append(outflows, tx)
		} else {
			inflows = append(inflows, tx)
		}
	}

	income, err := s.engine.ConvertedBalance(ctx, inflows, s.currency, period.End())
	if err != nil {
		return core.MonthOverview{}, err
	}
	spent, err := s.engine.ConvertedBalance(ctx, outflows, s.currency, period.End())
	if err != nil {
		return core.MonthOverview{}, err
	}
	byCategory, err := s.engine.Balances(ctx, categorized, s.currency, period.End(), ledger.ByCategory)
	if err != nil {
		return core.MonthOverview{}, err
	}

	ov := core.MonthOverview{
		Period:   period,
		Income:   income,
		Expenses: spent.Neg(),
	}
	if ov.Net, err = income.Add(spent); err != nil {
		return core.MonthOverview{}, err
	}
	for id, amount := range byCategory {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{CategoryID: id, Amount: amount})
	}
	// Largest net outflow first.
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		c, _ := ov.ByCategory[i].Amount.Cmp(ov.ByCategory[j].Amount)
		if c != 0 {
			return c < 0
		}
		return ov.ByCategory[i].CategoryID < ov.ByCategory[j].CategoryID
	})
	return ov, nil
}

// spending returns each category's outflows in period as positive amounts,
// with the number of outflow transactions behind each.
func (s *ReportService) spending(ctx context.Context, period core.Period, txs []core.Transaction) (map[string]core.MonthSpend, error) {
	var outflows []core.Transaction
	counts := map[string]int{}
	for _, tx := range txs {
		if tx.IsTransfer() || !tx.Amount.IsNegative() {
			continue
		}
		outflows = append(outflows, tx)
		counts[tx.CategoryID]++
	}
	byCategory, err := s.engine.Balances(ctx, outflows, s.currency, period.End(), ledger.ByCategory)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.MonthSpend, len(byCategory))
	for id, amount := range byCategory {
		out[id] = core.MonthSpend{Period: period, Spent: amount.Neg(), Count: counts[id]}
	}
	return out, nil
}

// YearOverview reports every month of year plus a spending trend per
// category, comparing the second half of the year with the first.
func (s *ReportService) YearOverview(ctx context.Context, year int) (core.YearOverview, error) {
	yo := core.YearOverview{
		Year:     year,
		Income:   core.Zero(s.currency),
		Expenses: core.Zero(s.currency),
	}
	monthly := map[string][]core.MonthSpend{}
	for m := 1; m <= 12; m++ {
		p := core.Period{Year: year, Month: m}
		txs, err := s.monthTransactions(ctx, p, "")
		if err != nil {
			return core.YearOverview{}, err
		}
		ov, err := s.overview(ctx, p, txs)
		if err != nil {
			return core.YearOverview{}, err
		}
		yo.Months = append(yo.Months, ov)
		if yo.Income, err = yo.Income.Add(ov.Income); err != nil {
			return core.YearOverview{}, err
		}
		if yo.Expenses, err = yo.Expenses.Add(ov.Expenses); err != nil {
			return core.YearOverview{}, err
		}

		spend, err := s.spending(ctx, p, txs)
		if err != nil {
			return core.YearOverview{}, err
		}
		for id, ms := range spend {
			if id == "" {
				continue
			}
			if monthly[id] == nil {
				monthly[id] = make([]core.MonthSpend, 12)
			}
			monthly[id][m-1] = ms
		}
	}
	net, err := yo.Income.Sub(yo.Expenses)
	if err != nil {
		return core.YearOverview{}, err
	}
	yo.Net = net

	for id, months := range monthly {
		for i := range months {
			if months[i].Period.Month == 0 {
				months[i] = core.MonthSpend{Period: core.Period{Year: year, Month: i + 1}, Spent: core.Zero(s.currency)}
			}
		}
		ct, err := s.trend(id, months, months[:6], months[6:])
		if err != nil {
			return core.YearOverview{}, err
		}
		yo.Categories = append(yo.Categories, ct)
	}
	sort.Slice(yo.Categories, func(i, j int) bool {
		c, _ := yo.Categories[i].Total.Cmp(yo.Categories[j].Total)
		if c != 0 {
			return c > 0
		}
		return yo.Categories[i].CategoryID < yo.Categories[j].CategoryID
	})
	return yo, nil
}

// CategoryTrend reports a category's spending for the months consecutive
// months ending with through. With at least six months, the last three are
// compared against the ones before them.
func (s *ReportService) CategoryTrend(ctx context.Context, categoryID string, through core.Period, months int) (core.CategoryTrend, error) {
	if categoryID == "" {
		return core.CategoryTrend{}, errors.New("category is required")
	}
	if months <= 0 {
		return core.CategoryTrend{}, fmt.Errorf("%w: months must be positive, got %d", core.ErrInvalidPeriod, months)
	}
	if err := through.Validate(); err != nil {
		return core.CategoryTrend{}, err
	}

	series := make([]core.MonthSpend, months)
	p := through
	for i := months - 1; i >= 0; i-- {
		txs, err := s.monthTransactions(ctx, p, categoryID)
		if err != nil {
			return core.CategoryTrend{}, err
		}
		spend, err := s.spending(ctx, p, txs)
		if err != nil {
			return core.CategoryTrend{}, err
		}
		ms, ok := spend[categoryID]
		if !ok {
			ms = core.MonthSpend{Period: p, Spent: core.Zero(s.currency)}
		}
		series[i] = ms
		p = p.Prev()
	}

	var older, recent []core.MonthSpend
	if months >= 6 {
		older, recent = series[:months-3], series[months-3:]
	}
	return s.trend(categoryID, series, older, recent)
}

func (s *ReportService) trend(categoryID string, series, older, recent []core.MonthSpend) (core.CategoryTrend, error) {
	ct := core.CategoryTrend{
		CategoryID: categoryID,
		Months:     series,
		Total:      core.Zero(s.currency),
		Direction:  core.TrendStable,
	}
	var err error
	for _, ms := range series {
		if ct.Total, err = ct.Total.Add(ms.Spent); err != nil {
			return core.CategoryTrend{}, err
		}
	}
	ct.AverageMonthly, err = core.NewMoney(average(series), s.currency)
	if err != nil {
		return core.CategoryTrend{}, err
	}
	if len(older) == 0 || len(recent) == 0 {
		return ct, nil
	}

	// A move of more than ten percent either way counts as a trend.
	before, after := average(older), average(recent)
	switch {
	case after.GreaterThan(before.Mul(decimal.RequireFromString("1.1"))):
		ct.Direction = core.TrendIncreasing
	case after.LessThan(before.Mul(decimal.RequireFromString("0.9"))):
		ct.Direction = core.TrendDecreasing
	}
	return ct, nil
}

func average(series []core.MonthSpend) decimal.Decimal {
	if len(series) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, ms := range series {
		sum = sum.Add(ms.Spent.Amount())
	}
	return sum.Div(decimal.NewFromInt(int64(len(series))))
}
