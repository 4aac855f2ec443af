package core

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string
	Amount     Money
}

// MonthOverview is a compact summary for a specific year+month, with all
// amounts in the reporting currency.
type MonthOverview struct {
	Period     Period
	Income     Money
	Expenses   Money
	Net        Money
	ByCategory []CategoryAmount
}

// Trend classifies how spending moved between an earlier and a later window.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// MonthSpend is one month of outflows for a category, as a positive amount.
type MonthSpend struct {
	Period Period
	Spent  Money
	Count  int
}

// CategoryTrend is a category's spending over consecutive months.
type CategoryTrend struct {
	CategoryID     string
	Months         []MonthSpend
	Total          Money
	AverageMonthly Money
	Direction      Trend
}

// YearOverview rolls up twelve month overviews. Categories are ordered by
// total spending, largest first.
type YearOverview struct {
	Year       int
	Income     Money
	Expenses   Money
	Net        Money
	Months     []MonthOverview
	Categories []CategoryTrend
}
