package storage

import (
	"context"

	"fintrack/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero fields are ignored; From
// and To are inclusive.
type TransactionFilter struct {
	AccountID  string
	CategoryID string
	TemplateID string
	From       core.Date
	To         core.Date
	IDs        []string
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

type TemplateStore interface {
	CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
	SetTemplateActive(ctx context.Context, id string, active bool) error
	// OccurrenceDates returns the dates that already have a transaction
	// linked to the template within [from, to].
	OccurrenceDates(ctx context.Context, templateID string, from, to core.Date) (map[string]bool, error)
	// CommitMaterialization inserts txs and moves the watermark from prev to
	// next in one database transaction. It returns the transactions actually
	// inserted; occurrences that already exist are skipped. ErrWatermarkMoved
	// is returned when the stored watermark no longer equals prev.
	CommitMaterialization(ctx context.Context, templateID string, prev, next core.Date, txs []core.Transaction) ([]core.Transaction, error)
}

type RateStore interface {
	// SaveRate appends an observation. ErrRateExists is returned when one
	// with the same (base, quote, as_of, source) is already stored.
	SaveRate(ctx context.Context, r core.ExchangeRate) error
	// LatestRate returns the newest observation at or before asOf among the
	// given sources (all sources when none are given), or core.ErrNotFound.
	LatestRate(ctx context.Context, base, quote core.Currency, asOf core.Date, sources ...core.RateSource) (core.ExchangeRate, error)
	ListRates(ctx context.Context, base core.Currency) ([]core.ExchangeRate, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

type AllocationStore interface {
	GetAllocation(ctx context.Context, categoryID string, p core.Period) (core.Allocation, error)
	ListAllocations(ctx context.Context, p core.Period) ([]core.Allocation, error)
	// SaveAllocations upserts all allocations atomically.
	SaveAllocations(ctx context.Context, allocs ...core.Allocation) error
}

type MilestoneStore interface {
	CreateMilestone(ctx context.Context, m core.Milestone) (core.Milestone, error)
	GetMilestone(ctx context.Context, id string) (core.Milestone, error)
	ListMilestones(ctx context.Context) ([]core.Milestone, error)
	// UpdateMilestoneProgress writes m only if the stored current amount
	// still equals prevCurrent.
	UpdateMilestoneProgress(ctx context.Context, m core.Milestone, prevCurrent core.Money) error
}

type ReconciliationStore interface {
	CreateReconciliation(ctx context.Context, r core.Reconciliation) (core.Reconciliation, error)
	GetReconciliation(ctx context.Context, id string) (core.Reconciliation, error)
	SetItemCleared(ctx context.Context, reconciliationID, itemID string, cleared bool) error
	SaveReconciliationBalances(ctx context.Context, r core.Reconciliation) error
}

var (
	_ TransactionStore    = (*Store)(nil)
	_ TemplateStore       = (*Store)(nil)
	_ RateStore           = (*Store)(nil)
	_ CategoryStore       = (*Store)(nil)
	_ AllocationStore     = (*Store)(nil)
	_ MilestoneStore      = (*Store)(nil)
	_ ReconciliationStore = (*Store)(nil)
)
