package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCategory(t *testing.T, s *Store, name string) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("OpenSQLite run %d: %v", i, err)
		}
		s.Close()
	}
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	food := mustCategory(t, s, "Food")

	created, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID:   "checking",
		CategoryID:  food.ID,
		Amount:      core.FromMinor(-1250, core.USD),
		OccurredOn:  core.NewDate(2024, 3, 5),
		Description: "groceries",
		Tags:        []string{"Weekly", "weekly", "food"},
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("CreateTransaction did not assign an id")
	}

	if _, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID:  "savings",
		Amount:     core.FromMinor(100000, core.KES),
		OccurredOn: core.NewDate(2024, 4, 1),
	}); err != nil {
		t.Fatalf("CreateTransaction transfer: %v", err)
	}

	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !got.Amount.Equal(created.Amount) || !got.OccurredOn.Equal(created.OccurredOn) {
		t.Errorf("GetTransaction() = %+v, want %+v", got, created)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "food" || got.Tags[1] != "weekly" {
		t.Errorf("GetTransaction().Tags = %v, want [food weekly]", got.Tags)
	}

	cases := []struct {
		name string
		f    TransactionFilter
		want int
	}{
		{"all", TransactionFilter{}, 2},
		{"by account", TransactionFilter{AccountID: "checking"}, 1},
		{"by category", TransactionFilter{CategoryID: food.ID}, 1},
		{"march only", TransactionFilter{From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 31)}, 1},
		{"by ids", TransactionFilter{IDs: []string{created.ID, "missing"}}, 1},
		{"empty range", TransactionFilter{From: core.NewDate(2025, 1, 1)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := s.ListTransactions(ctx, tc.f)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(list) != tc.want {
				t.Errorf("ListTransactions() returned %d, want %d", len(list), tc.want)
			}
		})
	}

	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := s.GetTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction after delete error = %v, want ErrNotFound", err)
	}
}

func newTemplate(t *testing.T, s *Store) core.RecurringTemplate {
	t.Helper()
	rent := mustCategory(t, s, "Rent")
	tmpl, err := s.CreateTemplate(context.Background(), core.RecurringTemplate{
		AccountID:   "checking",
		CategoryID:  rent.ID,
		Amount:      core.FromMinor(-120000, core.USD),
		Description: "rent",
		Rule:        core.IntervalRule{Unit: core.Month, Every: 1},
		StartDate:   core.NewDate(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return tmpl
}

func occurrence(tmpl core.RecurringTemplate, d core.Date) core.Transaction {
	return core.Transaction{
		AccountID:           tmpl.AccountID,
		CategoryID:          tmpl.CategoryID,
		Amount:              tmpl.Amount,
		OccurredOn:          d,
		Description:         tmpl.Description,
		RecurringTemplateID: tmpl.ID,
	}
}

func TestCommitMaterialization(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tmpl := newTemplate(t, s)

	jan, feb := core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29)
	inserted, err := s.CommitMaterialization(ctx, tmpl.ID, core.Date{}, feb,
		[]core.Transaction{occurrence(tmpl, jan), occurrence(tmpl, feb)})
	if err != nil {
		t.Fatalf("CommitMaterialization: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("inserted %d transactions, want 2", len(inserted))
	}

	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if !got.LastMaterializedThrough.Equal(feb) {
		t.Errorf("watermark = %s, want %s", got.LastMaterializedThrough, feb)
	}

	// A second run holding the old watermark loses the race.
	if _, err := s.CommitMaterialization(ctx, tmpl.ID, core.Date{}, feb, nil); !errors.Is(err, ErrWatermarkMoved) {
		t.Errorf("stale CommitMaterialization error = %v, want ErrWatermarkMoved", err)
	}

	// Existing occurrences are skipped, new ones inserted.
	mar := core.NewDate(2024, 3, 31)
	inserted, err = s.CommitMaterialization(ctx, tmpl.ID, feb, mar,
		[]core.Transaction{occurrence(tmpl, feb), occurrence(tmpl, mar)})
	if err != nil {
		t.Fatalf("CommitMaterialization: %v", err)
	}
	if len(inserted) != 1 || !inserted[0].OccurredOn.Equal(mar) {
		t.Errorf("inserted = %+v, want only %s", inserted, mar)
	}

	dates, err := s.OccurrenceDates(ctx, tmpl.ID, jan, mar)
	if err != nil {
		t.Fatalf("OccurrenceDates: %v", err)
	}
	for _, d := range []core.Date{jan, feb, mar} {
		if !dates[d.String()] {
			t.Errorf("OccurrenceDates() missing %s", d)
		}
	}

	if _, err := s.CreateTransaction(ctx, occurrence(tmpl, mar)); !errors.Is(err, core.ErrMaterializationConflict) {
		t.Errorf("duplicate occurrence error = %v, want ErrMaterializationConflict", err)
	}
}

func TestTemplateActive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tmpl := newTemplate(t, s)

	active, err := s.ListActiveTemplates(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActiveTemplates() = %d, %v, want 1", len(active), err)
	}
	if active[0].Rule != tmpl.Rule || !active[0].StartDate.Equal(tmpl.StartDate) || !active[0].EndDate.IsZero() {
		t.Errorf("ListActiveTemplates()[0] = %+v", active[0])
	}

	if err := s.SetTemplateActive(ctx, tmpl.ID, false); err != nil {
		t.Fatalf("SetTemplateActive: %v", err)
	}
	active, _ = s.ListActiveTemplates(ctx)
	if len(active) != 0 {
		t.Errorf("ListActiveTemplates() after deactivate = %d, want 0", len(active))
	}
	if err := s.SetTemplateActive(ctx, "missing", true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetTemplateActive(missing) error = %v", err)
	}
}

func TestRates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	save := func(day int, src core.RateSource, rate string) error {
		return s.SaveRate(ctx, core.ExchangeRate{
			Base: core.USD, Quote: core.KES, Rate: decimal.RequireFromString(rate),
			AsOf: core.NewDate(2024, 3, day), Source: src,
		})
	}
	if err := save(1, core.SourceManual, "150"); err != nil {
		t.Fatal(err)
	}
	if err := save(10, core.SourceLive, "129.5"); err != nil {
		t.Fatal(err)
	}
	if err := save(10, core.SourceManual, "130"); err != nil {
		t.Fatal(err)
	}
	if err := save(1, core.SourceManual, "151"); !errors.Is(err, core.ErrRateExists) {
		t.Errorf("duplicate SaveRate error = %v, want ErrRateExists", err)
	}

	cases := []struct {
		name    string
		day     int
		sources []core.RateSource
		want    string
		source  core.RateSource
	}{
		{"manual before live on same day", 15, nil, "130", core.SourceManual},
		{"live only", 15, []core.RateSource{core.SourceLive}, "129.5", core.SourceLive},
		{"manual at or before", 5, []core.RateSource{core.SourceManual}, "150", core.SourceManual},
		{"exact day", 1, nil, "150", core.SourceManual},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := s.LatestRate(ctx, core.USD, core.KES, core.NewDate(2024, 3, tc.day), tc.sources...)
			if err != nil {
				t.Fatalf("LatestRate: %v", err)
			}
			if !r.Rate.Equal(decimal.RequireFromString(tc.want)) || r.Source != tc.source {
				t.Errorf("LatestRate() = %s (%s), want %s (%s)", r.Rate, r.Source, tc.want, tc.source)
			}
		})
	}

	if _, err := s.LatestRate(ctx, core.USD, core.KES, core.NewDate(2024, 2, 28)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LatestRate before first observation error = %v, want ErrNotFound", err)
	}
	if _, err := s.LatestRate(ctx, core.KES, core.USD, core.NewDate(2024, 3, 15)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LatestRate reverse pair error = %v, want ErrNotFound", err)
	}

	list, err := s.ListRates(ctx, core.USD)
	if err != nil || len(list) != 3 {
		t.Errorf("ListRates() = %d, %v, want 3", len(list), err)
	}
}

func TestAllocations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	food := mustCategory(t, s, "Food")
	fun := mustCategory(t, s, "Fun")
	p := core.Period{Year: 2024, Month: 3}

	if err := s.SaveAllocations(ctx,
		core.Allocation{CategoryID: food.ID, Period: p, Allocated: core.FromMinor(50000, core.USD)},
		core.Allocation{CategoryID: fun.ID, Period: p, Allocated: core.FromMinor(10000, core.USD)},
	); err != nil {
		t.Fatalf("SaveAllocations: %v", err)
	}
	if err := s.SaveAllocations(ctx, core.Allocation{CategoryID: food.ID, Period: p, Allocated: core.FromMinor(45000, core.USD)}); err != nil {
		t.Fatalf("SaveAllocations update: %v", err)
	}

	a, err := s.GetAllocation(ctx, food.ID, p)
	if err != nil {
		t.Fatalf("GetAllocation: %v", err)
	}
	if !a.Allocated.Equal(core.FromMinor(45000, core.USD)) || a.Period != p {
		t.Errorf("GetAllocation() = %+v", a)
	}

	list, err := s.ListAllocations(ctx, p)
	if err != nil || len(list) != 2 {
		t.Errorf("ListAllocations() = %d, %v, want 2", len(list), err)
	}
	if _, err := s.GetAllocation(ctx, food.ID, p.Next()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAllocation(next) error = %v, want ErrNotFound", err)
	}
}

func TestMilestones(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.CreateMilestone(ctx, core.Milestone{Name: "Car", Target: core.FromMinor(500000, core.EUR)})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	prev := m.Current
	m.Current = core.FromMinor(10000, core.EUR)
	if err := s.UpdateMilestoneProgress(ctx, m, prev); err != nil {
		t.Fatalf("UpdateMilestoneProgress: %v", err)
	}
	if err := s.UpdateMilestoneProgress(ctx, m, prev); !errors.Is(err, ErrStaleMilestone) {
		t.Errorf("stale UpdateMilestoneProgress error = %v, want ErrStaleMilestone", err)
	}

	got, err := s.GetMilestone(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMilestone: %v", err)
	}
	if !got.Current.Equal(core.FromMinor(10000, core.EUR)) || got.Completed {
		t.Errorf("GetMilestone() = %+v", got)
	}
	list, err := s.ListMilestones(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("ListMilestones() = %d, %v", len(list), err)
	}
}

func TestReconciliations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tx, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID: "checking", Amount: core.FromMinor(-2000, core.USD), OccurredOn: core.NewDate(2024, 3, 2),
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.CreateReconciliation(ctx, core.Reconciliation{
		AccountID:        "checking",
		StatementDate:    core.NewDate(2024, 3, 31),
		StatementBalance: core.FromMinor(-2000, core.USD),
		BookBalance:      core.Zero(core.USD),
		Difference:       core.FromMinor(-2000, core.USD),
		Items:            []core.ReconciliationItem{{TransactionID: tx.ID}},
	})
	if err != nil {
		t.Fatalf("CreateReconciliation: %v", err)
	}
	if err := s.SetItemCleared(ctx, r.ID, r.Items[0].ID, true); err != nil {
		t.Fatalf("SetItemCleared: %v", err)
	}

	r.BookBalance = core.FromMinor(-2000, core.USD)
	r.Difference = core.Zero(core.USD)
	r.Status = core.ReconciliationCompleted
	if err := s.SaveReconciliationBalances(ctx, r); err != nil {
		t.Fatalf("SaveReconciliationBalances: %v", err)
	}

	got, err := s.GetReconciliation(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReconciliation: %v", err)
	}
	if got.Status != core.ReconciliationCompleted || !got.Difference.IsZero() {
		t.Errorf("GetReconciliation() = %+v", got)
	}
	if ids := got.ClearedIDs(); len(ids) != 1 || ids[0] != tx.ID {
		t.Errorf("ClearedIDs() = %v, want [%s]", ids, tx.ID)
	}
	if err := s.SetItemCleared(ctx, r.ID, "missing", true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetItemCleared(missing) error = %v", err)
	}
}
