package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"fintrack/internal/core"
)

func TestRebind(t *testing.T) {
	cases := map[string]string{
		"SELECT 1":                         "SELECT 1",
		"WHERE a = ?":                      "WHERE a = $1",
		"VALUES (?, ?, ?)":                 "VALUES ($1, $2, $3)",
		"WHERE a = ? AND b IN (?, ?) OR ?": "WHERE a = $1 AND b IN ($2, $3) OR $4",
	}
	for in, want := range cases {
		if got := rebind(in); got != want {
			t.Errorf("rebind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPostgresCommitMaterialization(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := New(db, Postgres)

	prev, next := core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29)
	tx := core.Transaction{
		ID:                  "01HTX",
		AccountID:           "checking",
		Amount:              core.FromMinor(-120000, core.USD),
		OccurredOn:          next,
		RecurringTemplateID: "tmpl",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recurring_templates SET last_materialized_through = $1 WHERE id = $2 AND last_materialized_through = $3")).
		WithArgs("2024-02-29", "tmpl", "2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")+".*ON CONFLICT DO NOTHING").
		WithArgs("01HTX", "checking", nil, int64(-120000), "USD", "2024-02-29", "", "[]", "tmpl").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := s.CommitMaterialization(context.Background(), "tmpl", prev, next, []core.Transaction{tx})
	if err != nil {
		t.Fatalf("CommitMaterialization: %v", err)
	}
	if len(inserted) != 1 {
		t.Errorf("inserted %d, want 1", len(inserted))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCommitMaterializationLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND last_materialized_through IS NULL")).
		WithArgs("2024-02-29", "tmpl").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = s.CommitMaterialization(context.Background(), "tmpl", core.Date{}, core.NewDate(2024, 2, 29), nil)
	if !errors.Is(err, ErrWatermarkMoved) {
		t.Fatalf("CommitMaterialization error = %v, want ErrWatermarkMoved", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresLatestRate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := New(db, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE base = $1 AND quote = $2 AND as_of <= $3 AND source IN ($4)")).
		WithArgs("USD", "KES", "2024-03-15", "manual").
		WillReturnRows(sqlmock.NewRows([]string{"base", "quote", "as_of", "source", "rate"}).
			AddRow("USD", "KES", "2024-03-01", "manual", "150.000000000000"))

	r, err := s.LatestRate(context.Background(), core.USD, core.KES, core.NewDate(2024, 3, 15), core.SourceManual)
	if err != nil {
		t.Fatalf("LatestRate: %v", err)
	}
	if r.Rate.String() != "150" || !r.AsOf.Equal(core.NewDate(2024, 3, 1)) {
		t.Errorf("LatestRate() = %+v", r)
	}

	mock.ExpectQuery("FROM exchange_rates").WillReturnRows(sqlmock.NewRows([]string{"base", "quote", "as_of", "source", "rate"}))
	if _, err := s.LatestRate(context.Background(), core.EUR, core.KES, core.NewDate(2024, 3, 15)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LatestRate() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
