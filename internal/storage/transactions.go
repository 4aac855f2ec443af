package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ids"
	"fintrack/internal/log"
)

const transactionColumns = `id, account_id, category_id, amount_minor, currency, occurred_on, description, tags, recurring_template_id`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	t.Tags = core.NormalizeTags(t.Tags)

	n, err := s.insertTransaction(ctx, s.db, t, t.RecurringTemplateID != "")
	if err != nil {
		return core.Transaction{}, err
	}
	if n == 0 {
		return core.Transaction{}, core.ErrMaterializationConflict
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", t.ID,
		log.FieldAccountID, t.AccountID,
		log.FieldAmount, t.Amount.String(),
		"occurred_on", t.OccurredOn.String())
	return t, nil
}

// insertTransaction returns the number of inserted rows. With skipConflicts
// an existing (template, date) pair is ignored instead of failing.
func (s *Store) insertTransaction(ctx context.Context, ex execer, t core.Transaction, skipConflicts bool) (int64, error) {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return 0, fmt.Errorf("encode tags: %w", err)
	}
	if t.Tags == nil {
		tags = []byte("[]")
	}

	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if skipConflicts {
		query += ` ON CONFLICT DO NOTHING`
	}
	res, err := ex.ExecContext(ctx, s.q(query),
		t.ID, t.AccountID, nullString(t.CategoryID),
		t.Amount.Minor(), string(t.Amount.Currency()),
		dateArg(t.OccurredOn), t.Description, string(tags),
		nullString(t.RecurringTemplateID))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.TemplateID != "" {
		where = append(where, "recurring_template_id = ?")
		args = append(args, f.TemplateID)
	}
	if !f.From.IsZero() {
		where = append(where, "occurred_on >= ?")
		args = append(args, dateArg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_on <= ?")
		args = append(args, dateArg(f.To))
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(f.IDs)-1)+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY occurred_on, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		category   sql.NullString
		template   sql.NullString
		minor      int64
		currency   string
		occurredOn dateCol
		tags       string
	)
	if err := r.Scan(&t.ID, &t.AccountID, &category, &minor, &currency, &occurredOn, &t.Description, &tags, &template); err != nil {
		return core.Transaction{}, err
	}
	amount, err := money(minor, currency)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %s tags: %w", t.ID, err)
		}
	}
	t.CategoryID = category.String
	t.RecurringTemplateID = template.String
	t.Amount = amount
	t.OccurredOn = occurredOn.Date
	return t, nil
}
