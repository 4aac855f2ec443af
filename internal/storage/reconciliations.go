package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/ids"
)

func (s *Store) CreateReconciliation(ctx context.Context, r core.Reconciliation) (core.Reconciliation, error) {
	if r.ID == "" {
		r.ID = ids.New()
	}
	if r.Status == "" {
		r.Status = core.ReconciliationInProgress
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO reconciliations
			(id, account_id, statement_date, statement_minor, currency, book_minor, difference_minor, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			r.ID, r.AccountID, dateArg(r.StatementDate), r.StatementBalance.Minor(),
			string(r.StatementBalance.Currency()), r.BookBalance.Minor(), r.Difference.Minor(), string(r.Status))
		if err != nil {
			return fmt.Errorf("insert reconciliation: %w", err)
		}
		for i := range r.Items {
			if r.Items[i].ID == "" {
				r.Items[i].ID = ids.New()
			}
			it := r.Items[i]
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO reconciliation_items (id, reconciliation_id, transaction_id, cleared)
				VALUES (?, ?, ?, ?)`), it.ID, r.ID, it.TransactionID, it.Cleared); err != nil {
				return fmt.Errorf("insert reconciliation item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Reconciliation{}, err
	}
	return r, nil
}

func (s *Store) GetReconciliation(ctx context.Context, id string) (core.Reconciliation, error) {
	var (
		r                    core.Reconciliation
		stmtMinor, bookMinor int64
		diffMinor            int64
		currency, status     string
		statementDate        dateCol
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, account_id, statement_date, statement_minor, currency,
		book_minor, difference_minor, status FROM reconciliations WHERE id = ?`), id).
		Scan(&r.ID, &r.AccountID, &statementDate, &stmtMinor, &currency, &bookMinor, &diffMinor, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Reconciliation{}, fmt.Errorf("reconciliation %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("get reconciliation: %w", err)
	}
	stmt, err := money(stmtMinor, currency)
	if err != nil {
		return core.Reconciliation{}, err
	}
	r.StatementDate = statementDate.Date
	r.StatementBalance = stmt
	r.BookBalance = core.FromMinor(bookMinor, stmt.Currency())
	r.Difference = core.FromMinor(diffMinor, stmt.Currency())
	r.Status = core.ReconciliationStatus(status)

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, transaction_id, cleared FROM reconciliation_items
		WHERE reconciliation_id = ? ORDER BY id`), id)
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("list reconciliation items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.ReconciliationItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.Cleared); err != nil {
			return core.Reconciliation{}, err
		}
		r.Items = append(r.Items, it)
	}
	return r, rows.Err()
}

func (s *Store) SetItemCleared(ctx context.Context, reconciliationID, itemID string, cleared bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE reconciliation_items SET cleared = ?
		WHERE id = ? AND reconciliation_id = ?`), cleared, itemID, reconciliationID)
	if err != nil {
		return fmt.Errorf("update reconciliation item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reconciliation item %s: %w", itemID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveReconciliationBalances(ctx context.Context, r core.Reconciliation) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE reconciliations
		SET book_minor = ?, difference_minor = ?, status = ? WHERE id = ?`),
		r.BookBalance.Minor(), r.Difference.Minor(), string(r.Status), r.ID)
	if err != nil {
		return fmt.Errorf("update reconciliation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reconciliation %s: %w", r.ID, core.ErrNotFound)
	}
	return nil
}
