package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ids"
)

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return core.Category{}, errors.New("empty category name")
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	if _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO categories (id, name) VALUES (?, ?)`), c.ID, c.Name); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetAllocation(ctx context.Context, categoryID string, p core.Period) (core.Allocation, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT category_id, period, amount_minor, currency
		FROM allocations WHERE category_id = ? AND period = ?`), categoryID, p.String())
	a, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Allocation{}, fmt.Errorf("allocation %s %s: %w", categoryID, p, core.ErrNotFound)
	}
	return a, err
}

func (s *Store) ListAllocations(ctx context.Context, p core.Period) ([]core.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT category_id, period, amount_minor, currency
		FROM allocations WHERE period = ? ORDER BY category_id`), p.String())
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []core.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveAllocations(ctx context.Context, allocs ...core.Allocation) error {
	for _, a := range allocs {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range allocs {
			_, err := tx.ExecContext(ctx, s.q(`INSERT INTO allocations (category_id, period, amount_minor, currency)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (category_id, period) DO UPDATE
				SET amount_minor = excluded.amount_minor, currency = excluded.currency`),
				a.CategoryID, a.Period.String(), a.Allocated.Minor(), string(a.Allocated.Currency()))
			if err != nil {
				return fmt.Errorf("save allocation %s %s: %w", a.CategoryID, a.Period, err)
			}
		}
		return nil
	})
}

func scanAllocation(r rowScanner) (core.Allocation, error) {
	var (
		a        core.Allocation
		period   string
		minor    int64
		currency string
	)
	if err := r.Scan(&a.CategoryID, &period, &minor, &currency); err != nil {
		return core.Allocation{}, err
	}
	p, err := core.ParsePeriod(strings.TrimSpace(period))
	if err != nil {
		return core.Allocation{}, err
	}
	amount, err := money(minor, strings.TrimSpace(currency))
	if err != nil {
		return core.Allocation{}, err
	}
	a.Period = p
	a.Allocated = amount
	return a, nil
}
