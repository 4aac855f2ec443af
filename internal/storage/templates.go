package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/ids"
	"fintrack/internal/log"
)

const templateColumns = `id, account_id, category_id, amount_minor, currency, description, interval_unit, interval_every, start_date, end_date, last_materialized_through, active`

func (s *Store) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	if err := t.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	t.Active = true

	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.AccountID, nullString(t.CategoryID),
		t.Amount.Minor(), string(t.Amount.Currency()),
		t.Description, string(t.Rule.Unit), t.Rule.Every,
		dateArg(t.StartDate), dateArg(t.EndDate), dateArg(t.LastMaterializedThrough),
		t.Active)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("insert recurring template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved",
		log.FieldTemplateID, t.ID,
		"rule", t.Rule.String(),
		log.FieldAmount, t.Amount.String(),
		"start_date", t.StartDate.String())
	return t, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`), id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+templateColumns+` FROM recurring_templates WHERE active = ? ORDER BY id`), true)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE recurring_templates SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) OccurrenceDates(ctx context.Context, templateID string, from, to core.Date) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT occurred_on FROM transactions
		WHERE recurring_template_id = ? AND occurred_on >= ? AND occurred_on <= ?`),
		templateID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var d dateCol
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[d.String()] = true
	}
	return out, rows.Err()
}

func (s *Store) CommitMaterialization(ctx context.Context, templateID string, prev, next core.Date, txs []core.Transaction) ([]core.Transaction, error) {
	var inserted []core.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Compare-and-set on the watermark serializes concurrent runs.
		query := `UPDATE recurring_templates SET last_materialized_through = ? WHERE id = ? AND last_materialized_through = ?`
		args := []any{dateArg(next), templateID, dateArg(prev)}
		if prev.IsZero() {
			query = `UPDATE recurring_templates SET last_materialized_through = ? WHERE id = ? AND last_materialized_through IS NULL`
			args = args[:2]
		}
		res, err := tx.ExecContext(ctx, s.q(query), args...)
		if err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrWatermarkMoved
		}

		for _, t := range txs {
			if t.ID == "" {
				t.ID = ids.New()
			}
			t.Tags = core.NormalizeTags(t.Tags)
			n, err := s.insertTransaction(ctx, tx, t, true)
			if err != nil {
				return err
			}
			if n == 0 {
				slog.DebugContext(ctx, "Occurrence already materialized",
					log.FieldTemplateID, templateID, "occurred_on", t.OccurredOn.String())
				continue
			}
			inserted = append(inserted, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func scanTemplate(r rowScanner) (core.RecurringTemplate, error) {
	var (
		t         core.RecurringTemplate
		category  sql.NullString
		minor     int64
		currency  string
		unit      string
		start     dateCol
		end       dateCol
		watermark dateCol
	)
	if err := r.Scan(&t.ID, &t.AccountID, &category, &minor, &currency, &t.Description,
		&unit, &t.Rule.Every, &start, &end, &watermark, &t.Active); err != nil {
		return core.RecurringTemplate{}, err
	}
	amount, err := money(minor, currency)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", t.ID, err)
	}
	t.CategoryID = category.String
	t.Amount = amount
	t.Rule.Unit = core.IntervalUnit(unit)
	t.StartDate = start.Date
	t.EndDate = end.Date
	t.LastMaterializedThrough = watermark.Date
	return t, nil
}
