package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/ids"
)

// ErrStaleMilestone is returned when progress was recorded concurrently.
var ErrStaleMilestone = errors.New("milestone changed concurrently")

const milestoneColumns = `id, name, target_minor, current_minor, currency, target_date, completed, completed_date`

func (s *Store) CreateMilestone(ctx context.Context, m core.Milestone) (core.Milestone, error) {
	if m.Current.Currency() == "" {
		m.Current = core.Zero(m.Target.Currency())
	}
	if err := m.Validate(); err != nil {
		return core.Milestone{}, err
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO milestones (`+milestoneColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.Name, m.Target.Minor(), m.Current.Minor(), string(m.Target.Currency()),
		dateArg(m.TargetDate), m.Completed, dateArg(m.CompletedDate))
	if err != nil {
		return core.Milestone{}, fmt.Errorf("insert milestone: %w", err)
	}
	return m, nil
}

func (s *Store) GetMilestone(ctx context.Context, id string) (core.Milestone, error) {
	m, err := scanMilestone(s.db.QueryRowContext(ctx, s.q(`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Milestone{}, fmt.Errorf("milestone %s: %w", id, core.ErrNotFound)
	}
	return m, err
}

func (s *Store) ListMilestones(ctx context.Context) ([]core.Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM milestones ORDER BY completed, target_date, name`)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []core.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) UpdateMilestoneProgress(ctx context.Context, m core.Milestone, prevCurrent core.Money) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE milestones
		SET current_minor = ?, completed = ?, completed_date = ?
		WHERE id = ? AND current_minor = ?`),
		m.Current.Minor(), m.Completed, dateArg(m.CompletedDate), m.ID, prevCurrent.Minor())
	if err != nil {
		return fmt.Errorf("update milestone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleMilestone
	}
	return nil
}

func scanMilestone(r rowScanner) (core.Milestone, error) {
	var (
		m                     core.Milestone
		targetMinor, curMinor int64
		currency              string
		targetDate, doneDate  dateCol
	)
	if err := r.Scan(&m.ID, &m.Name, &targetMinor, &curMinor, &currency, &targetDate, &m.Completed, &doneDate); err != nil {
		return core.Milestone{}, err
	}
	target, err := money(targetMinor, currency)
	if err != nil {
		return core.Milestone{}, err
	}
	m.Target = target
	m.Current = core.FromMinor(curMinor, target.Currency())
	m.TargetDate = targetDate.Date
	m.CompletedDate = doneDate.Date
	return m, nil
}
