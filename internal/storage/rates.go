package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func (s *Store) SaveRate(ctx context.Context, r core.ExchangeRate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`INSERT INTO exchange_rates (base, quote, as_of, source, rate)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		string(r.Base), string(r.Quote), dateArg(r.AsOf), string(r.Source), r.Rate.String())
	if err != nil {
		return fmt.Errorf("insert exchange rate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s %s %s: %w", r.Base, r.Quote, r.AsOf, r.Source, core.ErrRateExists)
	}
	return nil
}

func (s *Store) LatestRate(ctx context.Context, base, quote core.Currency, asOf core.Date, sources ...core.RateSource) (core.ExchangeRate, error) {
	query := `SELECT base, quote, as_of, source, rate FROM exchange_rates
		WHERE base = ? AND quote = ? AND as_of <= ?`
	args := []any{string(base), string(quote), dateArg(asOf)}
	if len(sources) > 0 {
		query += ` AND source IN (?` + strings.Repeat(", ?", len(sources)-1) + `)`
		for _, src := range sources {
			args = append(args, string(src))
		}
	}
	// Manual beats live for the same day.
	query += ` ORDER BY as_of DESC, CASE source WHEN 'manual' THEN 0 WHEN 'live' THEN 1 ELSE 2 END LIMIT 1`

	r, err := scanRate(s.db.QueryRowContext(ctx, s.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExchangeRate{}, core.ErrNotFound
	}
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("query exchange rate: %w", err)
	}
	return r, nil
}

func (s *Store) ListRates(ctx context.Context, base core.Currency) ([]core.ExchangeRate, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT base, quote, as_of, source, rate FROM exchange_rates
		WHERE base = ? ORDER BY quote, as_of DESC`), string(base))
	if err != nil {
		return nil, fmt.Errorf("list exchange rates: %w", err)
	}
	defer rows.Close()

	var out []core.ExchangeRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRate(row rowScanner) (core.ExchangeRate, error) {
	var (
		r           core.ExchangeRate
		base, quote string
		source      string
		asOf        dateCol
		rate        decimal.Decimal
	)
	if err := row.Scan(&base, &quote, &asOf, &source, &rate); err != nil {
		return core.ExchangeRate{}, err
	}
	r.Base = core.Currency(strings.TrimSpace(base))
	r.Quote = core.Currency(strings.TrimSpace(quote))
	r.AsOf = asOf.Date
	r.Source = core.RateSource(source)
	r.Rate = rate
	return r, nil
}
