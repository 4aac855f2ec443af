// Package rates resolves exchange rates: manual overrides first, then fresh
// cached observations, then a live fetch, then the newest stale observation.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/obs"
	"fintrack/internal/storage"
)

// Config tunes the provider.
type Config struct {
	// Freshness is how old a stored live observation may be, measured from
	// the requested date, and still be served without a live fetch.
	Freshness time.Duration
	// FetchTimeout bounds a single live fetch.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Freshness <= 0 {
		c.Freshness = 24 * time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Provider is safe for concurrent use. The cache and the singleflight group
// are its only shared mutable state.
type Provider struct {
	store  storage.RateStore
	source Source // nil disables live fetches
	cache  cache.Cache[core.ExchangeRate]
	group  singleflight.Group
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewProvider(store storage.RateStore, source Source, c cache.Cache[core.ExchangeRate], cfg Config, logger *slog.Logger) *Provider {
	if c == nil {
		c = cache.NewLRUCache[core.ExchangeRate](1024, 24*time.Hour)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		source: source,
		cache:  c,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// observed clamps asOf to today. Live sources only know quotes up to today,
// so an observation is stamped with the date it was actually taken.
func (p *Provider) observed(asOf core.Date) core.Date {
	if today := core.DateOf(p.now()); today.Before(asOf) {
		return today
	}
	return asOf
}

func cacheKey(base, quote core.Currency, asOf core.Date) string {
	return string(base) + ":" + string(quote) + ":" + asOf.String()
}

// Rate returns the rate converting base into quote effective on asOf.
// It never invents a rate: when nothing is known it returns a *core.RateError
// wrapping core.ErrRateUnavailable.
func (p *Provider) Rate(ctx context.Context, base, quote core.Currency, asOf core.Date) (core.ExchangeRate, error) {
	if !base.Valid() || !quote.Valid() {
		return core.ExchangeRate{}, fmt.Errorf("%w: %s/%s", core.ErrUnknownCurrency, base, quote)
	}
	if base == quote {
		obs.RateLookups.WithLabelValues(obs.LookupIdentity).Inc()
		return core.IdentityRate(base, asOf), nil
	}

	manual, err := p.store.LatestRate(ctx, base, quote, asOf, core.SourceManual)
	switch {
	case err == nil:
		obs.RateLookups.WithLabelValues(obs.LookupManual).Inc()
		return manual, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.ExchangeRate{}, fmt.Errorf("manual rate lookup: %w", err)
	}

	if r, ok := p.fresh(ctx, base, quote, asOf); ok {
		obs.RateLookups.WithLabelValues(obs.LookupCached).Inc()
		return r, nil
	}

	if p.source != nil {
		r, err := p.fetch(ctx, base, quote, asOf)
		if err == nil {
			obs.RateLookups.WithLabelValues(obs.LookupLive).Inc()
			return r, nil
		}
		if ctx.Err() != nil {
			return core.ExchangeRate{}, ctx.Err()
		}
		p.logger.WarnContext(ctx, "Live rate fetch failed, falling back to stored rate",
			log.FieldBase, base, log.FieldQuote, quote, log.FieldAsOf, asOf.String(), log.FieldError, err)
	}

	stale, err := p.store.LatestRate(ctx, base, quote, asOf)
	switch {
	case err == nil:
		obs.RateLookups.WithLabelValues(obs.LookupFallback).Inc()
		stale.Source = core.SourceCached
		return stale, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.ExchangeRate{}, fmt.Errorf("fallback rate lookup: %w", err)
	}

	obs.RateLookups.WithLabelValues(obs.LookupUnavailable).Inc()
	return core.ExchangeRate{}, &core.RateError{Base: base, Quote: quote, AsOf: asOf, Err: core.ErrRateUnavailable}
}

// fresh checks the in-process cache, then persisted live observations.
func (p *Provider) fresh(ctx context.Context, base, quote core.Currency, asOf core.Date) (core.ExchangeRate, bool) {
	key := cacheKey(base, quote, asOf)
	if r, ok := p.cache.Get(ctx, key); ok && p.isFresh(r, asOf) {
		obs.RateCache.WithLabelValues("hit").Inc()
		r.Source = core.SourceCached
		return r, true
	}
	obs.RateCache.WithLabelValues("miss").Inc()

	r, err := p.store.LatestRate(ctx, base, quote, asOf, core.SourceLive)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			p.logger.WarnContext(ctx, "Stored live rate lookup failed", log.FieldBase, base, log.FieldQuote, quote, log.FieldError, err)
		}
		return core.ExchangeRate{}, false
	}
	if !p.isFresh(r, asOf) {
		return core.ExchangeRate{}, false
	}
	p.cache.Set(ctx, key, r)
	r.Source = core.SourceCached
	return r, true
}

func (p *Provider) isFresh(r core.ExchangeRate, asOf core.Date) bool {
	age := p.observed(asOf).Sub(r.AsOf.Time)
	return age >= 0 && age <= p.cfg.Freshness
}

type fetchResult struct {
	quotes Quotes
}

// fetch performs a coalesced live fetch. Callers for the same base and date
// share one outbound request; one caller's cancellation does not abort it.
// Future dates are fetched and stored as today's observation.
func (p *Provider) fetch(ctx context.Context, base, quote core.Currency, asOf core.Date) (core.ExchangeRate, error) {
	asOf = p.observed(asOf)
	key := string(base) + ":" + asOf.String()
	ch := p.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FetchTimeout)
		defer cancel()

		start := time.Now()
		quotes, err := p.source.Fetch(fetchCtx, base, asOf)
		if err != nil {
			obs.RateFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, err
		}
		obs.RateFetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		p.remember(fetchCtx, base, asOf, quotes)
		return fetchResult{quotes: quotes}, nil
	})

	select {
	case <-ctx.Done():
		return core.ExchangeRate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.ExchangeRate{}, res.Err
		}
		quotes := res.Val.(fetchResult).quotes
		rate, ok := quotes[quote]
		if !ok {
			return core.ExchangeRate{}, fmt.Errorf("live source has no %s/%s rate", base, quote)
		}
		return core.ExchangeRate{Base: base, Quote: quote, Rate: rate, AsOf: asOf, Source: core.SourceLive}, nil
	}
}

// remember persists and caches every quote of a successful fetch.
func (p *Provider) remember(ctx context.Context, base core.Currency, asOf core.Date, quotes Quotes) {
	for q, rate := range quotes {
		if q == base {
			continue
		}
		r := core.ExchangeRate{Base: base, Quote: q, Rate: rate, AsOf: asOf, Source: core.SourceLive}
		if err := p.store.SaveRate(ctx, r); err != nil && !errors.Is(err, core.ErrRateExists) {
			p.logger.WarnContext(ctx, "Failed to persist live rate", log.FieldBase, base, log.FieldQuote, q, log.FieldError, err)
		}
		p.cache.Set(ctx, cacheKey(base, q, asOf), r)
	}
}

// Convert converts m into quote at the rate effective on asOf.
func (p *Provider) Convert(ctx context.Context, m core.Money, quote core.Currency, asOf core.Date) (core.Money, error) {
	r, err := p.Rate(ctx, m.Currency(), quote, asOf)
	if err != nil {
		return core.Money{}, err
	}
	return core.Convert(m, r)
}

// RecordManualRate stores a user-entered rate, which takes precedence over
// live data from asOf onwards.
func (p *Provider) RecordManualRate(ctx context.Context, base, quote core.Currency, rate decimal.Decimal, asOf core.Date) (core.ExchangeRate, error) {
	if base == quote {
		return core.ExchangeRate{}, fmt.Errorf("%w: manual rate for %s to itself", core.ErrInvalidAmount, base)
	}
	r := core.ExchangeRate{Base: base, Quote: quote, Rate: rate, AsOf: asOf, Source: core.SourceManual}
	if err := r.Validate(); err != nil {
		return core.ExchangeRate{}, err
	}
	if err := p.store.SaveRate(ctx, r); err != nil {
		return core.ExchangeRate{}, err
	}
	p.logger.InfoContext(ctx, "Manual exchange rate recorded",
		log.FieldBase, base, log.FieldQuote, quote, "rate", rate.String(), log.FieldAsOf, asOf.String())
	return r, nil
}

// Refresh fetches and stores live rates for each base, returning how many
// bases succeeded.
func (p *Provider) Refresh(ctx context.Context, bases []core.Currency, asOf core.Date) (int, error) {
	if p.source == nil {
		return 0, ErrSourceNotConfigured
	}
	asOf = p.observed(asOf)
	updated := 0
	for _, base := range bases {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		quotes, err := p.source.Fetch(fetchCtx, base, asOf)
		cancel()
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to refresh rates", log.FieldBase, base, log.FieldError, err)
			continue
		}
		p.remember(ctx, base, asOf, quotes)
		updated++
	}
	p.logger.InfoContext(ctx, "Exchange rates refreshed", "updated", updated, "requested", len(bases))
	return updated, nil
}

var defaultRates = []struct {
	base, quote core.Currency
	rate        string
}{
	{"USD", "KES", "150"},
	{"KES", "USD", "0.0067"},
	{"USD", "EUR", "0.85"},
	{"EUR", "USD", "1.18"},
	{"USD", "GBP", "0.73"},
	{"GBP", "USD", "1.37"},
}

// SeedDefaults records the starter manual rates effective from asOf. Pairs
// that already have a manual rate on that date are left alone.
func (p *Provider) SeedDefaults(ctx context.Context, asOf core.Date) (int, error) {
	seeded := 0
	for _, d := range defaultRates {
		_, err := p.RecordManualRate(ctx, d.base, d.quote, decimal.RequireFromString(d.rate), asOf)
		if errors.Is(err, core.ErrRateExists) {
			continue
		}
		if err != nil {
			return seeded, fmt.Errorf("seed %s/%s: %w", d.base, d.quote, err)
		}
		seeded++
	}
	return seeded, nil
}
