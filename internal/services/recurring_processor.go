package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ids"
	"fintrack/internal/log"
	"fintrack/internal/obs"
	"fintrack/internal/storage"
)

const (
	// DefaultMaxOccurrences bounds how many occurrences one Materialize call
	// emits for a template. Larger backlogs are drained over several calls.
	DefaultMaxOccurrences = 365

	defaultWorkers    = 4
	maxCommitAttempts = 3
)

// RecurringProcessor materializes recurring templates into transactions.
type RecurringProcessor struct {
	templates      storage.TemplateStore
	publisher      EventPublisher
	maxOccurrences int
	workers        int
}

// NewRecurringProcessor creates a processor. publisher may be nil, in which
// case no events are emitted. workers bounds how many templates ProcessDue
// handles in parallel.
func NewRecurringProcessor(templates storage.TemplateStore, publisher EventPublisher, workers int) *RecurringProcessor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &RecurringProcessor{
		templates:      templates,
		publisher:      publisher,
		maxOccurrences: DefaultMaxOccurrences,
		workers:        workers,
	}
}

// MaterializeResult reports what one Materialize call did.
type MaterializeResult struct {
	TemplateID string
	Created    []core.Transaction
	Skipped    int       // occurrences that already had a transaction
	Through    core.Date // watermark after the call
	Capped     bool      // more occurrences remain up to the requested date
}

type materializePlan struct {
	dates []core.Date
	next  core.Date
	// capped means the occurrence limit was hit before `through`.
	capped bool
}

// plan computes the occurrences after the template's watermark up to
// through (or EndDate when earlier) and the watermark to store afterwards.
func (p *RecurringProcessor) plan(tmpl core.RecurringTemplate, through core.Date) (materializePlan, error) {
	limit := through
	if !tmpl.EndDate.IsZero() && tmpl.EndDate.Before(limit) {
		limit = tmpl.EndDate
	}
	dates, capped, err := occurrences(tmpl.Rule, tmpl.StartDate, tmpl.LastMaterializedThrough, limit, p.maxOccurrences)
	if err != nil {
		return materializePlan{}, err
	}
	next := limit
	if capped {
		next = dates[len(dates)-1]
	}
	// The watermark never moves backwards.
	if wm := tmpl.LastMaterializedThrough; !wm.IsZero() && !next.After(wm) {
		next = wm
	}
	return materializePlan{dates: dates, next: next, capped: capped}, nil
}

// pending drops planned dates that already have a transaction and builds
// the rest.
func (p *RecurringProcessor) pending(ctx context.Context, tmpl core.RecurringTemplate, dates []core.Date) ([]core.Transaction, int, error) {
	if len(dates) == 0 {
		return nil, 0, nil
	}
	existing, err := p.templates.OccurrenceDates(ctx, tmpl.ID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, 0, fmt.Errorf("load existing occurrences: %w", err)
	}

	var (
		txs     []core.Transaction
		skipped int
	)
	for _, d := range dates {
		if existing[d.String()] {
			skipped++
			continue
		}
		txs = append(txs, core.Transaction{
			ID:                  ids.New(),
			AccountID:           tmpl.AccountID,
			CategoryID:          tmpl.CategoryID,
			Amount:              tmpl.Amount,
			OccurredOn:          d,
			Description:         tmpl.Description,
			RecurringTemplateID: tmpl.ID,
		})
	}
	return txs, skipped, nil
}

// Materialize emits the template's occurrences after its watermark up to
// through inclusive and advances the watermark, all in one database
// transaction. Calling it again with the same date is a no-op. tmpl is
// updated with the stored watermark.
func (p *RecurringProcessor) Materialize(ctx context.Context, tmpl *core.RecurringTemplate, through core.Date) (MaterializeResult, error) {
	res := MaterializeResult{TemplateID: tmpl.ID, Through: tmpl.LastMaterializedThrough}
	if err := tmpl.Validate(); err != nil {
		return res, fmt.Errorf("template %s: %w", tmpl.ID, err)
	}
	if err := through.Validate(); err != nil {
		return res, err
	}

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		plan, err := p.plan(*tmpl, through)
		if err != nil {
			return res, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
		prev := tmpl.LastMaterializedThrough
		if plan.next.Before(tmpl.StartDate) || (!prev.IsZero() && plan.next.Equal(prev)) {
			res.Through = prev
			return res, nil
		}

		txs, skipped, err := p.pending(ctx, *tmpl, plan.dates)
		if err != nil {
			return res, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}

		inserted, err := p.templates.CommitMaterialization(ctx, tmpl.ID, prev, plan.next, txs)
		if errors.Is(err, storage.ErrWatermarkMoved) {
			slog.WarnContext(ctx, "Watermark moved concurrently, reloading template",
				log.FieldTemplateID, tmpl.ID,
				"attempt", attempt)
			fresh, gerr := p.templates.GetTemplate(ctx, tmpl.ID)
			if gerr != nil {
				return res, fmt.Errorf("reload template %s: %w", tmpl.ID, gerr)
			}
			*tmpl = fresh
			continue
		}
		if err != nil {
			obs.Materialized.WithLabelValues("error").Add(float64(len(txs)))
			return res, fmt.Errorf("commit template %s: %w", tmpl.ID, err)
		}

		tmpl.LastMaterializedThrough = plan.next
		res.Created = inserted
		res.Skipped = skipped + len(txs) - len(inserted)
		res.Through = plan.next
		res.Capped = plan.capped

		obs.Materialized.WithLabelValues("created").Add(float64(len(inserted)))
		obs.Materialized.WithLabelValues("skipped").Add(float64(res.Skipped))

		if len(inserted) > 0 || res.Skipped > 0 {
			slog.InfoContext(ctx, "Materialized recurring template",
				log.FieldTemplateID, tmpl.ID,
				"created", len(inserted),
				"skipped", res.Skipped,
				"through", plan.next.String(),
				"capped", plan.capped)
		}
		p.publish(ctx, inserted)
		return res, nil
	}
	return res, fmt.Errorf("template %s: %w after %d attempts", tmpl.ID, storage.ErrWatermarkMoved, maxCommitAttempts)
}

// DryRun returns the transactions Materialize would create without writing.
func (p *RecurringProcessor) DryRun(ctx context.Context, tmpl core.RecurringTemplate, through core.Date) ([]core.Transaction, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
	}
	if err := through.Validate(); err != nil {
		return nil, err
	}
	plan, err := p.plan(tmpl, through)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
	}
	txs, _, err := p.pending(ctx, tmpl, plan.dates)
	return txs, err
}

func (p *RecurringProcessor) publish(ctx context.Context, txs []core.Transaction) {
	if p.publisher == nil {
		return
	}
	for _, tx := range txs {
		if err := p.publisher.PublishTransaction(ctx, amqp.EventTransactionMaterialized, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to publish materialized transaction",
				log.FieldTransactionID, tx.ID,
				log.FieldTemplateID, tx.RecurringTemplateID,
				log.FieldError, err)
		}
	}
}

// ProcessSummary aggregates a ProcessDue run.
type ProcessSummary struct {
	Templates   int
	Created     int
	Skipped     int
	Failed      int
	Deactivated int
}

// ProcessDue materializes every active template through now. A failing
// template is logged and counted; it does not stop the others. Templates
// whose watermark has reached their end date are deactivated.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now core.Date) (ProcessSummary, error) {
	start := time.Now()
	defer func() { obs.RecurringRunDuration.Observe(time.Since(start).Seconds()) }()

	templates, err := p.templates.ListActiveTemplates(ctx)
	if err != nil {
		return ProcessSummary{}, fmt.Errorf("failed to get active recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"total_active", len(templates),
		"processing_date", now.String())

	var (
		mu      sync.Mutex
		summary = ProcessSummary{Templates: len(templates)}
	)
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i := range templates {
		tmpl := templates[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res, err := p.Materialize(ctx, &tmpl, now)
			deactivated := false
			if err == nil && !tmpl.EndDate.IsZero() && !tmpl.LastMaterializedThrough.Before(tmpl.EndDate) {
				if derr := p.templates.SetTemplateActive(ctx, tmpl.ID, false); derr != nil {
					slog.ErrorContext(ctx, "Failed to deactivate finished template",
						log.FieldTemplateID, tmpl.ID,
						log.FieldError, derr)
				} else {
					deactivated = true
					slog.InfoContext(ctx, "Recurring template finished",
						log.FieldTemplateID, tmpl.ID,
						"end_date", tmpl.EndDate.String())
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				slog.ErrorContext(ctx, "Failed to materialize recurring template",
					log.FieldTemplateID, tmpl.ID,
					log.FieldError, err)
				return nil
			}
			summary.Created += len(res.Created)
			summary.Skipped += res.Skipped
			if deactivated {
				summary.Deactivated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	slog.InfoContext(ctx, "Recurring template processing complete",
		"created", summary.Created,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"deactivated", summary.Deactivated)
	return summary, nil
}

// UpcomingOccurrence is one scheduled, not necessarily materialized,
// occurrence.
type UpcomingOccurrence struct {
	TemplateID  string
	Description string
	Date        core.Date
	Amount      core.Money
}

// Upcoming lists the occurrences of active templates dated within
// [from, from+days], ordered by date.
func (p *RecurringProcessor) Upcoming(ctx context.Context, templates []core.RecurringTemplate, from core.Date, days int) []UpcomingOccurrence {
	to := from.AddDays(days)
	var out []UpcomingOccurrence
	for _, tmpl := range templates {
		if !tmpl.Active {
			continue
		}
		limit := to
		if !tmpl.EndDate.IsZero() && tmpl.EndDate.Before(limit) {
			limit = tmpl.EndDate
		}
		dates, _, err := occurrences(tmpl.Rule, tmpl.StartDate, from.AddDays(-1), limit, p.maxOccurrences)
		if err != nil {
			slog.WarnContext(ctx, "Skipping template with invalid rule",
				log.FieldTemplateID, tmpl.ID,
				log.FieldError, err)
			continue
		}
		for _, d := range dates {
			out = append(out, UpcomingOccurrence{
				TemplateID:  tmpl.ID,
				Description: tmpl.Description,
				Date:        d,
				Amount:      tmpl.Amount,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out
}

// MonthlyImpact normalizes a template's amount to an average month, e.g. a
// weekly 10.00 is 43.30 a month and a yearly 120.00 is 10.00.
func MonthlyImpact(tmpl core.RecurringTemplate) (core.Money, error) {
	if err := tmpl.Rule.Validate(); err != nil {
		return core.Money{}, err
	}
	stepper, err := GetOccurrenceStepper(tmpl.Rule.Unit)
	if err != nil {
		return core.Money{}, err
	}
	perMonth := stepper.PerMonth().Div(decimal.NewFromInt(int64(tmpl.Rule.Every)))
	return core.NewMoney(tmpl.Amount.Amount().Mul(perMonth), tmpl.Amount.Currency())
}
