package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const maxDescriptionLen = 200

type (
	// Transaction is a single ledger entry. Amount is signed: outflows are
	// negative. CategoryID is empty for transfers.
	Transaction struct {
		ID                  string
		AccountID           string
		CategoryID          string
		Amount              Money
		OccurredOn          Date
		Description         string
		Tags                []string
		RecurringTemplateID string
	}

	// RecurringTemplate generates transactions on a schedule.
	// LastMaterializedThrough is written only by the materializer.
	RecurringTemplate struct {
		ID                      string
		AccountID               string
		CategoryID              string
		Amount                  Money
		Description             string
		Rule                    IntervalRule
		StartDate               Date
		EndDate                 Date // zero means open-ended
		LastMaterializedThrough Date // zero means never materialized
		Active                  bool
	}

	Category struct {
		ID   string
		Name string
	}

	// Allocation is the planned amount for a category in one month.
	Allocation struct {
		CategoryID string
		Period     Period
		Allocated  Money
	}
)

func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.AccountID) == "" {
		return ErrEmptyAccount
	}
	if err := tx.OccurredOn.Validate(); err != nil {
		return err
	}
	if !tx.Amount.Currency().Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, string(tx.Amount.Currency()))
	}
	if len(tx.Description) > maxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// IsTransfer reports whether the transaction moves money between accounts
// rather than into or out of a category.
func (tx Transaction) IsTransfer() bool {
	return tx.CategoryID == ""
}

func (rt RecurringTemplate) Validate() error {
	if strings.TrimSpace(rt.AccountID) == "" {
		return ErrEmptyAccount
	}
	if err := rt.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate) {
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidRecurrenceRule, rt.EndDate, rt.StartDate)
	}
	if err := rt.Rule.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > maxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	if rt.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

func (a Allocation) Validate() error {
	if strings.TrimSpace(a.CategoryID) == "" {
		return errors.New("empty category")
	}
	if err := a.Period.Validate(); err != nil {
		return err
	}
	if a.Allocated.IsNegative() {
		return fmt.Errorf("%w: allocation cannot be negative", ErrInvalidAmount)
	}
	return nil
}

// NormalizeTags lowercases, trims and deduplicates tags, returning them sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
