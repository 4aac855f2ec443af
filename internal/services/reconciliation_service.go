package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var ErrReconciliationClosed = errors.New("reconciliation already completed")

// ReconciliationService matches an account's book entries against a bank
// statement.
type ReconciliationService struct {
	store        storage.ReconciliationStore
	transactions storage.TransactionStore
	engine       *ledger.Engine
}

func NewReconciliationService(store storage.ReconciliationStore, transactions storage.TransactionStore, engine *ledger.Engine) *ReconciliationService {
	return &ReconciliationService{store: store, transactions: transactions, engine: engine}
}

// Start opens a reconciliation with one uncleared item per transaction of
// the account dated on or before the statement date.
func (s *ReconciliationService) Start(ctx context.Context, accountID string, statementDate core.Date, statementBalance core.Money) (core.Reconciliation, error) {
	if err := statementDate.Validate(); err != nil {
		return core.Reconciliation{}, err
	}
	if !statementBalance.Currency().Valid() {
		return core.Reconciliation{}, fmt.Errorf("%w: %q", core.ErrUnknownCurrency, string(statementBalance.Currency()))
	}
	txs, err := s.transactions.ListTransactions(ctx, storage.TransactionFilter{
		AccountID: accountID,
		To:        statementDate,
	})
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("list %s transactions: %w", accountID, err)
	}

	r := core.Reconciliation{
		AccountID:        accountID,
		StatementDate:    statementDate,
		StatementBalance: statementBalance,
		BookBalance:      core.Zero(statementBalance.Currency()),
		Difference:       statementBalance,
		Status:           core.ReconciliationInProgress,
	}
	for _, tx := range txs {
		r.Items = append(r.Items, core.ReconciliationItem{TransactionID: tx.ID})
	}

	r, err = s.store.CreateReconciliation(ctx, r)
	if err != nil {
		return core.Reconciliation{}, err
	}
	slog.InfoContext(ctx, "Reconciliation started",
		"reconciliation_id", r.ID,
		log.FieldAccountID, accountID,
		"items", len(r.Items),
		"statement_balance", statementBalance.String())
	return r, nil
}

// SetCleared marks one item cleared or uncleared and returns the
// reconciliation with recomputed balances.
func (s *ReconciliationService) SetCleared(ctx context.Context, id, itemID string, cleared bool) (core.Reconciliation, error) {
	r, err := s.store.GetReconciliation(ctx, id)
	if err != nil {
		return core.Reconciliation{}, err
	}
	if r.Status == core.ReconciliationCompleted {
		return core.Reconciliation{}, ErrReconciliationClosed
	}
	if err := s.store.SetItemCleared(ctx, id, itemID, cleared); err != nil {
		return core.Reconciliation{}, err
	}
	return s.Recalculate(ctx, id)
}

// Recalculate sets BookBalance to the cleared items converted into the
// statement currency at each transaction's date, and Difference to
// statement - book.
func (s *ReconciliationService) Recalculate(ctx context.Context, id string) (core.Reconciliation, error) {
	r, err := s.store.GetReconciliation(ctx, id)
	if err != nil {
		return core.Reconciliation{}, err
	}
	if err := s.balance(ctx, &r); err != nil {
		return core.Reconciliation{}, err
	}
	if err := s.store.SaveReconciliationBalances(ctx, r); err != nil {
		return core.Reconciliation{}, err
	}
	return r, nil
}

func (s *ReconciliationService) balance(ctx context.Context, r *core.Reconciliation) error {
	currency := r.StatementBalance.Currency()
	var cleared []core.Transaction
	if ids := r.ClearedIDs(); len(ids) > 0 {
		var err error
		cleared, err = s.transactions.ListTransactions(ctx, storage.TransactionFilter{IDs: ids})
		if err != nil {
			return fmt.Errorf("load cleared transactions: %w", err)
		}
	}
	book, err := s.engine.ConvertedBalance(ctx, cleared, currency, core.Date{})
	if err != nil {
		return err
	}
	r.BookBalance = book
	r.Difference, err = r.StatementBalance.Sub(book)
	return err
}

// Complete closes the reconciliation. It fails with core.ErrUnbalanced
// unless the statement and book balances are equal.
func (s *ReconciliationService) Complete(ctx context.Context, id string) (core.Reconciliation, error) {
	r, err := s.store.GetReconciliation(ctx, id)
	if err != nil {
		return core.Reconciliation{}, err
	}
	if r.Status == core.ReconciliationCompleted {
		return r, nil
	}
	if err := s.balance(ctx, &r); err != nil {
		return core.Reconciliation{}, err
	}
	if !r.Difference.IsZero() {
		return r, fmt.Errorf("%w: difference %s", core.ErrUnbalanced, r.Difference)
	}
	r.Status = core.ReconciliationCompleted
	if err := s.store.SaveReconciliationBalances(ctx, r); err != nil {
		return core.Reconciliation{}, err
	}
	slog.InfoContext(ctx, "Reconciliation completed",
		"reconciliation_id", r.ID,
		log.FieldAccountID, r.AccountID,
		"book_balance", r.BookBalance.String())
	return r, nil
}
