package core

import "errors"

var ErrUnbalanced = errors.New("reconciliation does not balance")

type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "in_progress"
	ReconciliationCompleted  ReconciliationStatus = "completed"
)

// Reconciliation matches an account's transactions against a bank statement.
// BookBalance is the sum of cleared items converted to the statement
// currency; Difference is StatementBalance - BookBalance.
type Reconciliation struct {
	ID               string
	AccountID        string
	StatementDate    Date
	StatementBalance Money
	BookBalance      Money
	Difference       Money
	Status           ReconciliationStatus
	Items            []ReconciliationItem
}

type ReconciliationItem struct {
	ID            string
	TransactionID string
	Cleared       bool
}

// ClearedIDs returns the transaction ids of cleared items.
func (r Reconciliation) ClearedIDs() []string {
	var ids []string
	for _, it := range r.Items {
		if it.Cleared {
			ids = append(ids, it.TransactionID)
		}
	}
	return ids
}
