package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Event types carried in TransactionEvent.Type and used as routing keys.
const (
	EventTransactionCreated      = "transaction.created"
	EventTransactionMaterialized = "transaction.materialized"
)

// TransactionEvent announces a stored transaction. It carries enough of the
// transaction for a consumer to act on it without reading the database.
type TransactionEvent struct {
	MessageID     string    `json:"message_id"`
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	TemplateID    string    `json:"template_id,omitempty"`
	AccountID     string    `json:"account_id"`
	CategoryID    string    `json:"category_id,omitempty"`
	OccurredOn    core.Date `json:"occurred_on"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent builds an event for tx with a fresh message id.
func NewTransactionEvent(eventType string, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		MessageID:     uuid.NewString(),
		Type:          eventType,
		TransactionID: tx.ID,
		TemplateID:    tx.RecurringTemplateID,
		AccountID:     tx.AccountID,
		CategoryID:    tx.CategoryID,
		OccurredOn:    tx.OccurredOn,
		AmountMinor:   tx.Amount.Minor(),
		Currency:      string(tx.Amount.Currency()),
		Timestamp:     time.Now().UTC(),
	}
}

// Amount returns the signed amount of the event.
func (m *TransactionEvent) Amount() (core.Money, error) {
	c, err := core.ParseCurrency(m.Currency)
	if err != nil {
		return core.Money{}, err
	}
	return core.FromMinor(m.AmountMinor, c), nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("message %s: missing transaction id", msg.MessageID)
	}
	return &msg, nil
}
