package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher announces stored transactions. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransaction(ctx context.Context, eventType string, tx core.Transaction) error
}

// TransactionService orchestrates transaction writes across storage and AMQP.
type TransactionService struct {
	store     storage.TransactionStore
	publisher EventPublisher
}

func NewTransactionService(store storage.TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// CreateTransaction saves a transaction and publishes a created event.
// A publish failure is logged; the transaction stays saved.
func (s *TransactionService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher, skipping created event", log.FieldTransactionID, saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishTransaction(ctx, amqp.EventTransactionCreated, saved); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, saved.ID,
			log.FieldError, err)
	}
	return saved, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}
