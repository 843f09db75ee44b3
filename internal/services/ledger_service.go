package services

import (
	"context"
	"fmt"
	"log/slog"

	"medbudget/internal/amqp"
	"medbudget/internal/core"
	"medbudget/internal/storage"
)

// LedgerService orchestrates transaction and profile operations across
// SQLite and AMQP
type LedgerService struct {
	storage    *storage.Store
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.Store, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// AddTransaction validates and saves a transaction, then publishes an
// export message. The export is best effort: a broker failure never fails
// the request, the catch-up loop in the worker picks the row up later.
func (s *LedgerService) AddTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	txn, err := s.storage.AddTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishExportMessage(ctx, txn.ID, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"transaction_id", txn.ID, "error", err)
		// Don't fail the request - transaction is saved locally
	}

	return txn, nil
}

// ListTransactions returns the user's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, userID)
}

// GetProfile returns the user's profile, or core.ErrProfileNotFound when
// onboarding has not happened yet.
func (s *LedgerService) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	p, err := s.storage.GetProfile(ctx, userID)
	if err != nil {
		return core.Profile{}, err
	}
	if p == nil {
		return core.Profile{}, core.ErrProfileNotFound
	}
	return *p, nil
}

// SaveProfile validates and upserts the user's profile.
func (s *LedgerService) SaveProfile(ctx context.Context, userID string, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return s.storage.SaveProfile(ctx, userID, p)
}

// Health reports store reachability for the dashboard indicator.
func (s *LedgerService) Health(ctx context.Context) core.Health {
	return s.storage.Health(ctx)
}

func (s *LedgerService) publishExportMessage(ctx context.Context, id, userID string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message")
		return nil
	}

	return s.amqpClient.PublishTransactionExport(ctx, id, userID)
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
