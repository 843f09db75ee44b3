// Package worker exports transactions from SQLite to the external ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"medbudget/internal/amqp"
	"medbudget/internal/sheets"
	"medbudget/internal/storage"
)

// ExportWorker pushes transactions to the external ledger sheet. It is
// driven by AMQP messages, with a periodic catch-up pass for rows whose
// messages were lost.
type ExportWorker struct {
	storage   *storage.Store
	writer    sheets.TransactionWriter
	batchSize int
}

func NewExportWorker(storage *storage.Store, writer sheets.TransactionWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single export message from AMQP
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.TransactionExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"transaction_id", msg.ID,
		"user_id", msg.UserID)

	return w.export(ctx, msg.ID)
}

// ProcessPendingTransactions exports rows that were never exported.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.ListUnexported(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, row := range pending {
		if err := w.export(ctx, row.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction",
				"transaction_id", row.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck exports any backlog left over from worker downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListUnexported(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unexported for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, row := range pending {
		if err := w.export(ctx, row.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"transaction_id", row.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)

	return nil
}

func (w *ExportWorker) export(ctx context.Context, id string) error {
	txn, userID, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.writer.Append(ctx, userID, txn); err != nil {
		return fmt.Errorf("append to ledger sheet: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark transaction as exported",
			"transaction_id", id, "error", err)
		// Don't return error here - the export actually worked
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", id,
		"user_id", userID,
		"amount", txn.Amount.StringFixed(2))

	return nil
}
