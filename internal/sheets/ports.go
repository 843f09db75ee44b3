package sheets

import (
	"context"

	"medbudget/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends a transaction row to the external ledger.
	TransactionWriter interface {
		Append(ctx context.Context, userID string, t core.Transaction) error
	}
)
