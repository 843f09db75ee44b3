package amqp

import (
	"encoding/json"
	"time"
)

// TransactionExportMessage asks the worker to push one transaction to the
// external ledger. It carries only identifiers, the worker fetches the full
// row from the database.
type TransactionExportMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionExportMessage creates an export message for a transaction
func NewTransactionExportMessage(id, userID string) *TransactionExportMessage {
	return &TransactionExportMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionExportMessageFromJSON creates a message from JSON bytes
func TransactionExportMessageFromJSON(data []byte) (*TransactionExportMessage, error) {
	var msg TransactionExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
