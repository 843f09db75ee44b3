package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// TypeFilterAll passes every transaction type when filtering.
const TypeFilterAll = "ALL"

type (
	TransactionType string

	// User is created on registration and immutable thereafter.
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	// Profile identifies the medical practice, one per user.
	Profile struct {
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		Specialization string `json:"specialization"`
		StudioName     string `json:"studioName"`
	}

	// Transaction is a single income or expense ledger entry.
	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
	}

	// TransactionInput is a transaction before the server assigns an id.
	TransactionInput struct {
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
	}

	// Insight is an advisory text item from the analysis service,
	// recomputed on demand and never persisted.
	Insight struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Type    string `json:"type"` // success, warning or info
	}
)

var (
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyField    = errors.New("required field is empty")
	ErrEmptyCategory = errors.New("empty category")
)

// Valid reports whether the type is one of the two enumerated tokens.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Normalize fills the fallback category for the transaction's type
// when the category was omitted.
func (in *TransactionInput) Normalize() {
	if strings.TrimSpace(in.Category) == "" {
		in.Category = FallbackCategory(in.Type)
	}
}

// UnmarshalJSON accepts the date both as a bare calendar day
// ("2024-03-15", what the entry form submits) and as RFC 3339.
func (in *TransactionInput) UnmarshalJSON(data []byte) error {
	type alias TransactionInput
	aux := struct {
		Date string `json:"date"`
		*alias
	}{alias: (*alias)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		in.Date = time.Time{}
		return nil
	}

	t, err := time.Parse("2006-01-02", aux.Date)
	if err != nil {
		t, err = time.Parse(time.RFC3339, aux.Date)
	}
	if err != nil {
		return ErrInvalidDate
	}
	in.Date = t
	return nil
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Amount.IsNegative() || in.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (p Profile) Validate() error {
	for _, f := range []string{p.FirstName, p.LastName, p.Specialization, p.StudioName} {
		if strings.TrimSpace(f) == "" {
			return ErrEmptyField
		}
	}
	return nil
}
