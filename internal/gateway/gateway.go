// Package gateway is the client side of the persistence gateway: everything
// the terminal frontend needs from the server goes through the Gateway
// interface, so the session machine never touches HTTP directly.
package gateway

import (
	"context"

	"medbudget/internal/core"
)

// Auth is the outcome of a successful login or registration.
type Auth struct {
	Token      string    `json:"token"`
	User       core.User `json:"user"`
	HasProfile bool      `json:"hasProfile"`
}

// Gateway is the persistence contract the frontend depends on.
type Gateway interface {
	Register(ctx context.Context, username, password string) (Auth, error)
	Login(ctx context.Context, username, password string) (Auth, error)

	GetProfile(ctx context.Context, token string) (core.Profile, error)
	SaveProfile(ctx context.Context, token string, p core.Profile) (core.Profile, error)

	ListTransactions(ctx context.Context, token string) ([]core.Transaction, error)
	AddTransaction(ctx context.Context, token string, in core.TransactionInput) (core.Transaction, error)

	Insights(ctx context.Context, token string) ([]core.Insight, error)

	// Health never fails: unreachable servers yield an offline report
	// with a diagnostic message.
	Health(ctx context.Context) core.Health
}
