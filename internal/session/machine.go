package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"medbudget/internal/core"
	"medbudget/internal/gateway"
	"medbudget/internal/insight"
)

// ErrInvalidPhase is returned when an operation is issued in a phase that
// does not allow it, for example adding a transaction while anonymous.
var ErrInvalidPhase = errors.New("operation not allowed in current session phase")

// Machine holds the frontend's session state and the cached ledger. All
// methods are safe for concurrent use; read accessors return copies.
type Machine struct {
	gw    gateway.Gateway
	store *FileStore

	mu          sync.Mutex
	phase       Phase
	session     Session
	profile     core.Profile
	txns        []core.Transaction
	insightBusy bool
}

func NewMachine(gw gateway.Gateway, store *FileStore) *Machine {
	return &Machine{
		gw:    gw,
		store: store,
		phase: PhaseUninitialized,
	}
}

// Restore replays the stored session, if any. Called once at startup.
// When the stored token is rejected the session is discarded; when the
// server is unreachable the stored phase is kept and data loads later.
func (m *Machine) Restore(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized {
		return m.phase, ErrInvalidPhase
	}

	stored, err := m.store.Load()
	if err != nil {
		slog.WarnContext(ctx, "Discarding unreadable session file", "error", err)
		m.store.Clear()
	}
	if stored == nil {
		m.phase = PhaseAnonymous
		return m.phase, nil
	}

	m.session = *stored
	if stored.HasProfile {
		m.phase = PhaseReady
	} else {
		m.phase = PhaseNeedsProfile
	}

	if err := m.refreshLocked(ctx); err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			slog.InfoContext(ctx, "Stored session rejected, logging out",
				"username", stored.Username)
			m.resetLocked()
			return m.phase, nil
		}
		// Unreachable server: stay authenticated with an empty cache.
		slog.WarnContext(ctx, "Session restored without data", "error", err)
	}

	return m.phase, nil
}

// Login authenticates and moves to NeedsProfile or Ready. On failure the
// session stays Anonymous.
func (m *Machine) Login(ctx context.Context, username, password string) (Phase, error) {
	return m.authenticate(ctx, func() (gateway.Auth, error) {
		return m.gw.Login(ctx, username, password)
	})
}

// Register creates an account and moves to NeedsProfile.
func (m *Machine) Register(ctx context.Context, username, password string) (Phase, error) {
	return m.authenticate(ctx, func() (gateway.Auth, error) {
		return m.gw.Register(ctx, username, password)
	})
}

func (m *Machine) authenticate(ctx context.Context, call func() (gateway.Auth, error)) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseAnonymous {
		return m.phase, ErrInvalidPhase
	}

	auth, err := call()
	if err != nil {
		return m.phase, err
	}

	m.session = Session{
		UserID:     auth.User.ID,
		Username:   auth.User.Username,
		Token:      auth.Token,
		HasProfile: auth.HasProfile,
	}
	if auth.HasProfile {
		m.phase = PhaseReady
	} else {
		m.phase = PhaseNeedsProfile
	}

	if err := m.store.Save(m.session); err != nil {
		slog.WarnContext(ctx, "Failed to persist session", "error", err)
	}

	// Best effort preload, data can be fetched again later.
	if err := m.refreshLocked(ctx); err != nil {
		slog.WarnContext(ctx, "Could not preload data after login", "error", err)
	}

	return m.phase, nil
}

// SaveProfile completes (or edits) onboarding and moves to Ready.
func (m *Machine) SaveProfile(ctx context.Context, p core.Profile) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.phase.Authenticated() {
		return m.phase, ErrInvalidPhase
	}

	saved, err := m.gw.SaveProfile(ctx, m.session.Token, p)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			m.resetLocked()
		}
		return m.phase, err
	}

	m.profile = saved
	m.phase = PhaseReady
	if !m.session.HasProfile {
		m.session.HasProfile = true
		if err := m.store.Save(m.session); err != nil {
			slog.WarnContext(ctx, "Failed to persist session", "error", err)
		}
	}

	return m.phase, nil
}

// AddTransaction appends to the ledger. The cached list changes only after
// the server confirms the write.
func (m *Machine) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseReady {
		return core.Transaction{}, ErrInvalidPhase
	}

	txn, err := m.gw.AddTransaction(ctx, m.session.Token, in)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			m.resetLocked()
		}
		return core.Transaction{}, err
	}

	// The list is kept newest first, matching the server's ordering.
	m.txns = append([]core.Transaction{txn}, m.txns...)
	return txn, nil
}

// Refresh reloads profile and transactions from the server.
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.phase.Authenticated() {
		return ErrInvalidPhase
	}

	err := m.refreshLocked(ctx)
	if errors.Is(err, core.ErrUnauthenticated) {
		m.resetLocked()
	}
	return err
}

// Insights asks the server for AI advice over the current ledger. While a
// call is in flight a second trigger is a no-op and returns nothing. A
// failed call yields the placeholder advice instead of an error.
func (m *Machine) Insights(ctx context.Context) ([]core.Insight, error) {
	m.mu.Lock()
	if m.phase != PhaseReady {
		m.mu.Unlock()
		return nil, ErrInvalidPhase
	}
	if m.insightBusy {
		m.mu.Unlock()
		return nil, nil
	}
	m.insightBusy = true
	token := m.session.Token
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.insightBusy = false
		m.mu.Unlock()
	}()

	insights, err := m.gw.Insights(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "Insight generation failed, using placeholder",
			"error", fmt.Errorf("%w: %v", core.ErrInsightUnavailable, err))
		return insight.Placeholder, nil
	}
	return insights, nil
}

// Logout discards the session locally. No server call is involved.
func (m *Machine) Logout() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return m.phase
}

// Health probes the gateway.
func (m *Machine) Health(ctx context.Context) core.Health {
	return m.gw.Health(ctx)
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Machine) Profile() core.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Transactions returns a copy of the cached ledger, newest first.
func (m *Machine) Transactions() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Transaction, len(m.txns))
	copy(out, m.txns)
	return out
}

// Summary aggregates the cached ledger.
func (m *Machine) Summary() core.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.Summarize(m.txns)
}

// refreshLocked pulls profile and transactions. Caller holds the lock.
func (m *Machine) refreshLocked(ctx context.Context) error {
	txns, err := m.gw.ListTransactions(ctx, m.session.Token)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	m.txns = txns

	if m.session.HasProfile {
		profile, err := m.gw.GetProfile(ctx, m.session.Token)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		m.profile = profile
	}
	return nil
}

// resetLocked drops all session state. Caller holds the lock.
func (m *Machine) resetLocked() {
	m.store.Clear()
	m.session = Session{}
	m.profile = core.Profile{}
	m.txns = nil
	m.phase = PhaseAnonymous
}
