package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"medbudget/internal/core"
	"medbudget/internal/gateway"
)

// fakeGateway is an in-memory gateway with switchable failure modes.
type fakeGateway struct {
	auth       gateway.Auth
	authErr    error
	profile    core.Profile
	profileErr error
	txns       []core.Transaction
	listErr    error
	addErr     error
	health     core.Health

	insightsErr  error
	insightsGate chan struct{} // if set, Insights blocks until closed
}

func (f *fakeGateway) Register(ctx context.Context, username, password string) (gateway.Auth, error) {
	return f.auth, f.authErr
}

func (f *fakeGateway) Login(ctx context.Context, username, password string) (gateway.Auth, error) {
	return f.auth, f.authErr
}

func (f *fakeGateway) GetProfile(ctx context.Context, token string) (core.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeGateway) SaveProfile(ctx context.Context, token string, p core.Profile) (core.Profile, error) {
	if f.profileErr != nil {
		return core.Profile{}, f.profileErr
	}
	f.profile = p
	return p, nil
}

func (f *fakeGateway) ListTransactions(ctx context.Context, token string) ([]core.Transaction, error) {
	return f.txns, f.listErr
}

func (f *fakeGateway) AddTransaction(ctx context.Context, token string, in core.TransactionInput) (core.Transaction, error) {
	if f.addErr != nil {
		return core.Transaction{}, f.addErr
	}
	txn := core.Transaction{
		ID:       "server-id",
		Type:     in.Type,
		Amount:   in.Amount,
		Category: in.Category,
		Date:     in.Date,
	}
	f.txns = append([]core.Transaction{txn}, f.txns...)
	return txn, nil
}

func (f *fakeGateway) Insights(ctx context.Context, token string) ([]core.Insight, error) {
	if f.insightsGate != nil {
		<-f.insightsGate
	}
	if f.insightsErr != nil {
		return nil, f.insightsErr
	}
	return []core.Insight{{Title: "ok", Content: "ok", Type: "info"}}, nil
}

func (f *fakeGateway) Health(ctx context.Context) core.Health {
	return f.health
}

func validAuth() gateway.Auth {
	return gateway.Auth{
		Token:      "token-1",
		User:       core.User{ID: "user-1", Username: "dr.rossi"},
		HasProfile: false,
	}
}

func sampleInput() core.TransactionInput {
	return core.TransactionInput{
		Type:     core.Expense,
		Amount:   decimal.RequireFromString("10.00"),
		Category: "Utenze",
		Date:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newMachine(t *testing.T, gw gateway.Gateway) (*Machine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	return NewMachine(gw, NewFileStore(path)), path
}

func TestRestoreWithoutStoredSession(t *testing.T) {
	m, _ := newMachine(t, &fakeGateway{})

	phase, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if phase != PhaseAnonymous {
		t.Errorf("Restore() phase = %v, want anonymous", phase)
	}
}

func TestRestoreStoredSession(t *testing.T) {
	gw := &fakeGateway{
		profile: core.Profile{FirstName: "Anna", LastName: "Verdi", Specialization: "x", StudioName: "y"},
		txns:    []core.Transaction{{ID: "t1"}},
	}
	m, path := newMachine(t, gw)

	store := NewFileStore(path)
	store.Save(Session{UserID: "user-1", Username: "dr.rossi", Token: "token-1", HasProfile: true})

	phase, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if phase != PhaseReady {
		t.Errorf("Restore() phase = %v, want ready", phase)
	}
	if len(m.Transactions()) != 1 {
		t.Errorf("Transactions() = %d entries, want 1 after restore", len(m.Transactions()))
	}
	if m.Profile().FirstName != "Anna" {
		t.Errorf("Profile() = %+v, want loaded profile", m.Profile())
	}
}

func TestRestoreRejectedTokenLogsOut(t *testing.T) {
	gw := &fakeGateway{listErr: core.ErrUnauthenticated}
	m, path := newMachine(t, gw)

	NewFileStore(path).Save(Session{UserID: "u", Username: "x", Token: "stale", HasProfile: true})

	phase, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if phase != PhaseAnonymous {
		t.Errorf("Restore() phase = %v, want anonymous after rejected token", phase)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("session file still exists after rejected token")
	}
}

func TestRestoreOfflineKeepsSession(t *testing.T) {
	gw := &fakeGateway{listErr: core.ErrUnavailable}
	m, path := newMachine(t, gw)

	NewFileStore(path).Save(Session{UserID: "u", Username: "x", Token: "token", HasProfile: true})

	phase, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if phase != PhaseReady {
		t.Errorf("Restore() phase = %v, want ready kept while offline", phase)
	}
	if len(m.Transactions()) != 0 {
		t.Error("Transactions() not empty, want empty cache while offline")
	}
}

func TestLoginMovesToNeedsProfile(t *testing.T) {
	gw := &fakeGateway{auth: validAuth()}
	m, path := newMachine(t, gw)
	m.Restore(context.Background())

	phase, err := m.Login(context.Background(), "dr.rossi", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if phase != PhaseNeedsProfile {
		t.Errorf("Login() phase = %v, want needs_profile", phase)
	}

	// Session must be persisted for the next start.
	stored, err := NewFileStore(path).Load()
	if err != nil || stored == nil {
		t.Fatalf("Load() after login = %v, %v", stored, err)
	}
	if stored.Token != "token-1" || stored.HasProfile {
		t.Errorf("stored session = %+v", stored)
	}
}

func TestLoginWithProfileMovesToReady(t *testing.T) {
	auth := validAuth()
	auth.HasProfile = true
	gw := &fakeGateway{auth: auth}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())

	phase, err := m.Login(context.Background(), "dr.rossi", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if phase != PhaseReady {
		t.Errorf("Login() phase = %v, want ready", phase)
	}
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	gw := &fakeGateway{authErr: core.ErrInvalidCredentials}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())

	phase, err := m.Login(context.Background(), "dr.rossi", "wrongpassword")
	if !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	if phase != PhaseAnonymous {
		t.Errorf("Login() failed phase = %v, want anonymous", phase)
	}
}

func TestLoginRequiresAnonymousPhase(t *testing.T) {
	gw := &fakeGateway{auth: validAuth()}
	m, _ := newMachine(t, gw)

	// Still uninitialized, login must be refused.
	_, err := m.Login(context.Background(), "dr.rossi", "password123")
	if !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Login() before Restore error = %v, want ErrInvalidPhase", err)
	}
}

func TestSaveProfileCompletesOnboarding(t *testing.T) {
	gw := &fakeGateway{auth: validAuth()}
	m, path := newMachine(t, gw)
	m.Restore(context.Background())
	m.Register(context.Background(), "dr.rossi", "password123")

	profile := core.Profile{
		FirstName:      "Mario",
		LastName:       "Rossi",
		Specialization: "Odontoiatria",
		StudioName:     "Studio Rossi",
	}
	phase, err := m.SaveProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if phase != PhaseReady {
		t.Errorf("SaveProfile() phase = %v, want ready", phase)
	}
	if m.Profile() != profile {
		t.Errorf("Profile() = %+v, want %+v", m.Profile(), profile)
	}

	stored, _ := NewFileStore(path).Load()
	if stored == nil || !stored.HasProfile {
		t.Errorf("stored session = %+v, want hasProfile true", stored)
	}
}

func TestAddTransactionPrepends(t *testing.T) {
	auth := validAuth()
	auth.HasProfile = true
	gw := &fakeGateway{
		auth:    auth,
		profile: core.Profile{FirstName: "a", LastName: "b", Specialization: "c", StudioName: "d"},
		txns:    []core.Transaction{{ID: "old"}},
	}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())
	m.Login(context.Background(), "dr.rossi", "password123")

	txn, err := m.AddTransaction(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	txns := m.Transactions()
	if len(txns) != 2 || txns[0].ID != txn.ID {
		t.Errorf("Transactions() = %+v, want new entry first", txns)
	}
}

func TestAddTransactionOfflineLeavesListUnchanged(t *testing.T) {
	auth := validAuth()
	auth.HasProfile = true
	gw := &fakeGateway{
		auth:    auth,
		profile: core.Profile{FirstName: "a", LastName: "b", Specialization: "c", StudioName: "d"},
		txns:    []core.Transaction{{ID: "old"}},
	}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())
	m.Login(context.Background(), "dr.rossi", "password123")

	gw.addErr = core.ErrUnavailable
	_, err := m.AddTransaction(context.Background(), sampleInput())
	if !errors.Is(err, core.ErrUnavailable) {
		t.Errorf("AddTransaction() error = %v, want ErrUnavailable", err)
	}

	txns := m.Transactions()
	if len(txns) != 1 || txns[0].ID != "old" {
		t.Errorf("Transactions() after failed add = %+v, want unchanged", txns)
	}
}

func TestAddTransactionRequiresReady(t *testing.T) {
	gw := &fakeGateway{auth: validAuth()}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())
	m.Register(context.Background(), "dr.rossi", "password123") // needs_profile

	_, err := m.AddTransaction(context.Background(), sampleInput())
	if !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("AddTransaction() in needs_profile error = %v, want ErrInvalidPhase", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	auth := validAuth()
	auth.HasProfile = true
	gw := &fakeGateway{
		auth:    auth,
		profile: core.Profile{FirstName: "a", LastName: "b", Specialization: "c", StudioName: "d"},
		txns:    []core.Transaction{{ID: "t1"}},
	}
	m, path := newMachine(t, gw)
	m.Restore(context.Background())
	m.Login(context.Background(), "dr.rossi", "password123")

	phase := m.Logout()
	if phase != PhaseAnonymous {
		t.Errorf("Logout() phase = %v, want anonymous", phase)
	}
	if len(m.Transactions()) != 0 || m.Session().Token != "" {
		t.Error("session state not cleared after logout")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("session file still exists after logout")
	}
}

func readyMachine(t *testing.T, gw *fakeGateway) *Machine {
	t.Helper()
	auth := validAuth()
	auth.HasProfile = true
	gw.auth = auth
	if gw.profile == (core.Profile{}) {
		gw.profile = core.Profile{FirstName: "a", LastName: "b", Specialization: "c", StudioName: "d"}
	}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())
	if _, err := m.Login(context.Background(), "dr.rossi", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return m
}

func TestInsightsFailureYieldsPlaceholder(t *testing.T) {
	gw := &fakeGateway{insightsErr: core.ErrUnavailable}
	m := readyMachine(t, gw)

	insights, err := m.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights() error = %v, want placeholder instead of failure", err)
	}
	if len(insights) != 1 || insights[0].Type != "info" {
		t.Errorf("Insights() on failure = %+v, want single info placeholder", insights)
	}
}

func TestInsightsSecondCallIsNoOpWhileInFlight(t *testing.T) {
	gw := &fakeGateway{insightsGate: make(chan struct{})}
	m := readyMachine(t, gw)

	firstDone := make(chan []core.Insight, 1)
	go func() {
		insights, _ := m.Insights(context.Background())
		firstDone <- insights
	}()

	// Wait until the first call is holding the busy flag.
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		busy := m.insightBusy
		m.mu.Unlock()
		if busy || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	insights, err := m.Insights(context.Background())
	if err != nil || insights != nil {
		t.Errorf("second Insights() = %+v, %v, want nil no-op", insights, err)
	}

	close(gw.insightsGate)
	if got := <-firstDone; len(got) != 1 {
		t.Errorf("first Insights() = %+v, want the gateway's advice", got)
	}
}

func TestSummaryAggregatesCache(t *testing.T) {
	auth := validAuth()
	auth.HasProfile = true
	gw := &fakeGateway{
		auth:    auth,
		profile: core.Profile{FirstName: "a", LastName: "b", Specialization: "c", StudioName: "d"},
		txns: []core.Transaction{
			{ID: "t1", Type: core.Income, Amount: decimal.RequireFromString("100.00")},
			{ID: "t2", Type: core.Expense, Amount: decimal.RequireFromString("30.00")},
		},
	}
	m, _ := newMachine(t, gw)
	m.Restore(context.Background())
	m.Login(context.Background(), "dr.rossi", "password123")

	sum := m.Summary()
	if !sum.Balance.Equal(decimal.RequireFromString("70.00")) {
		t.Errorf("Summary().Balance = %s, want 70.00", sum.Balance)
	}
}
