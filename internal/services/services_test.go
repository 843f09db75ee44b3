package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"medbudget/internal/auth"
	"medbudget/internal/core"
	"medbudget/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret-key-0123456789", time.Hour)
	return NewAuthService(newTestStore(t), tokens)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "dr.rossi", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.Token == "" {
		t.Error("Register() returned empty token")
	}
	if reg.HasProfile {
		t.Error("Register() HasProfile = true, want false for a new account")
	}

	login, err := svc.Login(ctx, "dr.rossi", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("Login() user id = %s, want %s", login.User.ID, reg.User.ID)
	}
	if login.HasProfile {
		t.Error("Login() HasProfile = true before profile save")
	}
}

func TestAuthService_LoginFailuresAreUniform(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dr.rossi", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Unknown user and wrong password must yield the same error.
	_, unknownErr := svc.Login(ctx, "nobody", "password123")
	_, wrongErr := svc.Login(ctx, "dr.rossi", "wrongpassword")

	if !errors.Is(unknownErr, core.ErrInvalidCredentials) {
		t.Errorf("Login(unknown user) error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, core.ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v, want ErrInvalidCredentials", wrongErr)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dr.rossi", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Register(ctx, "dr.rossi", "password456")
	if !errors.Is(err, core.ErrDuplicateUsername) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateUsername", err)
	}
}

func TestAuthService_RegisterWeakPassword(t *testing.T) {
	svc := newTestAuth(t)

	_, err := svc.Register(context.Background(), "dr.rossi", "short")
	if !errors.Is(err, auth.ErrWeakPassword) {
		t.Errorf("Register() error = %v, want ErrWeakPassword", err)
	}
}

func TestAuthService_LoginReflectsProfile(t *testing.T) {
	store := newTestStore(t)
	tokens := auth.NewTokenManager("test-secret-key-0123456789", time.Hour)
	authSvc := NewAuthService(store, tokens)
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()

	reg, err := authSvc.Register(ctx, "dr.verdi", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err = ledger.SaveProfile(ctx, reg.User.ID, core.Profile{
		FirstName:      "Anna",
		LastName:       "Verdi",
		Specialization: "Cardiologia",
		StudioName:     "Studio Verdi",
	})
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	login, err := authSvc.Login(ctx, "dr.verdi", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !login.HasProfile {
		t.Error("Login() HasProfile = false after profile save, want true")
	}
}

func TestLedgerService_AddTransaction(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil) // no broker, export is skipped
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "dr.russo", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	txn, err := ledger.AddTransaction(ctx, user.ID, core.TransactionInput{
		Type:   core.Expense,
		Amount: decimal.RequireFromString("99.90"),
		Date:   time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if txn.Category != "Altro" {
		t.Errorf("AddTransaction() category = %q, want fallback Altro", txn.Category)
	}

	txns, err := ledger.ListTransactions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("ListTransactions() returned %d transactions, want 1", len(txns))
	}
}

func TestLedgerService_AddTransactionRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()

	user, _ := store.CreateUser(ctx, "dr.greco", "hash")

	_, err := ledger.AddTransaction(ctx, user.ID, core.TransactionInput{
		Type:   core.Income,
		Amount: decimal.Zero,
		Date:   time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("AddTransaction() error = %v, want ErrInvalidAmount", err)
	}

	// Nothing must be written on a rejected input.
	txns, _ := ledger.ListTransactions(ctx, user.ID)
	if len(txns) != 0 {
		t.Errorf("ListTransactions() after rejected add = %d entries, want 0", len(txns))
	}
}

func TestLedgerService_Profile(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()

	user, _ := store.CreateUser(ctx, "dr.bruno", "hash")

	_, err := ledger.GetProfile(ctx, user.ID)
	if !errors.Is(err, core.ErrProfileNotFound) {
		t.Errorf("GetProfile() before save error = %v, want ErrProfileNotFound", err)
	}

	_, err = ledger.SaveProfile(ctx, user.ID, core.Profile{FirstName: "Marco"})
	if !errors.Is(err, core.ErrEmptyField) {
		t.Errorf("SaveProfile() incomplete error = %v, want ErrEmptyField", err)
	}

	want := core.Profile{
		FirstName:      "Marco",
		LastName:       "Bruno",
		Specialization: "Ortopedia",
		StudioName:     "Studio Bruno",
	}
	if _, err := ledger.SaveProfile(ctx, user.ID, want); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err := ledger.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got != want {
		t.Errorf("GetProfile() = %+v, want %+v", got, want)
	}
}

func TestLedgerService_Close(t *testing.T) {
	service := &LedgerService{}

	if err := service.Close(); err != nil {
		t.Fatalf("Close should not return error with nil components: %v", err)
	}
}
