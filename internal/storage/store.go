// Package storage implements the persistence gateway on SQLite.
//
// It holds no business logic: callers get users, profiles and transactions
// back exactly as stored. Amounts are persisted as decimal strings so that
// no precision is lost crossing the database boundary.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"medbudget/internal/core"
)

const dateLayout = "2006-01-02"

// UserRecord is a stored user row, including the credential hash that never
// leaves this layer except for verification.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
}

// ExportRow identifies a transaction still waiting for ledger export.
type ExportRow struct {
	ID     string
	UserID string
}

type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at dbPath and applies migrations.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateUser inserts a new user. A taken username yields
// core.ErrDuplicateUsername.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	user := core.User{ID: uuid.New().String(), Username: username}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
		user.ID, user.Username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, core.ErrDuplicateUsername
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// GetUserByUsername returns the stored user record, or nil when no such
// user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*UserRecord, error) {
	rec := &UserRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&rec.ID, &rec.Username, &rec.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return rec, nil
}

// GetProfile returns the user's profile, or nil when none has been saved yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	p := &core.Profile{}
	err := s.db.QueryRowContext(ctx,
		`SELECT first_name, last_name, specialization, studio_name
		 FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.FirstName, &p.LastName, &p.Specialization, &p.StudioName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// HasProfile reports whether the user already saved a profile.
func (s *Store) HasProfile(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE user_id = ?)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check profile: %w", err)
	}
	return exists, nil
}

// SaveProfile inserts or replaces the user's profile (upsert by user id).
func (s *Store) SaveProfile(ctx context.Context, userID string, p core.Profile) (core.Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, first_name, last_name, specialization, studio_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		    first_name = excluded.first_name,
		    last_name = excluded.last_name,
		    specialization = excluded.specialization,
		    studio_name = excluded.studio_name,
		    updated_at = CURRENT_TIMESTAMP`,
		userID, p.FirstName, p.LastName, p.Specialization, p.StudioName,
	)
	if err != nil {
		return core.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile saved", "user_id", userID, "studio", p.StudioName)
	return p, nil
}

// ListTransactions returns the user's transactions sorted by date
// descending, most recent insert first within a day.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, amount, category, date, description
		 FROM transactions WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// AddTransaction appends a new ledger entry and assigns its id.
func (s *Store) AddTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		ID:          uuid.New().String(),
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date,
		Description: in.Description,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, category, date, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, string(t.Type), t.Amount.StringFixed(2), t.Category,
		t.Date.Format(dateLayout), t.Description,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"user_id", userID,
		"transaction_type", t.Type,
		"amount", t.Amount.StringFixed(2),
		"category", t.Category)
	return t, nil
}

// GetTransaction fetches a single transaction with its owner, for export.
func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, amount, category, date, description, user_id
		 FROM transactions WHERE id = ?`,
		id,
	)
	var (
		t                 core.Transaction
		typ, amount, date string
		userID            string
	)
	if err := row.Scan(&t.ID, &typ, &amount, &t.Category, &date, &t.Description, &userID); err != nil {
		return core.Transaction{}, "", fmt.Errorf("get transaction: %w", err)
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, "", fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if t.Date, err = time.Parse(dateLayout, date); err != nil {
		return core.Transaction{}, "", fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Type = core.TransactionType(typ)
	return t, userID, nil
}

// ListUnexported returns up to limit transactions not yet exported to the
// external ledger, oldest first.
func (s *Store) ListUnexported(ctx context.Context, limit int) ([]ExportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id FROM transactions
		 WHERE exported = 0 ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unexported: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.ID, &r.UserID); err != nil {
			return nil, fmt.Errorf("scan unexported row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkExported records that a transaction reached the external ledger.
func (s *Store) MarkExported(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET exported = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// Health probes the database and classifies failures into the diagnostics
// the dashboard shows: missing configuration, refused connection, bad
// credentials, timeout, missing schema.
func (s *Store) Health(ctx context.Context) core.Health {
	start := time.Now()

	if s == nil || s.db == nil {
		return core.Health{
			Status:  core.StatusOffline,
			Message: "Configurazione database mancante: nessuna connessione disponibile.",
		}
	}

	if err := s.db.PingContext(ctx); err != nil {
		return core.Health{Status: core.StatusOffline, Message: classifyDBError(err)}
	}

	var tableExists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'users')`,
	).Scan(&tableExists)
	if err != nil {
		return core.Health{Status: core.StatusOffline, Message: classifyDBError(err)}
	}

	latency := time.Since(start).Milliseconds()
	if !tableExists {
		return core.Health{
			Status:    core.StatusOffline,
			LatencyMs: latency,
			Message:   "Connesso al database, ma mancano le tabelle. Esegui le migrazioni.",
		}
	}

	return core.Health{Status: core.StatusOnline, LatencyMs: latency}
}

func classifyDBError(err error) string {
	msg := err.Error()
	var userMessage string
	switch {
	case strings.Contains(msg, "connection refused"):
		userMessage = "Connessione rifiutata (firewall o porta chiusa)."
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		userMessage = "Timeout connessione (il server non risponde)."
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "access denied"):
		userMessage = "Credenziali del database errate."
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "unable to open"):
		userMessage = "File del database non raggiungibile."
	default:
		userMessage = "Errore di connessione al database."
	}
	return fmt.Sprintf("%s Dettaglio: %s", userMessage, msg)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (core.Transaction, error) {
	var (
		t                 core.Transaction
		typ, amount, date string
	)
	if err := sc.Scan(&t.ID, &typ, &amount, &t.Category, &date, &t.Description); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if t.Date, err = time.Parse(dateLayout, date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Type = core.TransactionType(typ)
	return t, nil
}
