package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medbudget/internal/auth"
	"medbudget/internal/core"
	"medbudget/internal/storage"
)

// AuthResult is what register and login hand back to the transport layer.
// HasProfile tells the client whether onboarding is still pending.
type AuthResult struct {
	User       core.User
	Token      string
	HasProfile bool
}

// AuthService handles registration and credential verification
type AuthService struct {
	storage *storage.Store
	tokens  *auth.TokenManager
}

func NewAuthService(storage *storage.Store, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		storage: storage,
		tokens:  tokens,
	}
}

// Register creates a new account and returns a fresh token.
// A new account never has a profile yet.
func (s *AuthService) Register(ctx context.Context, username, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AuthResult{}, fmt.Errorf("username: %w", core.ErrEmptyField)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.storage.CreateUser(ctx, username, hash)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate token: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return AuthResult{User: user, Token: token, HasProfile: false}, nil
}

// Login verifies credentials. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (AuthResult, error) {
	rec, err := s.storage.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return AuthResult{}, err
	}
	if rec == nil {
		return AuthResult{}, core.ErrInvalidCredentials
	}

	if !auth.CheckPassword(rec.PasswordHash, password) {
		return AuthResult{}, core.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(rec.ID, rec.Username)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate token: %w", err)
	}

	hasProfile, err := s.storage.HasProfile(ctx, rec.ID)
	if err != nil {
		return AuthResult{}, err
	}

	slog.InfoContext(ctx, "User logged in", "user_id", rec.ID, "username", rec.Username)
	return AuthResult{
		User:       core.User{ID: rec.ID, Username: rec.Username},
		Token:      token,
		HasProfile: hasProfile,
	}, nil
}
