// Package http exposes the persistence gateway as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"medbudget/internal/auth"
	"medbudget/internal/insight"
	"medbudget/internal/services"
)

type Server struct {
	http.Server

	auth     *services.AuthService
	ledger   *services.LedgerService
	insights *insight.Client
	tokens   *auth.TokenManager
}

func NewServer(port string, authSvc *services.AuthService, ledger *services.LedgerService, insights *insight.Client, tokens *auth.TokenManager) *Server {
	s := &Server{
		auth:     authSvc,
		ledger:   ledger,
		insights: insights,
		tokens:   tokens,
	}

	s.Server = http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // insight calls can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/health", s.handleHealth)

		// Protected group: requires a valid Bearer token
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.tokens))

			r.Get("/profile", s.handleGetProfile)
			r.Post("/profile", s.handleSaveProfile)
			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleAddTransaction)
			r.Post("/insights", s.handleInsights)
		})
	})

	return r
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
