package http

import (
	"net/http"

	"medbudget/internal/core"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token      string    `json:"token"`
	User       core.User `json:"user"`
	HasProfile bool      `json:"hasProfile"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token:      result.Token,
		User:       result.User,
		HasProfile: result.HasProfile,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:      result.Token,
		User:       result.User,
		HasProfile: result.HasProfile,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := UserFromContext(r.Context())

	profile, err := s.ledger.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := UserFromContext(r.Context())

	var profile core.Profile
	if err := decodeJSON(r, &profile); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	saved, err := s.ledger.SaveProfile(r.Context(), claims.UserID, profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	claims, _ := UserFromContext(r.Context())

	txns, err := s.ledger.ListTransactions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	claims, _ := UserFromContext(r.Context())

	var in core.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	txn, err := s.ledger.AddTransaction(r.Context(), claims.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// handleInsights runs the AI analysis over the caller's ledger. This
// endpoint always answers 200: when analysis fails the client receives the
// placeholder advice instead of an error.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	claims, _ := UserFromContext(r.Context())

	txns, err := s.ledger.ListTransactions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	insights := s.insights.Analyze(r.Context(), claims.UserID, txns)
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.ledger.Health(r.Context())
	status := http.StatusOK
	if health.Status != core.StatusOnline {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
