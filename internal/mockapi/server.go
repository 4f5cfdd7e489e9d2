package mockapi

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var patternTypes = []string{"A", "B", "C", "D", "E", "F"}

// Server serves the banking API backed by its own Store.
type Server struct {
	store  *Store
	router *chi.Mux
	logger *zap.Logger
}

// NewServer creates a server with a fresh store. A nil logger disables request logging.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  NewStore(),
		router: chi.NewRouter(),
		logger: logger,
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.requestLog)

	s.router.Get("/", s.handleRoot)
	s.router.Post("/users", s.handleCreateUser)
	s.router.Post("/accounts", s.handleCreateAccount)
	s.router.Post("/transactions", s.handleCreateTransaction)
	s.router.Post("/analytics", s.handleAnalytics)
	s.router.Post("/_admin/reset", s.handleReset)

	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store exposes the server's state for inspection.
func (s *Server) Store() *Store {
	return s.store
}

type userRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type accountRequest struct {
	UserID   *int    `json:"user_id"`
	Currency *string `json:"currency"`
}

type transactionRequest struct {
	AccountID *int     `json:"account_id"`
	Amount    *float64 `json:"amount"`
}

type analyticsRequest struct {
	UserID    *int `json:"user_id"`
	AccountID *int `json:"account_id"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Mock API server is running"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := missingFields(map[string]bool{"name": req.Name == nil, "email": req.Email == nil}); missing != "" {
		writeError(w, http.StatusUnprocessableEntity, "missing required fields: "+missing)
		return
	}
	if !strings.Contains(*req.Email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	writeJSON(w, http.StatusCreated, s.store.CreateUser(*req.Name, *req.Email))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := missingFields(map[string]bool{"user_id": req.UserID == nil, "currency": req.Currency == nil}); missing != "" {
		writeError(w, http.StatusUnprocessableEntity, "missing required fields: "+missing)
		return
	}
	if _, ok := s.store.User(*req.UserID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("User with user_id %d not found", *req.UserID))
		return
	}

	writeJSON(w, http.StatusCreated, s.store.CreateAccount(*req.UserID, *req.Currency))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := missingFields(map[string]bool{"account_id": req.AccountID == nil, "amount": req.Amount == nil}); missing != "" {
		writeError(w, http.StatusUnprocessableEntity, "missing required fields: "+missing)
		return
	}
	if _, ok := s.store.Account(*req.AccountID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Account with account_id %d not found", *req.AccountID))
		return
	}
	if *req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Transaction amount must be positive")
		return
	}

	s.store.AddTransaction(Transaction{AccountID: *req.AccountID, Amount: *req.Amount})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Transaction successful"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := missingFields(map[string]bool{"user_id": req.UserID == nil, "account_id": req.AccountID == nil}); missing != "" {
		writeError(w, http.StatusUnprocessableEntity, "missing required fields: "+missing)
		return
	}
	if _, ok := s.store.User(*req.UserID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("User with user_id %d not found", *req.UserID))
		return
	}
	if _, ok := s.store.Account(*req.AccountID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Account with account_id %d not found", *req.AccountID))
		return
	}

	entry := Analytics{
		UserID:    *req.UserID,
		AccountID: *req.AccountID,
		Pattern:   patternTypes[rand.IntN(len(patternTypes))],
	}
	s.store.AddAnalytics(entry)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func missingFields(checks map[string]bool) string {
	var missing []string
	for _, name := range []string{"name", "email", "user_id", "account_id", "currency", "amount"} {
		if absent, ok := checks[name]; ok && absent {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
