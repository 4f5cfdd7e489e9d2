// Package mockapi is a small banking API used as the system under test in
// integration tests and demos. All state lives in a Store owned by one Server.
package mockapi

import "sync"

// User is a registered user.
type User struct {
	ID    int    `json:"user_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Account belongs to a user.
type Account struct {
	ID       int    `json:"account_id"`
	UserID   int    `json:"user_id"`
	Currency string `json:"currency"`
}

// Transaction moves an amount into an account.
type Transaction struct {
	AccountID int     `json:"account_id"`
	Amount    float64 `json:"amount"`
}

// Analytics is a recorded usage pattern for a user's account.
type Analytics struct {
	UserID    int    `json:"user_id"`
	AccountID int    `json:"account_id"`
	Pattern   string `json:"pattern"`
}

// Store is the thread-safe in-memory state of one mock API instance.
// IDs are sequential per store, starting at 1.
type Store struct {
	mu            sync.RWMutex
	users         map[int]User
	accounts      map[int]Account
	transactions  []Transaction
	analytics     []Analytics
	nextUserID    int
	nextAccountID int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[int]User),
		accounts:      make(map[int]Account),
		nextUserID:    1,
		nextAccountID: 1,
	}
}

// CreateUser stores a user under the next user ID.
func (s *Store) CreateUser(name, email string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: s.nextUserID, Name: name, Email: email}
	s.users[u.ID] = u
	s.nextUserID++
	return u
}

// User looks up a user by ID.
func (s *Store) User(id int) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// CreateAccount stores an account under the next account ID.
func (s *Store) CreateAccount(userID int, currency string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Account{ID: s.nextAccountID, UserID: userID, Currency: currency}
	s.accounts[a.ID] = a
	s.nextAccountID++
	return a
}

// Account looks up an account by ID.
func (s *Store) Account(id int) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// AddTransaction records a transaction.
func (s *Store) AddTransaction(t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
}

// AddAnalytics records an analytics entry.
func (s *Store) AddAnalytics(a Analytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = append(s.analytics, a)
}

// Counts returns the number of stored users, accounts, transactions and analytics entries.
func (s *Store) Counts() (users, accounts, transactions, analytics int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.accounts), len(s.transactions), len(s.analytics)
}

// Reset clears all state and restarts ID sequences.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int]User)
	s.accounts = make(map[int]Account)
	s.transactions = nil
	s.analytics = nil
	s.nextUserID = 1
	s.nextAccountID = 1
}
