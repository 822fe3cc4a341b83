// Package accounts owns registered identities and credential verification.
//
// The store keeps all accounts in memory behind a single mutex so the
// exists-then-insert sequence of Create is atomic: two concurrent
// registrations of the same username can never both succeed. Operations are
// total from the caller's point of view and report outcomes as booleans;
// hashing failures degrade to a negative answer rather than an error.
package accounts

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	"shelfreads/internal/models"
)

// Option configures a Store instance.
type Option func(*Store)

// WithHashCost overrides the bcrypt cost factor. Lower values keep test
// suites fast; production deployments should stay at the default or above.
func WithHashCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

// DefaultHashCost matches the cost the service ships with in production mode.
const DefaultHashCost = 12

// Store holds all registered accounts in memory.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	hashCost int
}

// NewStore constructs an empty account store.
func NewStore(opts ...Option) *Store {
	store := &Store{
		accounts: make(map[string]models.Account),
		hashCost: DefaultHashCost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Exists reports whether an account with the exact username is registered.
// Comparison is case-sensitive.
func (s *Store) Exists(username string) bool {
	s.mu.RLock()
	_, ok := s.accounts[username]
	s.mu.RUnlock()
	return ok
}

// Create registers a new account, storing only a bcrypt hash of the
// credential. It returns false when the username is already taken or the
// credential cannot be hashed; the plaintext is never retained.
func (s *Store) Create(username, password string) bool {
	if username == "" || password == "" {
		return false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[username]; taken {
		return false
	}
	s.accounts[username] = models.Account{Username: username, PasswordHash: string(hash)}
	return true
}

// Authenticate reports whether the username exists and the provided plaintext
// verifies against the stored hash. Hash subsystem failures count as
// authentication failures.
func (s *Store) Authenticate(username, password string) bool {
	s.mu.RLock()
	account, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil
}

// Count returns the number of registered accounts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
