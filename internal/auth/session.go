package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// SessionStore defines the persistence contract for server-held sessions used
// by the cookie transport.
type SessionStore interface {
	Save(id, credential string, expiresAt time.Time) error
	Get(id string) (SessionRecord, bool, error)
	Delete(id string) error
	PurgeExpired(now time.Time) error
}

// SessionRecord captures a session row retrieved from the backing store. The
// credential it holds is the signed token issued at login; the session expiry
// mirrors the credential's and is never extended.
type SessionRecord struct {
	ID         string
	Credential string
	ExpiresAt  time.Time
}

// SessionOption configures a SessionManager instance.
type SessionOption func(*SessionManager)

// WithSessionStore injects a custom SessionStore implementation.
func WithSessionStore(store SessionStore) SessionOption {
	return func(m *SessionManager) {
		m.store = store
	}
}

// WithSessionIDLength sets the random ID length for newly created sessions.
func WithSessionIDLength(length int) SessionOption {
	return func(m *SessionManager) {
		if length > 0 {
			m.idLength = length
		}
	}
}

// ErrCredentialRequired is returned when creating a session without a
// credential to hold.
var ErrCredentialRequired = errors.New("credential is required")

// SessionManager coordinates session creation and lookup against a backing
// store. The client only ever sees the opaque session ID; the credential
// stays server-side.
type SessionManager struct {
	store     SessionStore
	idLength  int
	idFactory func(int) (string, error)
}

// NewSessionManager constructs a SessionManager, defaulting to an in-memory
// store when none is supplied.
func NewSessionManager(opts ...SessionOption) *SessionManager {
	manager := &SessionManager{
		idLength:  32,
		idFactory: generateSessionID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.store == nil {
		manager.store = NewMemorySessionStore()
	}
	return manager
}

// Create stores the credential under a fresh opaque session ID that expires
// alongside the credential.
func (m *SessionManager) Create(credential string, expiresAt time.Time) (string, error) {
	if credential == "" {
		return "", ErrCredentialRequired
	}
	id, err := m.idFactory(m.idLength)
	if err != nil {
		return "", err
	}
	if err := m.store.Save(id, credential, expiresAt.UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// Lookup resolves a session ID to the credential it holds. Expired sessions
// are removed on access and report a miss.
func (m *SessionManager) Lookup(id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	record, ok, err := m.store.Get(id)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	if time.Now().After(record.ExpiresAt) {
		_ = m.store.Delete(id)
		return "", false, nil
	}
	return record.Credential, true, nil
}

// Revoke deletes the session from the backing store. Revoking an unknown or
// empty ID is a no-op.
func (m *SessionManager) Revoke(id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(id)
}

// PurgeExpired removes any expired sessions from the backing store.
func (m *SessionManager) PurgeExpired() error {
	return m.store.PurgeExpired(time.Now())
}

func generateSessionID(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
