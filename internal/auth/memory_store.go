package auth

import (
	"sync"
	"time"
)

// MemorySessionStore keeps session state in memory. It is safe for concurrent
// use; sessions do not survive a process restart, which is the documented
// behaviour of the service.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
}

// NewMemorySessionStore constructs an in-memory store implementation.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]SessionRecord)}
}

// Save records the session details for the provided ID.
func (s *MemorySessionStore) Save(id, credential string, expiresAt time.Time) error {
	s.mu.Lock()
	s.sessions[id] = SessionRecord{ID: id, Credential: credential, ExpiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Get retrieves the session record for the provided ID.
func (s *MemorySessionStore) Get(id string) (SessionRecord, bool, error) {
	s.mu.RLock()
	record, ok := s.sessions[id]
	s.mu.RUnlock()
	return record, ok, nil
}

// Delete removes the session from the store.
func (s *MemorySessionStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// PurgeExpired removes any expired sessions from the store.
func (s *MemorySessionStore) PurgeExpired(now time.Time) error {
	s.mu.Lock()
	for id, record := range s.sessions {
		if now.After(record.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	return nil
}
