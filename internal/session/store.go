// Package session provides the per-conversation lifecycle container and
// its in-memory store. A persistent SQLite-backed store lives in
// internal/store.
package session

import (
	"sync"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
)

// Store manages conversation sessions keyed by id.
//
// Reads return deep copies so callers can inspect state without holding
// any lock; all mutation goes through Update, which serializes writers
// for a given session.
type Store interface {
	// GetOrCreate finds an existing session or creates a fresh one.
	GetOrCreate(id string) *domain.Session

	// Get returns a snapshot of a session, or nil if not found.
	Get(id string) *domain.Session

	// Update applies fn to the session under the store's lock.
	// Returns false if the session does not exist.
	Update(id string, fn func(*domain.Session)) bool

	// Delete removes a session if it exists.
	Delete(id string)

	// List returns all session IDs.
	List() []string
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

func (s *MemoryStore) GetOrCreate(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess.Clone()
	}

	sess := newSession(id)
	s.sessions[id] = sess
	return sess.Clone()
}

func (s *MemoryStore) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id].Clone()
}

func (s *MemoryStore) Update(id string, fn func(*domain.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
	return true
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func newSession(id string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:         id,
		CreatedAt:  now,
		UpdatedAt:  now,
		State:      domain.StateAwaitingInput,
		TaskStatus: domain.TaskIdle,
	}
}
