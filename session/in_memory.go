package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/agentplay/core"
)

// ErrSessionNotFound is returned when no session exists for a task id.
var ErrSessionNotFound = errors.New("session not found")

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Each returned session is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.WorldSession
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.WorldSession)}
}

// Put stores a clone of the session, replacing any session of the same task.
func (s *InMemoryStore) Put(session *core.WorldSession) error {
	if session == nil {
		return core.NewConfigurationError(core.InvalidRequest, "session is nil")
	}
	if err := session.Handle.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Handle.TaskID] = session.Clone()

	return nil
}

// Get returns a clone of the session or ErrSessionNotFound.
func (s *InMemoryStore) Get(taskID string) (*core.WorldSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[taskID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

// List returns clones of all sessions, newest first.
func (s *InMemoryStore) List() ([]*core.WorldSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.WorldSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Handle.TaskID < out[j].Handle.TaskID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// Delete removes the session or returns ErrSessionNotFound.
func (s *InMemoryStore) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[taskID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, taskID)

	return nil
}
