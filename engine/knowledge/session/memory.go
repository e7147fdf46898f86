package session

import (
	"context"
	"sort"
	"sync"

	"github.com/askdocs/askdocs/engine/core"
)

// MemoryStore is an in-memory session store for tests and single-node dev
// runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.ID]Session
	messages map[core.ID][]Message
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[core.ID]Session),
		messages: make(map[core.ID][]Message),
	}
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id, keyID core.ID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.KeyID != keyID {
		return nil, core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"session_id": id})
	}
	return &sess, nil
}

func (s *MemoryStore) List(_ context.Context, keyID core.ID) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]Session, 0)
	for _, sess := range s.sessions {
		if sess.KeyID == keyID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) Delete(_ context.Context, id, keyID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.KeyID != keyID {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"session_id": id})
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) AddMessage(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[msg.SessionID]
	if !ok {
		return core.NewError(ErrNotFound, core.CodeNotFound, map[string]any{"session_id": msg.SessionID})
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	sess.UpdatedAt = msg.CreatedAt
	s.sessions[msg.SessionID] = sess
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID core.ID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]Message, len(s.messages[sessionID]))
	copy(messages, s.messages[sessionID])
	return messages, nil
}
