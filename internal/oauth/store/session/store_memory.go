package session

import (
	"context"
	"fmt"
	"sync"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

// InMemoryStore keeps login sessions in memory for tests and development.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]models.LoginSession
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]models.LoginSession)}
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, sessionID id.SessionID) (*models.LoginSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return &sess, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	delete(s.sessions, sessionID)
	return nil
}
