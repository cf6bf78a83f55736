package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the requested client does not exist
// - ErrConflict when the public client_id is already registered
// - wrapped errors for infrastructure failures

// InMemoryStore keeps clients in memory for tests and development.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.ClientID]*models.Client
	byClientID map[string]id.ClientID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[id.ClientID]*models.Client),
		byClientID: make(map[string]id.ClientID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byClientID[c.ClientID]; ok {
		return fmt.Errorf("client %s already registered: %w", c.ClientID, sentinel.ErrConflict)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	s.byID[c.ID] = &stored
	s.byClientID[c.ClientID] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *InMemoryStore) FindByClientID(_ context.Context, clientID string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	internalID, ok := s.byClientID[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	out := *s.byID[internalID]
	return &out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, clientID id.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[clientID]
	if !ok {
		return fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	delete(s.byClientID, c.ClientID)
	delete(s.byID, clientID)
	return nil
}
