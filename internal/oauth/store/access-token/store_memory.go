package accesstoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stride/internal/oauth/models"
	"stride/pkg/platform/sentinel"
)

// InMemoryStore keeps access tokens in memory for tests and development.
// Tokens are immutable once created.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.AccessToken
}

func New() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.AccessToken)}
}

func (s *InMemoryStore) Create(_ context.Context, token *models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.Token]; ok {
		return fmt.Errorf("access token collision: %w", sentinel.ErrConflict)
	}
	now := time.Now()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now
	stored := *token
	if token.AthleteID != nil {
		athleteID := *token.AthleteID
		stored.AthleteID = &athleteID
	}
	s.tokens[token.Token] = &stored
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (*models.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
	}
	out := *t
	if t.AthleteID != nil {
		athleteID := *t.AthleteID
		out.AthleteID = &athleteID
	}
	return &out, nil
}

// Count is used by tests to assert that failed exchanges minted nothing.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
