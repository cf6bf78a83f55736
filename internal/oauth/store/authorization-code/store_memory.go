package authorizationcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stride/internal/oauth/models"
	"stride/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the code does not exist, including a Delete that lost
//   the race to another exchange
// - ErrConflict when Create would overwrite an existing code

// InMemoryAuthorizationCodeStore stores authorization codes in memory for tests/dev.
type InMemoryAuthorizationCodeStore struct {
	mu        sync.RWMutex
	authCodes map[string]*models.AuthorizationCode
}

// New constructs an empty in-memory auth code store.
func New() *InMemoryAuthorizationCodeStore {
	return &InMemoryAuthorizationCodeStore{
		authCodes: make(map[string]*models.AuthorizationCode),
	}
}

func (s *InMemoryAuthorizationCodeStore) Create(_ context.Context, authCode *models.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authCodes[authCode.Code]; ok {
		return fmt.Errorf("authorization code collision: %w", sentinel.ErrConflict)
	}
	now := time.Now()
	if authCode.CreatedAt.IsZero() {
		authCode.CreatedAt = now
	}
	authCode.UpdatedAt = now
	stored := *authCode
	s.authCodes[authCode.Code] = &stored
	return nil
}

func (s *InMemoryAuthorizationCodeStore) FindByCode(_ context.Context, code string) (*models.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if authCode, ok := s.authCodes[code]; ok {
		out := *authCode
		return &out, nil
	}
	return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
}

// Delete removes code, reporting ErrNotFound if it was already gone. Exactly
// one of several concurrent deletes of the same code succeeds.
func (s *InMemoryAuthorizationCodeStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authCodes[code]; !ok {
		return fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	delete(s.authCodes, code)
	return nil
}

// DeleteCreatedBefore removes codes issued before cutoff and reports how
// many were removed.
func (s *InMemoryAuthorizationCodeStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletedCount := 0
	for code, record := range s.authCodes {
		if record.CreatedAt.Before(cutoff) {
			delete(s.authCodes, code)
			deletedCount++
		}
	}
	return deletedCount, nil
}
