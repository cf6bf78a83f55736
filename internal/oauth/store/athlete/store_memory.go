package athlete

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

// InMemoryStore keeps athletes in memory for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.AthleteID]*models.Athlete
	byName map[string]id.AthleteID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.AthleteID]*models.Athlete),
		byName: make(map[string]id.AthleteID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Athlete) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[a.UserName]; ok {
		return fmt.Errorf("athlete %s already exists: %w", a.UserName, sentinel.ErrConflict)
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	stored := *a
	s.byID[a.ID] = &stored
	s.byName[a.UserName] = a.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, athleteID id.AthleteID) (*models.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[athleteID]
	if !ok {
		return nil, fmt.Errorf("athlete not found: %w", sentinel.ErrNotFound)
	}
	out := *a
	return &out, nil
}

func (s *InMemoryStore) FindByUserName(_ context.Context, userName string) (*models.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	athleteID, ok := s.byName[userName]
	if !ok {
		return nil, fmt.Errorf("athlete not found: %w", sentinel.ErrNotFound)
	}
	out := *s.byID[athleteID]
	return &out, nil
}
