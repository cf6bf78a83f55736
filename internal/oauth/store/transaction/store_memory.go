package transaction

import (
	"context"
	"fmt"
	"sync"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

// InMemoryStore holds pending authorization transactions in process memory.
// It does not survive restarts; production deployments use RedisStore.
// Expiry is judged by the caller against Transaction.ExpiresAt.
type InMemoryStore struct {
	mu  sync.Mutex
	txs map[id.TransactionID]models.Transaction
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{txs: make(map[id.TransactionID]models.Transaction)}
}

func (s *InMemoryStore) Save(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = *tx
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[txID]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", sentinel.ErrNotFound)
	}
	return &tx, nil
}

// Take removes and returns the transaction. Concurrent callers for the same
// ID see exactly one success.
func (s *InMemoryStore) Take(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[txID]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", sentinel.ErrNotFound)
	}
	delete(s.txs, txID)
	return &tx, nil
}
