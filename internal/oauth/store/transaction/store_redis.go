package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

const keyPrefix = "stride:oauth:txn:"

// RedisStore keeps pending authorization transactions in Redis so they
// survive restarts and are shared across replicas. Each key expires with its
// transaction.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

type RedisOption func(*RedisStore)

// WithClock overrides the clock used to compute key TTLs.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(txID id.TransactionID) string {
	return keyPrefix + txID.String()
}

func (s *RedisStore) Save(ctx context.Context, tx *models.Transaction) error {
	ttl := tx.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("transaction already expired: %w", sentinel.ErrExpired)
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	if err := s.client.Set(ctx, key(tx.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	raw, err := s.client.Get(ctx, key(txID)).Bytes()
	return decode(raw, err)
}

// Take uses GETDEL so that only one caller can observe the transaction.
func (s *RedisStore) Take(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	raw, err := s.client.GetDel(ctx, key(txID)).Bytes()
	return decode(raw, err)
}

func decode(raw []byte, err error) (*models.Transaction, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("transaction not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}
