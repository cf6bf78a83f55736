package service

import (
	"context"
	"sync"
	"time"

	dErrors "stride/pkg/domain-errors"
)

// TxStores are the stores reachable inside a grant transaction. Postgres
// implementations pick the transaction up from the context, so the same
// store values serve both inside and outside RunInTx.
type TxStores struct {
	Codes  AuthorizationCodeStore
	Tokens AccessTokenStore
}

// GrantStoreTx provides the transactional boundary for code exchange: the
// code delete and the token insert commit together or not at all.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
type GrantStoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// defaultGrantTxTimeout is the maximum duration for a grant transaction.
const defaultGrantTxTimeout = 5 * time.Second

// inMemoryTx serializes grant transactions with a single mutex. The memory
// stores cannot roll back, so a token insert failing after the code delete
// leaves the code consumed.
type inMemoryTx struct {
	mu      sync.Mutex
	stores  TxStores
	timeout time.Duration
}

func NewInMemoryTx(stores TxStores, timeout time.Duration) GrantStoreTx {
	return &inMemoryTx{stores: stores, timeout: timeout}
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultGrantTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.stores)
}
