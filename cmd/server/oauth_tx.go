package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stride/internal/oauth/service"
	dErrors "stride/pkg/domain-errors"
	txcontext "stride/pkg/platform/tx"
)

const defaultGrantTxTimeout = 5 * time.Second

// grantPostgresTx runs code exchange in one database transaction. The
// Postgres stores find the *sql.Tx in the context, so the code DELETE and the
// token INSERT commit together.
type grantPostgresTx struct {
	db      *sql.DB
	stores  service.TxStores
	timeout time.Duration
}

func newGrantPostgresTx(db *sql.DB, stores service.TxStores, timeout time.Duration) *grantPostgresTx {
	return &grantPostgresTx{db: db, stores: stores, timeout: timeout}
}

func (t *grantPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores service.TxStores) error) error {
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

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.FromStoreError(err, "failed to begin grant transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), t.stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "grant transaction timed out")
		}
		return dErrors.Wrap(fmt.Errorf("commit grant transaction: %w", err), dErrors.CodeInternal, "failed to commit grant transaction")
	}
	return nil
}
