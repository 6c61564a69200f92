package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// LockRepository takes PostgreSQL advisory locks scoped to the surrounding transaction.
type LockRepository struct{}

func NewLockRepository() *LockRepository {
	return &LockRepository{}
}

// AcquireXact blocks until every key is locked. Locks release on commit or
// rollback; keys must be passed in a stable order to avoid deadlocks.
func (r *LockRepository) AcquireXact(ctx context.Context, tx sqlx.ExecerContext, keys ...string) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}
	return nil
}
