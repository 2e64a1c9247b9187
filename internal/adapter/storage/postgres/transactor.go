package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock
// before Postgres aborts it with lock_not_available (55P03).
const DefaultLockTimeout = 5 * time.Second

// Transactor implements ports.DBTransactor. Transactions run at READ COMMITTED;
// every governance write takes explicit row locks instead.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration // zero keeps the server default
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool, lockTimeout: DefaultLockTimeout}
}

// Begin opens a READ COMMITTED transaction with the lock timeout applied locally.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	if t.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	return tx, nil
}
