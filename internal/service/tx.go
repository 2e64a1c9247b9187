package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const maxTxAttempts = 5

// inTx runs fn in a database transaction. Serialization failures, deadlocks
// and lock timeouts restart fn from scratch with a short backoff.
func inTx(ctx context.Context, transactor ports.DBTransactor, fn func(tx pgx.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := runTx(ctx, transactor, fn)
		if err == nil || !isRetryableTxError(err) || attempt == maxTxAttempts {
			return err
		}
		if err := sleepWithBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

func runTx(ctx context.Context, transactor ports.DBTransactor, fn func(tx pgx.Tx) error) error {
	dbTx, err := transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func sleepWithBackoff(ctx context.Context, attempt int) error {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// appendEvents writes events to the outbox inside tx, stamping their sequence numbers.
func appendEvents(ctx context.Context, tx pgx.Tx, repo ports.EventRepository, events []domain.Event) error {
	for i := range events {
		if err := repo.Append(ctx, tx, &events[i]); err != nil {
			return apperror.InternalError(fmt.Errorf("append %s event: %w", events[i].Type, err))
		}
	}
	return nil
}

// SystemClock reads the server wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
