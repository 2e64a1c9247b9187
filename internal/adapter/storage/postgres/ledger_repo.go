package postgres

import (
	"context"
	"errors"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository over the singleton ledger_state row.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const selectLedger = `SELECT total_supply, total_value_locked, updated_at FROM ledger_state WHERE id = 1`

// Get reads the ledger totals.
func (r *LedgerRepo) Get(ctx context.Context) (*domain.LedgerState, error) {
	return scanLedger(r.pool.QueryRow(ctx, selectLedger))
}

// GetForUpdate reads the ledger totals and locks the row. Every mint serializes here.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.LedgerState, error) {
	return scanLedger(tx.QueryRow(ctx, selectLedger+` FOR UPDATE`))
}

// Update writes the ledger totals.
func (r *LedgerRepo) Update(ctx context.Context, tx pgx.Tx, state *domain.LedgerState) error {
	query := `UPDATE ledger_state SET total_supply = $1, total_value_locked = $2, updated_at = $3 WHERE id = 1`

	tag, err := tx.Exec(ctx, query, state.TotalSupply, state.TotalValueLocked, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("update ledger: ledger_state row missing")
	}
	return nil
}

func scanLedger(row pgx.Row) (*domain.LedgerState, error) {
	s := &domain.LedgerState{}
	if err := row.Scan(&s.TotalSupply, &s.TotalValueLocked, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("get ledger: ledger_state row missing, run migrations")
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return s, nil
}
