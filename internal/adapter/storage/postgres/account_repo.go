package postgres

import (
	"context"
	"errors"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// GetByAddress fetches an account (non-locking read). Unknown addresses return nil.
func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (*domain.Account, error) {
	query := `SELECT address, balance, created_at, updated_at FROM accounts WHERE address = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, address).Scan(&a.Address, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetBalanceForShare reads the balance with FOR SHARE so no mint can change it
// before the calling transaction ends. Unknown addresses have a zero balance.
func (r *AccountRepo) GetBalanceForShare(ctx context.Context, tx pgx.Tx, address string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE address = $1 FOR SHARE`, address).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance for share: %w", err)
	}
	return balance, nil
}

// Credit adds amount to an account, creating the row on first credit.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, address string, amount int64) error {
	query := `INSERT INTO accounts (address, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, address, amount); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

// SumBalances returns the sum of all balances.
func (r *AccountRepo) SumBalances(ctx context.Context) (int64, error) {
	var sum int64
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts`).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}
	return sum, nil
}

// CountHolders counts accounts holding a positive balance.
func (r *AccountRepo) CountHolders(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE balance > 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count holders: %w", err)
	}
	return n, nil
}
