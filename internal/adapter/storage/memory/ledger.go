package memory

import (
	"context"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

type accountRepo struct{ s *Store }

func (r *accountRepo) GetByAddress(_ context.Context, address string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	acct, ok := r.s.accounts[address]
	if !ok {
		return nil, nil
	}
	c := *acct
	return &c, nil
}

// GetBalanceForShare needs no row lock here: transactions are already serialized.
func (r *accountRepo) GetBalanceForShare(_ context.Context, tx pgx.Tx, address string) (int64, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return 0, err
	}
	return mt.balance(address), nil
}

func (r *accountRepo) Credit(_ context.Context, tx pgx.Tx, address string, amount int64) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	next := mt.balance(address) + amount
	if next < 0 {
		return fmt.Errorf("credit account %s: balance would be negative", address)
	}
	mt.balances[address] = next
	return nil
}

func (r *accountRepo) SumBalances(context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var sum int64
	for _, a := range r.s.accounts {
		sum += a.Balance
	}
	return sum, nil
}

func (r *accountRepo) CountHolders(context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, a := range r.s.accounts {
		if a.Balance > 0 {
			n++
		}
	}
	return n, nil
}

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Get(context.Context) (*domain.LedgerState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state := r.s.ledger
	return &state, nil
}

func (r *ledgerRepo) GetForUpdate(_ context.Context, tx pgx.Tx) (*domain.LedgerState, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return nil, err
	}
	if mt.ledger != nil {
		state := *mt.ledger
		return &state, nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state := r.s.ledger
	return &state, nil
}

func (r *ledgerRepo) Update(_ context.Context, tx pgx.Tx, state *domain.LedgerState) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	if state.TotalSupply < 0 || state.TotalValueLocked < 0 {
		return fmt.Errorf("update ledger: negative totals")
	}
	next := *state
	mt.ledger = &next
	return nil
}
