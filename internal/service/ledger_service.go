package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService and ports.TxMinter.
type LedgerServiceImpl struct {
	store ports.GovernanceStore
	clock ports.Clock
	log   zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(store ports.GovernanceStore, clock ports.Clock, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{store: store, clock: clock, log: log}
}

// Mint credits amount to account and grows total supply in one transaction.
func (s *LedgerServiceImpl) Mint(ctx context.Context, principal domain.Principal, account string, amount int64) error {
	if err := checkMint(principal, account, amount); err != nil {
		return err
	}
	account = domain.NormalizeAccount(account)

	if err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		return s.MintTx(ctx, tx, principal, account, amount)
	}); err != nil {
		return err
	}

	s.log.Info().
		Str("account", account).
		Str("minter", principal.Account).
		Int64("amount", amount).
		Msg("tokens minted")
	return nil
}

// MintTx mints inside a transaction owned by the caller. The ledger row stays
// locked until that transaction ends, so mints are applied one at a time.
func (s *LedgerServiceImpl) MintTx(ctx context.Context, tx pgx.Tx, principal domain.Principal, account string, amount int64) error {
	if err := checkMint(principal, account, amount); err != nil {
		return err
	}
	account = domain.NormalizeAccount(account)

	state, err := s.store.Ledger.GetForUpdate(ctx, tx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock ledger: %w", err))
	}
	if state == nil {
		return apperror.ErrLedgerCorrupted(errors.New("ledger state row missing"))
	}
	if state.TotalSupply > math.MaxInt64-amount {
		return apperror.InternalError(fmt.Errorf("total supply overflow minting %d", amount))
	}

	if err := s.store.Accounts.Credit(ctx, tx, account, amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit account: %w", err))
	}

	state.TotalSupply += amount
	state.UpdatedAt = s.clock.Now()
	if err := s.store.Ledger.Update(ctx, tx, state); err != nil {
		return apperror.InternalError(fmt.Errorf("update ledger: %w", err))
	}
	return nil
}

func checkMint(principal domain.Principal, account string, amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if !principal.Has(domain.RoleMinter) {
		return apperror.ErrUnauthorized("mint tokens")
	}
	if strings.TrimSpace(account) == "" {
		return apperror.Validation("account is required")
	}
	return nil
}

// BalanceOf returns zero for accounts that were never minted to.
func (s *LedgerServiceImpl) BalanceOf(ctx context.Context, account string) (int64, error) {
	acc, err := s.store.Accounts.GetByAddress(ctx, domain.NormalizeAccount(account))
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Balance, nil
}

func (s *LedgerServiceImpl) TotalSupply(ctx context.Context) (int64, error) {
	state, err := s.store.Ledger.Get(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get ledger: %w", err))
	}
	if state == nil {
		return 0, nil
	}
	return state.TotalSupply, nil
}

// VerifySupply checks that balances add up to total supply. The ledger row is
// locked while summing so no mint can land in between.
func (s *LedgerServiceImpl) VerifySupply(ctx context.Context) error {
	var supply, sum int64
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		state, err := s.store.Ledger.GetForUpdate(ctx, tx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock ledger: %w", err))
		}
		if state != nil {
			supply = state.TotalSupply
		}
		sum, err = s.store.Accounts.SumBalances(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("sum balances: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if supply != sum {
		corrupted := apperror.ErrLedgerCorrupted(fmt.Errorf("total supply %d != sum of balances %d", supply, sum))
		s.log.Error().
			Int64("total_supply", supply).
			Int64("sum_balances", sum).
			Msg("ledger invariant violated")
		return corrupted
	}
	return nil
}

var (
	_ ports.LedgerService = (*LedgerServiceImpl)(nil)
	_ ports.TxMinter      = (*LedgerServiceImpl)(nil)
)
