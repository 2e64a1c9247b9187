package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"wildlife-governance/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMinter = domain.SystemPrincipal("test", domain.RoleMinter)

func setupLedgerService(t *testing.T) (*LedgerServiceImpl, *storeMocks) {
	m := newStoreMocks(t)
	return NewLedgerService(m.store(), newFixedClock(), newTestLogger()), m
}

func TestLedgerService_Mint_Success(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.expectTx()
	m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(&domain.LedgerState{TotalSupply: 1000}, nil)
	m.accounts.EXPECT().Credit(ctx, m.tx, "0xalice", int64(250)).Return(nil)
	m.ledger.EXPECT().Update(ctx, m.tx, &domain.LedgerState{TotalSupply: 1250, UpdatedAt: newFixedClock().Now()}).Return(nil)

	require.NoError(t, svc.Mint(ctx, testMinter, " 0xAlice ", 250))
}

func TestLedgerService_Mint_Rejections(t *testing.T) {
	svc, _ := setupLedgerService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal domain.Principal
		account   string
		amount    int64
		code      string
	}{
		{"zero amount", testMinter, "0xalice", 0, "GOV_001"},
		{"negative amount", testMinter, "0xalice", -5, "GOV_001"},
		{"not a minter", domain.Principal{Account: "0xop", Roles: []domain.Role{domain.RoleOperator}}, "0xalice", 10, "AUTH_005"},
		{"empty account", testMinter, "  ", 10, "GOV_002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Mint(ctx, tt.principal, tt.account, tt.amount)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestLedgerService_Mint_MissingLedgerRow(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.expectTx()
	m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(nil, nil)

	assertAppError(t, svc.Mint(ctx, testMinter, "0xalice", 1), "SYS_002")
}

func TestLedgerService_Mint_SupplyOverflow(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.expectTx()
	m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(&domain.LedgerState{TotalSupply: math.MaxInt64 - 1}, nil)

	assertAppError(t, svc.Mint(ctx, testMinter, "0xalice", 2), "SYS_001")
}

func TestLedgerService_Mint_CreditFailureAborts(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.expectTx()
	m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(&domain.LedgerState{}, nil)
	m.accounts.EXPECT().Credit(ctx, m.tx, "0xalice", int64(5)).Return(errors.New("disk full"))

	assertAppError(t, svc.Mint(ctx, testMinter, "0xalice", 5), "SYS_001")
}

func TestLedgerService_BalanceOf(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.accounts.EXPECT().GetByAddress(ctx, "0xalice").Return(&domain.Account{Address: "0xalice", Balance: 700}, nil)
	m.accounts.EXPECT().GetByAddress(ctx, "0xnobody").Return(nil, nil)

	bal, err := svc.BalanceOf(ctx, "0xALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal)

	bal, err = svc.BalanceOf(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestLedgerService_TotalSupply(t *testing.T) {
	svc, m := setupLedgerService(t)
	ctx := context.Background()

	m.ledger.EXPECT().Get(ctx).Return(&domain.LedgerState{TotalSupply: 9000}, nil)

	supply, err := svc.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), supply)
}

func TestLedgerService_VerifySupply(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		ctx := context.Background()

		m.expectTx()
		m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(&domain.LedgerState{TotalSupply: 300}, nil)
		m.accounts.EXPECT().SumBalances(ctx).Return(int64(300), nil)

		assert.NoError(t, svc.VerifySupply(ctx))
	})

	t.Run("mismatch is fatal", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		ctx := context.Background()

		m.expectTx()
		m.ledger.EXPECT().GetForUpdate(ctx, m.tx).Return(&domain.LedgerState{TotalSupply: 300}, nil)
		m.accounts.EXPECT().SumBalances(ctx).Return(int64(299), nil)

		assertAppError(t, svc.VerifySupply(ctx), "SYS_002")
	})
}
