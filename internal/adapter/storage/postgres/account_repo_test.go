package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func beginMockTx(t *testing.T, mock pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestAccountRepo_GetByAddress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE address").
		WithArgs("0xabc").
		WillReturnRows(pgxmock.NewRows([]string{"address", "balance", "created_at", "updated_at"}).
			AddRow("0xabc", int64(250), now, now))

	acct, err := repo.GetByAddress(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, int64(250), acct.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByAddress_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE address").
		WithArgs("0xnobody").
		WillReturnError(pgx.ErrNoRows)

	acct, err := repo.GetByAddress(context.Background(), "0xnobody")
	assert.NoError(t, err)
	assert.Nil(t, acct)
}

func TestAccountRepo_GetBalanceForShare(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("SELECT balance FROM accounts WHERE address = \\$1 FOR SHARE").
		WithArgs("0xabc").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(120)))
	mock.ExpectQuery("FOR SHARE").
		WithArgs("0xnew").
		WillReturnError(pgx.ErrNoRows)

	balance, err := repo.GetBalanceForShare(context.Background(), tx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(120), balance)

	balance, err = repo.GetBalanceForShare(context.Background(), tx, "0xnew")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Credit_Upserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO accounts .+ ON CONFLICT \\(address\\) DO UPDATE").
		WithArgs("0xabc", int64(98)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Credit(context.Background(), tx, "0xabc", 98))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Aggregates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(balance\\), 0\\)").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(1000)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM accounts WHERE balance > 0").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	sum, err := repo.SumBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum)

	holders, err := repo.CountHolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), holders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetForUpdateAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	tx := beginMockTx(t, mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT total_supply, total_value_locked, updated_at FROM ledger_state WHERE id = 1 FOR UPDATE").
		WillReturnRows(pgxmock.NewRows([]string{"total_supply", "total_value_locked", "updated_at"}).
			AddRow(int64(500), int64(490), now))
	mock.ExpectExec("UPDATE ledger_state SET").
		WithArgs(int64(598), int64(588), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	state, err := repo.GetForUpdate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), state.TotalSupply)

	state.TotalSupply += 98
	state.TotalValueLocked += 98
	state.UpdatedAt = now
	require.NoError(t, repo.Update(context.Background(), tx, state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_MissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("FROM ledger_state").WillReturnError(pgx.ErrNoRows)

	state, err := repo.Get(context.Background())
	assert.Error(t, err)
	assert.Nil(t, state)
}
