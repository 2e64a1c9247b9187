package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testDonor = domain.Principal{Account: "0xDonor", Roles: []domain.Role{domain.RoleMember}}

type exchangeTestDeps struct {
	*storeMocks
	svc        *ExchangeServiceImpl
	minter     *mocks.MockTxMinter
	idempCache *mocks.MockIdempotencyCache
	publisher  *capturePublisher
}

func setupExchangeService(t *testing.T) *exchangeTestDeps {
	m := newStoreMocks(t)
	d := &exchangeTestDeps{
		storeMocks: m,
		minter:     mocks.NewMockTxMinter(m.ctrl),
		idempCache: mocks.NewMockIdempotencyCache(m.ctrl),
		publisher:  &capturePublisher{},
	}
	d.svc = NewExchangeService(m.store(), d.minter, d.idempCache, d.publisher, newFixedClock(), newTestLogger())
	return d
}

func testExchangeConfig() *domain.ExchangeConfig {
	return &domain.ExchangeConfig{
		Rate:           decimal.NewFromInt(2),
		FeeBasisPoints: 200,
		MinDonation:    10,
		MaxDonation:    100000,
	}
}

func TestExchangeService_Donate_Success(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()
	ref := "gift-001"
	key := domain.BuildDonationIdempotencyKey("0xdonor", ref)

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.donations.EXPECT().GetByReference(ctx, "0xdonor", ref).Return(nil, nil)
	d.expectTx()
	d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil)
	// 1000 usd, 2% fee = 20, net 980, rate 2 => 1960 tokens
	d.minter.EXPECT().MintTx(ctx, d.tx, exchangePrincipal, "0xfriend", int64(1960)).Return(nil)
	d.ledger.EXPECT().GetForUpdate(ctx, d.tx).Return(&domain.LedgerState{TotalSupply: 1960, TotalValueLocked: 20}, nil)
	d.ledger.EXPECT().Update(ctx, d.tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, s *domain.LedgerState) error {
		assert.Equal(t, int64(1000), s.TotalValueLocked)
		return nil
	})
	d.donations.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(nil)
	d.expectEvents(1)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(nil)

	res, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 1000, Recipient: "0xFriend", ReferenceID: &ref})
	require.NoError(t, err)
	assert.Equal(t, int64(1960), res.TokensMinted)
	assert.Equal(t, int64(20), res.FeeAmount)
	assert.Equal(t, int64(980), res.NetAmount)
	assert.Equal(t, "0xdonor", res.Donation.Donor)
	assert.Equal(t, "0xfriend", res.Donation.Recipient)
	assert.Equal(t, "2", res.Donation.Rate)
	assert.Equal(t, []domain.EventType{domain.EventDonationReceived}, d.publisher.types())
}

func TestExchangeService_Donate_RecipientDefaultsToDonor(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.expectTx()
	d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil)
	d.minter.EXPECT().MintTx(ctx, d.tx, exchangePrincipal, "0xdonor", int64(98)).Return(nil)
	d.ledger.EXPECT().GetForUpdate(ctx, d.tx).Return(&domain.LedgerState{}, nil)
	d.ledger.EXPECT().Update(ctx, d.tx, gomock.Any()).Return(nil)
	d.donations.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(nil)
	d.expectEvents(1)

	res, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 50})
	require.NoError(t, err)
	assert.Equal(t, "0xdonor", res.Donation.Recipient)
	assert.Nil(t, res.Donation.ReferenceID)
}

func TestExchangeService_Donate_ReplayFromCache(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()
	ref := "gift-001"
	key := domain.BuildDonationIdempotencyKey("0xdonor", ref)

	prior := &domain.DonationResult{
		Donation:     &domain.Donation{ID: uuid.New(), Donor: "0xdonor", TokensMinted: 1960},
		TokensMinted: 1960,
	}
	cached, _ := json.Marshal(prior)
	d.idempCache.EXPECT().Get(ctx, key).Return(cached, nil)

	res, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 1000, ReferenceID: &ref})
	require.NoError(t, err)
	assert.Equal(t, prior.Donation.ID, res.Donation.ID)
	assert.Empty(t, d.publisher.types(), "a replay must not emit events")
}

func TestExchangeService_Donate_ReplayFromDatabase(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()
	ref := "gift-002"
	key := domain.BuildDonationIdempotencyKey("0xdonor", ref)

	existing := &domain.Donation{ID: uuid.New(), Donor: "0xdonor", TokensMinted: 40, FeeAmount: 1, NetAmount: 20}
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, errors.New("redis down"))
	d.donations.EXPECT().GetByReference(ctx, "0xdonor", ref).Return(existing, nil)

	res, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 21, ReferenceID: &ref})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.Donation.ID)
	assert.Equal(t, int64(40), res.TokensMinted)
}

func TestExchangeService_Donate_ConcurrentRetryReturnsWinner(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()
	ref := "gift-003"
	key := domain.BuildDonationIdempotencyKey("0xdonor", ref)

	winner := &domain.Donation{ID: uuid.New(), Donor: "0xdonor", TokensMinted: 98}
	gomock.InOrder(
		d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil),
		d.donations.EXPECT().GetByReference(ctx, "0xdonor", ref).Return(nil, nil),
	)
	d.expectTx()
	d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil)
	d.minter.EXPECT().MintTx(ctx, d.tx, exchangePrincipal, "0xdonor", int64(98)).Return(nil)
	d.ledger.EXPECT().GetForUpdate(ctx, d.tx).Return(&domain.LedgerState{}, nil)
	d.ledger.EXPECT().Update(ctx, d.tx, gomock.Any()).Return(nil)
	d.donations.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(ports.ErrDuplicateKey)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.donations.EXPECT().GetByReference(ctx, "0xdonor", ref).Return(winner, nil)

	res, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 50, ReferenceID: &ref})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.Donation.ID)
	assert.Empty(t, d.publisher.types())
}

func TestExchangeService_Donate_OutOfBounds(t *testing.T) {
	for _, amount := range []int64{-5, 0, 9, 100001} {
		d := setupExchangeService(t)
		ctx := context.Background()

		d.expectTx()
		d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil)

		_, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: amount})
		assertAppError(t, err, "EXC_001")
	}
}

func TestExchangeService_Donate_TokenOverflowMintsNothing(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()
	cfg := testExchangeConfig()
	cfg.Rate = decimal.RequireFromString("1e15")

	d.expectTx()
	d.exchange.EXPECT().Get(ctx).Return(cfg, nil)

	_, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 100000})
	assertAppError(t, err, "EXC_001")
	assert.Empty(t, d.publisher.types())
}

func TestExchangeService_Donate_MintFailureRollsBack(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.expectTx()
	d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil)
	d.minter.EXPECT().MintTx(ctx, d.tx, exchangePrincipal, "0xdonor", int64(98)).Return(errors.New("ledger locked"))

	_, err := d.svc.Donate(ctx, testDonor, ports.DonateRequest{USDAmount: 50})
	assertAppError(t, err, "EXC_002")
	assert.Empty(t, d.publisher.types())
}

func TestExchangeService_Donate_RequiresPrincipal(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	_, err := d.svc.Donate(ctx, domain.Principal{}, ports.DonateRequest{USDAmount: 50})
	assertAppError(t, err, "AUTH_005")
}

func TestExchangeService_Quote(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.exchange.EXPECT().Get(ctx).Return(testExchangeConfig(), nil).Times(4)

	q, err := d.svc.Quote(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.FeeAmount)
	assert.Equal(t, int64(980), q.Tokens)

	for _, amount := range []int64{-5, 0, 1} {
		_, err = d.svc.Quote(ctx, amount)
		assertAppError(t, err, "EXC_001")
	}
}

func TestExchangeService_TotalValueLocked(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.ledger.EXPECT().Get(ctx).Return(&domain.LedgerState{TotalValueLocked: 12345}, nil)

	tvl, err := d.svc.TotalValueLocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), tvl)
}

func TestExchangeService_ListDonations_ClampsPage(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.donations.EXPECT().ListByDonor(ctx, "0xdonor", maxPageSize, 0).Return([]domain.Donation{{Donor: "0xdonor"}}, int64(1), nil)

	items, total, err := d.svc.ListDonations(ctx, "0xDONOR", 1000, -3)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
}

func TestExchangeService_UpdateConfig(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.expectTx()
	d.exchange.EXPECT().Save(ctx, d.tx, gomock.Any()).Return(nil)
	d.expectEvents(1)

	cfg, err := d.svc.UpdateConfig(ctx, testOperator, ports.UpdateExchangeConfigRequest{
		Rate:           decimal.RequireFromString("1.5"),
		FeeBasisPoints: 100,
		MinDonation:    5,
		MaxDonation:    500,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xop", cfg.UpdatedBy)
	assert.Equal(t, []domain.EventType{domain.EventExchangeConfigUpdate}, d.publisher.types())
}

func TestExchangeService_UpdateConfig_Rejections(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	_, err := d.svc.UpdateConfig(ctx, testDonor, ports.UpdateExchangeConfigRequest{Rate: decimal.NewFromInt(1), MinDonation: 1, MaxDonation: 2})
	assertAppError(t, err, "AUTH_005")

	_, err = d.svc.UpdateConfig(ctx, testOperator, ports.UpdateExchangeConfigRequest{Rate: decimal.Zero, MinDonation: 1, MaxDonation: 2})
	assertAppError(t, err, "EXC_003")

	_, err = d.svc.UpdateConfig(ctx, testOperator, ports.UpdateExchangeConfigRequest{Rate: decimal.NewFromInt(1), FeeBasisPoints: 10000, MinDonation: 1, MaxDonation: 2})
	assertAppError(t, err, "EXC_003")
}

func TestExchangeService_EnsureConfig(t *testing.T) {
	d := setupExchangeService(t)
	ctx := context.Background()

	d.exchange.EXPECT().Seed(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, cfg *domain.ExchangeConfig) (bool, error) {
		assert.Equal(t, "system:config", cfg.UpdatedBy)
		return true, nil
	})
	require.NoError(t, d.svc.EnsureConfig(ctx, *testExchangeConfig()))

	err := d.svc.EnsureConfig(ctx, domain.ExchangeConfig{Rate: decimal.NewFromInt(1)})
	assertAppError(t, err, "EXC_003")
}
