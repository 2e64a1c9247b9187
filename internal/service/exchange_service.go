package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// exchangePrincipal is the identity the exchange mints under.
var exchangePrincipal = domain.SystemPrincipal("exchange", domain.RoleMinter)

// errDonationRaced marks a unique violation on (donor, reference_id) from a concurrent retry.
var errDonationRaced = errors.New("donation reference already used")

// ExchangeServiceImpl implements ports.ExchangeService.
type ExchangeServiceImpl struct {
	store      ports.GovernanceStore
	minter     ports.TxMinter
	idempCache ports.IdempotencyCache
	publisher  ports.EventPublisher
	clock      ports.Clock
	log        zerolog.Logger
}

// NewExchangeService creates a new ExchangeServiceImpl. idempCache may be nil.
func NewExchangeService(
	store ports.GovernanceStore,
	minter ports.TxMinter,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	clock ports.Clock,
	log zerolog.Logger,
) *ExchangeServiceImpl {
	return &ExchangeServiceImpl{
		store:      store,
		minter:     minter,
		idempCache: idempCache,
		publisher:  publisher,
		clock:      clock,
		log:        log,
	}
}

// EnsureConfig stores seed as the exchange policy unless one is already persisted.
func (s *ExchangeServiceImpl) EnsureConfig(ctx context.Context, seed domain.ExchangeConfig) error {
	if err := seed.Validate(); err != nil {
		return apperror.ErrInvalidExchangeConfig(err.Error())
	}
	seed.UpdatedBy = "system:config"
	seed.UpdatedAt = s.clock.Now()

	stored, err := s.store.Exchange.Seed(ctx, &seed)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("seed exchange config: %w", err))
	}
	if stored {
		s.log.Info().
			Str("rate", seed.Rate.String()).
			Int64("fee_bps", seed.FeeBasisPoints).
			Msg("exchange config seeded")
	}
	return nil
}

// Donate converts usd into tokens for the recipient. Fee, mint, donation row
// and TVL change commit together or not at all.
func (s *ExchangeServiceImpl) Donate(ctx context.Context, principal domain.Principal, req ports.DonateRequest) (*domain.DonationResult, error) {
	if principal.IsZero() {
		return nil, apperror.ErrUnauthorized("donate")
	}
	donor := domain.NormalizeAccount(principal.Account)
	recipient := domain.NormalizeAccount(req.Recipient)
	if recipient == "" {
		recipient = donor
	}

	var idempKey string
	if req.ReferenceID != nil {
		idempKey = domain.BuildDonationIdempotencyKey(donor, *req.ReferenceID)
		if prior, err := s.priorDonation(ctx, idempKey, donor, *req.ReferenceID); err != nil || prior != nil {
			return prior, err
		}
	}

	var (
		donation *domain.Donation
		events   []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		cfg, err := s.store.Exchange.Get(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get exchange config: %w", err))
		}
		if cfg == nil {
			return apperror.InternalError(errors.New("exchange config not seeded"))
		}
		if !cfg.InBounds(req.USDAmount) {
			return apperror.ErrDonationOutOfBounds(cfg.MinDonation, cfg.MaxDonation)
		}

		quote, err := cfg.Quote(req.USDAmount)
		if err != nil {
			return apperror.ErrDonationOutOfBounds(cfg.MinDonation, cfg.MaxDonation)
		}
		if err := s.minter.MintTx(ctx, tx, exchangePrincipal, recipient, quote.Tokens); err != nil {
			return apperror.ErrMintFailed(err)
		}

		state, err := s.store.Ledger.GetForUpdate(ctx, tx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock ledger: %w", err))
		}
		if state == nil {
			return apperror.ErrLedgerCorrupted(errors.New("ledger state row missing"))
		}
		now := s.clock.Now()
		state.TotalValueLocked += quote.NetAmount
		state.UpdatedAt = now
		if err := s.store.Ledger.Update(ctx, tx, state); err != nil {
			return apperror.InternalError(fmt.Errorf("update value locked: %w", err))
		}

		donation = &domain.Donation{
			ID:           uuid.New(),
			Donor:        donor,
			Recipient:    recipient,
			ReferenceID:  req.ReferenceID,
			USDAmount:    quote.USDAmount,
			FeeAmount:    quote.FeeAmount,
			NetAmount:    quote.NetAmount,
			TokensMinted: quote.Tokens,
			Rate:         quote.Rate,
			CreatedAt:    now,
		}
		if err := s.store.Donations.Create(ctx, tx, donation); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return errDonationRaced
			}
			return apperror.InternalError(fmt.Errorf("create donation: %w", err))
		}

		events = []domain.Event{domain.NewDonationReceivedEvent(donation)}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if errors.Is(err, errDonationRaced) && req.ReferenceID != nil {
		return s.priorDonation(ctx, idempKey, donor, *req.ReferenceID)
	}
	if err != nil {
		return nil, err
	}

	result := donationResult(donation)
	if idempKey != "" && s.idempCache != nil {
		if respJSON, err := json.Marshal(result); err == nil {
			if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache donation in redis")
			}
		}
	}
	s.publisher.Publish(ctx, events...)

	s.log.Info().
		Str("donation_id", donation.ID.String()).
		Str("donor", donor).
		Str("recipient", recipient).
		Int64("usd_amount", donation.USDAmount).
		Int64("tokens", donation.TokensMinted).
		Msg("donation processed")

	return result, nil
}

// priorDonation looks a reference up in redis, then in the donations table.
func (s *ExchangeServiceImpl) priorDonation(ctx context.Context, key, donor, referenceID string) (*domain.DonationResult, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			var result domain.DonationResult
			if err := json.Unmarshal(cached, &result); err == nil && result.Donation != nil {
				return &result, nil
			}
		}
	}

	existing, err := s.store.Donations.GetByReference(ctx, donor, referenceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing == nil {
		return nil, nil
	}
	return donationResult(existing), nil
}

func donationResult(d *domain.Donation) *domain.DonationResult {
	return &domain.DonationResult{
		Donation:     d,
		TokensMinted: d.TokensMinted,
		FeeAmount:    d.FeeAmount,
		NetAmount:    d.NetAmount,
	}
}

// Quote previews a donation without touching state.
func (s *ExchangeServiceImpl) Quote(ctx context.Context, usdAmount int64) (*domain.Quote, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.InBounds(usdAmount) {
		return nil, apperror.ErrDonationOutOfBounds(cfg.MinDonation, cfg.MaxDonation)
	}
	q, err := cfg.Quote(usdAmount)
	if err != nil {
		return nil, apperror.ErrDonationOutOfBounds(cfg.MinDonation, cfg.MaxDonation)
	}
	return &q, nil
}

func (s *ExchangeServiceImpl) TotalValueLocked(ctx context.Context) (int64, error) {
	state, err := s.store.Ledger.Get(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get ledger: %w", err))
	}
	if state == nil {
		return 0, nil
	}
	return state.TotalValueLocked, nil
}

func (s *ExchangeServiceImpl) ListDonations(ctx context.Context, donor string, limit, offset int) ([]domain.Donation, int64, error) {
	limit, offset = clampPage(limit, offset)
	donations, total, err := s.store.Donations.ListByDonor(ctx, domain.NormalizeAccount(donor), limit, offset)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list donations: %w", err))
	}
	return donations, total, nil
}

func (s *ExchangeServiceImpl) GetConfig(ctx context.Context) (*domain.ExchangeConfig, error) {
	cfg, err := s.store.Exchange.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get exchange config: %w", err))
	}
	if cfg == nil {
		return nil, apperror.InternalError(errors.New("exchange config not seeded"))
	}
	return cfg, nil
}

// UpdateConfig replaces the exchange policy. Operator only.
func (s *ExchangeServiceImpl) UpdateConfig(ctx context.Context, principal domain.Principal, req ports.UpdateExchangeConfigRequest) (*domain.ExchangeConfig, error) {
	if !principal.Has(domain.RoleOperator) {
		return nil, apperror.ErrUnauthorized("update the exchange config")
	}

	cfg := &domain.ExchangeConfig{
		Rate:           req.Rate,
		FeeBasisPoints: req.FeeBasisPoints,
		MinDonation:    req.MinDonation,
		MaxDonation:    req.MaxDonation,
		UpdatedBy:      domain.NormalizeAccount(principal.Account),
		UpdatedAt:      s.clock.Now(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperror.ErrInvalidExchangeConfig(err.Error())
	}

	events := []domain.Event{domain.NewExchangeConfigUpdatedEvent(cfg)}
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		if err := s.store.Exchange.Save(ctx, tx, cfg); err != nil {
			return apperror.InternalError(fmt.Errorf("save exchange config: %w", err))
		}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	s.log.Info().
		Str("operator", cfg.UpdatedBy).
		Str("rate", cfg.Rate.String()).
		Int64("fee_bps", cfg.FeeBasisPoints).
		Int64("min_donation", cfg.MinDonation).
		Int64("max_donation", cfg.MaxDonation).
		Msg("exchange config updated")
	return cfg, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ ports.ExchangeService = (*ExchangeServiceImpl)(nil)
