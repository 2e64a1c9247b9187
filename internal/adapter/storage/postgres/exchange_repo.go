package postgres

import (
	"context"
	"errors"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ExchangeConfigRepo implements ports.ExchangeConfigRepository. The rate is
// stored as NUMERIC and crosses the driver boundary as text.
type ExchangeConfigRepo struct {
	pool Pool
}

// NewExchangeConfigRepo creates a new ExchangeConfigRepo.
func NewExchangeConfigRepo(pool Pool) *ExchangeConfigRepo {
	return &ExchangeConfigRepo{pool: pool}
}

// Get returns the active configuration, or nil before the first Seed.
func (r *ExchangeConfigRepo) Get(ctx context.Context) (*domain.ExchangeConfig, error) {
	query := `SELECT rate::text, fee_bps, min_donation, max_donation, updated_by, updated_at
		FROM exchange_config WHERE id = 1`

	var (
		cfg  domain.ExchangeConfig
		rate string
	)
	err := r.pool.QueryRow(ctx, query).Scan(&rate, &cfg.FeeBasisPoints, &cfg.MinDonation, &cfg.MaxDonation, &cfg.UpdatedBy, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exchange config: %w", err)
	}
	if cfg.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse exchange rate %q: %w", rate, err)
	}
	return &cfg, nil
}

// Save replaces the configuration.
func (r *ExchangeConfigRepo) Save(ctx context.Context, tx pgx.Tx, cfg *domain.ExchangeConfig) error {
	query := `INSERT INTO exchange_config (id, rate, fee_bps, min_donation, max_donation, updated_by, updated_at)
		VALUES (1, $1::numeric, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			rate = EXCLUDED.rate, fee_bps = EXCLUDED.fee_bps,
			min_donation = EXCLUDED.min_donation, max_donation = EXCLUDED.max_donation,
			updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		cfg.Rate.String(), cfg.FeeBasisPoints, cfg.MinDonation, cfg.MaxDonation, cfg.UpdatedBy, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save exchange config: %w", err)
	}
	return nil
}

// Seed stores cfg only if no configuration exists yet.
func (r *ExchangeConfigRepo) Seed(ctx context.Context, cfg *domain.ExchangeConfig) (bool, error) {
	query := `INSERT INTO exchange_config (id, rate, fee_bps, min_donation, max_donation, updated_by, updated_at)
		VALUES (1, $1::numeric, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		cfg.Rate.String(), cfg.FeeBasisPoints, cfg.MinDonation, cfg.MaxDonation, cfg.UpdatedBy, cfg.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("seed exchange config: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
