package postgres

import (
	"context"
	"errors"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// DonationRepo implements ports.DonationRepository.
type DonationRepo struct {
	pool Pool
}

// NewDonationRepo creates a new DonationRepo.
func NewDonationRepo(pool Pool) *DonationRepo {
	return &DonationRepo{pool: pool}
}

const donationColumns = `id, donor, recipient, reference_id, usd_amount, fee_amount, net_amount, tokens_minted, rate, created_at`

// Create appends a donation. A reused (donor, reference_id) pair yields ports.ErrDuplicateKey.
func (r *DonationRepo) Create(ctx context.Context, tx pgx.Tx, d *domain.Donation) error {
	query := `INSERT INTO donations (` + donationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		d.ID, d.Donor, d.Recipient, d.ReferenceID, d.USDAmount, d.FeeAmount,
		d.NetAmount, d.TokensMinted, d.Rate, d.CreatedAt,
	)
	if err != nil {
		return mapWriteError("insert donation", err)
	}
	return nil
}

// GetByReference finds the donation a donor made under referenceID.
func (r *DonationRepo) GetByReference(ctx context.Context, donor, referenceID string) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE donor = $1 AND reference_id = $2`

	d, err := scanDonation(r.pool.QueryRow(ctx, query, donor, referenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get donation by reference: %w", err)
	}
	return d, nil
}

// ListByDonor returns a donor's history, newest first, with the total count.
func (r *DonationRepo) ListByDonor(ctx context.Context, donor string, limit, offset int) ([]domain.Donation, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM donations WHERE donor = $1`, donor).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count donations: %w", err)
	}

	query := `SELECT ` + donationColumns + ` FROM donations WHERE donor = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, donor, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate donations: %w", err)
	}
	return donations, total, nil
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	d := &domain.Donation{}
	err := row.Scan(
		&d.ID, &d.Donor, &d.Recipient, &d.ReferenceID, &d.USDAmount, &d.FeeAmount,
		&d.NetAmount, &d.TokensMinted, &d.Rate, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}
