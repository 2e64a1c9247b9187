package postgres

import (
	"context"
	"errors"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// VoteRepo implements ports.VoteRepository. The (project_id, voter) primary key
// backs the one-ballot-per-account rule.
type VoteRepo struct {
	pool Pool
}

func NewVoteRepo(pool Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

func (r *VoteRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Vote) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO votes (project_id, voter, support, weight, cast_at) VALUES ($1, $2, $3, $4, $5)`,
		v.ProjectID, v.Voter, v.Support, v.Weight, v.CastAt,
	)
	if err != nil {
		return mapWriteError("insert vote", err)
	}
	return nil
}

func (r *VoteRepo) Exists(ctx context.Context, tx pgx.Tx, projectID int64, voter string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE project_id = $1 AND voter = $2)`, projectID, voter,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}

func (r *VoteRepo) Get(ctx context.Context, projectID int64, voter string) (*domain.Vote, error) {
	v := &domain.Vote{}
	err := r.pool.QueryRow(ctx,
		`SELECT project_id, voter, support, weight, cast_at FROM votes WHERE project_id = $1 AND voter = $2`,
		projectID, voter,
	).Scan(&v.ProjectID, &v.Voter, &v.Support, &v.Weight, &v.CastAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return v, nil
}

// ListByProject returns ballots in casting order.
func (r *VoteRepo) ListByProject(ctx context.Context, projectID int64) ([]domain.Vote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT project_id, voter, support, weight, cast_at FROM votes WHERE project_id = $1 ORDER BY cast_at, voter`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.ProjectID, &v.Voter, &v.Support, &v.Weight, &v.CastAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
