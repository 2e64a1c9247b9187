package postgres

import (
	"context"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ValidationRepo implements ports.ValidationRepository. Both methods run inside
// the project's locking transaction.
type ValidationRepo struct {
	pool Pool
}

func NewValidationRepo(pool Pool) *ValidationRepo {
	return &ValidationRepo{pool: pool}
}

func (r *ValidationRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Validation) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO validations (project_id, validator, created_at) VALUES ($1, $2, $3)`,
		v.ProjectID, v.Validator, v.CreatedAt,
	)
	if err != nil {
		return mapWriteError("insert validation", err)
	}
	return nil
}

func (r *ValidationRepo) Exists(ctx context.Context, tx pgx.Tx, projectID int64, validator string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM validations WHERE project_id = $1 AND validator = $2)`, projectID, validator,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check validation: %w", err)
	}
	return exists, nil
}
