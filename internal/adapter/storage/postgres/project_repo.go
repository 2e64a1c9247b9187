package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ProjectRepo implements ports.ProjectRepository.
type ProjectRepo struct {
	pool Pool
}

// NewProjectRepo creates a new ProjectRepo.
func NewProjectRepo(pool Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

const projectColumns = `id, external_id, title, description, proposer, funding_required, funding_received,
	status, validation_count, submitted_at, voting_start_time, voting_end_time, for_votes, against_votes,
	resolved_at, executed, executed_at, metadata, screening, updated_at`

// Create inserts a project and assigns its sequential ID.
func (r *ProjectRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Project) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal project metadata: %w", err)
	}

	query := `INSERT INTO projects (external_id, title, description, proposer, funding_required, funding_received,
		status, validation_count, submitted_at, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err = tx.QueryRow(ctx, query,
		p.ExternalID, p.Title, p.Description, p.Proposer, p.FundingRequired, p.FundingReceived,
		string(p.Status), p.ValidationCount, p.SubmittedAt, metadata, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return mapWriteError("insert project", err)
	}
	return nil
}

// GetByID fetches a project (non-locking read).
func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a project with a row lock held until tx ends.
func (r *ProjectRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`
	p, err := scanProject(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get project for update: %w", err)
	}
	return p, nil
}

// ExistsByExternalID reports whether the external id is already registered.
func (r *ProjectRepo) ExistsByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external id: %w", err)
	}
	return exists, nil
}

// Update writes the mutable lifecycle fields of a project.
func (r *ProjectRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Project) error {
	query := `UPDATE projects SET status = $1, validation_count = $2, voting_start_time = $3, voting_end_time = $4,
		for_votes = $5, against_votes = $6, resolved_at = $7, executed = $8, executed_at = $9,
		funding_received = $10, updated_at = $11
		WHERE id = $12`

	tag, err := tx.Exec(ctx, query,
		string(p.Status), p.ValidationCount, p.VotingStartTime, p.VotingEndTime,
		p.ForVotes, p.AgainstVotes, p.ResolvedAt, p.Executed, p.ExecutedAt,
		p.FundingReceived, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %d: no rows affected", p.ID)
	}
	return nil
}

// UpdateScreening stores the pre-screening outcome.
func (r *ProjectRepo) UpdateScreening(ctx context.Context, tx pgx.Tx, id int64, result *domain.ScreeningResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal screening result: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE projects SET screening = $1 WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("update screening: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update screening for project %d: no rows affected", id)
	}
	return nil
}

// List returns one page of projects, newest first, and the total matching count.
func (r *ProjectRepo) List(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Proposer != "" {
		args = append(args, filter.Proposer)
		conds = append(conds, fmt.Sprintf("proposer = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM projects%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		projectColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, total, nil
}

// ListAwaitingValidation returns the oldest PENDING or VALIDATING projects submitted at or before cutoff.
func (r *ProjectRepo) ListAwaitingValidation(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	query := `SELECT id FROM projects
		WHERE status IN ('PENDING', 'VALIDATING') AND submitted_at <= $1
		ORDER BY submitted_at, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list awaiting validation: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByStatus groups projects by lifecycle status.
func (r *ProjectRepo) CountByStatus(ctx context.Context) (map[domain.ProjectStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count projects by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ProjectStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.ProjectStatus(status)] = n
	}
	return counts, rows.Err()
}

// scanProject reads one row in projectColumns order. A missing row yields (nil, nil).
func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		p         domain.Project
		status    string
		metadata  []byte
		screening []byte
	)
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Title, &p.Description, &p.Proposer, &p.FundingRequired, &p.FundingReceived,
		&status, &p.ValidationCount, &p.SubmittedAt, &p.VotingStartTime, &p.VotingEndTime, &p.ForVotes, &p.AgainstVotes,
		&p.ResolvedAt, &p.Executed, &p.ExecutedAt, &metadata, &screening, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Status = domain.ProjectStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(screening) > 0 {
		p.Screening = &domain.ScreeningResult{}
		if err := json.Unmarshal(screening, p.Screening); err != nil {
			return nil, fmt.Errorf("decode screening: %w", err)
		}
	}
	return &p, nil
}
