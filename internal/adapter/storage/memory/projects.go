package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

type projectRepo struct{ s *Store }

func (r *projectRepo) Create(_ context.Context, tx pgx.Tx, p *domain.Project) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	if exists, _ := r.ExistsByExternalID(context.Background(), tx, p.ExternalID); exists {
		return fmt.Errorf("insert project: %w", ports.ErrDuplicateKey)
	}

	r.s.mu.Lock()
	r.s.nextProjectID++
	p.ID = r.s.nextProjectID
	r.s.mu.Unlock()

	mt.projects[p.ID] = cloneProject(p)
	mt.newProjects = append(mt.newProjects, p.ID)
	return nil
}

func (r *projectRepo) GetByID(_ context.Context, id int64) (*domain.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	return cloneProject(p), nil
}

func (r *projectRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id int64) (*domain.Project, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return nil, err
	}
	p := mt.project(id)
	if p == nil {
		return nil, nil
	}
	return cloneProject(p), nil
}

func (r *projectRepo) ExistsByExternalID(_ context.Context, tx pgx.Tx, externalID string) (bool, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return false, err
	}
	for _, id := range mt.newProjects {
		if mt.projects[id].ExternalID == externalID {
			return true, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.externalIDs[externalID]
	return ok, nil
}

func (r *projectRepo) Update(_ context.Context, tx pgx.Tx, p *domain.Project) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	current := mt.project(p.ID)
	if current == nil {
		return fmt.Errorf("update project %d: no rows affected", p.ID)
	}
	next := cloneProject(p)
	// Identity and screening are not lifecycle fields.
	next.ExternalID = current.ExternalID
	next.Proposer = current.Proposer
	next.SubmittedAt = current.SubmittedAt
	next.Screening = current.Screening
	mt.projects[p.ID] = next
	return nil
}

func (r *projectRepo) UpdateScreening(_ context.Context, tx pgx.Tx, id int64, result *domain.ScreeningResult) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	current := mt.project(id)
	if current == nil {
		return fmt.Errorf("update screening for project %d: no rows affected", id)
	}
	next := cloneProject(current)
	sc := *result
	next.Screening = &sc
	mt.projects[id] = next
	return nil
}

func (r *projectRepo) List(_ context.Context, filter domain.ProjectFilter) ([]domain.Project, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Project
	for _, p := range r.s.projects {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Proposer != "" && p.Proposer != filter.Proposer {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	out := make([]domain.Project, 0, filter.Limit)
	for i := filter.Offset; i < len(matched) && len(out) < filter.Limit; i++ {
		out = append(out, *cloneProject(matched[i]))
	}
	return out, total, nil
}

func (r *projectRepo) ListAwaitingValidation(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var due []*domain.Project
	for _, p := range r.s.projects {
		if p.AwaitingValidation() && !p.SubmittedAt.After(cutoff) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].SubmittedAt.Equal(due[j].SubmittedAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].SubmittedAt.Before(due[j].SubmittedAt)
	})

	ids := make([]int64, 0, limit)
	for _, p := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r *projectRepo) CountByStatus(context.Context) (map[domain.ProjectStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.ProjectStatus]int64)
	for _, p := range r.s.projects {
		counts[p.Status]++
	}
	return counts, nil
}

type validationRepo struct{ s *Store }

func (r *validationRepo) Create(_ context.Context, tx pgx.Tx, v *domain.Validation) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	if exists, _ := r.Exists(context.Background(), tx, v.ProjectID, v.Validator); exists {
		return fmt.Errorf("insert validation: %w", ports.ErrDuplicateKey)
	}
	mt.validations = append(mt.validations, *v)
	return nil
}

func (r *validationRepo) Exists(_ context.Context, tx pgx.Tx, projectID int64, validator string) (bool, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return false, err
	}
	for _, v := range mt.validations {
		if v.ProjectID == projectID && v.Validator == validator {
			return true, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.validations[ballotKey{projectID, validator}]
	return ok, nil
}

type voteRepo struct{ s *Store }

func (r *voteRepo) Create(_ context.Context, tx pgx.Tx, v *domain.Vote) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	if exists, _ := r.Exists(context.Background(), tx, v.ProjectID, v.Voter); exists {
		return fmt.Errorf("insert vote: %w", ports.ErrDuplicateKey)
	}
	mt.votes = append(mt.votes, *v)
	return nil
}

func (r *voteRepo) Exists(_ context.Context, tx pgx.Tx, projectID int64, voter string) (bool, error) {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return false, err
	}
	for _, v := range mt.votes {
		if v.ProjectID == projectID && v.Voter == voter {
			return true, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.votes[ballotKey{projectID, voter}]
	return ok, nil
}

func (r *voteRepo) Get(_ context.Context, projectID int64, voter string) (*domain.Vote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.votes[ballotKey{projectID, voter}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *voteRepo) ListByProject(_ context.Context, projectID int64) ([]domain.Vote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var votes []domain.Vote
	for k, v := range r.s.votes {
		if k.projectID == projectID {
			votes = append(votes, v)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].CastAt.Equal(votes[j].CastAt) {
			return votes[i].Voter < votes[j].Voter
		}
		return votes[i].CastAt.Before(votes[j].CastAt)
	})
	return votes, nil
}
