package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	screeningDispatchTimeout = 10 * time.Second
	autoValidateBatch        = 100
)

// autoValidator is the identity the auto-validation sweep acts under.
var autoValidator = domain.SystemPrincipal("auto-validator", domain.RoleOperator)

// GovernancePolicy holds the lifecycle parameters of the registry.
type GovernancePolicy struct {
	VotingPeriod              time.Duration
	ValidationThreshold       int
	AutoValidateAfter         time.Duration // 0 disables auto-validation
	ParticipationThresholdBps int64         // share of total supply that must vote, 0 disables
}

// RegistryServiceImpl implements ports.RegistryService and ports.VoteRecorder.
type RegistryServiceImpl struct {
	store      ports.GovernanceStore
	dispatcher ports.ScreeningDispatcher
	publisher  ports.EventPublisher
	clock      ports.Clock
	policy     GovernancePolicy
	log        zerolog.Logger
}

// NewRegistryService creates a new RegistryServiceImpl. dispatcher may be nil
// when pre-screening is disabled.
func NewRegistryService(
	store ports.GovernanceStore,
	dispatcher ports.ScreeningDispatcher,
	publisher ports.EventPublisher,
	clock ports.Clock,
	policy GovernancePolicy,
	log zerolog.Logger,
) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		store:      store,
		dispatcher: dispatcher,
		publisher:  publisher,
		clock:      clock,
		policy:     policy,
		log:        log,
	}
}

// SubmitProject registers a new project in PENDING and queues it for AI pre-screening.
func (s *RegistryServiceImpl) SubmitProject(ctx context.Context, principal domain.Principal, req ports.SubmitProjectRequest) (*domain.Project, error) {
	if principal.IsZero() {
		return nil, apperror.ErrUnauthorized("submit projects")
	}
	externalID := strings.TrimSpace(req.ExternalID)
	title := strings.TrimSpace(req.Title)
	if externalID == "" {
		return nil, apperror.Validation("external_id is required")
	}
	if title == "" {
		return nil, apperror.Validation("title is required")
	}
	if req.FundingRequired <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var (
		project *domain.Project
		events  []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		exists, err := s.store.Projects.ExistsByExternalID(ctx, tx, externalID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check external id: %w", err))
		}
		if exists {
			return apperror.ErrDuplicateExternalID()
		}

		now := s.clock.Now()
		project = &domain.Project{
			ExternalID:      externalID,
			Title:           title,
			Description:     req.Description,
			Proposer:        domain.NormalizeAccount(principal.Account),
			FundingRequired: req.FundingRequired,
			Status:          domain.ProjectStatusPending,
			SubmittedAt:     now,
			Metadata:        req.Metadata,
			UpdatedAt:       now,
		}
		if err := s.store.Projects.Create(ctx, tx, project); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return apperror.ErrDuplicateExternalID()
			}
			return apperror.InternalError(fmt.Errorf("create project: %w", err))
		}

		events = []domain.Event{domain.NewProjectSubmittedEvent(project, now)}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	s.dispatchScreening(domain.NewScreeningJob(project, s.clock.Now()))

	s.log.Info().
		Int64("project_id", project.ID).
		Str("external_id", project.ExternalID).
		Str("proposer", project.Proposer).
		Int64("funding_required", project.FundingRequired).
		Msg("project submitted")

	return project, nil
}

// dispatchScreening hands the job off in the background; failures never reach the submitter.
func (s *RegistryServiceImpl) dispatchScreening(job domain.ScreeningJob) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), screeningDispatchTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.log.Warn().Err(err).Int64("project_id", job.ProjectID).Msg("screening dispatch failed")
		}
	}()
}

// ValidateProject counts one validator approval. Reaching the threshold opens voting.
func (s *RegistryServiceImpl) ValidateProject(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error) {
	if !principal.Has(domain.RoleValidator) {
		return nil, apperror.ErrUnauthorized("validate projects")
	}
	validator := domain.NormalizeAccount(principal.Account)

	var (
		project *domain.Project
		events  []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		var err error
		project, err = s.lockAwaitingValidation(ctx, tx, id)
		if err != nil {
			return err
		}

		already, err := s.store.Validations.Exists(ctx, tx, id, validator)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check validation: %w", err))
		}
		if already {
			return apperror.ErrAlreadyValidated()
		}

		now := s.clock.Now()
		if err := s.store.Validations.Create(ctx, tx, &domain.Validation{
			ProjectID: id,
			Validator: validator,
			CreatedAt: now,
		}); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return apperror.ErrAlreadyValidated()
			}
			return apperror.InternalError(fmt.Errorf("create validation: %w", err))
		}

		from := project.Status
		project.ValidationCount++
		if project.ValidationCount >= s.policy.ValidationThreshold {
			project.OpenVoting(now, s.policy.VotingPeriod)
		} else {
			project.Status = domain.ProjectStatusValidating
		}
		project.UpdatedAt = now

		if err := s.store.Projects.Update(ctx, tx, project); err != nil {
			return apperror.InternalError(fmt.Errorf("update project: %w", err))
		}

		events = []domain.Event{domain.NewProjectValidatedEvent(project, validator, false, now)}
		if from != project.Status {
			events = append(events, domain.NewStatusChangedEvent(project, from, validator, now))
		}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	s.log.Info().
		Int64("project_id", id).
		Str("validator", validator).
		Int("validation_count", project.ValidationCount).
		Str("status", string(project.Status)).
		Msg("project validated")
	return project, nil
}

// AutoValidate opens voting for a project that has waited AutoValidateAfter
// without reaching the validator threshold. Operator or system only.
func (s *RegistryServiceImpl) AutoValidate(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error) {
	if !principal.Has(domain.RoleOperator) {
		return nil, apperror.ErrUnauthorized("auto-validate projects")
	}
	if s.policy.AutoValidateAfter <= 0 {
		return nil, apperror.ErrAutoValidationDisabled()
	}

	var (
		project *domain.Project
		events  []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		var err error
		project, err = s.lockAwaitingValidation(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if now.Before(project.SubmittedAt.Add(s.policy.AutoValidateAfter)) {
			return apperror.ErrAutoValidationNotDue()
		}

		from := project.Status
		project.OpenVoting(now, s.policy.VotingPeriod)
		project.UpdatedAt = now
		if err := s.store.Projects.Update(ctx, tx, project); err != nil {
			return apperror.InternalError(fmt.Errorf("update project: %w", err))
		}

		actor := domain.NormalizeAccount(principal.Account)
		events = []domain.Event{
			domain.NewProjectValidatedEvent(project, actor, true, now),
			domain.NewStatusChangedEvent(project, from, actor, now),
		}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	s.log.Info().
		Int64("project_id", id).
		Str("actor", principal.Account).
		Msg("project auto-validated")
	return project, nil
}

// AutoValidateDue auto-validates every project past the timeout. It returns how many opened voting.
func (s *RegistryServiceImpl) AutoValidateDue(ctx context.Context) (int, error) {
	if s.policy.AutoValidateAfter <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now().Add(-s.policy.AutoValidateAfter)
	ids, err := s.store.Projects.ListAwaitingValidation(ctx, cutoff, autoValidateBatch)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale projects: %w", err))
	}

	opened := 0
	for _, id := range ids {
		if _, err := s.AutoValidate(ctx, autoValidator, id); err != nil {
			if errors.Is(err, apperror.ErrInvalidState("")) || errors.Is(err, apperror.ErrAutoValidationNotDue()) {
				// validated concurrently since the listing
				continue
			}
			s.log.Warn().Err(err).Int64("project_id", id).Msg("auto-validation failed")
			continue
		}
		opened++
	}
	return opened, nil
}

func (s *RegistryServiceImpl) lockAwaitingValidation(ctx context.Context, tx pgx.Tx, id int64) (*domain.Project, error) {
	project, err := s.lockProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !project.AwaitingValidation() {
		return nil, apperror.ErrInvalidState("project is " + string(project.Status))
	}
	return project, nil
}

func (s *RegistryServiceImpl) lockProject(ctx context.Context, tx pgx.Tx, id int64) (*domain.Project, error) {
	project, err := s.store.Projects.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock project: %w", err))
	}
	if project == nil {
		return nil, apperror.ErrProjectNotFound()
	}
	return project, nil
}

// ResolveVoting settles a closed vote. A project passes when turnout meets the
// participation threshold and support outweighs opposition; otherwise it is
// rejected. Resolving an already settled project returns it unchanged.
func (s *RegistryServiceImpl) ResolveVoting(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error) {
	if principal.IsZero() {
		return nil, apperror.ErrUnauthorized("resolve voting")
	}

	var (
		project *domain.Project
		events  []domain.Event
		passed  bool
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		var err error
		events = nil
		project, err = s.lockProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if project.VotingEndTime == nil {
			return apperror.ErrInvalidState("voting has not opened")
		}
		if project.IsResolved() {
			return nil
		}

		now := s.clock.Now()
		if now.Before(*project.VotingEndTime) {
			return apperror.ErrVotingStillOpen()
		}

		state, err := s.store.Ledger.Get(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get ledger: %w", err))
		}
		var supply int64
		if state != nil {
			supply = state.TotalSupply
		}
		turnout := domain.PowerBps(project.TotalVotes(), supply)
		participationMet := s.policy.ParticipationThresholdBps == 0 || turnout >= s.policy.ParticipationThresholdBps
		passed = participationMet && project.ForVotes > project.AgainstVotes

		from := project.Status
		project.ResolvedAt = &now
		if !passed {
			project.Status = domain.ProjectStatusRejected
		}
		project.UpdatedAt = now
		if err := s.store.Projects.Update(ctx, tx, project); err != nil {
			return apperror.InternalError(fmt.Errorf("update project: %w", err))
		}

		events = []domain.Event{domain.NewVotingResolvedEvent(project, passed, turnout, now)}
		if from != project.Status {
			events = append(events, domain.NewStatusChangedEvent(project, from, domain.NormalizeAccount(principal.Account), now))
		}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return project, nil
	}

	s.publisher.Publish(ctx, events...)
	s.log.Info().
		Int64("project_id", id).
		Bool("passed", passed).
		Int64("for_votes", project.ForVotes).
		Int64("against_votes", project.AgainstVotes).
		Str("status", string(project.Status)).
		Msg("voting resolved")
	return project, nil
}

// ExecuteProject marks a passed project executed. Operator only; fund release
// belongs to the treasury and happens elsewhere.
func (s *RegistryServiceImpl) ExecuteProject(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error) {
	if !principal.Has(domain.RoleOperator) {
		return nil, apperror.ErrUnauthorized("execute projects")
	}

	var (
		project *domain.Project
		events  []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		var err error
		project, err = s.lockProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if !project.CanExecute() {
			switch {
			case project.Executed:
				return apperror.ErrInvalidState("project already executed")
			case project.Status != domain.ProjectStatusApproved:
				return apperror.ErrInvalidState("project is " + string(project.Status))
			default:
				return apperror.ErrInvalidState("voting has not been resolved")
			}
		}

		now := s.clock.Now()
		from := project.Status
		project.Executed = true
		project.ExecutedAt = &now
		project.Status = domain.ProjectStatusExecuted
		project.UpdatedAt = now
		if err := s.store.Projects.Update(ctx, tx, project); err != nil {
			return apperror.InternalError(fmt.Errorf("update project: %w", err))
		}

		events = []domain.Event{domain.NewStatusChangedEvent(project, from, domain.NormalizeAccount(principal.Account), now)}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	s.log.Info().
		Int64("project_id", id).
		Str("operator", principal.Account).
		Msg("project executed")
	return project, nil
}

// RecordVote adds weight to the tally of a project locked by the caller's transaction.
func (s *RegistryServiceImpl) RecordVote(ctx context.Context, tx pgx.Tx, project *domain.Project, support bool, weight int64, now time.Time) error {
	if err := checkWindow(project, now); err != nil {
		return err
	}
	if weight <= 0 {
		return apperror.ErrInvalidAmount()
	}

	if support {
		project.ForVotes += weight
	} else {
		project.AgainstVotes += weight
	}
	project.UpdatedAt = now
	if err := s.store.Projects.Update(ctx, tx, project); err != nil {
		return apperror.InternalError(fmt.Errorf("update tally: %w", err))
	}
	return nil
}

func checkWindow(project *domain.Project, now time.Time) error {
	switch project.Window(now) {
	case domain.WindowNotStarted:
		return apperror.ErrVotingNotStarted()
	case domain.WindowEnded:
		return apperror.ErrVotingEnded()
	}
	return nil
}

func (s *RegistryServiceImpl) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	project, err := s.store.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get project: %w", err))
	}
	if project == nil {
		return nil, apperror.ErrProjectNotFound()
	}
	return project, nil
}

func (s *RegistryServiceImpl) ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, int64, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	if filter.Proposer != "" {
		filter.Proposer = domain.NormalizeAccount(filter.Proposer)
	}
	projects, total, err := s.store.Projects.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list projects: %w", err))
	}
	return projects, total, nil
}

// ProjectVotes returns the current tally and when voting closes.
func (s *RegistryServiceImpl) ProjectVotes(ctx context.Context, id int64) (*ports.VoteTally, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ports.VoteTally{
		ProjectID:     project.ID,
		ForVotes:      project.ForVotes,
		AgainstVotes:  project.AgainstVotes,
		SupportBps:    project.SupportBps(),
		VotingEndTime: project.VotingEndTime,
	}, nil
}

// RecordScreening stores the AI verdict on the project. Lifecycle state is untouched.
func (s *RegistryServiceImpl) RecordScreening(ctx context.Context, id int64, result *domain.ScreeningResult) error {
	if result == nil {
		return apperror.Validation("screening result is required")
	}

	var events []domain.Event
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		if _, err := s.lockProject(ctx, tx, id); err != nil {
			return err
		}
		if err := s.store.Projects.UpdateScreening(ctx, tx, id, result); err != nil {
			return apperror.InternalError(fmt.Errorf("update screening: %w", err))
		}
		events = []domain.Event{domain.NewProjectScreenedEvent(id, result, s.clock.Now())}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, events...)
	evt := s.log.Info().Int64("project_id", id).Str("status", string(result.Status))
	if result.Score != nil {
		evt = evt.Int("score", *result.Score)
	}
	evt.Msg("screening recorded")
	return nil
}

var (
	_ ports.RegistryService = (*RegistryServiceImpl)(nil)
	_ ports.VoteRecorder    = (*RegistryServiceImpl)(nil)
)
