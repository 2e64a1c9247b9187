package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const voteCacheTTL = 30 * 24 * time.Hour

// VotingServiceImpl implements ports.VotingService.
type VotingServiceImpl struct {
	store        ports.GovernanceStore
	recorder     ports.VoteRecorder
	voteCache    ports.VoteCache
	publisher    ports.EventPublisher
	clock        ports.Clock
	minVotePower int64
	log          zerolog.Logger
}

// NewVotingService creates a new VotingServiceImpl. voteCache may be nil.
func NewVotingService(
	store ports.GovernanceStore,
	recorder ports.VoteRecorder,
	voteCache ports.VoteCache,
	publisher ports.EventPublisher,
	clock ports.Clock,
	minVotePower int64,
	log zerolog.Logger,
) *VotingServiceImpl {
	return &VotingServiceImpl{
		store:        store,
		recorder:     recorder,
		voteCache:    voteCache,
		publisher:    publisher,
		clock:        clock,
		minVotePower: minVotePower,
		log:          log,
	}
}

// VoteOnProject casts the caller's whole balance for or against a project.
// The project row is locked and the balance is read under a shared lock in the
// same transaction, so the weight checked is the weight tallied.
func (s *VotingServiceImpl) VoteOnProject(ctx context.Context, principal domain.Principal, projectID int64, support bool) (*domain.VoteReceipt, error) {
	if principal.IsZero() {
		return nil, apperror.ErrUnauthorized("vote")
	}
	voter := domain.NormalizeAccount(principal.Account)

	var (
		receipt *domain.VoteReceipt
		events  []domain.Event
	)
	err := inTx(ctx, s.store.Transactor, func(tx pgx.Tx) error {
		project, err := s.store.Projects.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock project: %w", err))
		}
		if project == nil {
			return apperror.ErrProjectNotFound()
		}

		now := s.clock.Now()
		if err := checkWindow(project, now); err != nil {
			return err
		}

		voted, err := s.store.Votes.Exists(ctx, tx, projectID, voter)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check vote: %w", err))
		}
		if voted {
			return apperror.ErrAlreadyVoted()
		}

		weight, err := s.store.Accounts.GetBalanceForShare(ctx, tx, voter)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("read balance: %w", err))
		}
		if weight <= 0 || weight < s.minVotePower {
			return apperror.ErrInsufficientVotingPower(s.minVotePower)
		}

		vote := &domain.Vote{
			ProjectID: projectID,
			Voter:     voter,
			Support:   support,
			Weight:    weight,
			CastAt:    now,
		}
		if err := s.store.Votes.Create(ctx, tx, vote); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return apperror.ErrAlreadyVoted()
			}
			return apperror.InternalError(fmt.Errorf("create vote: %w", err))
		}

		if err := s.recorder.RecordVote(ctx, tx, project, support, weight, now); err != nil {
			return err
		}

		state, err := s.store.Ledger.Get(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get ledger: %w", err))
		}
		var supply int64
		if state != nil {
			supply = state.TotalSupply
		}

		receipt = &domain.VoteReceipt{Vote: *vote, PowerBps: domain.PowerBps(weight, supply)}
		events = []domain.Event{domain.NewVoteCastEvent(vote)}
		return appendEvents(ctx, tx, s.store.Events, events)
	})
	if err != nil {
		return nil, err
	}

	if s.voteCache != nil {
		if _, err := s.voteCache.MarkVoted(ctx, projectID, voter, voteCacheTTL); err != nil {
			s.log.Warn().Err(err).Int64("project_id", projectID).Str("voter", voter).Msg("failed to cache vote receipt")
		}
	}
	s.publisher.Publish(ctx, events...)

	s.log.Info().
		Int64("project_id", projectID).
		Str("voter", voter).
		Bool("support", support).
		Int64("weight", receipt.Weight).
		Int64("power_bps", receipt.PowerBps).
		Msg("vote cast")
	return receipt, nil
}

// HasVoted never fails: lookup errors are logged and reported as false.
func (s *VotingServiceImpl) HasVoted(ctx context.Context, projectID int64, voter string) bool {
	voter = domain.NormalizeAccount(voter)

	if s.voteCache != nil {
		cached, err := s.voteCache.HasVoted(ctx, projectID, voter)
		if err != nil {
			s.log.Warn().Err(err).Int64("project_id", projectID).Msg("vote cache lookup failed, falling through to DB")
		}
		if cached {
			return true
		}
	}

	vote, err := s.store.Votes.Get(ctx, projectID, voter)
	if err != nil {
		s.log.Error().Err(err).Int64("project_id", projectID).Str("voter", voter).Msg("vote lookup failed")
		return false
	}
	return vote != nil
}

// CheckEligibility mirrors VoteOnProject's checks without writing anything.
func (s *VotingServiceImpl) CheckEligibility(ctx context.Context, projectID int64, voter string) *domain.Eligibility {
	voter = domain.NormalizeAccount(voter)

	project, err := s.store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return s.unavailable(err, projectID)
	}
	if project == nil {
		return ineligible(apperror.ErrProjectNotFound(), 0)
	}
	if err := checkWindow(project, s.clock.Now()); err != nil {
		return ineligible(err, 0)
	}

	vote, err := s.store.Votes.Get(ctx, projectID, voter)
	if err != nil {
		return s.unavailable(err, projectID)
	}
	if vote != nil {
		return ineligible(apperror.ErrAlreadyVoted(), vote.Weight)
	}

	var balance int64
	acc, err := s.store.Accounts.GetByAddress(ctx, voter)
	if err != nil {
		return s.unavailable(err, projectID)
	}
	if acc != nil {
		balance = acc.Balance
	}
	if balance <= 0 || balance < s.minVotePower {
		return ineligible(apperror.ErrInsufficientVotingPower(s.minVotePower), balance)
	}

	return &domain.Eligibility{Eligible: true, Reason: "Eligible to vote", Weight: balance}
}

func ineligible(err error, weight int64) *domain.Eligibility {
	var appErr *apperror.AppError
	errors.As(err, &appErr)
	return &domain.Eligibility{Reason: appErr.Message, Code: appErr.Code, Weight: weight}
}

func (s *VotingServiceImpl) unavailable(err error, projectID int64) *domain.Eligibility {
	s.log.Error().Err(err).Int64("project_id", projectID).Msg("eligibility check failed")
	return ineligible(apperror.InternalError(err), 0)
}

func (s *VotingServiceImpl) ListVotes(ctx context.Context, projectID int64) ([]domain.Vote, error) {
	project, err := s.store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get project: %w", err))
	}
	if project == nil {
		return nil, apperror.ErrProjectNotFound()
	}
	votes, err := s.store.Votes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list votes: %w", err))
	}
	return votes, nil
}

var _ ports.VotingService = (*VotingServiceImpl)(nil)
