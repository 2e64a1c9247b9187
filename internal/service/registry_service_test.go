package service

import (
	"context"
	"testing"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testProposer   = domain.Principal{Account: "0xProposer", Roles: []domain.Role{domain.RoleMember}}
	testValidator1 = domain.Principal{Account: "0xv1", Roles: []domain.Role{domain.RoleMember, domain.RoleValidator}}
	testValidator2 = domain.Principal{Account: "0xv2", Roles: []domain.Role{domain.RoleMember, domain.RoleValidator}}
)

// chanDispatcher forwards screening jobs to a channel.
type chanDispatcher chan domain.ScreeningJob

func (c chanDispatcher) Dispatch(_ context.Context, job domain.ScreeningJob) error {
	c <- job
	return nil
}

type registryTestDeps struct {
	*storeMocks
	svc        *RegistryServiceImpl
	clock      *fixedClock
	publisher  *capturePublisher
	dispatcher chanDispatcher
}

func testPolicy() GovernancePolicy {
	return GovernancePolicy{
		VotingPeriod:        7 * 24 * time.Hour,
		ValidationThreshold: 2,
	}
}

func setupRegistryService(t *testing.T, policy GovernancePolicy) *registryTestDeps {
	m := newStoreMocks(t)
	d := &registryTestDeps{
		storeMocks: m,
		clock:      newFixedClock(),
		publisher:  &capturePublisher{},
		dispatcher: make(chanDispatcher, 1),
	}
	d.svc = NewRegistryService(m.store(), d.dispatcher, d.publisher, d.clock, policy, newTestLogger())
	return d
}

func pendingProject(d *registryTestDeps) *domain.Project {
	return &domain.Project{
		ID:              1,
		ExternalID:      "wld-001",
		Title:           "Reef restoration",
		Proposer:        "0xproposer",
		FundingRequired: 5000,
		Status:          domain.ProjectStatusPending,
		SubmittedAt:     d.clock.Now().Add(-time.Hour),
	}
}

// votingProject returns a project whose window opened at start and lasts one week.
func votingProject(start time.Time, forVotes, againstVotes int64) *domain.Project {
	p := &domain.Project{ID: 1, ExternalID: "wld-001", Title: "Reef restoration", ValidationCount: 2}
	p.OpenVoting(start, 7*24*time.Hour)
	p.ForVotes = forVotes
	p.AgainstVotes = againstVotes
	return p
}

func (d *registryTestDeps) expectLock(p *domain.Project) {
	d.expectTx()
	d.projects.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, p.ID).Return(p, nil)
}

func TestRegistryService_SubmitProject_Success(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()

	d.expectTx()
	d.projects.EXPECT().ExistsByExternalID(ctx, d.tx, "wld-001").Return(false, nil)
	d.projects.EXPECT().Create(ctx, d.tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.Project) error {
		p.ID = 42
		return nil
	})
	d.expectEvents(1)

	p, err := d.svc.SubmitProject(ctx, testProposer, ports.SubmitProjectRequest{
		ExternalID:      " wld-001 ",
		Title:           "Reef restoration",
		Description:     "Replant coral",
		FundingRequired: 5000,
		Metadata:        domain.ProjectMetadata{Location: "Palawan"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, domain.ProjectStatusPending, p.Status)
	assert.Equal(t, "0xproposer", p.Proposer)
	assert.Equal(t, d.clock.Now(), p.SubmittedAt)
	assert.Nil(t, p.VotingEndTime)
	assert.Equal(t, []domain.EventType{domain.EventProjectSubmitted}, d.publisher.types())

	select {
	case job := <-d.dispatcher:
		assert.Equal(t, int64(42), job.ProjectID)
		assert.Contains(t, job.Text, "Reef restoration")
	case <-time.After(2 * time.Second):
		t.Fatal("screening job not dispatched")
	}
}

func TestRegistryService_SubmitProject_DuplicateExternalID(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	req := ports.SubmitProjectRequest{ExternalID: "wld-001", Title: "t", FundingRequired: 1}

	d.expectTx()
	d.projects.EXPECT().ExistsByExternalID(ctx, d.tx, "wld-001").Return(true, nil)
	_, err := d.svc.SubmitProject(ctx, testProposer, req)
	assertAppError(t, err, "PRJ_001")

	d.expectTx()
	d.projects.EXPECT().ExistsByExternalID(ctx, d.tx, "wld-001").Return(false, nil)
	d.projects.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(ports.ErrDuplicateKey)
	_, err = d.svc.SubmitProject(ctx, testProposer, req)
	assertAppError(t, err, "PRJ_001")
}

func TestRegistryService_SubmitProject_InvalidInput(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()

	tests := []struct {
		name      string
		principal domain.Principal
		req       ports.SubmitProjectRequest
		code      string
	}{
		{"anonymous", domain.Principal{}, ports.SubmitProjectRequest{ExternalID: "x", Title: "t", FundingRequired: 1}, "AUTH_005"},
		{"missing external id", testProposer, ports.SubmitProjectRequest{Title: "t", FundingRequired: 1}, "GOV_002"},
		{"missing title", testProposer, ports.SubmitProjectRequest{ExternalID: "x", Title: "  ", FundingRequired: 1}, "GOV_002"},
		{"zero funding", testProposer, ports.SubmitProjectRequest{ExternalID: "x", Title: "t"}, "GOV_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.SubmitProject(ctx, tt.principal, tt.req)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestRegistryService_ValidateProject_FirstValidation(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := pendingProject(d)

	d.expectLock(p)
	d.validations.EXPECT().Exists(ctx, d.tx, int64(1), "0xv1").Return(false, nil)
	d.validations.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(nil)
	d.projects.EXPECT().Update(ctx, d.tx, p).Return(nil)
	d.expectEvents(2)

	got, err := d.svc.ValidateProject(ctx, testValidator1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ValidationCount)
	assert.Equal(t, domain.ProjectStatusValidating, got.Status)
	assert.Nil(t, got.VotingStartTime)
	assert.Equal(t, []domain.EventType{domain.EventProjectValidated, domain.EventProjectStatusChanged}, d.publisher.types())
}

func TestRegistryService_ValidateProject_ThresholdOpensVoting(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := pendingProject(d)
	p.Status = domain.ProjectStatusValidating
	p.ValidationCount = 1

	d.expectLock(p)
	d.validations.EXPECT().Exists(ctx, d.tx, int64(1), "0xv2").Return(false, nil)
	d.validations.EXPECT().Create(ctx, d.tx, gomock.Any()).Return(nil)
	d.projects.EXPECT().Update(ctx, d.tx, p).Return(nil)
	d.expectEvents(2)

	got, err := d.svc.ValidateProject(ctx, testValidator2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ValidationCount)
	assert.Equal(t, domain.ProjectStatusApproved, got.Status)
	require.NotNil(t, got.VotingStartTime)
	assert.Equal(t, d.clock.Now(), *got.VotingStartTime)
	assert.Equal(t, d.clock.Now().Add(7*24*time.Hour), *got.VotingEndTime)
	assert.Equal(t, domain.WindowOpen, got.Window(d.clock.Now()))
}

func TestRegistryService_ValidateProject_Rejections(t *testing.T) {
	t.Run("not a validator", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		_, err := d.svc.ValidateProject(context.Background(), testProposer, 1)
		assertAppError(t, err, "AUTH_005")
	})

	t.Run("unknown project", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		d.expectTx()
		d.projects.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, int64(99)).Return(nil, nil)
		_, err := d.svc.ValidateProject(context.Background(), testValidator1, 99)
		assertAppError(t, err, "PRJ_002")
	})

	t.Run("already validated by caller", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		p := pendingProject(d)
		d.expectLock(p)
		d.validations.EXPECT().Exists(gomock.Any(), d.tx, int64(1), "0xv1").Return(true, nil)
		_, err := d.svc.ValidateProject(context.Background(), testValidator1, 1)
		assertAppError(t, err, "PRJ_004")
	})

	t.Run("duplicate row from a concurrent request", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		p := pendingProject(d)
		d.expectLock(p)
		d.validations.EXPECT().Exists(gomock.Any(), d.tx, int64(1), "0xv1").Return(false, nil)
		d.validations.EXPECT().Create(gomock.Any(), d.tx, gomock.Any()).Return(ports.ErrDuplicateKey)
		_, err := d.svc.ValidateProject(context.Background(), testValidator1, 1)
		assertAppError(t, err, "PRJ_004")
	})

	t.Run("voting already open", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		d.expectLock(votingProject(d.clock.Now(), 0, 0))
		_, err := d.svc.ValidateProject(context.Background(), testValidator1, 1)
		assertAppError(t, err, "PRJ_003")
	})
}

func TestRegistryService_AutoValidate(t *testing.T) {
	policy := testPolicy()
	policy.AutoValidateAfter = 30 * time.Minute

	t.Run("disabled", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		_, err := d.svc.AutoValidate(context.Background(), testOperator, 1)
		assertAppError(t, err, "PRJ_006")
	})

	t.Run("requires operator", func(t *testing.T) {
		d := setupRegistryService(t, policy)
		_, err := d.svc.AutoValidate(context.Background(), testValidator1, 1)
		assertAppError(t, err, "AUTH_005")
	})

	t.Run("not due", func(t *testing.T) {
		d := setupRegistryService(t, policy)
		p := pendingProject(d)
		p.SubmittedAt = d.clock.Now().Add(-10 * time.Minute)
		d.expectLock(p)
		_, err := d.svc.AutoValidate(context.Background(), testOperator, 1)
		assertAppError(t, err, "PRJ_007")
	})

	t.Run("opens voting without counting a validation", func(t *testing.T) {
		d := setupRegistryService(t, policy)
		p := pendingProject(d)
		d.expectLock(p)
		d.validations.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		d.projects.EXPECT().Update(gomock.Any(), d.tx, p).Return(nil)
		d.expectEvents(2)

		got, err := d.svc.AutoValidate(context.Background(), testOperator, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusApproved, got.Status)
		assert.Equal(t, 0, got.ValidationCount)
		assert.Equal(t, []domain.EventType{domain.EventProjectValidated, domain.EventProjectStatusChanged}, d.publisher.types())
		data := d.publisher.events[0].Data.(domain.ValidationRecorded)
		assert.True(t, data.Automatic)
	})
}

func TestRegistryService_AutoValidateDue(t *testing.T) {
	policy := testPolicy()
	policy.AutoValidateAfter = 30 * time.Minute
	d := setupRegistryService(t, policy)
	ctx := context.Background()

	stale := pendingProject(d)
	raced := votingProject(d.clock.Now(), 0, 0)
	raced.ID = 2

	d.projects.EXPECT().ListAwaitingValidation(ctx, d.clock.Now().Add(-30*time.Minute), autoValidateBatch).Return([]int64{1, 2}, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil).Times(2)
	d.projects.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, int64(1)).Return(stale, nil)
	d.projects.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, int64(2)).Return(raced, nil)
	d.projects.EXPECT().Update(gomock.Any(), d.tx, stale).Return(nil)
	d.expectEvents(2)

	n, err := d.svc.AutoValidateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistryService_AutoValidateDue_Disabled(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	n, err := d.svc.AutoValidateDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistryService_ResolveVoting_Passed(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := votingProject(d.clock.Now().Add(-8*24*time.Hour), 600, 400)

	d.expectLock(p)
	d.ledger.EXPECT().Get(ctx).Return(&domain.LedgerState{TotalSupply: 10000}, nil)
	d.projects.EXPECT().Update(ctx, d.tx, p).Return(nil)
	d.expectEvents(1)

	got, err := d.svc.ResolveVoting(ctx, testProposer, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusApproved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.CanExecute())
	assert.Equal(t, []domain.EventType{domain.EventVotingResolved}, d.publisher.types())
	resolved := d.publisher.events[0].Data.(domain.VotingResolved)
	assert.True(t, resolved.Passed)
	assert.Equal(t, int64(1000), resolved.TurnoutBps)
}

func TestRegistryService_ResolveVoting_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		forVotes  int64
		against   int64
		threshold int64
	}{
		{"opposition wins", 100, 900, 0},
		{"tie", 500, 500, 0},
		{"no votes", 0, 0, 0},
		{"turnout below threshold", 300, 0, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := testPolicy()
			policy.ParticipationThresholdBps = tt.threshold
			d := setupRegistryService(t, policy)
			p := votingProject(d.clock.Now().Add(-7*24*time.Hour), tt.forVotes, tt.against)

			d.expectLock(p)
			d.ledger.EXPECT().Get(gomock.Any()).Return(&domain.LedgerState{TotalSupply: 10000}, nil)
			d.projects.EXPECT().Update(gomock.Any(), d.tx, p).Return(nil)
			d.expectEvents(2)

			got, err := d.svc.ResolveVoting(context.Background(), testProposer, 1)
			require.NoError(t, err)
			assert.Equal(t, domain.ProjectStatusRejected, got.Status)
			assert.Equal(t, []domain.EventType{domain.EventVotingResolved, domain.EventProjectStatusChanged}, d.publisher.types())
		})
	}
}

func TestRegistryService_ResolveVoting_Idempotent(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	p := votingProject(d.clock.Now().Add(-8*24*time.Hour), 10, 20)
	resolvedAt := d.clock.Now().Add(-time.Hour)
	p.ResolvedAt = &resolvedAt
	p.Status = domain.ProjectStatusRejected

	d.expectLock(p)

	got, err := d.svc.ResolveVoting(context.Background(), testProposer, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusRejected, got.Status)
	assert.Equal(t, resolvedAt, *got.ResolvedAt)
	assert.Empty(t, d.publisher.types())
}

func TestRegistryService_ResolveVoting_Rejections(t *testing.T) {
	t.Run("still open", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		d.expectLock(votingProject(d.clock.Now().Add(-time.Hour), 1, 0))
		_, err := d.svc.ResolveVoting(context.Background(), testProposer, 1)
		assertAppError(t, err, "PRJ_005")
	})

	t.Run("never opened", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		d.expectLock(pendingProject(d))
		_, err := d.svc.ResolveVoting(context.Background(), testProposer, 1)
		assertAppError(t, err, "PRJ_003")
	})

	t.Run("anonymous", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		_, err := d.svc.ResolveVoting(context.Background(), domain.Principal{}, 1)
		assertAppError(t, err, "AUTH_005")
	})
}

func TestRegistryService_ExecuteProject(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := votingProject(d.clock.Now().Add(-8*24*time.Hour), 10, 0)
	resolvedAt := d.clock.Now().Add(-time.Hour)
	p.ResolvedAt = &resolvedAt

	d.expectLock(p)
	d.projects.EXPECT().Update(ctx, d.tx, p).Return(nil)
	d.expectEvents(1)

	got, err := d.svc.ExecuteProject(ctx, testOperator, 1)
	require.NoError(t, err)
	assert.True(t, got.Executed)
	assert.Equal(t, domain.ProjectStatusExecuted, got.Status)
	assert.Equal(t, d.clock.Now(), *got.ExecutedAt)
	assert.Equal(t, []domain.EventType{domain.EventProjectStatusChanged}, d.publisher.types())
}

func TestRegistryService_ExecuteProject_Rejections(t *testing.T) {
	t.Run("requires operator", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		_, err := d.svc.ExecuteProject(context.Background(), testValidator1, 1)
		assertAppError(t, err, "AUTH_005")
	})

	t.Run("vote not resolved", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		d.expectLock(votingProject(d.clock.Now().Add(-8*24*time.Hour), 10, 0))
		_, err := d.svc.ExecuteProject(context.Background(), testOperator, 1)
		assertAppError(t, err, "PRJ_003")
	})

	t.Run("rejected project", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		p := votingProject(d.clock.Now().Add(-8*24*time.Hour), 0, 10)
		p.Status = domain.ProjectStatusRejected
		d.expectLock(p)
		_, err := d.svc.ExecuteProject(context.Background(), testOperator, 1)
		assertAppError(t, err, "PRJ_003")
	})

	t.Run("already executed", func(t *testing.T) {
		d := setupRegistryService(t, testPolicy())
		p := votingProject(d.clock.Now().Add(-8*24*time.Hour), 10, 0)
		p.Status = domain.ProjectStatusExecuted
		p.Executed = true
		d.expectLock(p)
		_, err := d.svc.ExecuteProject(context.Background(), testOperator, 1)
		assertAppError(t, err, "PRJ_003")
	})
}

func TestRegistryService_RecordVote(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	now := d.clock.Now()

	open := votingProject(now.Add(-time.Hour), 0, 0)
	d.projects.EXPECT().Update(ctx, d.tx, open).Return(nil).Times(2)

	require.NoError(t, d.svc.RecordVote(ctx, d.tx, open, true, 150, now))
	require.NoError(t, d.svc.RecordVote(ctx, d.tx, open, false, 50, now))
	assert.Equal(t, int64(150), open.ForVotes)
	assert.Equal(t, int64(50), open.AgainstVotes)

	closed := votingProject(now.Add(-8*24*time.Hour), 0, 0)
	assertAppError(t, d.svc.RecordVote(ctx, d.tx, closed, true, 10, now), "VOT_002")

	notStarted := pendingProject(d)
	assertAppError(t, d.svc.RecordVote(ctx, d.tx, notStarted, true, 10, now), "VOT_001")

	assertAppError(t, d.svc.RecordVote(ctx, d.tx, open, true, 0, now), "GOV_001")
}

func TestRegistryService_ProjectVotes(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := votingProject(d.clock.Now(), 750, 250)

	d.projects.EXPECT().GetByID(ctx, int64(1)).Return(p, nil)
	d.projects.EXPECT().GetByID(ctx, int64(2)).Return(nil, nil)

	tally, err := d.svc.ProjectVotes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(750), tally.ForVotes)
	assert.Equal(t, int64(7500), tally.SupportBps)
	assert.Equal(t, p.VotingEndTime, tally.VotingEndTime)

	_, err = d.svc.ProjectVotes(ctx, 2)
	assertAppError(t, err, "PRJ_002")
}

func TestRegistryService_ListProjects(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	status := domain.ProjectStatusApproved

	d.projects.EXPECT().List(ctx, domain.ProjectFilter{Status: &status, Proposer: "0xproposer", Limit: defaultPageSize}).
		Return([]domain.Project{{ID: 1}}, int64(1), nil)

	items, total, err := d.svc.ListProjects(ctx, domain.ProjectFilter{Status: &status, Proposer: "0xPROPOSER"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
}

func TestRegistryService_RecordScreening(t *testing.T) {
	d := setupRegistryService(t, testPolicy())
	ctx := context.Background()
	p := pendingProject(d)
	score := 77
	result := &domain.ScreeningResult{Status: domain.ScreeningStatusCompleted, Score: &score, ScreenedAt: d.clock.Now()}

	d.expectLock(p)
	d.projects.EXPECT().UpdateScreening(ctx, d.tx, int64(1), result).Return(nil)
	d.expectEvents(1)

	require.NoError(t, d.svc.RecordScreening(ctx, 1, result))
	assert.Equal(t, domain.ProjectStatusPending, p.Status)
	assert.Equal(t, []domain.EventType{domain.EventProjectScreened}, d.publisher.types())

	assertAppError(t, d.svc.RecordScreening(ctx, 1, nil), "GOV_002")
}
