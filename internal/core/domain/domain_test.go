package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMember_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status MemberStatus
		want   bool
	}{
		{"active", MemberStatusActive, true},
		{"suspended", MemberStatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Member{Status: tt.status}
			assert.Equal(t, tt.want, m.IsActive())
		})
	}
}

func TestMember_GrantRole(t *testing.T) {
	m := &Member{Account: "0xabc", Roles: []Role{RoleMember}}

	assert.True(t, m.GrantRole(RoleValidator))
	assert.False(t, m.GrantRole(RoleValidator))
	assert.Equal(t, []Role{RoleMember, RoleValidator}, m.Roles)
	assert.True(t, m.Principal().Has(RoleValidator))
	assert.Equal(t, "0xabc", m.Principal().Account)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Validator ")
	assert.True(t, ok)
	assert.Equal(t, RoleValidator, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}

func TestSystemPrincipal(t *testing.T) {
	p := SystemPrincipal("exchange", RoleMinter)
	assert.Equal(t, "system:exchange", p.Account)
	assert.True(t, p.Has(RoleMinter))
	assert.False(t, p.Has(RoleOperator))
	assert.False(t, p.IsZero())
	assert.True(t, Principal{}.IsZero())
}

func TestPowerBps(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		supply  int64
		want    int64
	}{
		{"empty supply", 10, 0, 0},
		{"zero balance", 0, 100, 0},
		{"half", 50, 100, 5000},
		{"all", 98, 98, 10000},
		{"floor", 1, 3, 3333},
		{"huge", 1 << 61, 1 << 62, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PowerBps(tt.balance, tt.supply))
		})
	}
}

func TestExchangeConfig_Quote(t *testing.T) {
	tests := []struct {
		name   string
		rate   string
		feeBps int64
		usd    int64
		fee    int64
		net    int64
		tokens int64
	}{
		{"two percent fee at rate one", "1", 200, 100, 2, 98, 98},
		{"rate one hundred", "100", 200, 100, 2, 98, 9800},
		{"fee floors", "1", 250, 99, 2, 97, 97},
		{"no fee", "1", 0, 7, 0, 7, 7},
		{"bankers rounding down", "0.5", 0, 5, 0, 5, 2},
		{"bankers rounding up", "0.5", 0, 7, 0, 7, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ExchangeConfig{Rate: decimal.RequireFromString(tt.rate), FeeBasisPoints: tt.feeBps, MinDonation: 1, MaxDonation: 1000}
			q, err := cfg.Quote(tt.usd)
			require.NoError(t, err)
			assert.Equal(t, tt.fee, q.FeeAmount)
			assert.Equal(t, tt.net, q.NetAmount)
			assert.Equal(t, tt.tokens, q.Tokens)
			assert.Equal(t, tt.usd, q.FeeAmount+q.NetAmount)
		})
	}
}

func TestExchangeConfig_Validate(t *testing.T) {
	valid := ExchangeConfig{Rate: decimal.NewFromInt(1), FeeBasisPoints: 200, MinDonation: 1, MaxDonation: 10}
	require.NoError(t, valid.Validate())

	bad := []ExchangeConfig{
		{Rate: decimal.Zero, FeeBasisPoints: 200, MinDonation: 1, MaxDonation: 10},
		{Rate: decimal.NewFromInt(1), FeeBasisPoints: 10000, MinDonation: 1, MaxDonation: 10},
		{Rate: decimal.NewFromInt(1), FeeBasisPoints: -1, MinDonation: 1, MaxDonation: 10},
		{Rate: decimal.NewFromInt(1), FeeBasisPoints: 0, MinDonation: 0, MaxDonation: 10},
		{Rate: decimal.NewFromInt(1), FeeBasisPoints: 0, MinDonation: 11, MaxDonation: 10},
		{Rate: decimal.NewFromInt(1), FeeBasisPoints: 0, MinDonation: 1, MaxDonation: MaxDonationLimit + 1},
		{Rate: decimal.NewFromInt(1_000_000), FeeBasisPoints: 0, MinDonation: 1, MaxDonation: MaxDonationLimit},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate())
	}

	assert.True(t, valid.InBounds(1))
	assert.True(t, valid.InBounds(10))
	assert.False(t, valid.InBounds(0))
	assert.False(t, valid.InBounds(11))
}

func TestExchangeConfig_LargestDonationDoesNotOverflow(t *testing.T) {
	cfg := ExchangeConfig{Rate: decimal.NewFromInt(1), FeeBasisPoints: 9999, MinDonation: 1, MaxDonation: MaxDonationLimit}
	require.NoError(t, cfg.Validate())

	q, err := cfg.Quote(MaxDonationLimit)
	require.NoError(t, err)
	assert.Positive(t, q.FeeAmount)
	assert.Equal(t, MaxDonationLimit, q.FeeAmount+q.NetAmount)
	assert.Equal(t, q.NetAmount, q.Tokens)
}

func TestExchangeConfig_QuoteRejectsTokenOverflow(t *testing.T) {
	cfg := ExchangeConfig{Rate: decimal.RequireFromString("1e15"), MinDonation: 1, MaxDonation: 1_000_000}

	_, err := cfg.Quote(1_000_000)
	assert.ErrorIs(t, err, ErrTokenOverflow)

	q, err := cfg.Quote(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000_000_000), q.Tokens)
}

func TestProject_Window(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	tests := []struct {
		name    string
		project Project
		at      time.Time
		want    VotingWindow
	}{
		{"pending", Project{Status: ProjectStatusPending}, now, WindowNotStarted},
		{"validating", Project{Status: ProjectStatusValidating}, now, WindowNotStarted},
		{"before start", Project{Status: ProjectStatusApproved, VotingStartTime: &start, VotingEndTime: &end}, start.Add(-time.Second), WindowNotStarted},
		{"at start", Project{Status: ProjectStatusApproved, VotingStartTime: &start, VotingEndTime: &end}, start, WindowOpen},
		{"open", Project{Status: ProjectStatusApproved, VotingStartTime: &start, VotingEndTime: &end}, now, WindowOpen},
		{"at end", Project{Status: ProjectStatusApproved, VotingStartTime: &start, VotingEndTime: &end}, end, WindowEnded},
		{"rejected", Project{Status: ProjectStatusRejected, VotingStartTime: &start, VotingEndTime: &end}, now, WindowEnded},
		{"resolved", Project{Status: ProjectStatusApproved, VotingStartTime: &start, VotingEndTime: &end, ResolvedAt: &now}, now, WindowEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.project.Window(tt.at))
		})
	}
}

func TestProject_OpenVotingAndExecute(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Project{Status: ProjectStatusValidating}
	require.True(t, p.AwaitingValidation())

	p.OpenVoting(now, 7*24*time.Hour)
	assert.Equal(t, ProjectStatusApproved, p.Status)
	assert.Equal(t, now, *p.VotingStartTime)
	assert.Equal(t, now.Add(7*24*time.Hour), *p.VotingEndTime)
	assert.False(t, p.IsResolved())
	assert.False(t, p.CanExecute())

	p.ResolvedAt = &now
	assert.True(t, p.IsResolved())
	assert.True(t, p.CanExecute())

	p.Executed = true
	assert.False(t, p.CanExecute())
}

func TestProject_SupportBps(t *testing.T) {
	p := &Project{ForVotes: 150, AgainstVotes: 50}
	assert.Equal(t, int64(200), p.TotalVotes())
	assert.Equal(t, int64(7500), p.SupportBps())
	assert.Equal(t, int64(0), (&Project{}).SupportBps())
}

func TestProject_AnalysisText(t *testing.T) {
	p := &Project{
		Title:           "Rhino Conservation",
		Description:     "Protect rhinos",
		FundingRequired: 60000,
		Metadata: ProjectMetadata{
			Location:        "Kenya",
			BudgetBreakdown: []BudgetItem{{Item: "Rangers", Amount: 40000}},
			Milestones:      []Milestone{{Title: "Hire", Deadline: "2026-06", Description: "Hire rangers"}},
		},
	}

	text := p.AnalysisText()
	assert.Contains(t, text, "Project Title: Rhino Conservation")
	assert.Contains(t, text, "Funding Required: $60000")
	assert.Contains(t, text, "Location: Kenya")
	assert.Contains(t, text, "Budget Breakdown: Rangers: $40000")
	assert.Contains(t, text, "Milestones: Hire (2026-06): Hire rangers")
	assert.NotContains(t, text, "Timeline")
}

func TestParseProjectStatus(t *testing.T) {
	st, ok := ParseProjectStatus("approved")
	assert.True(t, ok)
	assert.Equal(t, ProjectStatusApproved, st)

	_, ok = ParseProjectStatus("open")
	assert.False(t, ok)
}

func TestBuildDonationIdempotencyKey(t *testing.T) {
	assert.Equal(t, "donation:0xabc:ORD-001", BuildDonationIdempotencyKey(" 0xABC", "ORD-001"))
}

func TestNewStatusChangedEvent(t *testing.T) {
	now := time.Now().UTC()
	p := &Project{ID: 7, Status: ProjectStatusApproved}

	ev := NewStatusChangedEvent(p, ProjectStatusValidating, "0xval", now)
	assert.Equal(t, EventProjectStatusChanged, ev.Type)
	require.NotNil(t, ev.ProjectID)
	assert.Equal(t, int64(7), *ev.ProjectID)
	assert.Equal(t, StatusChange{From: ProjectStatusValidating, To: ProjectStatusApproved}, ev.Data)
	assert.Equal(t, now, ev.OccurredAt)
}
