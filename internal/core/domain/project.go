package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "PENDING"
	ProjectStatusValidating ProjectStatus = "VALIDATING"
	ProjectStatusApproved   ProjectStatus = "APPROVED"
	ProjectStatusRejected   ProjectStatus = "REJECTED"
	ProjectStatusExecuted   ProjectStatus = "EXECUTED"
)

// ParseProjectStatus accepts any casing of a status name.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	st := ProjectStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case ProjectStatusPending, ProjectStatusValidating, ProjectStatusApproved,
		ProjectStatusRejected, ProjectStatusExecuted:
		return st, true
	}
	return "", false
}

// VotingWindow is the position of a point in time relative to a project's voting window.
type VotingWindow int

const (
	WindowNotStarted VotingWindow = iota
	WindowOpen
	WindowEnded
)

// Project is a funding proposal moving through validation, voting and execution.
type Project struct {
	ID              int64            `json:"id"`
	ExternalID      string           `json:"external_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Proposer        string           `json:"proposer"`
	FundingRequired int64            `json:"funding_required"`
	FundingReceived int64            `json:"funding_received"`
	Status          ProjectStatus    `json:"status"`
	ValidationCount int              `json:"validation_count"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	VotingStartTime *time.Time       `json:"voting_start_time,omitempty"`
	VotingEndTime   *time.Time       `json:"voting_end_time,omitempty"`
	ForVotes        int64            `json:"for_votes"`
	AgainstVotes    int64            `json:"against_votes"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	Executed        bool             `json:"executed"`
	ExecutedAt      *time.Time       `json:"executed_at,omitempty"`
	Metadata        ProjectMetadata  `json:"metadata"`
	Screening       *ScreeningResult `json:"screening,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// AwaitingValidation reports whether validators can still act on the project.
func (p *Project) AwaitingValidation() bool {
	return p.Status == ProjectStatusPending || p.Status == ProjectStatusValidating
}

// IsResolved reports whether the voting outcome is final.
func (p *Project) IsResolved() bool {
	switch p.Status {
	case ProjectStatusRejected, ProjectStatusExecuted:
		return true
	case ProjectStatusApproved:
		return p.ResolvedAt != nil
	}
	return false
}

// CanExecute reports whether the project passed its vote and has not been executed.
func (p *Project) CanExecute() bool {
	return p.Status == ProjectStatusApproved && p.ResolvedAt != nil && !p.Executed
}

// OpenVoting moves the project to APPROVED with the window [now, now+period).
func (p *Project) OpenVoting(now time.Time, period time.Duration) {
	start := now
	end := now.Add(period)
	p.Status = ProjectStatusApproved
	p.VotingStartTime = &start
	p.VotingEndTime = &end
}

// Window classifies now against the voting window. Resolved projects are always ended.
func (p *Project) Window(now time.Time) VotingWindow {
	if p.VotingStartTime == nil || p.VotingEndTime == nil {
		if p.AwaitingValidation() {
			return WindowNotStarted
		}
		return WindowEnded
	}
	if p.IsResolved() {
		return WindowEnded
	}
	if now.Before(*p.VotingStartTime) {
		return WindowNotStarted
	}
	if !now.Before(*p.VotingEndTime) {
		return WindowEnded
	}
	return WindowOpen
}

// TotalVotes is the weight cast so far.
func (p *Project) TotalVotes() int64 {
	return p.ForVotes + p.AgainstVotes
}

// SupportBps is the share of cast weight in favour, in basis points.
func (p *Project) SupportBps() int64 {
	total := p.TotalVotes()
	if total == 0 {
		return 0
	}
	return PowerBps(p.ForVotes, total)
}

// BudgetItem is one line of a project's budget breakdown.
type BudgetItem struct {
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

// Milestone is a planned delivery point.
type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// ProjectMetadata is free-form descriptive data with no lifecycle behaviour.
type ProjectMetadata struct {
	Location              string       `json:"location,omitempty"`
	Timeline              string       `json:"timeline,omitempty"`
	TechnicalRequirements string       `json:"technical_requirements,omitempty"`
	ImpactMetrics         string       `json:"impact_metrics,omitempty"`
	TeamBackground        string       `json:"team_background,omitempty"`
	BudgetBreakdown       []BudgetItem `json:"budget_breakdown,omitempty"`
	Milestones            []Milestone  `json:"milestones,omitempty"`
}

// AnalysisText renders the project as the plain-text document sent to the AI scorer.
func (p *Project) AnalysisText() string {
	m := p.Metadata
	lines := []string{
		"Project Title: " + p.Title,
		"Description: " + p.Description,
		fmt.Sprintf("Funding Required: $%d", p.FundingRequired),
	}
	optional := []struct{ label, value string }{
		{"Location", m.Location},
		{"Timeline", m.Timeline},
		{"Technical Requirements", m.TechnicalRequirements},
		{"Impact Metrics", m.ImpactMetrics},
		{"Team Background", m.TeamBackground},
	}
	for _, o := range optional {
		if o.value != "" {
			lines = append(lines, o.label+": "+o.value)
		}
	}
	if len(m.BudgetBreakdown) > 0 {
		parts := make([]string, 0, len(m.BudgetBreakdown))
		for _, b := range m.BudgetBreakdown {
			parts = append(parts, fmt.Sprintf("%s: $%d", b.Item, b.Amount))
		}
		lines = append(lines, "Budget Breakdown: "+strings.Join(parts, "; "))
	}
	if len(m.Milestones) > 0 {
		parts := make([]string, 0, len(m.Milestones))
		for _, ms := range m.Milestones {
			parts = append(parts, fmt.Sprintf("%s (%s): %s", ms.Title, ms.Deadline, ms.Description))
		}
		lines = append(lines, "Milestones: "+strings.Join(parts, "; "))
	}
	return strings.Join(lines, "\n")
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status   *ProjectStatus
	Proposer string
	Limit    int
	Offset   int
}
