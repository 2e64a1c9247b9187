package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a governance notification.
type EventType string

const (
	EventProjectSubmitted     EventType = "project.submitted"
	EventProjectValidated     EventType = "project.validated"
	EventProjectStatusChanged EventType = "project.status_changed"
	EventVotingResolved       EventType = "project.voting_resolved"
	EventProjectScreened      EventType = "project.screened"
	EventVoteCast             EventType = "vote.cast"
	EventDonationReceived     EventType = "donation.received"
	EventExchangeConfigUpdate EventType = "exchange.config_updated"
)

// Event is an outbox entry. Seq is assigned by the store on append and orders the feed.
type Event struct {
	Seq        int64       `json:"seq"`
	ID         uuid.UUID   `json:"id"`
	Type       EventType   `json:"type"`
	ProjectID  *int64      `json:"project_id,omitempty"`
	Account    string      `json:"account,omitempty"`
	Data       interface{} `json:"data"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// StatusChange is the payload of project.status_changed.
type StatusChange struct {
	From ProjectStatus `json:"from"`
	To   ProjectStatus `json:"to"`
}

// ValidationRecorded is the payload of project.validated.
type ValidationRecorded struct {
	Validator       string `json:"validator"`
	ValidationCount int    `json:"validation_count"`
	Automatic       bool   `json:"automatic"`
}

// VotingResolved is the payload of project.voting_resolved.
type VotingResolved struct {
	Passed       bool          `json:"passed"`
	Status       ProjectStatus `json:"status"`
	ForVotes     int64         `json:"for_votes"`
	AgainstVotes int64         `json:"against_votes"`
	TurnoutBps   int64         `json:"turnout_bps"`
}

func newEvent(t EventType, projectID *int64, account string, data interface{}, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		ProjectID:  projectID,
		Account:    account,
		Data:       data,
		OccurredAt: at,
	}
}

func NewProjectSubmittedEvent(p *Project, at time.Time) Event {
	id := p.ID
	return newEvent(EventProjectSubmitted, &id, p.Proposer, map[string]interface{}{
		"external_id":      p.ExternalID,
		"title":            p.Title,
		"funding_required": p.FundingRequired,
	}, at)
}

func NewProjectValidatedEvent(p *Project, validator string, automatic bool, at time.Time) Event {
	id := p.ID
	return newEvent(EventProjectValidated, &id, validator, ValidationRecorded{
		Validator:       validator,
		ValidationCount: p.ValidationCount,
		Automatic:       automatic,
	}, at)
}

func NewStatusChangedEvent(p *Project, from ProjectStatus, actor string, at time.Time) Event {
	id := p.ID
	return newEvent(EventProjectStatusChanged, &id, actor, StatusChange{From: from, To: p.Status}, at)
}

func NewVotingResolvedEvent(p *Project, passed bool, turnoutBps int64, at time.Time) Event {
	id := p.ID
	return newEvent(EventVotingResolved, &id, "", VotingResolved{
		Passed:       passed,
		Status:       p.Status,
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
		TurnoutBps:   turnoutBps,
	}, at)
}

func NewProjectScreenedEvent(projectID int64, result *ScreeningResult, at time.Time) Event {
	return newEvent(EventProjectScreened, &projectID, "", result, at)
}

func NewVoteCastEvent(v *Vote) Event {
	id := v.ProjectID
	return newEvent(EventVoteCast, &id, v.Voter, map[string]interface{}{
		"support": v.Support,
		"weight":  v.Weight,
	}, v.CastAt)
}

func NewDonationReceivedEvent(d *Donation) Event {
	return newEvent(EventDonationReceived, nil, d.Donor, map[string]interface{}{
		"donation_id":   d.ID.String(),
		"recipient":     d.Recipient,
		"usd_amount":    d.USDAmount,
		"tokens_minted": d.TokensMinted,
		"fee_amount":    d.FeeAmount,
	}, d.CreatedAt)
}

func NewExchangeConfigUpdatedEvent(cfg *ExchangeConfig) Event {
	return newEvent(EventExchangeConfigUpdate, nil, cfg.UpdatedBy, cfg, cfg.UpdatedAt)
}
