package dto

import "wildlife-governance/internal/core/domain"

// RegisterRequest is the request body for member registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Account  string `json:"account" binding:"required,account"`
}

// LoginRequest is the request body for member login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	MemberID string        `json:"member_id"`
	Account  string        `json:"account"`
	Roles    []domain.Role `json:"roles"`
	Token    string        `json:"token"`
	Expiry   int64         `json:"expiry"` // Unix timestamp
}

// GrantRoleRequest is the request body for granting a member role.
type GrantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// MintRequest is the request body for a direct mint.
type MintRequest struct {
	Account string `json:"account" binding:"required,account"`
	Amount  int64  `json:"amount"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Account  string `json:"account"`
	Balance  int64  `json:"balance"`
	PowerBps int64  `json:"power_bps"`
}

// SupplyResponse is the response for a supply query.
type SupplyResponse struct {
	TotalSupply      int64 `json:"total_supply"`
	TotalValueLocked int64 `json:"total_value_locked"`
}

// DonateRequest is the request body for a donation. The Idempotency-Key
// header is used when reference_id is omitted.
type DonateRequest struct {
	USDAmount   int64   `json:"usd_amount"`
	Recipient   string  `json:"recipient,omitempty" binding:"omitempty,account"`
	ReferenceID *string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// UpdateExchangeConfigRequest replaces the exchange policy. Rate is a decimal string;
// range checks happen in the exchange service.
type UpdateExchangeConfigRequest struct {
	Rate           string `json:"rate"`
	FeeBasisPoints int64  `json:"fee_bps"`
	MinDonation    int64  `json:"min_donation"`
	MaxDonation    int64  `json:"max_donation"`
}

// SubmitProjectRequest is the request body for a project submission.
type SubmitProjectRequest struct {
	ExternalID      string                 `json:"external_id" binding:"required,max=100,safe_id"`
	Title           string                 `json:"title" binding:"required,max=200"`
	Description     string                 `json:"description" binding:"required,max=10000"`
	FundingRequired int64                  `json:"funding_required"`
	Metadata        domain.ProjectMetadata `json:"metadata"`
}

// VoteRequest is the request body for a ballot.
type VoteRequest struct {
	Support *bool `json:"support" binding:"required"`
}

// ProjectResponse decorates a project with derived voting figures.
type ProjectResponse struct {
	*domain.Project
	SupportBps int64 `json:"support_bps"`
	TotalVotes int64 `json:"total_votes"`
}

// NewProjectResponse builds the public view of p.
func NewProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		Project:    p,
		SupportBps: p.SupportBps(),
		TotalVotes: p.TotalVotes(),
	}
}

// HasVotedResponse is the response for a ballot lookup.
type HasVotedResponse struct {
	ProjectID int64  `json:"project_id"`
	Account   string `json:"account"`
	HasVoted  bool   `json:"has_voted"`
}
