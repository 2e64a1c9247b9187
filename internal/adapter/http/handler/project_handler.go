package handler

import (
	"wildlife-governance/internal/adapter/http/dto"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProjectHandler handles the project lifecycle and voting endpoints.
type ProjectHandler struct {
	registrySvc ports.RegistryService
	votingSvc   ports.VotingService
}

func NewProjectHandler(registrySvc ports.RegistryService, votingSvc ports.VotingService) *ProjectHandler {
	return &ProjectHandler{registrySvc: registrySvc, votingSvc: votingSvc}
}

// Submit handles POST /api/v1/projects.
func (h *ProjectHandler) Submit(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	project, err := h.registrySvc.SubmitProject(c.Request.Context(), caller, ports.SubmitProjectRequest{
		ExternalID:      req.ExternalID,
		Title:           req.Title,
		Description:     req.Description,
		FundingRequired: req.FundingRequired,
		Metadata:        req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewProjectResponse(project))
}

// List handles GET /api/v1/projects?status=&proposer=&limit=&offset=.
func (h *ProjectHandler) List(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := domain.ProjectFilter{
		Proposer: c.Query("proposer"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseProjectStatus(raw)
		if !ok {
			response.Error(c, apperror.Validation("unknown status "+raw))
			return
		}
		filter.Status = &status
	}

	projects, total, err := h.registrySvc.ListProjects(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, dto.NewProjectResponse(&projects[i]))
	}
	response.Page(c, items, total, limit, offset)
}

// Get handles GET /api/v1/projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	project, err := h.registrySvc.GetProject(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProjectResponse(project))
}

type transition func(ctx *gin.Context, caller domain.Principal, id int64) (*domain.Project, error)

// lifecycle wraps a registry transition that takes the caller and a project id.
func (h *ProjectHandler) lifecycle(op transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := principal(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		id, err := projectID(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		project, err := op(c, caller, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, dto.NewProjectResponse(project))
	}
}

// Validate handles POST /api/v1/projects/:id/validate.
func (h *ProjectHandler) Validate(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, caller domain.Principal, id int64) (*domain.Project, error) {
		return h.registrySvc.ValidateProject(c.Request.Context(), caller, id)
	})(c)
}

// AutoValidate handles POST /api/v1/projects/:id/auto-validate.
func (h *ProjectHandler) AutoValidate(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, caller domain.Principal, id int64) (*domain.Project, error) {
		return h.registrySvc.AutoValidate(c.Request.Context(), caller, id)
	})(c)
}

// Resolve handles POST /api/v1/projects/:id/resolve.
func (h *ProjectHandler) Resolve(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, caller domain.Principal, id int64) (*domain.Project, error) {
		return h.registrySvc.ResolveVoting(c.Request.Context(), caller, id)
	})(c)
}

// Execute handles POST /api/v1/projects/:id/execute.
func (h *ProjectHandler) Execute(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, caller domain.Principal, id int64) (*domain.Project, error) {
		return h.registrySvc.ExecuteProject(c.Request.Context(), caller, id)
	})(c)
}

// Vote handles POST /api/v1/projects/:id/votes.
func (h *ProjectHandler) Vote(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := projectID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receipt, err := h.votingSvc.VoteOnProject(c.Request.Context(), caller, id, *req.Support)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Votes handles GET /api/v1/projects/:id/votes: the tally and every ballot.
func (h *ProjectHandler) Votes(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	tally, err := h.registrySvc.ProjectVotes(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	votes, err := h.votingSvc.ListVotes(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"tally": tally, "votes": votes})
}

// MyVote handles GET /api/v1/projects/:id/votes/me.
func (h *ProjectHandler) MyVote(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := projectID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account := domain.NormalizeAccount(caller.Account)
	response.OK(c, dto.HasVotedResponse{
		ProjectID: id,
		Account:   account,
		HasVoted:  h.votingSvc.HasVoted(c.Request.Context(), id, account),
	})
}

// Eligibility handles GET /api/v1/projects/:id/eligibility?account=.
func (h *ProjectHandler) Eligibility(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	account := c.Query("account")
	if !dto.ValidAccount(account) {
		response.Error(c, apperror.Validation("account query parameter is required"))
		return
	}

	response.OK(c, h.votingSvc.CheckEligibility(c.Request.Context(), id, account))
}
