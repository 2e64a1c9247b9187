package handler

import (
	"wildlife-governance/internal/adapter/http/dto"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication and member management endpoints.
type AuthHandler struct {
	authSvc   ports.AuthService
	memberSvc ports.MemberService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService, memberSvc ports.MemberService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, memberSvc: memberSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Account:  req.Account,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAuthResponse(result))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAuthResponse(result))
}

// GrantRole handles POST /api/v1/members/:account/roles.
func (h *AuthHandler) GrantRole(c *gin.Context) {
	caller, err := principal(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		response.Error(c, apperror.Validation("unknown role "+req.Role))
		return
	}

	member, err := h.memberSvc.GrantRole(c.Request.Context(), caller, c.Param("account"), role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, member)
}

func toAuthResponse(result *ports.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		MemberID: result.Member.ID.String(),
		Account:  result.Member.Account,
		Roles:    result.Member.Roles,
		Token:    result.Token,
		Expiry:   result.ExpiresAt.Unix(),
	}
}
