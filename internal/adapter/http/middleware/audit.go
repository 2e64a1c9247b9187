package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful write operations.
// It maps the matched route to an audit action.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actor string
		if principal, ok := GetPrincipal(c); ok {
			actor = principal.Account
		}
		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("account")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        actor,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method == http.MethodPut && route == "/api/v1/exchange/config" {
		return domain.AuditActionUpdateExchange, "exchange_config"
	}
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "member"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/members/:account/roles":
		return domain.AuditActionGrantRole, "member"
	case "/api/v1/ledger/mint":
		return domain.AuditActionMint, "account"
	case "/api/v1/donations":
		return domain.AuditActionDonate, "donation"
	case "/api/v1/projects":
		return domain.AuditActionSubmitProject, "project"
	case "/api/v1/projects/:id/validate":
		return domain.AuditActionValidate, "project"
	case "/api/v1/projects/:id/auto-validate":
		return domain.AuditActionAutoValidate, "project"
	case "/api/v1/projects/:id/resolve":
		return domain.AuditActionResolve, "project"
	case "/api/v1/projects/:id/execute":
		return domain.AuditActionExecute, "project"
	case "/api/v1/projects/:id/votes":
		return domain.AuditActionVote, "vote"
	}
	return "", ""
}
