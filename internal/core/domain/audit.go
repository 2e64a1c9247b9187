package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister       AuditAction = "REGISTER"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionGrantRole      AuditAction = "GRANT_ROLE"
	AuditActionMint           AuditAction = "MINT"
	AuditActionDonate         AuditAction = "DONATE"
	AuditActionUpdateExchange AuditAction = "UPDATE_EXCHANGE"
	AuditActionSubmitProject  AuditAction = "SUBMIT_PROJECT"
	AuditActionValidate       AuditAction = "VALIDATE_PROJECT"
	AuditActionAutoValidate   AuditAction = "AUTO_VALIDATE_PROJECT"
	AuditActionResolve        AuditAction = "RESOLVE_VOTING"
	AuditActionExecute        AuditAction = "EXECUTE_PROJECT"
	AuditActionVote           AuditAction = "VOTE"
)

// AuditLog records a single privileged or state-changing request.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
